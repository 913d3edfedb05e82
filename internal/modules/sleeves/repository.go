package sleeves

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles sleeve database operations
// Database: portfolio.db (sleeves, sleeve_members tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new sleeve repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "sleeves").Logger(),
	}
}

// GetAll returns all sleeves with their members, ordered by name
func (r *Repository) GetAll(ctx context.Context) ([]Sleeve, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM sleeves ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sleeves: %w", err)
	}
	defer rows.Close()

	var sleeves []Sleeve
	index := make(map[string]int)
	for rows.Next() {
		var s Sleeve
		var createdAt, updatedAt int64
		if err := rows.Scan(&s.ID, &s.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sleeve: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		index[s.ID] = len(sleeves)
		sleeves = append(sleeves, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sleeves: %w", err)
	}

	members, err := r.queryMembers(ctx, `
		SELECT sleeve_id, ticker, rank, is_active, is_legacy
		FROM sleeve_members
		ORDER BY sleeve_id ASC, rank ASC, ticker ASC
	`)
	if err != nil {
		return nil, err
	}
	for sleeveID, list := range members {
		if i, ok := index[sleeveID]; ok {
			sleeves[i].Members = list
		}
	}

	return sleeves, nil
}

// GetByID returns a single sleeve or ErrSleeveNotFound
func (r *Repository) GetByID(ctx context.Context, id string) (*Sleeve, error) {
	var s Sleeve
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM sleeves WHERE id = ?
	`, id).Scan(&s.ID, &s.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSleeveNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sleeve: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	members, err := r.queryMembers(ctx, `
		SELECT sleeve_id, ticker, rank, is_active, is_legacy
		FROM sleeve_members
		WHERE sleeve_id = ?
		ORDER BY rank ASC, ticker ASC
	`, id)
	if err != nil {
		return nil, err
	}
	s.Members = members[id]

	return &s, nil
}

// Create validates and inserts a sleeve with its members.
// An empty id is replaced with a generated one.
func (r *Repository) Create(ctx context.Context, s Sleeve) (*Sleeve, error) {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sleeve: %w", err)
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Second)
	s.CreatedAt = now
	s.UpdatedAt = now

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sleeves (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		`, s.ID, s.Name, now.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert sleeve: %w", err)
		}
		return insertMembers(ctx, tx, s)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sleeve: %w", err)
	}

	r.log.Info().
		Str("sleeve_id", s.ID).
		Str("name", s.Name).
		Int("members", len(s.Members)).
		Msg("Sleeve created")

	return &s, nil
}

// Update replaces a sleeve's name and member list
func (r *Repository) Update(ctx context.Context, s Sleeve) (*Sleeve, error) {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sleeve: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE sleeves SET name = ?, updated_at = ? WHERE id = ?
		`, s.Name, now.Unix(), s.ID)
		if err != nil {
			return fmt.Errorf("failed to update sleeve: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrSleeveNotFound, s.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sleeve_members WHERE sleeve_id = ?`, s.ID); err != nil {
			return fmt.Errorf("failed to clear sleeve members: %w", err)
		}
		return insertMembers(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("sleeve_id", s.ID).
		Int("members", len(s.Members)).
		Msg("Sleeve updated")

	return r.GetByID(ctx, s.ID)
}

// Delete removes a sleeve and its members
func (r *Repository) Delete(ctx context.Context, id string) error {
	var rowsAffected int64
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sleeve_members WHERE sleeve_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete sleeve members: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM sleeves WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete sleeve: %w", err)
		}
		rowsAffected, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSleeveNotFound, id)
	}

	r.log.Debug().
		Str("sleeve_id", id).
		Msg("Sleeve deleted")

	return nil
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...interface{}) (map[string][]Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sleeve members: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]Member)
	for rows.Next() {
		var sleeveID string
		var m Member
		var isActive, isLegacy int
		if err := rows.Scan(&sleeveID, &m.Ticker, &m.Rank, &isActive, &isLegacy); err != nil {
			return nil, fmt.Errorf("failed to scan sleeve member: %w", err)
		}
		m.IsActive = isActive == 1
		m.IsLegacy = isLegacy == 1
		result[sleeveID] = append(result[sleeveID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sleeve members: %w", err)
	}

	return result, nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, s Sleeve) error {
	for _, m := range s.Members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sleeve_members (sleeve_id, ticker, rank, is_active, is_legacy)
			VALUES (?, ?, ?, ?, ?)
		`, s.ID, m.Ticker, m.Rank, boolToInt(m.IsActive), boolToInt(m.IsLegacy))
		if err != nil {
			return fmt.Errorf("failed to insert sleeve member %s: %w", m.Ticker, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
