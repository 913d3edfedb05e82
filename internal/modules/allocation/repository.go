package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles allocation model database operations
// Database: portfolio.db (allocation_models, allocation_model_members; sleeves for reference checks)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation model repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// GetAll returns all models with their members, ordered by name
func (r *Repository) GetAll(ctx context.Context) ([]Model, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM allocation_models ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation models: %w", err)
	}

	for i := range models {
		members, err := r.getMembers(ctx, models[i].ID)
		if err != nil {
			return nil, err
		}
		models[i].Members = members
	}

	return models, nil
}

// GetByID returns a model or ErrModelNotFound
func (r *Repository) GetByID(ctx context.Context, id string) (*Model, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM allocation_models WHERE id = ?
	`, id)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation model: %w", err)
	}

	m.Members, err = r.getMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create validates and stores a model.
// When no active member carries a weight, equal weights are filled in first.
func (r *Repository) Create(ctx context.Context, m Model) (*Model, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.FillEqualWeights() {
		r.log.Debug().Str("name", m.Name).Msg("Filled equal target weights")
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid allocation model: %w", err)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Second)
	m.CreatedAt = now
	m.UpdatedAt = now

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkSleeves(ctx, tx, m); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO allocation_models (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		`, m.ID, m.Name, now.Unix(), now.Unix()); err != nil {
			return fmt.Errorf("failed to insert allocation model: %w", err)
		}
		return insertMembers(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("model_id", m.ID).
		Str("name", m.Name).
		Int("members", len(m.Members)).
		Msg("Allocation model created")

	return &m, nil
}

// Update validates and replaces a model's name and members
func (r *Repository) Update(ctx context.Context, m Model) (*Model, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.FillEqualWeights()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid allocation model: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkSleeves(ctx, tx, m); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE allocation_models SET name = ?, updated_at = ? WHERE id = ?
		`, m.Name, now.Unix(), m.ID)
		if err != nil {
			return fmt.Errorf("failed to update allocation model: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrModelNotFound, m.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_model_members WHERE model_id = ?`, m.ID); err != nil {
			return fmt.Errorf("failed to clear allocation model members: %w", err)
		}
		return insertMembers(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("model_id", m.ID).
		Msg("Allocation model updated")

	return r.GetByID(ctx, m.ID)
}

// Delete removes a model and its members
func (r *Repository) Delete(ctx context.Context, id string) error {
	var rowsAffected int64
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_model_members WHERE model_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete allocation model members: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM allocation_models WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete allocation model: %w", err)
		}
		rowsAffected, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}

	r.log.Debug().
		Str("model_id", id).
		Msg("Allocation model deleted")

	return nil
}

func (r *Repository) getMembers(ctx context.Context, modelID string) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sleeve_id, target_weight_bp, is_active
		FROM allocation_model_members
		WHERE model_id = ?
		ORDER BY position ASC
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation model members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var isActive int
		if err := rows.Scan(&m.SleeveID, &m.TargetWeightBP, &isActive); err != nil {
			return nil, fmt.Errorf("failed to scan allocation model member: %w", err)
		}
		m.IsActive = isActive == 1
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation model members: %w", err)
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanModel(row rowScanner) (Model, error) {
	var m Model
	var createdAt, updatedAt int64
	if err := row.Scan(&m.ID, &m.Name, &createdAt, &updatedAt); err != nil {
		return Model{}, err
	}
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return m, nil
}

// checkSleeves rejects references to sleeves that do not exist
func checkSleeves(ctx context.Context, tx *sql.Tx, m Model) error {
	for _, member := range m.Members {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sleeves WHERE id = ?`, member.SleeveID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownSleeve, member.SleeveID)
		}
		if err != nil {
			return fmt.Errorf("failed to check sleeve %s: %w", member.SleeveID, err)
		}
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, m Model) error {
	for i, member := range m.Members {
		isActive := 0
		if member.IsActive {
			isActive = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocation_model_members (model_id, sleeve_id, target_weight_bp, is_active, position)
			VALUES (?, ?, ?, ?, ?)
		`, m.ID, member.SleeveID, member.TargetWeightBP, isActive, i)
		if err != nil {
			return fmt.Errorf("failed to insert allocation model member %s: %w", member.SleeveID, err)
		}
	}
	return nil
}
