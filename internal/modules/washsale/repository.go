package washsale

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// restrictionColumns is the column list shared by all SELECTs; order must match scanRestriction
const restrictionColumns = `id, ticker, sleeve_id, account_id, loss_amount, sold_at, blocked_until, created_at`

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository persists wash-sale restrictions in the ledger database.
// Records are insert-only: there is deliberately no update or delete.
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new restriction repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "wash_sale").Logger(),
	}
}

// Create validates and inserts a restriction, returning it with its id
func (r *Repository) Create(ctx context.Context, restriction Restriction) (*Restriction, error) {
	return r.create(ctx, r.ledgerDB, restriction)
}

func (r *Repository) create(ctx context.Context, exec execer, restriction Restriction) (*Restriction, error) {
	if err := restriction.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create restriction: %w", err)
	}
	if restriction.BlockedUntil.IsZero() {
		restriction.BlockedUntil = restriction.SoldAt.Add(Window)
	}
	restriction.CreatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO wash_sale_restrictions
		(ticker, sleeve_id, account_id, loss_amount, sold_at, blocked_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		domain.NormalizeTicker(restriction.Ticker),
		nullString(restriction.SleeveID),
		nullString(restriction.AccountID),
		restriction.LossAmount.String(),
		restriction.SoldAt.Unix(),
		restriction.BlockedUntil.Unix(),
		restriction.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create restriction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read restriction id: %w", err)
	}
	restriction.ID = id

	r.log.Info().
		Str("ticker", restriction.Ticker).
		Str("account_id", restriction.AccountID).
		Str("loss", restriction.LossAmount.String()).
		Time("blocked_until", restriction.BlockedUntil).
		Msg("Wash-sale restriction recorded")

	return &restriction, nil
}

// RecordLossSale records a restriction for a sale that realized a loss.
// Non-negative results are ignored since they cannot trigger a wash sale.
func (r *Repository) RecordLossSale(ctx context.Context, ticker, sleeveID, accountID string, realized decimal.Decimal, soldAt time.Time) error {
	return r.recordLossSale(ctx, r.ledgerDB, ticker, sleeveID, accountID, realized, soldAt)
}

// RecordLossSaleTx is RecordLossSale inside a caller's ledger transaction
func (r *Repository) RecordLossSaleTx(ctx context.Context, tx *sql.Tx, ticker, sleeveID, accountID string, realized decimal.Decimal, soldAt time.Time) error {
	return r.recordLossSale(ctx, tx, ticker, sleeveID, accountID, realized, soldAt)
}

func (r *Repository) recordLossSale(ctx context.Context, exec execer, ticker, sleeveID, accountID string, realized decimal.Decimal, soldAt time.Time) error {
	if !realized.IsNegative() {
		r.log.Debug().
			Str("ticker", ticker).
			Str("realized", realized.String()).
			Msg("Sale did not realize a loss, no restriction needed")
		return nil
	}

	restriction, err := NewRestriction(ticker, sleeveID, accountID, realized, soldAt)
	if err != nil {
		return err
	}
	_, err = r.create(ctx, exec, restriction)
	return err
}

// GetActive returns restrictions with blocked_until > now
func (r *Repository) GetActive(ctx context.Context, now time.Time) ([]Restriction, error) {
	return r.query(ctx, `
		SELECT `+restrictionColumns+` FROM wash_sale_restrictions
		WHERE blocked_until > ?
		ORDER BY ticker ASC, blocked_until DESC
	`, now.Unix())
}

// GetByTicker returns every restriction ever recorded for a ticker, newest first
func (r *Repository) GetByTicker(ctx context.Context, ticker string) ([]Restriction, error) {
	return r.query(ctx, `
		SELECT `+restrictionColumns+` FROM wash_sale_restrictions
		WHERE ticker = ?
		ORDER BY sold_at DESC
	`, domain.NormalizeTicker(ticker))
}

// GetAll returns the full restriction history, newest first
func (r *Repository) GetAll(ctx context.Context) ([]Restriction, error) {
	return r.query(ctx, `
		SELECT `+restrictionColumns+` FROM wash_sale_restrictions
		ORDER BY sold_at DESC
	`)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]Restriction, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []Restriction
	for rows.Next() {
		restriction, err := scanRestriction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		restrictions = append(restrictions, restriction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restrictions: %w", err)
	}

	return restrictions, nil
}

func scanRestriction(rows *sql.Rows) (Restriction, error) {
	var (
		restriction                     Restriction
		sleeveID, accountID             sql.NullString
		loss                            string
		soldAt, blockedUntil, createdAt int64
	)

	if err := rows.Scan(
		&restriction.ID,
		&restriction.Ticker,
		&sleeveID,
		&accountID,
		&loss,
		&soldAt,
		&blockedUntil,
		&createdAt,
	); err != nil {
		return Restriction{}, err
	}

	amount, err := decimal.NewFromString(loss)
	if err != nil {
		return Restriction{}, fmt.Errorf("invalid loss amount %q: %w", loss, err)
	}

	restriction.SleeveID = sleeveID.String
	restriction.AccountID = accountID.String
	restriction.LossAmount = amount
	restriction.SoldAt = time.Unix(soldAt, 0).UTC()
	restriction.BlockedUntil = time.Unix(blockedUntil, 0).UTC()
	restriction.CreatedAt = time.Unix(createdAt, 0).UTC()

	return restriction, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
