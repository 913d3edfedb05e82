package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, account_id, ticker, side, quantity, limit_price, sleeve_id, cost_basis_per_share,
	replacement_ticker, reason, status, status_message, broker_order_id, idempotency_key,
	created_at, updated_at, submitted_at`

// ListFilter narrows List results; zero values match everything
type ListFilter struct {
	AccountID string
	Status    Status
	Limit     int
}

// StatusUpdate carries the fields written together with a status change
type StatusUpdate struct {
	Message       string
	BrokerOrderID string
	SubmittedAt   *time.Time
}

// Repository persists orders and executions in the ledger database
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new order repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "orders").Logger(),
	}
}

// Insert stores a new order. It returns false, without error, when an order with the
// same idempotency key already exists.
func (r *Repository) Insert(ctx context.Context, o Order) (bool, error) {
	result, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING
	`,
		o.ID,
		o.AccountID,
		o.Ticker,
		o.Side,
		o.Quantity.String(),
		o.LimitPrice.String(),
		nullString(o.SleeveID),
		o.CostBasisPerShare.String(),
		nullString(o.ReplacementTicker),
		nullString(o.Reason),
		string(o.Status),
		nullString(o.StatusMessage),
		nullString(o.BrokerOrderID),
		o.IdempotencyKey,
		o.CreatedAt.Unix(),
		o.UpdatedAt.Unix(),
		nullTime(o.SubmittedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Debug().
			Str("idempotency_key", o.IdempotencyKey).
			Msg("Order already queued, skipping")
		return false, nil
	}

	return true, nil
}

// Get returns an order by id or ErrOrderNotFound
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	row := r.ledgerDB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// List returns orders matching the filter, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	var conditions []string
	var args []interface{}
	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus moves an order from one status to another.
// The write only applies while the stored status still equals from.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) error {
	result, err := r.ledgerDB.ExecContext(ctx, `
		UPDATE orders SET
			status = ?,
			status_message = ?,
			broker_order_id = COALESCE(?, broker_order_id),
			submitted_at = COALESCE(?, submitted_at),
			updated_at = ?
		WHERE id = ? AND status = ?
	`,
		string(to),
		nullString(update.Message),
		nullString(update.BrokerOrderID),
		nullTime(update.SubmittedAt),
		time.Now().Unix(),
		id,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: order %s is no longer %s", ErrStatusConflict, id, from)
	}

	r.log.Debug().
		Str("order_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Order status updated")

	return nil
}

// ApplyFill appends an immutable fill record and moves the order from one status to
// another in a single ledger transaction. The order must still be in from; from == to
// keeps the status but still guards it. within, when set, runs inside the same
// transaction and its error rolls the fill back.
func (r *Repository) ApplyFill(ctx context.Context, e Execution, from, to Status, within func(tx *sql.Tx) error) error {
	return database.WithTransaction(ctx, r.ledgerDB, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(to), time.Now().Unix(), e.OrderID, string(from))
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: order %s is no longer %s", ErrStatusConflict, e.OrderID, from)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_executions (id, order_id, quantity, price, executed_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			e.ID,
			e.OrderID,
			e.Quantity.String(),
			e.Price.String(),
			e.ExecutedAt.Unix(),
			e.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("failed to insert execution: %w", err)
		}

		if within != nil {
			if err := within(tx); err != nil {
				return err
			}
		}

		r.log.Debug().
			Str("order_id", e.OrderID).
			Str("execution_id", e.ID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Fill applied")
		return nil
	})
}

// Executions returns the fill log of an order in execution order
func (r *Repository) Executions(ctx context.Context, orderID string) ([]Execution, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, `
		SELECT id, order_id, quantity, price, executed_at, created_at
		FROM order_executions
		WHERE order_id = ?
		ORDER BY executed_at ASC, created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		var qty, price string
		var executedAt, createdAt int64
		if err := rows.Scan(&e.ID, &e.OrderID, &qty, &price, &executedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if e.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("invalid execution quantity %q: %w", qty, err)
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid execution price %q: %w", price, err)
		}
		e.ExecutedAt = time.Unix(executedAt, 0).UTC()
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o                                                Order
		qty, limitPrice, costBasis, status               string
		sleeveID, replacement, reason, message, brokerID sql.NullString
		createdAt, updatedAt                             int64
		submittedAt                                      sql.NullInt64
	)

	if err := row.Scan(
		&o.ID,
		&o.AccountID,
		&o.Ticker,
		&o.Side,
		&qty,
		&limitPrice,
		&sleeveID,
		&costBasis,
		&replacement,
		&reason,
		&status,
		&message,
		&brokerID,
		&o.IdempotencyKey,
		&createdAt,
		&updatedAt,
		&submittedAt,
	); err != nil {
		return Order{}, err
	}

	var err error
	if o.Quantity, err = decimal.NewFromString(qty); err != nil {
		return Order{}, fmt.Errorf("invalid quantity %q: %w", qty, err)
	}
	if o.LimitPrice, err = decimal.NewFromString(limitPrice); err != nil {
		return Order{}, fmt.Errorf("invalid limit price %q: %w", limitPrice, err)
	}
	if o.CostBasisPerShare, err = decimal.NewFromString(costBasis); err != nil {
		return Order{}, fmt.Errorf("invalid cost basis %q: %w", costBasis, err)
	}
	if o.Status, err = ParseStatus(status); err != nil {
		return Order{}, err
	}

	o.SleeveID = sleeveID.String
	o.ReplacementTicker = replacement.String
	o.Reason = reason.String
	o.StatusMessage = message.String
	o.BrokerOrderID = brokerID.String
	o.CreatedAt = time.Unix(createdAt, 0).UTC()
	o.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0).UTC()
		o.SubmittedAt = &t
	}

	return o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
