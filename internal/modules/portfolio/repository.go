// Package portfolio stores accounts, securities, positions and live quotes.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrMissingAccountID   = errors.New("account id is required")
	ErrEmptyTicker        = errors.New("ticker is required")
	ErrNegativeQuantity   = errors.New("quantity must not be negative")
	ErrNegativePrice      = errors.New("price must not be negative")
)

// Repository handles portfolio database operations
type Repository struct {
	portfolioDB *sql.DB
	log         zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(portfolioDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "portfolio").Logger(),
	}
}

// CreateAccount inserts or renames an account
func (r *Repository) CreateAccount(ctx context.Context, account domain.Account) error {
	if account.ID == "" {
		return ErrMissingAccountID
	}
	if !account.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, account.Type)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO accounts (id, name, account_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, account_type = excluded.account_type
	`, account.ID, account.Name, string(account.Type), account.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}

	r.log.Debug().Str("account_id", account.ID).Str("type", string(account.Type)).Msg("Account saved")
	return nil
}

// GetAccounts returns all accounts ordered by id
func (r *Repository) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `SELECT id, name, account_type, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount returns one account or ErrAccountNotFound
func (r *Repository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := r.portfolioDB.QueryRowContext(ctx, `SELECT id, name, account_type, created_at FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpsertSecurity inserts or updates a security by ticker
func (r *Repository) UpsertSecurity(ctx context.Context, security domain.Security) error {
	ticker := domain.NormalizeTicker(security.Ticker)
	if ticker == "" {
		return ErrEmptyTicker
	}
	if security.Price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativePrice, ticker)
	}
	if security.AssetType == "" {
		security.AssetType = domain.AssetTypeUnknown
	}
	if security.UpdatedAt.IsZero() {
		security.UpdatedAt = time.Now()
	}

	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO securities (ticker, name, price, sector, industry, asset_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			sector = excluded.sector,
			industry = excluded.industry,
			asset_type = excluded.asset_type,
			updated_at = excluded.updated_at
	`, ticker, security.Name, security.Price.String(), security.Sector, security.Industry,
		string(security.AssetType), security.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", ticker, err)
	}
	return nil
}

// GetSecurity returns a security by ticker, or nil when unknown
func (r *Repository) GetSecurity(ctx context.Context, ticker string) (*domain.Security, error) {
	row := r.portfolioDB.QueryRowContext(ctx, `
		SELECT ticker, COALESCE(name, ''), price, COALESCE(sector, ''), COALESCE(industry, ''), asset_type, updated_at
		FROM securities WHERE ticker = ?
	`, domain.NormalizeTicker(ticker))

	var (
		sec       domain.Security
		price     string
		assetType string
		updatedAt int64
	)
	err := row.Scan(&sec.Ticker, &sec.Name, &price, &sec.Sector, &sec.Industry, &assetType, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security %s: %w", ticker, err)
	}

	if sec.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse price of %s: %w", sec.Ticker, err)
	}
	sec.AssetType = domain.AssetTypeFromString(assetType)
	sec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &sec, nil
}

// UpsertPosition inserts or replaces the holding of a ticker in an account
func (r *Repository) UpsertPosition(ctx context.Context, position domain.Position) error {
	ticker := domain.NormalizeTicker(position.Ticker)
	if ticker == "" {
		return ErrEmptyTicker
	}
	if position.AccountID == "" {
		return ErrMissingAccountID
	}
	if position.Quantity.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeQuantity, ticker)
	}
	if position.CostBasisPerShare.IsNegative() {
		return fmt.Errorf("%w: cost basis of %s", ErrNegativePrice, ticker)
	}

	if _, err := r.GetAccount(ctx, position.AccountID); err != nil {
		return err
	}

	var openedAt sql.NullInt64
	if !position.OpenedAt.IsZero() {
		openedAt = sql.NullInt64{Int64: position.OpenedAt.Unix(), Valid: true}
	}

	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO positions (account_id, ticker, quantity, cost_basis_per_share, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, ticker) DO UPDATE SET
			quantity = excluded.quantity,
			cost_basis_per_share = excluded.cost_basis_per_share,
			opened_at = COALESCE(excluded.opened_at, positions.opened_at),
			updated_at = excluded.updated_at
	`, position.AccountID, ticker, position.Quantity.String(), position.CostBasisPerShare.String(),
		openedAt, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w", position.AccountID, ticker, err)
	}
	return nil
}

// DeletePosition removes a holding
func (r *Repository) DeletePosition(ctx context.Context, accountID, ticker string) error {
	_, err := r.portfolioDB.ExecContext(ctx, `DELETE FROM positions WHERE account_id = ? AND ticker = ?`,
		accountID, domain.NormalizeTicker(ticker))
	if err != nil {
		return fmt.Errorf("failed to delete position %s/%s: %w", accountID, ticker, err)
	}
	return nil
}

// GetPositions returns the positions of one account, or of every account when accountID is empty.
// The current price is the stored security price; positions without a security row get zero.
func (r *Repository) GetPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	query := `
		SELECT p.id, p.account_id, a.account_type, p.ticker, p.quantity, p.cost_basis_per_share,
			COALESCE(s.price, '0'), p.opened_at
		FROM positions p
		JOIN accounts a ON a.id = p.account_id
		LEFT JOIN securities s ON s.ticker = p.ticker`
	var args []interface{}
	if accountID != "" {
		query += ` WHERE p.account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY p.account_id, p.ticker`

	rows, err := r.portfolioDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var (
			pos                   domain.Position
			accountType           string
			qty, costBasis, price string
			openedAt              sql.NullInt64
		)
		if err := rows.Scan(&pos.ID, &pos.AccountID, &accountType, &pos.Ticker, &qty, &costBasis, &price, &openedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		pos.AccountType = domain.AccountType(accountType)
		if pos.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("failed to parse quantity of %s: %w", pos.Ticker, err)
		}
		if pos.CostBasisPerShare, err = decimal.NewFromString(costBasis); err != nil {
			return nil, fmt.Errorf("failed to parse cost basis of %s: %w", pos.Ticker, err)
		}
		if pos.CurrentPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse price of %s: %w", pos.Ticker, err)
		}
		if openedAt.Valid {
			pos.OpenedAt = time.Unix(openedAt.Int64, 0).UTC()
		}

		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// SetQuote records the live price of a ticker
func (r *Repository) SetQuote(ctx context.Context, ticker string, price decimal.Decimal, quotedAt time.Time) error {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return ErrEmptyTicker
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativePrice, ticker)
	}

	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO quotes (ticker, price, quoted_at) VALUES (?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET price = excluded.price, quoted_at = excluded.quoted_at
	`, ticker, price.String(), quotedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to set quote for %s: %w", ticker, err)
	}
	return nil
}

// GetPrices returns every live quote as a price table
func (r *Repository) GetPrices(ctx context.Context) (domain.PriceTable, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `SELECT ticker, price FROM quotes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	prices := make(domain.PriceTable)
	for rows.Next() {
		var ticker, price string
		if err := rows.Scan(&ticker, &price); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		value, err := decimal.NewFromString(price)
		if err != nil {
			r.log.Warn().Str("ticker", ticker).Str("price", price).Msg("Skipping unparseable quote")
			continue
		}
		prices[ticker] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}

	return prices, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		account     domain.Account
		accountType string
		createdAt   int64
	)
	if err := row.Scan(&account.ID, &account.Name, &accountType, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account, err
		}
		return account, fmt.Errorf("failed to scan account: %w", err)
	}
	account.Type = domain.AccountType(accountType)
	account.CreatedAt = time.Unix(createdAt, 0).UTC()
	return account, nil
}
