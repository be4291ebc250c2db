package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const positionColumns = `ticker, shares, purchase_price, purchase_date, category,
	cached_trend, current_price, last_updated, refresh_failures, created_at, updated_at`

// Repository handles portfolio database operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPositions returns all positions ordered by ticker.
func (r *Repository) ListPositions(ctx context.Context) ([]models.PortfolioPosition, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+positionColumns+" FROM portfolio ORDER BY ticker")
	if err != nil {
		return nil, storeErr("querying positions", err)
	}
	defer rows.Close()

	positions := []models.PortfolioPosition{}
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, storeErr("scanning position", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating positions", err)
	}

	return positions, nil
}

// GetPosition returns a single position.
func (r *Repository) GetPosition(ctx context.Context, ticker string) (*models.PortfolioPosition, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+positionColumns+" FROM portfolio WHERE ticker = $1", ticker)
	pos, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, storeErr("getting position", err)
	}
	return &pos, nil
}

// InsertPosition adds a manually entered position.
func (r *Repository) InsertPosition(ctx context.Context, pos models.PortfolioPosition) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO portfolio (ticker, shares, purchase_price, purchase_date)
		VALUES ($1, $2, $3, $4)
	`, pos.Ticker, pos.Shares, pos.PurchasePrice, pos.PurchaseDate)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateTicker, pos.Ticker)
	}
	if err != nil {
		return storeErr("inserting position", err)
	}
	return nil
}

// UpdatePosition replaces shares, purchase price and purchase date.
func (r *Repository) UpdatePosition(ctx context.Context, pos models.PortfolioPosition) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE portfolio
		SET shares = $2, purchase_price = $3, purchase_date = $4, updated_at = NOW()
		WHERE ticker = $1
	`, pos.Ticker, pos.Shares, pos.PurchasePrice, pos.PurchaseDate)
	if err != nil {
		return storeErr("updating position", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPositionNotFound
	}
	return nil
}

// DeletePosition removes a position. Deleting an unknown ticker is not an error.
func (r *Repository) DeletePosition(ctx context.Context, ticker string) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM portfolio WHERE ticker = $1", ticker)
	if err != nil {
		return false, storeErr("deleting position", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReadCache returns the cache columns for a ticker, or nil when unknown.
func (r *Repository) ReadCache(ctx context.Context, ticker string) (*models.CacheEntry, error) {
	var (
		entry        models.CacheEntry
		category     *string
		currentPrice decimal.NullDecimal
	)
	err := r.pool.QueryRow(ctx, `
		SELECT category, cached_trend, current_price, last_updated, refresh_failures
		FROM portfolio WHERE ticker = $1
	`, ticker).Scan(&category, &entry.Trend, &currentPrice, &entry.LastUpdated, &entry.RefreshFailures)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("reading cache", err)
	}

	if category != nil {
		entry.Category = *category
	}
	if currentPrice.Valid {
		entry.CurrentPrice = currentPrice.Decimal.InexactFloat64()
	}
	return &entry, nil
}

// WriteCache stores refreshed market data. Only cache columns are touched.
func (r *Repository) WriteCache(ctx context.Context, ticker string, entry models.CacheEntry) error {
	trend := entry.Trend
	if trend == nil {
		trend = []float64{}
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE portfolio
		SET current_price = $2, category = $3, cached_trend = $4::jsonb,
			last_updated = $5, refresh_failures = $6
		WHERE ticker = $1
	`, ticker, decimal.NewFromFloat(entry.CurrentPrice), entry.Category, trend, entry.LastUpdated, entry.RefreshFailures)
	if err != nil {
		return storeErr("writing cache", err)
	}
	return nil
}

// WithImportTx runs fn inside one transaction committed when fn returns nil.
// Each Upsert call runs in its own savepoint so a failing row leaves the
// transaction usable.
func (r *Repository) WithImportTx(ctx context.Context, fn func(u Upserter) error) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txUpserter{tx: tx})
	})
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			return err
		}
		return storeErr("import transaction", err)
	}
	return nil
}

// Upserter writes imported positions.
type Upserter interface {
	Upsert(ctx context.Context, pos models.ImportedPosition) (inserted bool, err error)
}

type txUpserter struct {
	tx pgx.Tx
}

// Upsert inserts a new position or updates holdings of an existing one and
// clears last_updated so the next read refreshes market data.
func (u *txUpserter) Upsert(ctx context.Context, pos models.ImportedPosition) (bool, error) {
	var inserted bool
	err := pgx.BeginFunc(ctx, u.tx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx, `
			INSERT INTO portfolio (ticker, shares, purchase_price, current_price, last_updated)
			VALUES ($1, $2, $3, $4, NULL)
			ON CONFLICT (ticker) DO UPDATE SET
				shares = EXCLUDED.shares,
				purchase_price = EXCLUDED.purchase_price,
				current_price = EXCLUDED.current_price,
				last_updated = NULL,
				refresh_failures = 0,
				updated_at = NOW()
			RETURNING (xmax = 0)
		`, pos.Ticker, pos.Shares, pos.PurchasePrice, pos.CurrentPrice).Scan(&inserted)
	})
	if err != nil {
		return false, storeErr("upserting "+pos.Ticker, err)
	}
	return inserted, nil
}

// CountPositions returns the number of stored positions.
func (r *Repository) CountPositions(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM portfolio").Scan(&count)
	if err != nil {
		return 0, storeErr("counting positions", err)
	}
	return count, nil
}

func scanPosition(row pgx.Row) (models.PortfolioPosition, error) {
	var (
		pos          models.PortfolioPosition
		currentPrice decimal.NullDecimal
		purchaseDate *time.Time
	)
	err := row.Scan(
		&pos.Ticker, &pos.Shares, &pos.PurchasePrice, &purchaseDate, &pos.Category,
		&pos.CachedTrend, &currentPrice, &pos.LastUpdated, &pos.RefreshFailures,
		&pos.CreatedAt, &pos.UpdatedAt,
	)
	if err != nil {
		return pos, err
	}

	pos.PurchaseDate = purchaseDate
	if currentPrice.Valid {
		price := currentPrice.Decimal
		pos.CurrentPrice = &price
	}
	return pos, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
