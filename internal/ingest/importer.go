// Package ingest imports positions from brokerage CSV exports.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/mauv0809/portfolio-tracker/internal/cache"
	"github.com/mauv0809/portfolio-tracker/internal/db"
	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Store runs the row upserts of one import inside a single transaction.
type Store interface {
	WithImportTx(ctx context.Context, fn func(u db.Upserter) error) error
}

// Primer refreshes market data for a newly imported ticker.
type Primer interface {
	Refresh(ctx context.Context, ticker string) (cache.Result, error)
}

// Importer parses brokerage exports and upserts their positions.
type Importer struct {
	store  Store
	primer Primer
	log    zerolog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithPrimer refreshes market data for tickers the import inserted.
// Without it new tickers are refreshed by the first read.
func WithPrimer(p Primer) Option {
	return func(i *Importer) {
		i.primer = p
	}
}

// NewImporter creates an importer.
func NewImporter(store Store, log zerolog.Logger, opts ...Option) *Importer {
	i := &Importer{
		store: store,
		log:   log.With().Str("component", "importer").Logger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads a CSV export and upserts every position row. Rows that fail
// are skipped and listed in the report. The returned error is set only when
// the file cannot be read as a whole or the transaction fails.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Report, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := buildColumnIndex(header)
	if _, ok := idx[fieldTicker]; !ok {
		return nil, ErrNoTickerColumn
	}

	report := &Report{Inserted: []string{}}
	err = i.store.WithImportTx(ctx, func(u db.Upserter) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}

			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.Skipped = append(report.Skipped, RowError{Line: parseErr.Line, Err: parseErr.Err})
				continue
			}
			if err != nil {
				return fmt.Errorf("reading rows: %w", err)
			}

			line, _ := reader.FieldPos(0)
			ticker, inserted, err := i.importRow(ctx, u, idx, record)
			if errors.Is(err, errSkipRow) {
				continue
			}
			if err != nil {
				rowErr := RowError{Line: line, Ticker: ticker, Err: err}
				i.log.Warn().Err(rowErr).Msg("Skipping row")
				report.Skipped = append(report.Skipped, rowErr)
				continue
			}

			report.Processed++
			if inserted {
				report.Inserted = append(report.Inserted, ticker)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	i.log.Info().
		Int("processed", report.Processed).
		Int("inserted", len(report.Inserted)).
		Int("skipped", len(report.Skipped)).
		Msg("Import committed")

	i.prime(ctx, report.Inserted)
	return report, nil
}

// importRow parses and stores one row. A panic while handling the row is
// returned as an error so the rest of the file still imports.
func (i *Importer) importRow(ctx context.Context, u db.Upserter, idx columnIndex, record []string) (ticker string, inserted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	var pos models.ImportedPosition
	pos, err = parseRow(idx, record)
	if err != nil {
		return "", false, err
	}

	inserted, err = u.Upsert(ctx, pos)
	return pos.Ticker, inserted, err
}

func (i *Importer) prime(ctx context.Context, tickers []string) {
	if i.primer == nil {
		return
	}
	for _, ticker := range tickers {
		if _, err := i.primer.Refresh(ctx, ticker); err != nil {
			i.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to prime cache")
		}
	}
}
