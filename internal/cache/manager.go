// Package cache keeps the price, category and trend stored with each
// position fresh, refreshing them from market data when they age out.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mauv0809/portfolio-tracker/internal/classify"
	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
)

const (
	// DefaultWindow is how long refreshed market data stays fresh.
	DefaultWindow = 6 * time.Hour
	// DefaultMaxBackoffSteps caps the doubling of the window after failures.
	DefaultMaxBackoffSteps = 4
)

// ErrUnknownTicker is returned by Get for a ticker with no stored position.
var ErrUnknownTicker = errors.New("ticker not in portfolio")

// Store is the persistence the manager needs. ReadCache returns nil, nil
// for an unknown ticker. WriteCache must only touch cache columns.
type Store interface {
	ReadCache(ctx context.Context, ticker string) (*models.CacheEntry, error)
	WriteCache(ctx context.Context, ticker string, entry models.CacheEntry) error
}

// Classifier produces fresh market data for a ticker. It never fails.
type Classifier interface {
	Classify(ctx context.Context, ticker string) classify.Result
}

// Result is the market data served for a ticker.
type Result struct {
	Price     float64
	Category  string
	Trend     []float64
	UpdatedAt time.Time
	Cached    bool // served without a refresh
}

// Manager decides between cached and refreshed market data.
type Manager struct {
	store           Store
	classifier      Classifier
	window          time.Duration
	maxBackoffSteps int
	now             func() time.Time // injectable clock for testing
	log             zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithWindow sets the freshness window.
func WithWindow(window time.Duration) Option {
	return func(m *Manager) {
		m.window = window
	}
}

// WithMaxBackoffSteps sets how many times the window may double for a
// ticker whose refreshes keep failing.
func WithMaxBackoffSteps(steps int) Option {
	return func(m *Manager) {
		m.maxBackoffSteps = steps
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a cache manager.
func NewManager(store Store, classifier Classifier, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		classifier:      classifier,
		window:          DefaultWindow,
		maxBackoffSteps: DefaultMaxBackoffSteps,
		now:             time.Now,
		log:             log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns market data for a ticker, refreshing it when stale.
func (m *Manager) Get(ctx context.Context, ticker string) (Result, error) {
	entry, err := m.store.ReadCache(ctx, ticker)
	if err != nil {
		return Result{}, fmt.Errorf("reading cache for %s: %w", ticker, err)
	}
	if entry == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return m.Resolve(ctx, ticker, *entry)
}

// Resolve is Get for a cache entry the caller already loaded.
func (m *Manager) Resolve(ctx context.Context, ticker string, entry models.CacheEntry) (Result, error) {
	if m.IsFresh(entry) {
		trend := entry.Trend
		if trend == nil {
			trend = []float64{}
		}
		return Result{
			Price:     entry.CurrentPrice,
			Category:  entry.Category,
			Trend:     trend,
			UpdatedAt: *entry.LastUpdated,
			Cached:    true,
		}, nil
	}
	return m.refresh(ctx, ticker, entry.RefreshFailures)
}

// Refresh classifies the ticker now and stores the result regardless of
// the current cache state.
func (m *Manager) Refresh(ctx context.Context, ticker string) (Result, error) {
	return m.refresh(ctx, ticker, 0)
}

// IsFresh reports whether the entry is inside its freshness window.
func (m *Manager) IsFresh(entry models.CacheEntry) bool {
	if entry.LastUpdated == nil || entry.LastUpdated.IsZero() {
		return false
	}
	return m.now().Sub(*entry.LastUpdated) < m.WindowFor(entry.RefreshFailures)
}

// WindowFor returns the freshness window after the given number of
// consecutive failed refreshes: the base window doubled per failure, capped.
func (m *Manager) WindowFor(failures int) time.Duration {
	steps := failures
	if steps > m.maxBackoffSteps {
		steps = m.maxBackoffSteps
	}
	if steps < 0 {
		steps = 0
	}
	return m.window << uint(steps)
}

func (m *Manager) refresh(ctx context.Context, ticker string, failures int) (Result, error) {
	classified := m.classifier.Classify(ctx, ticker)
	now := m.now()

	if classified.Degraded {
		failures++
		m.log.Warn().
			Str("ticker", ticker).
			Int("failures", failures).
			Dur("next_window", m.WindowFor(failures)).
			Msg("Refresh degraded, caching defaults")
	} else {
		failures = 0
	}

	entry := models.CacheEntry{
		CurrentPrice:    classified.Price,
		Category:        classified.Category,
		Trend:           classified.Trend,
		LastUpdated:     &now,
		RefreshFailures: failures,
	}
	if err := m.store.WriteCache(ctx, ticker, entry); err != nil {
		return Result{}, fmt.Errorf("writing cache for %s: %w", ticker, err)
	}

	return Result{
		Price:     classified.Price,
		Category:  classified.Category,
		Trend:     classified.Trend,
		UpdatedAt: now,
	}, nil
}
