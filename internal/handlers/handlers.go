package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/portfolio-tracker/internal/db"
	"github.com/mauv0809/portfolio-tracker/internal/ingest"
	"github.com/mauv0809/portfolio-tracker/internal/portfolio"
	"github.com/mauv0809/portfolio-tracker/internal/views"
	"github.com/rs/zerolog"
)

// MsgConnectionMissing is returned by store routes when no database is configured.
const MsgConnectionMissing = "Connection string missing."

// MsgDatabaseUnavailable prefixes the store route response when a database
// is configured but could not be reached at startup.
const MsgDatabaseUnavailable = "Database unavailable: "

// DefaultUploadMaxBytes caps the size of an uploaded export.
const DefaultUploadMaxBytes int64 = 10 << 20

// Portfolio is the service behind the portfolio routes.
type Portfolio interface {
	List(ctx context.Context) ([]portfolio.Holding, error)
	Get(ctx context.Context, ticker string) (*portfolio.Holding, error)
	Add(ctx context.Context, in portfolio.PositionInput) error
	Update(ctx context.Context, in portfolio.PositionInput) error
	Delete(ctx context.Context, ticker string) error
	Count(ctx context.Context) (int, error)
	Import(ctx context.Context, r io.Reader) (*ingest.Report, error)
}

type Handler struct {
	portfolio      Portfolio
	storeErr       error
	uploadMaxBytes int64
	log            zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStoreError records why the portfolio service is missing, so store
// routes report the connection failure instead of a missing connection string.
func WithStoreError(err error) Option {
	return func(h *Handler) {
		h.storeErr = err
	}
}

// New creates the handler set. A nil portfolio means no database is
// available; store routes then answer 500.
func New(p Portfolio, log zerolog.Logger, uploadMaxBytes int64, opts ...Option) *Handler {
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = DefaultUploadMaxBytes
	}
	h := &Handler{
		portfolio:      p,
		uploadMaxBytes: uploadMaxBytes,
		log:            log.With().Str("component", "handlers").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) unavailable() string {
	if h.storeErr != nil {
		return MsgDatabaseUnavailable + h.storeErr.Error()
	}
	return MsgConnectionMissing
}

// Health returns application health status
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Index renders the dashboard.
func (h *Handler) Index(c echo.Context) error {
	if h.portfolio == nil {
		return Render(c, http.StatusOK, views.Dashboard(nil, h.unavailable()))
	}

	holdings, err := h.portfolio.List(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load dashboard")
		return Render(c, http.StatusOK, views.Dashboard(nil, "Error: "+err.Error()))
	}
	return Render(c, http.StatusOK, views.Dashboard(holdings, ""))
}

// RequireStore rejects requests before any store access when no database
// is available.
func (h *Handler) RequireStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.portfolio == nil {
			return c.String(http.StatusInternalServerError, h.unavailable())
		}
		return next(c)
	}
}

// fail maps a service error to a status code and plain text body.
func (h *Handler) fail(c echo.Context, err error) error {
	var validationErr *portfolio.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.String(http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, db.ErrDuplicateTicker):
		return c.String(http.StatusConflict, "Asset already exists.")
	case errors.Is(err, db.ErrPositionNotFound):
		return c.String(http.StatusNotFound, "Asset not found.")
	}

	h.log.Error().Err(err).Str("method", c.Request().Method).Msg("Database error")
	return c.String(http.StatusInternalServerError, "Error: "+err.Error())
}
