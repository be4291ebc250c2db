package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/portfolio-tracker/internal/db"
	"github.com/mauv0809/portfolio-tracker/internal/ingest"
	"github.com/mauv0809/portfolio-tracker/internal/portfolio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPortfolio struct {
	holdings []portfolio.Holding
	err      error
	added    []portfolio.PositionInput
}

func (s *stubPortfolio) List(ctx context.Context) ([]portfolio.Holding, error) {
	return s.holdings, s.err
}

func (s *stubPortfolio) Get(ctx context.Context, ticker string) (*portfolio.Holding, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, h := range s.holdings {
		if h.Ticker == ticker {
			return &h, nil
		}
	}
	return nil, db.ErrPositionNotFound
}

func (s *stubPortfolio) Add(ctx context.Context, in portfolio.PositionInput) error {
	s.added = append(s.added, in)
	return s.err
}

func (s *stubPortfolio) Update(ctx context.Context, in portfolio.PositionInput) error {
	return s.err
}

func (s *stubPortfolio) Delete(ctx context.Context, ticker string) error {
	return s.err
}

func (s *stubPortfolio) Count(ctx context.Context) (int, error) {
	return len(s.holdings), s.err
}

func (s *stubPortfolio) Import(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ingest.Report{}, nil
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestFail_StatusMapping(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", &portfolio.ValidationError{Message: "Ticker required."}, http.StatusBadRequest, "Ticker required."},
		{"duplicate", db.ErrDuplicateTicker, http.StatusConflict, "Asset already exists."},
		{"not found", db.ErrPositionNotFound, http.StatusNotFound, "Asset not found."},
		{"store", &db.StoreError{Op: "inserting position", Err: errors.New("connection reset")}, http.StatusInternalServerError, "Error: inserting position: connection reset"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(&stubPortfolio{err: tc.err}, zerolog.Nop(), 0)
			req := httptest.NewRequest(http.MethodPut, "/get_portfolio", strings.NewReader(`{"ticker":"AAPL"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c, rec := newContext(req)

			require.NoError(t, h.PutPortfolio(c))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
		})
	}
}

func TestPostPortfolio_BindsBody(t *testing.T) {
	stub := &stubPortfolio{}
	h := New(stub, zerolog.Nop(), 0)

	req := httptest.NewRequest(http.MethodPost, "/get_portfolio",
		strings.NewReader(`{"ticker":"VOO","shares":"2.5","purchase_price":410.25,"purchase_date":"2024-06-01"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := newContext(req)

	require.NoError(t, h.PostPortfolio(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, stub.added, 1)
	assert.Equal(t, "VOO", stub.added[0].Ticker)
	assert.Equal(t, "2.5", stub.added[0].Shares.String())
	assert.Equal(t, "410.25", stub.added[0].PurchasePrice.String())
	assert.Equal(t, "2024-06-01", stub.added[0].PurchaseDate)
}

func TestIndex_RendersHoldings(t *testing.T) {
	h := New(&stubPortfolio{holdings: []portfolio.Holding{{Ticker: "AAPL", GainLoss: 12.5}}}, zerolog.Nop(), 0)
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, h.Index(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), "<td>AAPL</td>")
	assert.Contains(t, rec.Body.String(), "$12.50")
}

func TestIndex_StoreError(t *testing.T) {
	h := New(&stubPortfolio{err: errors.New("connection refused")}, zerolog.Nop(), 0)
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, h.Index(c))
	assert.Contains(t, rec.Body.String(), "Error: connection refused")
}

func TestIngestStatus_Error(t *testing.T) {
	h := New(&stubPortfolio{err: errors.New("connection refused")}, zerolog.Nop(), 0)
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/admin/ingest/status", nil))

	require.NoError(t, h.IngestStatus(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestUpload_TooLarge(t *testing.T) {
	h := New(&stubPortfolio{}, zerolog.Nop(), 64)

	body := "--x\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.csv\"\r\n\r\n" +
		strings.Repeat("A,1\n", 100) + "\r\n--x--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/get_portfolio?action=upload", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	c, rec := newContext(req)

	require.NoError(t, h.PostPortfolio(c))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestRequireStore_Unavailable(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	testCases := []struct {
		name string
		opts []Option
		body string
	}{
		{"not configured", nil, MsgConnectionMissing},
		{"connect failed", []Option{WithStoreError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))},
			"Database unavailable: dial tcp 10.0.0.5:5432: connection refused"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(nil, zerolog.Nop(), 0, tc.opts...)
			c, rec := newContext(httptest.NewRequest(http.MethodGet, "/get_portfolio", nil))

			require.NoError(t, h.RequireStore(next)(c))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
		})
	}
}

func TestGetPortfolio_ByTicker(t *testing.T) {
	h := New(&stubPortfolio{holdings: []portfolio.Holding{{Ticker: "AAPL", GainLoss: 12.5}}}, zerolog.Nop(), 0)

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/get_portfolio?ticker=AAPL", nil))
	require.NoError(t, h.GetPortfolio(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ticker":"AAPL"`)

	c, rec = newContext(httptest.NewRequest(http.MethodGet, "/get_portfolio?ticker=NOPE", nil))
	require.NoError(t, h.GetPortfolio(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Asset not found.", rec.Body.String())
}
