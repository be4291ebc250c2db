package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/portfolio-tracker/internal/ingest"
)

// IngestResponse is the JSON response for admin ingestion endpoints.
type IngestResponse struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Count    int      `json:"count,omitempty"`
	Inserted []string `json:"inserted,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
	Elapsed  string   `json:"elapsed,omitempty"`
}

// Upload handles POST /get_portfolio?action=upload
func (h *Handler) Upload(c echo.Context) error {
	report, err := h.importUpload(c)
	if errors.Is(err, errNoFile) {
		return c.String(http.StatusBadRequest, "No file uploaded.")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Import failed")
		return c.String(http.StatusInternalServerError, "Error: "+err.Error())
	}
	return c.String(http.StatusOK, fmt.Sprintf("Success: Processed %d assets.", report.Processed))
}

// IngestCSV handles POST /admin/ingest/csv
// Same import as Upload, answering with the full report.
func (h *Handler) IngestCSV(c echo.Context) error {
	start := time.Now()

	report, err := h.importUpload(c)
	if errors.Is(err, errNoFile) {
		return c.JSON(http.StatusBadRequest, IngestResponse{
			Success: false,
			Message: "file field is required",
		})
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Import failed")
		return c.JSON(http.StatusInternalServerError, IngestResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to import: %v", err),
		})
	}

	skipped := make([]string, len(report.Skipped))
	for i, rowErr := range report.Skipped {
		skipped[i] = rowErr.Error()
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Success:  true,
		Message:  fmt.Sprintf("Successfully imported %d positions", report.Processed),
		Count:    report.Processed,
		Inserted: report.Inserted,
		Skipped:  skipped,
		Elapsed:  time.Since(start).String(),
	})
}

// IngestStatus handles GET /admin/ingest/status
func (h *Handler) IngestStatus(c echo.Context) error {
	count, err := h.portfolio.Count(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, IngestResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to count positions: %v", err),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"positions": count,
	})
}

var errNoFile = errors.New("no file uploaded")

func (h *Handler) importUpload(c echo.Context) (*ingest.Report, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.uploadMaxBytes)

	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)
	}
	if err != nil {
		return nil, errNoFile
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	h.log.Info().Str("filename", header.Filename).Int64("size", header.Size).Msg("Importing export")
	return h.portfolio.Import(req.Context(), file)
}
