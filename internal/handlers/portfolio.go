package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/portfolio-tracker/internal/portfolio"
)

// GetPortfolio handles GET /get_portfolio. With ?ticker= it answers a
// single holding.
func (h *Handler) GetPortfolio(c echo.Context) error {
	if ticker := c.QueryParam("ticker"); ticker != "" {
		holding, err := h.portfolio.Get(c.Request().Context(), ticker)
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(http.StatusOK, holding)
	}

	holdings, err := h.portfolio.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, holdings)
}

// PostPortfolio handles POST /get_portfolio. With ?action=upload the request
// is a multipart export upload, otherwise a JSON position.
func (h *Handler) PostPortfolio(c echo.Context) error {
	if c.QueryParam("action") == "upload" {
		return h.Upload(c)
	}

	in := bindPosition(c)
	h.log.Info().Str("ticker", in.Ticker).Str("shares", in.Shares.String()).Msg("Adding asset")

	if err := h.portfolio.Add(c.Request().Context(), in); err != nil {
		return h.fail(c, err)
	}
	return c.String(http.StatusCreated, "Asset added successfully.")
}

// PutPortfolio handles PUT /get_portfolio
func (h *Handler) PutPortfolio(c echo.Context) error {
	in := bindPosition(c)
	h.log.Info().Str("ticker", in.Ticker).Str("shares", in.Shares.String()).Msg("Updating asset")

	if err := h.portfolio.Update(c.Request().Context(), in); err != nil {
		return h.fail(c, err)
	}
	return c.String(http.StatusOK, "Asset updated.")
}

// DeletePortfolio handles DELETE /get_portfolio. The ticker comes from the
// JSON body or the ticker query parameter.
func (h *Handler) DeletePortfolio(c echo.Context) error {
	in := bindPosition(c)
	ticker := in.Ticker
	if ticker == "" {
		ticker = c.QueryParam("ticker")
	}

	if err := h.portfolio.Delete(c.Request().Context(), ticker); err != nil {
		return h.fail(c, err)
	}
	return c.String(http.StatusOK, "Asset deleted.")
}

// bindPosition reads the JSON body. A missing or malformed body yields an
// empty input, which fails validation.
func bindPosition(c echo.Context) portfolio.PositionInput {
	var in portfolio.PositionInput
	if err := (&echo.DefaultBinder{}).BindBody(c, &in); err != nil {
		return portfolio.PositionInput{}
	}
	return in
}
