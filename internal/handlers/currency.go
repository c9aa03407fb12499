package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/mverih/tezga/internal/currency"
	"github.com/mverih/tezga/internal/logging"
)

type CurrencyHandler struct {
	Rates     currency.Source
	Countries *currency.CountriesClient
}

// Convert uses the fixed demo rate table.
func (h *CurrencyHandler) Convert(c echo.Context) error {
	amountParam := c.QueryParam("amount")
	from := strings.ToUpper(c.QueryParam("from"))
	to := strings.ToUpper(c.QueryParam("to"))

	amount, err := decimal.NewFromString(amountParam)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "amount must be a number")
	}
	if len(from) != 3 || len(to) != 3 {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to must be 3-letter codes")
	}

	rate, converted, err := currency.ConvertStatic(amount, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "rate not available")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"amount":    amount,
		"from":      from,
		"to":        to,
		"rate":      rate,
		"converted": converted,
	})
}

// Rate resolves a live exchange rate through the cached source.
func (h *CurrencyHandler) Rate(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "currency.rate")

	from := strings.ToUpper(c.QueryParam("from"))
	to := strings.ToUpper(c.QueryParam("to"))
	if from == "" {
		from = "RSD"
	}
	if to == "" {
		to = "EUR"
	}

	rate, err := h.Rates.Rate(c.Request().Context(), from, to)
	if err != nil {
		if errors.Is(err, currency.ErrRateUnavailable) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "rate not available")
		}
		l.Error("rate_lookup_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "rate lookup failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"from": from,
		"to":   to,
		"rate": rate,
	})
}

func (h *CurrencyHandler) ListCountries(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "currency.countries")

	countries, err := h.Countries.List(c.Request().Context())
	if err != nil {
		l.Error("countries_lookup_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "countries lookup failed")
	}
	return c.JSON(http.StatusOK, countries)
}
