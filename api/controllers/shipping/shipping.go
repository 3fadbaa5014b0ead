package shipping

import (
	"context"
	"net/http"

	"github.com/angelmondragon/settlement-core/api/responses"
	"github.com/angelmondragon/settlement-core/api/validators"
	internalshipping "github.com/angelmondragon/settlement-core/internal/shipping"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
)

const (
	maxWeightGrams = 1_000_000
	maxValueCents  = 100_000_000_000
)

// Calculator previews totals for a set of catalog lines.
type Calculator interface {
	Calculate(ctx context.Context, input internalshipping.CalculateInput) (*internalshipping.Calculation, error)
}

// TotalsQuoter prices a parcel from its weight and value alone.
type TotalsQuoter interface {
	QuoteForTotals(ctx context.Context, dest internalshipping.Destination, weightGrams, valueCents int64) internalshipping.Quote
}

// Calculate handles POST /shipping/calculate.
func Calculate(calc Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping calculator unavailable"))
			return
		}
		var payload internalshipping.CalculateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := calc.Calculate(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Quote handles GET /shipping/calculate?country=&city=&weight=&value=.
func Quote(quoter TotalsQuoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if quoter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping quoter unavailable"))
			return
		}
		country, err := validators.RequireQuery(r, "country")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		weight, err := validators.ParseQueryInt64(r, "weight", 0, 0, maxWeightGrams)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		value, err := validators.ParseQueryInt64(r, "value", 0, 0, maxValueCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dest := internalshipping.Destination{
			Country: country,
			City:    validators.SanitizeString(r.URL.Query().Get("city"), 100),
		}
		responses.WriteSuccess(w, quoter.QuoteForTotals(r.Context(), dest, weight, value))
	}
}
