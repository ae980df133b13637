package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/auth"
	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/discount"
	"github.com/xenking/coupon-engine/internal/domain/product"
	"github.com/xenking/coupon-engine/pkg/httpmiddleware"
)

// writeError maps domain errors to HTTP responses. Unrecognized errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, msg)
}

func mapError(err error) (int, string) {
	var (
		brErr   *badRequestError
		vErrs   validator.ValidationErrors
		invErr  *coupon.InvalidInputError
		itemErr *cart.InvalidItemError
		pnfErr  *product.NotFoundError
	)
	switch {
	case errors.As(err, &brErr):
		return http.StatusBadRequest, brErr.Error()
	case errors.As(err, &vErrs):
		return http.StatusBadRequest, validationMessage(vErrs)
	case errors.As(err, &invErr):
		return http.StatusBadRequest, invErr.Error()
	case errors.As(err, &itemErr):
		return http.StatusBadRequest, itemErr.Error()
	case errors.Is(err, cart.ErrEmptyCart):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &pnfErr):
		return http.StatusNotFound, pnfErr.Error()
	case errors.Is(err, product.ErrNotFound), errors.Is(err, coupon.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, coupon.ErrInvalidCoupon), errors.Is(err, coupon.ErrNotApplicable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, discount.ErrConfiguration):
		return http.StatusInternalServerError, "coupon configuration error"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fe.Namespace()+" failed "+fe.Tag()+" validation")
	}
	return "invalid input: " + strings.Join(parts, "; ")
}
