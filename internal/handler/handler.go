package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/coupon-engine/internal/domain/auth"
	"github.com/xenking/coupon-engine/internal/domain/product"
	"github.com/xenking/coupon-engine/internal/domain/promotion"
	"github.com/xenking/coupon-engine/pkg/httpmiddleware"
)

// Handler serves the coupon API, delegating business logic to the promotion
// service and product repository.
type Handler struct {
	products  product.Repository
	promotion *promotion.Service
	validate  *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, svc *promotion.Service) *Handler {
	return &Handler{
		products:  products,
		promotion: svc,
		validate:  newValidator(),
	}
}

// Routes mounts the API on r. Coupon writes require an API key with the
// coupons:write scope.
func (h *Handler) Routes(r chi.Router, sec *SecurityHandler) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Get("/coupons", h.ListCoupons)
	r.Get("/coupons/{id}", h.GetCoupon)
	r.Group(func(r chi.Router) {
		r.Use(sec.Require(auth.ScopeCouponsWrite))
		r.Post("/coupons", h.CreateCoupon)
		r.Put("/coupons/{id}", h.UpdateCoupon)
		r.Delete("/coupons/{id}", h.DeleteCoupon)
	})

	r.Post("/applicable-coupons", h.ApplicableCoupons)
	r.Post("/apply-coupon/{id}", h.ApplyCoupon)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
