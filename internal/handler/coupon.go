package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// decodeCouponRequest reads, decodes and validates a coupon body.
func (h *Handler) decodeCouponRequest(w http.ResponseWriter, r *http.Request) (*couponRequest, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	req, err := decodeCoupon(data)
	if err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, err
	}
	return req, nil
}

func writeCoupon(w http.ResponseWriter, status int, c *coupon.Coupon) {
	var e jx.Encoder
	encodeCoupon(&e, c)
	writeJSON(w, status, &e)
}

// CreateCoupon handles POST /coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCouponRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := req.toCoupon("")
	if err := h.promotion.CreateCoupon(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/coupons/"+c.ID)
	writeCoupon(w, http.StatusCreated, c)
}

// ListCoupons handles GET /coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.promotion.ListCoupons(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range coupons {
		encodeCoupon(&e, &coupons[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// GetCoupon handles GET /coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.promotion.GetCoupon(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCoupon(w, http.StatusOK, c)
}

// UpdateCoupon handles PUT /coupons/{id}. The body replaces the definition.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCouponRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := req.toCoupon(chi.URLParam(r, "id"))
	if err := h.promotion.UpdateCoupon(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeCoupon(w, http.StatusOK, c)
}

// DeleteCoupon handles DELETE /coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.promotion.DeleteCoupon(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
