package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// decodeCartRequest reads, decodes and validates a cart body.
func (h *Handler) decodeCartRequest(w http.ResponseWriter, r *http.Request) (*cartRequest, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	req, err := decodeCart(data)
	if err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ApplicableCoupons handles POST /applicable-coupons.
func (h *Handler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCartRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.promotion.ListApplicable(r.Context(), req.specs())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeApplicable(&e, list)
	writeJSON(w, http.StatusOK, &e)
}

// ApplyCoupon handles POST /apply-coupon/{id}.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCartRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ct, err := h.promotion.Apply(r.Context(), chi.URLParam(r, "id"), req.specs())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeUpdatedCart(&e, ct)
	writeJSON(w, http.StatusOK, &e)
}
