package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/shipping"
	"github.com/xenking/kart-rules/internal/wire"
)

// Checkout evaluates a single order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	o, err := wire.DecodeOrder(jx.DecodeBytes(body))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.checkout.Evaluate(r.Context(), o)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	wire.EncodeResult(&e, res)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// CheckoutBatch evaluates a JSON array of orders and returns the results in
// the same order.
func (h *Handler) CheckoutBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	orders, err := wire.DecodeOrders(jx.DecodeBytes(body))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.checkout.EvaluateBatch(r.Context(), orders, h.batchConcurrency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	wire.EncodeResults(&e, results)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// Rules describes the configured chains.
func (h *Handler) Rules(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("discountRules")
	e.Int(h.checkout.DiscountRules())
	e.FieldStart("shippingRules")
	e.Int(h.checkout.ShippingRules())
	e.FieldStart("fallback")
	e.Str(string(shipping.StandardShipping))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeErrorBody(w, http.StatusBadRequest, "read request body")
		return nil, false
	}
	return body, true
}

// writeError maps domain and decoding errors to HTTP responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxErr *wire.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		writeErrorBody(w, http.StatusBadRequest, syntaxErr.Error())
	case wire.IsInvalidArgument(err),
		errors.Is(err, checkout.ErrNilOrder),
		errors.Is(err, checkout.ErrDuplicateOrder),
		errors.Is(err, checkout.ErrSharedItem):
		writeErrorBody(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Checkout failed", zap.Error(err))
		writeErrorBody(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeErrorBody(w http.ResponseWriter, code int, message string) {
	var e jx.Encoder
	wire.EncodeError(&e, code, message)
	writeJSON(w, code, e.Bytes())
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
