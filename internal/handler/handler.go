package handler

import (
	"net/http"

	"github.com/xenking/kart-rules/internal/checkout"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// BatchConcurrency bounds concurrent evaluations per batch request.
	// Zero or less means unbounded.
	BatchConcurrency int
}

// Handler serves the checkout API on top of a checkout.Service.
type Handler struct {
	checkout         *checkout.Service
	maxBodyBytes     int64
	batchConcurrency int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, svc *checkout.Service) *Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		checkout:         svc,
		maxBodyBytes:     maxBody,
		batchConcurrency: cfg.BatchConcurrency,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/checkout/batch", h.CheckoutBatch)
	mux.HandleFunc("GET /api/rules", h.Rules)
}
