// Package transport provides the HTTP handler for Sourcify-delegated
// verification.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Holytrade/blockscout-rs/internal/sourcify"
)

// Service defines the Sourcify proxy operations the transport needs.
type Service interface {
	Verify(ctx context.Context, req sourcify.VerificationRequest) ([]sourcify.VerificationResult, error)
}

// Handler handles HTTP requests for Sourcify verification.
type Handler struct {
	svc Service
}

// NewHandler creates a new Sourcify HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the sourcify routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req sourcify.VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}
	if req.Address == "" || req.Chain == "" || len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "address, chain and files are required")
		return
	}

	results, err := h.svc.Verify(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, sourcify.ErrRejected):
			writeError(w, http.StatusBadRequest, "SOURCIFY_REJECTED", err.Error())
		case errors.Is(err, sourcify.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "SOURCIFY_UNAVAILABLE", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify contract")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": results})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
