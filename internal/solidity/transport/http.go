package transport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Holytrade/blockscout-rs/internal/solidity"
	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
	"github.com/Holytrade/blockscout-rs/internal/solidity/verifier"
)

// Service defines the verification operations the HTTP transport needs.
type Service interface {
	Verify(ctx context.Context, req solidity.VerificationRequest) (*verifier.Success, error)
	Versions() []compiler.Version
}

// Handler handles HTTP requests for solidity verification.
type Handler struct {
	svc Service
}

// NewHandler creates a new solidity HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the solidity routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Get("/versions", h.handleVersions)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	deployed, err := decodeHex(req.DeployedBytecode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "deployedBytecode is not valid hex")
		return
	}
	creation, err := decodeHex(req.CreationBytecode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "creationBytecode is not valid hex")
		return
	}

	success, err := h.svc.Verify(r.Context(), solidity.VerificationRequest{
		CompilerVersion:  req.CompilerVersion,
		DeployedBytecode: deployed,
		CreationBytecode: creation,
		Content: verifier.SourceInput{
			Sources:    req.Sources,
			EVMVersion: req.EVMVersion,
		},
		ChainID: req.ChainID,
	})
	if err != nil {
		writeVerifyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyResult{
		Match:                string(success.Match),
		FilePath:             success.FilePath,
		ContractName:         success.ContractName,
		CompilerVersion:      success.CompilerVersion.String(),
		Bytecode:             "0x" + hex.EncodeToString(success.Bytecode),
		ABI:                  success.ABI,
		ConstructorArguments: encodeHexOrEmpty(success.ConstructorArgs),
	})
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions := h.svc.Versions()
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	sort.Strings(out)
	writeJSON(w, http.StatusOK, VersionsResult{Versions: out})
}

// writeVerifyError maps the error taxonomy onto HTTP statuses. Compiler
// diagnostics pass through verbatim so submitters see their own errors.
func writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verifier.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, compiler.ErrVersionNotFound):
		writeError(w, http.StatusBadRequest, "VERSION_NOT_FOUND", err.Error())
	case errors.Is(err, verifier.ErrCompilationFailed):
		writeError(w, http.StatusBadRequest, "COMPILATION_FAILED", err.Error())
	case errors.Is(err, verifier.ErrNoMatchingContracts):
		writeError(w, http.StatusBadRequest, "NO_MATCHING_CONTRACTS", err.Error())
	case errors.Is(err, compiler.ErrFetchUnavailable):
		writeError(w, http.StatusServiceUnavailable, "FETCH_UNAVAILABLE", err.Error())
	case errors.Is(err, compiler.ErrCorruptArtifact):
		writeError(w, http.StatusServiceUnavailable, "CORRUPT_ARTIFACT", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify contract")
	}
}

// decodeHex decodes hex tolerating a 0x prefix; empty input yields nil.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func encodeHexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
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
