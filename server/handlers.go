package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/registration"
	"github.com/cerbtk/registry/types"
)

const maxPayloadSize = 1 << 20

// Error codes returned in the "error" field of failed responses.
const (
	codeEmptyPayload     = "empty_payload"
	codeInvalidPayload   = "invalid_payload"
	codeInvalidNonce     = "invalid_nonce"
	codeInvalidSignature = "invalid_signature"
	codeLedgerAppend     = "ledger_append_failed"
	codeNotFound         = "not_found"
	codeInternal         = "internal_error"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

type validity struct {
	Valid bool `json:"valid"`
}

type handlers struct {
	reg *registration.Registration
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write response", zap.Error(err))
	}
}

// register installs the routes on mux.
// The gateway mux tries handlers registered later first, so literal paths go after the patterns they overlap.
func (h *handlers) register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/device/{hash}", h.blockByHash},
		{http.MethodGet, "/device/all", h.allBlocks},
		{http.MethodGet, "/device/id/{deviceId}", h.blockByDeviceID},
		{http.MethodGet, "/device/nonce/{deviceId}", h.issueNonce},
		{http.MethodPost, "/device/nonce/{deviceId}", h.issueNonce},
		{http.MethodPost, "/device/write", h.write},
		{http.MethodGet, "/chain/validate", h.validate},
		{http.MethodGet, "/chain/head", h.head},
		{http.MethodGet, "/chain/anchor", h.anchor},
	}
	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return fmt.Errorf("registering %s %s: %w", route.method, route.pattern, err)
		}
	}
	return nil
}

func (h *handlers) allBlocks(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, r, http.StatusOK, h.reg.Blocks())
}

func (h *handlers) blockByHash(w http.ResponseWriter, r *http.Request, params map[string]string) {
	block, ok := h.reg.BlockByHash(params["hash"])
	if !ok {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: codeNotFound})
		return
	}
	writeJSON(w, r, http.StatusOK, block)
}

func (h *handlers) blockByDeviceID(w http.ResponseWriter, r *http.Request, params map[string]string) {
	block, ok := h.reg.BlockByDeviceID(params["deviceId"])
	if !ok {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: codeNotFound})
		return
	}
	writeJSON(w, r, http.StatusOK, block)
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, r, http.StatusOK, validity{Valid: h.reg.ChainValid()})
}

func (h *handlers) head(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, r, http.StatusOK, h.reg.Head())
}

func (h *handlers) anchor(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, r, http.StatusOK, h.reg.Anchor())
}

func (h *handlers) issueNonce(w http.ResponseWriter, r *http.Request, params map[string]string) {
	entry, err := h.reg.IssueNonce(r.Context(), params["deviceId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

func (h *handlers) write(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: codeInvalidPayload})
			return
		}
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: codeInvalidPayload})
		return
	}
	block, err := h.reg.Register(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, block)
}

// writeError maps registration errors onto response codes.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *registration.ValidationError
	switch {
	case errors.Is(err, types.ErrEmptyPayload):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: codeEmptyPayload})
	case errors.As(err, &verr):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: codeInvalidPayload, Fields: verr.Fields})
	case errors.Is(err, types.ErrInvalidNonce):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: codeInvalidNonce})
	case errors.Is(err, types.ErrInvalidSignature):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: codeInvalidSignature})
	case errors.Is(err, types.ErrLedgerAppend):
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: codeLedgerAppend})
	default:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: codeInternal})
	}
}

// requestLogger attaches a logger carrying a fresh request id to every request.
func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logger.With(zap.Stringer("request_id", uuid.New()))
		logger.Debug("new request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(logging.NewContext(r.Context(), logger)))
	})
}
