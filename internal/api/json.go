package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

type errResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("json encode failed", zap.Error(err))
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, errResponse{Error: msg})
}

// writeError maps graph sentinels to status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrCharacterNotExists),
		errors.Is(err, types.ErrLinklistNotExists),
		errors.Is(err, types.ErrNoteNotExists),
		errors.Is(err, types.ErrMintTokenNotExists):
		h.writeJSON(w, http.StatusNotFound, errResponse{Error: err.Error()})
	case errors.Is(err, types.ErrInvalidTarget):
		h.writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
	default:
		h.log.Error("query failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errResponse{Error: "internal error"})
	}
}
