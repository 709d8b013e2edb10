package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/vidrelay/internal/domain"
	"github.com/iconidentify/vidrelay/internal/resolver"
)

const maxParseRequestBytes = 64 * 1024

type parseForwarder interface {
	Forward(ctx context.Context, sharedURL string) (*domain.ParseResult, error)
}

var _ parseForwarder = (*resolver.Forwarder)(nil)

// ParseHandler resolves share links through the parsing service.
type ParseHandler struct {
	forwarder parseForwarder
	logger    *slog.Logger
}

// NewParseHandler creates a new parse handler.
func NewParseHandler(forwarder parseForwarder, logger *slog.Logger) *ParseHandler {
	return &ParseHandler{
		forwarder: forwarder,
		logger:    logger,
	}
}

// ParseRequest is the JSON request body for share-link parsing.
type ParseRequest struct {
	URL string `json:"url"`
}

// Parse handles POST /api/parse_video
func (h *ParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxParseRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.forwarder.Forward(r.Context(), req.URL)
	if err != nil {
		status, detail := domain.ErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("parse request failed", "url", req.URL, "status", status, "error", err)
		}
		writeError(w, status, detail)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
