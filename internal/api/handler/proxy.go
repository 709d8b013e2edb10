package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iconidentify/vidrelay/internal/domain"
	"github.com/iconidentify/vidrelay/internal/service"
)

type proxyService interface {
	Open(ctx context.Context, rawURL string) (*service.ProxyResponse, error)
}

var _ proxyService = (*service.ProxyService)(nil)

// ProxyHandler relays origin video bytes to the client.
type ProxyHandler struct {
	svc    proxyService
	logger *slog.Logger
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(svc proxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		svc:    svc,
		logger: logger,
	}
}

// Stream handles GET /proxy?url=...
//
// Once headers are written the status is 200 regardless of what the origin
// does; origin failures end the body early and are only logged.
func (h *ProxyHandler) Stream(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Open(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		status, detail := domain.ErrorStatus(err)
		writeError(w, status, detail)
		return
	}

	stream := resp.Stream
	defer stream.Close()

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("X-Relay-Id", stream.ID())
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	write := func(chunk []byte) bool {
		if _, err := w.Write(chunk); err != nil {
			h.logger.Debug("client went away during relay",
				"relay_id", stream.ID(),
				"error", err,
			)
			return false
		}
		_ = rc.Flush()
		return true
	}

	if len(resp.Head) > 0 && !write(resp.Head) {
		return
	}
	for {
		chunk, ok := stream.Next()
		if !ok {
			return
		}
		if !write(chunk) {
			return
		}
	}
}
