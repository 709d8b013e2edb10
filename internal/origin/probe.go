package origin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iconidentify/vidrelay/internal/config"
	"github.com/iconidentify/vidrelay/internal/httpclient"
)

// Prober issues metadata-only requests to learn an origin's content type.
type Prober struct {
	client      *httpclient.Client
	timeout     time.Duration
	defaultType string
	logger      *slog.Logger
}

// NewProber creates a prober on the shared client.
func NewProber(client *httpclient.Client, cfg config.OriginConfig, logger *slog.Logger) *Prober {
	defaultType := cfg.DefaultContentType
	if defaultType == "" {
		defaultType = "video/mp4"
	}
	return &Prober{
		client:      client,
		timeout:     cfg.ProbeTimeout,
		defaultType: defaultType,
		logger:      logger,
	}
}

// Probe sends a HEAD request and returns the declared Content-Type. Any
// failure is logged and answered with the default media type.
func (p *Prober) Probe(ctx context.Context, url string) string {
	contentType, err := p.probe(ctx, url)
	if err != nil {
		p.logger.Warn("content type probe failed, using default",
			"url", url,
			"default", p.defaultType,
			"error", err,
		)
		return p.defaultType
	}
	return contentType
}

func (p *Prober) probe(ctx context.Context, url string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := p.client.NewRequest(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if !httpclient.IsSuccess(resp.StatusCode) {
		return "", fmt.Errorf("status code %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return "", fmt.Errorf("origin declared no content type")
	}
	return contentType, nil
}
