// Package resolver forwards share links to the external parsing service and
// normalizes its replies.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iconidentify/vidrelay/internal/config"
	"github.com/iconidentify/vidrelay/internal/domain"
	"github.com/iconidentify/vidrelay/internal/httpclient"
)

const (
	parsePath        = "/video/share/url/parse"
	placeholderRunes = 10
	pingTimeout      = 5 * time.Second
)

// Client-facing detail messages.
const (
	msgMissingURL        = "Missing URL parameter"
	msgRejected          = "parse service returned failure"
	msgEmpty             = "parse service returned no valid data"
	msgMissingVideoURL   = "parsed successfully, but no playable video URL was found"
	msgUpstreamInternal  = "parse service internal error"
	msgUpstreamStatusFmt = "parse service error, status code: %d"
	msgUnreachableFmt    = "cannot connect to video parse service: %v"
	msgUnexpectedFmt     = "unexpected error while processing request: %v"
)

// errBodyTooLarge marks resolver replies over the configured size limit.
var errBodyTooLarge = errors.New("resolver response too large")

// Forwarder delegates share-link resolution to the parsing service.
type Forwarder struct {
	client          *httpclient.Client
	baseURL         string
	timeout         time.Duration
	defaultTitle    string
	placeholderBase string
	maxBodyBytes    int64
	logger          *slog.Logger
}

// NewForwarder creates a forwarder on the shared client.
func NewForwarder(client *httpclient.Client, cfg config.ResolverConfig, logger *slog.Logger) *Forwarder {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	return &Forwarder{
		client:          client,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		timeout:         cfg.Timeout,
		defaultTitle:    cfg.DefaultTitle,
		placeholderBase: cfg.PlaceholderBase,
		maxBodyBytes:    maxBody,
		logger:          logger,
	}
}

// Forward resolves sharedURL through the parsing service. Every failure is
// returned as a *domain.RequestError.
func (f *Forwarder) Forward(ctx context.Context, sharedURL string) (*domain.ParseResult, error) {
	if strings.TrimSpace(sharedURL) == "" {
		return nil, domain.NewRequestError(domain.ErrKindBadRequest, msgMissingURL, nil)
	}

	requestID := uuid.NewString()
	endpoint := f.endpoint(sharedURL)
	logger := f.logger.With("request_id", requestID, "shared_url", sharedURL)
	logger.Info("forwarding parse request", "endpoint", endpoint)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := f.client.NewRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, internalError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Error("failed to connect to parse service", "error", err)
		return nil, domain.NewRequestError(domain.ErrKindBadGateway, fmt.Sprintf(msgUnreachableFmt, err), err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		// An unreadable error body is reported like an unparseable one
		body, err := f.readBody(resp.Body)
		if err != nil {
			logger.Warn("failed to read parse service error body", "status", resp.StatusCode, "error", err)
			body = nil
		}
		logger.Warn("parse service returned error status",
			"status", resp.StatusCode,
			"body", truncate(body, 512),
		)
		return nil, upstreamStatusError(resp.StatusCode, body)
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return nil, internalError(err)
		}
		logger.Error("failed to read parse service response", "error", err)
		return nil, domain.NewRequestError(domain.ErrKindBadGateway, fmt.Sprintf(msgUnreachableFmt, err), err)
	}

	logger.Debug("received data from parse service", "body", truncate(body, 2048))

	result, err := f.normalize(body)
	if err != nil {
		logger.Warn("parse service reply rejected", "error", err)
		return nil, err
	}

	logger.Info("parse request resolved",
		"title", result.Title,
		"video_url", result.VideoURL,
	)
	return result, nil
}

// Ping checks that the parsing service answers HTTP at all.
func (f *Forwarder) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := f.client.NewRequest(ctx, http.MethodGet, f.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach parse service: %w", err)
	}
	resp.Body.Close()
	return nil
}

// endpoint embeds the fully percent-encoded share link in the resolver URL.
func (f *Forwarder) endpoint(sharedURL string) string {
	return f.baseURL + parsePath + "?url=" + encodeComponent(sharedURL)
}

func (f *Forwarder) readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, f.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: over %d bytes", errBodyTooLarge, f.maxBodyBytes)
	}
	return body, nil
}

// normalize validates the envelope and derives the result fields.
func (f *Forwarder) normalize(body []byte) (*domain.ParseResult, error) {
	if !isObject(body) {
		return nil, internalError(fmt.Errorf("envelope is not an object: %s", truncate(body, 64)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, internalError(fmt.Errorf("decode envelope: %w", err))
	}

	if !successCode(env.Code) {
		detail, ok := stringField(env.Msg)
		if !ok {
			detail = msgRejected
		}
		return nil, domain.NewRequestError(domain.ErrKindUpstreamRejected, detail, nil)
	}

	if isBlank(env.Data) {
		return nil, domain.NewRequestError(domain.ErrKindUpstreamEmpty, msgEmpty, nil)
	}
	if !isObject(env.Data) {
		return nil, internalError(fmt.Errorf("data is not an object: %s", truncate(env.Data, 64)))
	}

	var data payload
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, internalError(fmt.Errorf("decode data: %w", err))
	}

	videoURL, ok := nonEmptyString(data.VideoURL)
	if !ok {
		return nil, domain.NewRequestError(domain.ErrKindMissingVideoURL, msgMissingVideoURL, nil)
	}

	title, ok := stringField(data.Title)
	if !ok {
		title = f.defaultTitle
	}

	return &domain.ParseResult{
		Title:    title,
		CoverURL: f.coverURL(data, title),
		VideoURL: videoURL,
	}, nil
}

// coverURL picks cover_url, then author.avatar, then a generated placeholder
// carrying the title prefix verbatim.
func (f *Forwarder) coverURL(data payload, title string) string {
	if cover, ok := nonEmptyString(data.CoverURL); ok {
		return cover
	}
	if avatar, ok := authorAvatar(data.Author); ok {
		return avatar
	}
	return f.placeholderBase + "?text=" + prefix(title, placeholderRunes)
}

func upstreamStatusError(status int, body []byte) *domain.RequestError {
	detail, found, ok := detailMessage(body)
	switch {
	case !ok:
		detail = fmt.Sprintf(msgUpstreamStatusFmt, status)
	case !found:
		detail = msgUpstreamInternal
	}
	return &domain.RequestError{
		Kind:   domain.ErrKindUpstreamRejected,
		Status: status,
		Detail: detail,
	}
}

func internalError(err error) *domain.RequestError {
	return domain.NewRequestError(domain.ErrKindInternal, fmt.Sprintf(msgUnexpectedFmt, err), err)
}

// encodeComponent percent-encodes every reserved character, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
