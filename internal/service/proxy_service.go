package service

import (
	"context"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iconidentify/vidrelay/internal/config"
	"github.com/iconidentify/vidrelay/internal/domain"
	"github.com/iconidentify/vidrelay/internal/origin"
)

// genericTypes are declared content types too vague for a media player.
var genericTypes = map[string]bool{
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/unknown":      true,
}

// ProxyService composes the content-type probe and the stream relay into a
// single proxied response.
type ProxyService struct {
	prober       origin.ContentTypeProber
	relay        origin.StreamOpener
	sniffGeneric bool
	logger       *slog.Logger
}

// NewProxyService creates a new proxy service.
func NewProxyService(
	prober origin.ContentTypeProber,
	relay origin.StreamOpener,
	cfg config.OriginConfig,
	logger *slog.Logger,
) *ProxyService {
	return &ProxyService{
		prober:       prober,
		relay:        relay,
		sniffGeneric: cfg.SniffGeneric,
		logger:       logger,
	}
}

// ProxyResponse is a ready-to-write proxied response.
type ProxyResponse struct {
	ContentType string
	Stream      *origin.Stream
	// Head holds bytes already pulled from Stream while sniffing. They must
	// be written before any further chunk.
	Head []byte
}

// Open validates rawURL, probes its content type and opens the relay. The
// probe always completes before Open returns so the response headers can be
// written with a known content type. The only error is a BadRequest.
func (s *ProxyService) Open(ctx context.Context, rawURL string) (*ProxyResponse, error) {
	target, err := ValidateOriginURL(rawURL)
	if err != nil {
		return nil, err
	}

	contentType := s.prober.Probe(ctx, target)

	// The relay uses its own connection, never the probe's.
	stream := s.relay.Open(ctx, target)
	resp := &ProxyResponse{
		ContentType: contentType,
		Stream:      stream,
	}

	if s.sniffGeneric && isGeneric(contentType) {
		if chunk, ok := stream.Next(); ok {
			resp.Head = append([]byte(nil), chunk...)
			resp.ContentType = refineContentType(contentType, resp.Head)
			if resp.ContentType != contentType {
				s.logger.Debug("refined generic content type",
					"relay_id", stream.ID(),
					"declared", contentType,
					"detected", resp.ContentType,
				)
			}
		}
	}

	return resp, nil
}

// ValidateOriginURL checks that raw is a non-empty absolute http(s) URL.
func ValidateOriginURL(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", domain.NewRequestError(domain.ErrKindBadRequest, "Missing URL parameter", nil)
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", domain.NewRequestError(domain.ErrKindBadRequest, "Invalid URL parameter", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.NewRequestError(domain.ErrKindBadRequest, "URL must be an absolute http or https URL", nil)
	}
	return target, nil
}

func isGeneric(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return genericTypes[mediaType]
}

// refineContentType replaces a generic declared type with one detected from
// the leading bytes, when detection finds something more specific.
func refineContentType(declared string, head []byte) string {
	detected := mimetype.Detect(head)
	if detected.Is("application/octet-stream") {
		return declared
	}
	return detected.String()
}
