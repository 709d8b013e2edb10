package origin

import (
	"context"
)

// ContentTypeProber determines the media type an origin declares for a URL.
type ContentTypeProber interface {
	// Probe never fails; it falls back to a default media type.
	Probe(ctx context.Context, url string) string
}

// StreamOpener opens lazy byte streams from an origin.
type StreamOpener interface {
	// Open returns a stream that connects on its first Next call.
	// Caller is responsible for closing the stream.
	Open(ctx context.Context, url string) *Stream
}
