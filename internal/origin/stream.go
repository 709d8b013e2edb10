package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/vidrelay/internal/config"
	"github.com/iconidentify/vidrelay/internal/httpclient"
)

const defaultChunkSize = 64 * 1024

// Relay opens streaming connections to origins.
type Relay struct {
	client    *httpclient.Client
	timeout   time.Duration
	chunkSize int
	logger    *slog.Logger
}

// NewRelay creates a relay on the shared client.
func NewRelay(client *httpclient.Client, cfg config.OriginConfig, logger *slog.Logger) *Relay {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Relay{
		client:    client,
		timeout:   cfg.StreamTimeout,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Open returns a lazy stream for url. No request is made until the first
// call to Next. Cancelling ctx stops the stream and releases its connection.
func (r *Relay) Open(ctx context.Context, url string) *Stream {
	id := uuid.NewString()
	return &Stream{
		id:        id,
		url:       url,
		ctx:       ctx,
		client:    r.client,
		timeout:   r.timeout,
		chunkSize: r.chunkSize,
		logger:    r.logger.With("relay_id", id, "url", url),
	}
}

// Stream is an ordered, non-restartable sequence of byte chunks read from
// one origin connection. Reads happen only when Next is called, so at most
// one chunk is in flight.
//
// A Stream is not safe for concurrent use. To interrupt a blocked Next,
// cancel the context passed to Relay.Open.
type Stream struct {
	id        string
	url       string
	ctx       context.Context
	client    *httpclient.Client
	timeout   time.Duration
	chunkSize int
	logger    *slog.Logger

	started bool
	done    bool
	body    io.ReadCloser
	cancel  context.CancelFunc
	buf     []byte

	chunks    int
	bytes     int64
	startedAt time.Time
	closeOnce sync.Once
}

// ID returns the stream's correlation id.
func (s *Stream) ID() string {
	return s.id
}

// Chunks returns how many chunks have been produced so far.
func (s *Stream) Chunks() int {
	return s.chunks
}

// Bytes returns how many bytes have been produced so far.
func (s *Stream) Bytes() int64 {
	return s.bytes
}

// Next returns the next chunk, or false once the stream has ended. Origin
// errors, timeouts and cancellation all end the stream; they are logged and
// never returned. The returned slice is only valid until the next call.
func (s *Stream) Next() ([]byte, bool) {
	if s.done {
		return nil, false
	}

	if err := s.ctx.Err(); err != nil {
		s.finish("canceled", err)
		return nil, false
	}

	if !s.started {
		s.started = true
		if err := s.connect(); err != nil {
			s.finish("connect_failed", err)
			return nil, false
		}
	}

	for {
		n, err := s.body.Read(s.buf)

		// Nothing is produced once the consumer has gone away
		if cerr := s.ctx.Err(); cerr != nil {
			s.finish("canceled", cerr)
			return nil, false
		}

		if n > 0 {
			s.chunks++
			s.bytes += int64(n)
			chunk := s.buf[:n]
			if err != nil {
				// Deliver what arrived; the error ends the stream on the next call
				s.endAfter(err)
			}
			return chunk, true
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.finish("eof", nil)
			} else {
				s.finish("read_failed", err)
			}
			return nil, false
		}
	}
}

// Close releases the origin connection. It is safe to call more than once.
func (s *Stream) Close() error {
	if !s.done {
		s.finish("closed", nil)
	}
	return nil
}

func (s *Stream) connect() error {
	ctx := s.ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	s.cancel = cancel
	s.startedAt = time.Now()

	req, err := s.client.NewRequest(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	if !httpclient.IsSuccess(resp.StatusCode) {
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s.body = resp.Body
	s.buf = make([]byte, s.chunkSize)

	s.logger.Debug("relay connected",
		"status", resp.StatusCode,
		"content_length", resp.ContentLength,
	)
	return nil
}

// endAfter arranges for the stream to end with err after the current chunk.
func (s *Stream) endAfter(err error) {
	s.body = &failedBody{body: s.body, err: err}
}

func (s *Stream) finish(reason string, err error) {
	s.done = true
	s.buf = nil

	s.closeOnce.Do(func() {
		if s.body != nil {
			s.body.Close()
		}
		if s.cancel != nil {
			s.cancel()
		}

		attrs := []any{
			"reason", reason,
			"chunks", s.chunks,
			"bytes", s.bytes,
		}
		if !s.startedAt.IsZero() {
			attrs = append(attrs, "duration", time.Since(s.startedAt))
		}

		switch {
		case err != nil && reason != "canceled":
			s.logger.Warn("relay ended early", append(attrs, "error", err)...)
		default:
			s.logger.Info("relay finished", attrs...)
		}
	})
}

// failedBody replays a read error that arrived together with data.
type failedBody struct {
	body io.ReadCloser
	err  error
}

func (f *failedBody) Read([]byte) (int, error) {
	return 0, f.err
}

func (f *failedBody) Close() error {
	return f.body.Close()
}
