package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/vidrelay/internal/config"
	"github.com/iconidentify/vidrelay/internal/domain"
	"github.com/iconidentify/vidrelay/internal/httpclient"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient() *httpclient.Client {
	return httpclient.New(config.HTTPConfig{
		UserAgent:             "test-agent",
		MaxRedirects:          5,
		DialTimeout:           time.Second,
		ResponseHeaderTimeout: 2 * time.Second,
	})
}

func testOriginConfig() config.OriginConfig {
	return config.OriginConfig{
		ProbeTimeout:       2 * time.Second,
		StreamTimeout:      5 * time.Second,
		ChunkSize:          1024,
		DefaultContentType: "video/mp4",
	}
}

func mustDuration(t *testing.T, s string) time.Duration {
	t.Helper()
	d, err := time.ParseDuration(s)
	if err != nil {
		t.Fatalf("parse duration %q: %v", s, err)
	}
	return d
}

// mockPinger is a test implementation of Pinger.
type mockPinger struct {
	err   error
	calls int
}

func (m *mockPinger) Ping(ctx context.Context) error {
	m.calls++
	return m.err
}

// mockForwarder is a test implementation of parseForwarder.
type mockForwarder struct {
	mu     sync.Mutex
	result *domain.ParseResult
	err    error
	urls   []string
}

func (m *mockForwarder) Forward(ctx context.Context, sharedURL string) (*domain.ParseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, sharedURL)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
