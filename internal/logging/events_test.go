package logging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer records every entry it accepts and can be switched into a
// failure mode that rejects deliveries.
type captureServer struct {
	*httptest.Server

	mu      sync.Mutex
	failing bool
	entries []Entry
	headers []http.Header
}

func newCaptureServer(t testing.TB) *captureServer {
	t.Helper()

	cs := &captureServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		defer cs.mu.Unlock()

		if cs.failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var entry Entry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		cs.entries = append(cs.entries, entry)
		cs.headers = append(cs.headers, r.Header.Clone())
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(cs.Close)

	return cs
}

func (cs *captureServer) setFailing(failing bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.failing = failing
}

func (cs *captureServer) received() []Entry {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entries := make([]Entry, len(cs.entries))
	copy(entries, cs.entries)

	return entries
}

type stubTokenProvider struct {
	token string
	err   error
}

func (p *stubTokenProvider) FetchToken(ctx context.Context) (string, error) {
	return p.token, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventLogger_Delivery(t *testing.T) {
	t.Run("delivered entries are not buffered", func(t *testing.T) {
		server := newCaptureServer(t)
		logger := NewEventLogger(server.URL, WithLogger(discardLogger()))

		logger.Success("url shortened", map[string]any{"short_code": "abc123"})
		logger.Wait()

		received := server.received()
		require.Len(t, received, 1)
		assert.Equal(t, LevelSuccess, received[0].Level)
		assert.Equal(t, "url shortened", received[0].Message)
		assert.Equal(t, "abc123", received[0].Data["short_code"])
		assert.False(t, received[0].Timestamp.IsZero())

		assert.Empty(t, logger.Buffered())
	})

	t.Run("deliveries carry the bearer token", func(t *testing.T) {
		server := newCaptureServer(t)
		logger := NewEventLogger(server.URL,
			WithLogger(discardLogger()),
			WithTokenProvider(&stubTokenProvider{token: "test-token"}),
		)

		logger.Info("url resolved", nil)
		logger.Wait()

		server.mu.Lock()
		defer server.mu.Unlock()
		require.Len(t, server.headers, 1)
		assert.Equal(t, "Bearer test-token", server.headers[0].Get("Authorization"))
	})

	t.Run("delivery failure falls back to the buffer", func(t *testing.T) {
		server := newCaptureServer(t)
		server.setFailing(true)
		logger := NewEventLogger(server.URL, WithLogger(discardLogger()))

		logger.Error("allocation failed", map[string]any{"attempts": 5})
		logger.Wait()

		buffered := logger.Buffered()
		require.Len(t, buffered, 1)
		assert.Equal(t, LevelError, buffered[0].Level)
		assert.Equal(t, "allocation failed", buffered[0].Message)
	})

	t.Run("token failure falls back to the buffer", func(t *testing.T) {
		server := newCaptureServer(t)
		logger := NewEventLogger(server.URL,
			WithLogger(discardLogger()),
			WithTokenProvider(&stubTokenProvider{err: errors.New("token service down")}),
		)

		logger.Warn("url expired", nil)
		logger.Wait()

		assert.Empty(t, server.received())
		require.Len(t, logger.Buffered(), 1)
	})
}

func TestEventLogger_BufferEviction(t *testing.T) {
	server := newCaptureServer(t)
	server.setFailing(true)
	logger := NewEventLogger(server.URL,
		WithLogger(discardLogger()),
		WithBufferCap(2),
	)

	// Emit one at a time so the buffered order is deterministic.
	for _, msg := range []string{"first", "second", "third"} {
		logger.Info(msg, nil)
		logger.Wait()
	}

	buffered := logger.Buffered()
	require.Len(t, buffered, 2)
	assert.Equal(t, "second", buffered[0].Message)
	assert.Equal(t, "third", buffered[1].Message)
}

func TestEventLogger_Flush(t *testing.T) {
	t.Run("buffered entries are delivered in order", func(t *testing.T) {
		server := newCaptureServer(t)
		server.setFailing(true)
		logger := NewEventLogger(server.URL, WithLogger(discardLogger()))

		for _, msg := range []string{"first", "second"} {
			logger.Info(msg, nil)
			logger.Wait()
		}
		require.Len(t, logger.Buffered(), 2)

		server.setFailing(false)

		err := logger.Flush(context.Background())

		require.NoError(t, err)
		assert.Empty(t, logger.Buffered())

		received := server.received()
		require.Len(t, received, 2)
		assert.Equal(t, "first", received[0].Message)
		assert.Equal(t, "second", received[1].Message)
	})

	t.Run("undelivered entries are kept", func(t *testing.T) {
		server := newCaptureServer(t)
		server.setFailing(true)
		logger := NewEventLogger(server.URL, WithLogger(discardLogger()))

		logger.Info("stuck", nil)
		logger.Wait()

		err := logger.Flush(context.Background())

		assert.Error(t, err)
		require.Len(t, logger.Buffered(), 1)
		assert.Equal(t, "stuck", logger.Buffered()[0].Message)
	})

	t.Run("flushing an empty buffer is a no-op", func(t *testing.T) {
		server := newCaptureServer(t)
		logger := NewEventLogger(server.URL, WithLogger(discardLogger()))

		err := logger.Flush(context.Background())

		require.NoError(t, err)
		assert.Empty(t, server.received())
	})
}

func TestEventLogger_Timestamps(t *testing.T) {
	fixed := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

	server := newCaptureServer(t)
	logger := NewEventLogger(server.URL, WithLogger(discardLogger()))
	logger.now = func() time.Time { return fixed }

	logger.Info("timestamped", nil)
	logger.Wait()

	received := server.received()
	require.Len(t, received, 1)
	assert.True(t, fixed.Equal(received[0].Timestamp))
}
