// Package logging implements the external event logging collaborator.
//
// Events are delivered to a remote endpoint on a best-effort, fire-and-forget
// basis. Delivery failures are never visible to callers: the entry falls back
// to a bounded in-memory buffer that evicts its oldest entries first and can
// be flushed later.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event levels accepted by the remote service.
const (
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelError   = "error"
	LevelSuccess = "success"
)

// defaultBufferCap bounds the local fallback buffer.
const defaultBufferCap = 1000

// Entry is one event in the wire format of the logging service.
type Entry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives application events. Implementations must never block the
// caller or surface delivery errors.
type Sink interface {
	Info(msg string, data map[string]any)
	Warn(msg string, data map[string]any)
	Error(msg string, data map[string]any)
	Success(msg string, data map[string]any)
}

// Nop is a Sink that discards every event.
type Nop struct{}

func (Nop) Info(string, map[string]any)    {}
func (Nop) Warn(string, map[string]any)    {}
func (Nop) Error(string, map[string]any)   {}
func (Nop) Success(string, map[string]any) {}

// TokenProvider supplies the bearer token attached to event deliveries.
type TokenProvider interface {
	FetchToken(ctx context.Context) (string, error)
}

// Option configures an EventLogger.
type Option func(*EventLogger)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *EventLogger) {
		l.client = client
	}
}

// WithTokenProvider makes deliveries carry an Authorization header.
func WithTokenProvider(tokens TokenProvider) Option {
	return func(l *EventLogger) {
		l.tokens = tokens
	}
}

// WithBufferCap overrides the fallback buffer capacity.
func WithBufferCap(n int) Option {
	return func(l *EventLogger) {
		l.bufferCap = n
	}
}

// WithLogger sets the logger used to report delivery failures locally.
func WithLogger(logger *slog.Logger) Option {
	return func(l *EventLogger) {
		l.logger = logger
	}
}

// EventLogger posts events to a remote endpoint, buffering locally on failure.
type EventLogger struct {
	endpoint  string
	client    *http.Client
	tokens    TokenProvider
	logger    *slog.Logger
	bufferCap int
	now       func() time.Time

	wg sync.WaitGroup

	mu  sync.Mutex
	buf []Entry
}

// NewEventLogger creates an event logger delivering to endpoint.
func NewEventLogger(endpoint string, opts ...Option) *EventLogger {
	l := &EventLogger{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    slog.Default(),
		bufferCap: defaultBufferCap,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *EventLogger) Info(msg string, data map[string]any)    { l.emit(LevelInfo, msg, data) }
func (l *EventLogger) Warn(msg string, data map[string]any)    { l.emit(LevelWarn, msg, data) }
func (l *EventLogger) Error(msg string, data map[string]any)   { l.emit(LevelError, msg, data) }
func (l *EventLogger) Success(msg string, data map[string]any) { l.emit(LevelSuccess, msg, data) }

// emit dispatches the entry without waiting for delivery. The caller's
// request path must never stall on the logging service.
func (l *EventLogger) emit(level, msg string, data map[string]any) {
	entry := Entry{
		Level:     level,
		Message:   msg,
		Data:      data,
		Timestamp: l.now().UTC(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		if err := l.send(context.Background(), entry); err != nil {
			l.logger.Warn("event delivery failed, buffering locally",
				slog.String("level", entry.Level),
				slog.Any("err", err),
			)
			l.store(entry)
		}
	}()
}

func (l *EventLogger) send(ctx context.Context, entry Entry) error {
	const op = "logging.EventLogger.send"

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal entry: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if l.tokens != nil {
		token, err := l.tokens.FetchToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to fetch token: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: failed to deliver entry: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: logging service responded with status %d", op, resp.StatusCode)
	}

	return nil
}

// store appends the entry to the fallback buffer, evicting the oldest
// entries once the capacity is reached.
func (l *EventLogger) store(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = append(l.buf, entry)
	if len(l.buf) > l.bufferCap {
		l.buf = l.buf[len(l.buf)-l.bufferCap:]
	}
}

// Buffered returns a copy of the entries currently held locally.
func (l *EventLogger) Buffered() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, len(l.buf))
	copy(entries, l.buf)

	return entries
}

// Flush attempts to deliver the buffered entries. Entries that still can't
// be delivered are kept, in order, for a later attempt.
func (l *EventLogger) Flush(ctx context.Context) error {
	const op = "logging.EventLogger.Flush"

	l.mu.Lock()
	pending := l.buf
	l.buf = nil
	l.mu.Unlock()

	var kept []Entry
	for _, entry := range pending {
		if err := l.send(ctx, entry); err != nil {
			kept = append(kept, entry)
		}
	}

	if len(kept) > 0 {
		l.mu.Lock()
		l.buf = append(kept, l.buf...)
		if len(l.buf) > l.bufferCap {
			l.buf = l.buf[len(l.buf)-l.bufferCap:]
		}
		l.mu.Unlock()

		return fmt.Errorf("%s: %d entries still undelivered", op, len(kept))
	}

	return nil
}

// Wait blocks until every in-flight delivery has settled.
func (l *EventLogger) Wait() {
	l.wg.Wait()
}
