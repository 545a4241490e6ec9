package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// mockTransport captures events in memory instead of sending them.
type mockTransport struct {
	mu     sync.RWMutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {} //nolint:gocritic // interface signature

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*sentry.Event(nil), t.events...)
}

// waitForEvents polls until n events arrived or timeout elapses.
func (t *mockTransport) waitForEvents(n int, timeout time.Duration) []*sentry.Event {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if events := t.Events(); len(events) >= n {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	return t.Events()
}
