package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-console/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errors...)
}

func newDispatcher(t *testing.T, opts ...Option) Dispatcher {
	t.Helper()
	d := NewDispatcher(opts...)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func settled(mutationID string) *event.Event {
	return event.NewEvent(event.TypeMutationCommitted, mutationID, event.Payload{"kind": "delete_client"})
}

func TestSubscribe(t *testing.T) {
	t.Run("one handler for several types", func(t *testing.T) {
		d := newDispatcher(t)
		var seen []event.Type
		d.Subscribe("audit", func(ctx context.Context, evt *event.Event) error {
			seen = append(seen, evt.Type)
			return nil
		}, event.MutationSettledTypes...)

		ctx := context.Background()
		for _, typ := range event.MutationSettledTypes {
			require.NoError(t, d.Dispatch(ctx, event.NewEvent(typ, "m", nil)))
		}
		require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeMutationOptimistic, "m", nil)))

		assert.Equal(t, event.MutationSettledTypes, seen)
	})

	t.Run("same name replaces the handler", func(t *testing.T) {
		d := newDispatcher(t)
		var first, second int
		d.Subscribe("metrics", func(context.Context, *event.Event) error { first++; return nil }, event.TypeMutationCommitted)
		d.Subscribe("metrics", func(context.Context, *event.Event) error { second++; return nil }, event.TypeMutationCommitted)

		require.NoError(t, d.Dispatch(context.Background(), settled("m")))
		assert.Zero(t, first)
		assert.Equal(t, 1, second)
	})
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in subscription order", func(t *testing.T) {
		d := newDispatcher(t)
		var order []string
		for _, name := range []string{"audit", "metrics"} {
			name := name
			d.Subscribe(name, func(context.Context, *event.Event) error {
				order = append(order, name)
				return nil
			}, event.TypeMutationCommitted)
		}

		require.NoError(t, d.Dispatch(context.Background(), settled("m")))
		assert.Equal(t, []string{"audit", "metrics"}, order)
	})

	t.Run("returns the first error and still runs later handlers", func(t *testing.T) {
		logger := &mockLogger{}
		d := newDispatcher(t, WithLogger(logger))
		later := false
		d.Subscribe("audit", func(context.Context, *event.Event) error { return errors.New("disk full") }, event.TypeMutationCommitted)
		d.Subscribe("metrics", func(context.Context, *event.Event) error { later = true; return nil }, event.TypeMutationCommitted)

		err := d.Dispatch(context.Background(), settled("m"))
		assert.ErrorContains(t, err, "handler audit failed: disk full")
		assert.True(t, later)
		assert.Equal(t, []string{"Handler error"}, logger.Errors())
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		d := newDispatcher(t)
		d.Subscribe("audit", func(context.Context, *event.Event) error { panic("boom") }, event.TypeMutationCommitted)

		err := d.Dispatch(context.Background(), settled("m"))
		assert.ErrorContains(t, err, "handler panic: boom")
	})

	t.Run("payload reaches the handler", func(t *testing.T) {
		d := newDispatcher(t)
		var kind string
		d.Subscribe("audit", func(_ context.Context, evt *event.Event) error {
			kind = evt.Payload.String("kind")
			return nil
		}, event.TypeMutationCommitted)

		require.NoError(t, d.Dispatch(context.Background(), settled("m")))
		assert.Equal(t, "delete_client", kind)
	})

	t.Run("fails when closed", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.ErrorContains(t, d.Dispatch(context.Background(), settled("m")), "closed")
		assert.ErrorContains(t, d.Close(), "already closed")
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("keeps publication order", func(t *testing.T) {
		d := NewDispatcher(WithQueueSize(4))
		var mu sync.Mutex
		var got []string
		d.Subscribe("audit", func(_ context.Context, evt *event.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, evt.MutationID)
			return nil
		}, event.TypeMutationCommitted)

		want := make([]string, 50)
		for i := range want {
			want[i] = string(rune('a' + i%26))
			d.DispatchAsync(context.Background(), settled(want[i]))
		}
		require.NoError(t, d.Close(), "close drains the queue")

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, want, got)
	})

	t.Run("errors are logged, not returned", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe("audit", func(context.Context, *event.Event) error { return errors.New("locked") }, event.TypeQueriesInvalidated)

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeQueriesInvalidated, "", nil))
		require.NoError(t, d.Close())
		assert.Equal(t, []string{"Handler error"}, logger.Errors())
	})

	t.Run("drops events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var calls atomic.Int32
		d.Subscribe("audit", func(context.Context, *event.Event) error { calls.Add(1); return nil }, event.TypeMutationFailed)
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeMutationFailed, "m", nil))
		assert.Zero(t, calls.Load())
		assert.Equal(t, []string{"Dropped event, dispatcher is closed"}, logger.Errors())
	})

	t.Run("full queue gives up when the context ends", func(t *testing.T) {
		d := newDispatcher(t, WithQueueSize(1))
		release := make(chan struct{})
		started := make(chan struct{}, 1)
		d.Subscribe("slow", func(context.Context, *event.Event) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return nil
		}, event.TypeMutationCommitted)

		d.DispatchAsync(context.Background(), settled("in-flight"))
		<-started
		d.DispatchAsync(context.Background(), settled("queued"))
		assert.Equal(t, 1, d.Pending())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		d.DispatchAsync(ctx, settled("dropped"))
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)

		close(release)
	})
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := newDispatcher(t)
	var calls atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			d.Subscribe(string(rune('a'+i)), func(context.Context, *event.Event) error {
				calls.Add(1)
				return nil
			}, event.TypeMutationCommitted)
		}(i)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), settled("m"))
		}()
	}
	wg.Wait()

	calls.Store(0)
	require.NoError(t, d.Dispatch(context.Background(), settled("m")))
	assert.Equal(t, int32(20), calls.Load())
}
