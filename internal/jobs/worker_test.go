package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/jobs"
	"github.com/bookline/videomeet/pkg/config"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// memoryBus is a process-local EventBus for worker tests.
type memoryBus struct {
	mu       sync.Mutex
	channels map[string]chan *entities.MeetingEvent
}

func newMemoryBus() *memoryBus {
	return &memoryBus{channels: make(map[string]chan *entities.MeetingEvent)}
}

func (b *memoryBus) channel(name string) chan *entities.MeetingEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok {
		ch = make(chan *entities.MeetingEvent, 16)
		b.channels[name] = ch
	}
	return ch
}

func (b *memoryBus) Publish(ctx context.Context, channel string, event *entities.MeetingEvent) error {
	b.channel(channel) <- event
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.MeetingEvent, error) {
	return b.channel(channel), nil
}

func (b *memoryBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *memoryBus) Close() error { return nil }

// stubCoordinator scripts CreateMeeting outcomes per attempt and records calls.
type stubCoordinator struct {
	mu          sync.Mutex
	createErrs  []error
	createCalls []string
	deleteCalls []string
	deleteOK    bool
	done        chan struct{}
}

func (c *stubCoordinator) CreateMeeting(ctx context.Context, appointmentID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createCalls = append(c.createCalls, appointmentID)
	attempt := len(c.createCalls)
	var err error
	if attempt <= len(c.createErrs) {
		err = c.createErrs[attempt-1]
	}
	if err == nil && c.done != nil {
		close(c.done)
		c.done = nil
	}
	return err == nil, err
}

func (c *stubCoordinator) DeleteMeeting(ctx context.Context, appointmentID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteCalls = append(c.deleteCalls, appointmentID)
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	return c.deleteOK, nil
}

func (c *stubCoordinator) calls() ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.createCalls...), append([]string(nil), c.deleteCalls...)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func workerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker")
	}
}

func TestWorker_ProvisionJob(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions on the first attempt", func(t *testing.T) {
		bus := newMemoryBus()
		coordinator := &stubCoordinator{done: make(chan struct{})}
		done := coordinator.done

		worker := jobs.NewWorker(coordinator, bus, workerConfig())
		require.NoError(t, worker.Start())
		defer worker.Stop()

		require.NoError(t, bus.Publish(ctx, "meetings.jobs", &entities.MeetingEvent{
			ID:            "evt-1",
			Type:          entities.MeetingEventProvision,
			AppointmentID: "appt-1",
		}))

		waitFor(t, done)
		creates, _ := coordinator.calls()
		assert.Equal(t, []string{"appt-1"}, creates)
	})

	t.Run("retries transport faults until they clear", func(t *testing.T) {
		bus := newMemoryBus()
		coordinator := &stubCoordinator{
			createErrs: []error{timeoutError{}, timeoutError{}},
			done:       make(chan struct{}),
		}
		done := coordinator.done

		worker := jobs.NewWorker(coordinator, bus, workerConfig())
		require.NoError(t, worker.Start())
		defer worker.Stop()

		require.NoError(t, bus.Publish(ctx, "meetings.jobs", &entities.MeetingEvent{
			ID:            "evt-1",
			Type:          entities.MeetingEventProvision,
			AppointmentID: "appt-1",
		}))

		waitFor(t, done)
		creates, _ := coordinator.calls()
		assert.Len(t, creates, 3)
	})

	t.Run("does not retry terminal errors", func(t *testing.T) {
		bus := newMemoryBus()
		coordinator := &stubCoordinator{
			createErrs: []error{apperrors.NewExternalError(apperrors.CodeCreateFailed, "rejected", nil)},
			done:       make(chan struct{}),
		}

		worker := jobs.NewWorker(coordinator, bus, workerConfig())
		require.NoError(t, worker.Start())

		require.NoError(t, bus.Publish(ctx, "meetings.jobs", &entities.MeetingEvent{
			ID:            "evt-1",
			Type:          entities.MeetingEventProvision,
			AppointmentID: "appt-1",
		}))

		// Stop drains the in-flight job before returning.
		time.Sleep(50 * time.Millisecond)
		worker.Stop()

		creates, _ := coordinator.calls()
		assert.Len(t, creates, 1)
	})

	t.Run("ignores lifecycle announcements", func(t *testing.T) {
		bus := newMemoryBus()
		coordinator := &stubCoordinator{}

		worker := jobs.NewWorker(coordinator, bus, workerConfig())
		require.NoError(t, worker.Start())

		require.NoError(t, bus.Publish(ctx, "meetings.jobs", &entities.MeetingEvent{
			ID:   "evt-1",
			Type: entities.MeetingEventCreated,
		}))

		time.Sleep(50 * time.Millisecond)
		worker.Stop()

		creates, deletes := coordinator.calls()
		assert.Empty(t, creates)
		assert.Empty(t, deletes)
	})
}

func TestWorker_CancelJob(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels without retry", func(t *testing.T) {
		bus := newMemoryBus()
		coordinator := &stubCoordinator{deleteOK: true, done: make(chan struct{})}
		done := coordinator.done

		worker := jobs.NewWorker(coordinator, bus, workerConfig())
		require.NoError(t, worker.Start())
		defer worker.Stop()

		require.NoError(t, bus.Publish(ctx, "meetings.jobs", &entities.MeetingEvent{
			ID:            "evt-1",
			Type:          entities.MeetingEventCancel,
			AppointmentID: "appt-1",
		}))

		waitFor(t, done)
		_, deletes := coordinator.calls()
		assert.Equal(t, []string{"appt-1"}, deletes)
	})
}
