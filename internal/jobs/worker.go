// Package jobs runs the background worker that turns provisioning events
// into provider API calls.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/providers"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
	"github.com/bookline/videomeet/pkg/config"
	"github.com/bookline/videomeet/pkg/retry"
	"github.com/bookline/videomeet/pkg/retryable"
)

// jobTimeout bounds one job attempt cycle, retries included.
const jobTimeout = 5 * time.Minute

// MeetingCoordinator is the slice of the meeting service the worker drives.
type MeetingCoordinator interface {
	// CreateMeeting returns an error only for retryable transport faults;
	// terminal failures are absorbed into the appointment's state.
	CreateMeeting(ctx context.Context, appointmentID string) (bool, error)

	// DeleteMeeting tears the appointment's meeting down.
	DeleteMeeting(ctx context.Context, appointmentID string) (bool, error)
}

// Worker consumes provisioning jobs from the event bus and executes them
// against the meeting coordinator, retrying transport faults with backoff.
type Worker struct {
	meetings MeetingCoordinator
	bus      providers.EventBus
	cfg      config.WorkerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a new provisioning worker
func NewWorker(meetings MeetingCoordinator, bus providers.EventBus, cfg config.WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		meetings: meetings,
		bus:      bus,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the jobs channel and begins processing events.
func (w *Worker) Start() error {
	eventChan, err := w.bus.Subscribe(w.ctx, providers.ChannelMeetingJobs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to meeting jobs: %w", err)
	}

	w.wg.Add(1)
	go w.processEvents(eventChan)

	observability.GetLogger().Info().Msg("meeting provisioning worker started")
	return nil
}

// Stop cancels processing and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	observability.GetLogger().Info().Msg("meeting provisioning worker stopped")
}

func (w *Worker) processEvents(eventChan <-chan *entities.MeetingEvent) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			w.handleEvent(event)
		}
	}
}

func (w *Worker) handleEvent(event *entities.MeetingEvent) {
	ctx, cancel := context.WithTimeout(w.ctx, jobTimeout)
	defer cancel()

	logger := observability.GetLogger().With().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("appointment_id", event.AppointmentID).
		Logger()

	switch event.Type {
	case entities.MeetingEventProvision:
		w.provision(ctx, &logger, event.AppointmentID)
	case entities.MeetingEventCancel:
		w.cancelMeeting(ctx, &logger, event.AppointmentID)
	default:
		logger.Debug().Msg("ignoring non-job event")
	}
}

// provision creates the meeting, retrying transport faults with exponential
// backoff. Terminal outcomes never come back as errors, so a retry here is
// always a second chance at a fault that may have cleared.
func (w *Worker) provision(ctx context.Context, logger *zerolog.Logger, appointmentID string) {
	cfg := retry.Config{
		MaxAttempts:   w.cfg.MaxAttempts,
		InitialDelay:  w.cfg.InitialDelay,
		MaxDelay:      w.cfg.MaxDelay,
		BackoffFactor: 2.0,
		ShouldRetry:   retryable.IsRetryable,
	}

	var created bool
	err := retry.DoWithLog(ctx, cfg, "meeting provisioning", func() error {
		var attemptErr error
		created, attemptErr = w.meetings.CreateMeeting(ctx, appointmentID)
		return attemptErr
	}, func(attempt int, err error, nextDelay time.Duration) {
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("meeting provisioning attempt failed, will retry")
	})
	if err != nil {
		logger.Error().Err(err).Msg("meeting provisioning gave up")
		return
	}

	if created {
		logger.Info().Msg("meeting provisioned")
	}
}

// cancelMeeting runs once without retry: the coordinator clears local state
// regardless of the provider call's outcome, so there is nothing left to
// re-attempt.
func (w *Worker) cancelMeeting(ctx context.Context, logger *zerolog.Logger, appointmentID string) {
	remoteOK, err := w.meetings.DeleteMeeting(ctx, appointmentID)
	if err != nil {
		logger.Error().Err(err).Msg("meeting cancellation failed")
		return
	}
	if !remoteOK {
		logger.Warn().Msg("meeting cancelled locally; remote delete did not succeed")
		return
	}
	logger.Info().Msg("meeting cancelled")
}
