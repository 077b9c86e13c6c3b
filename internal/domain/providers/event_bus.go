package providers

import (
	"context"

	"github.com/bookline/videomeet/internal/domain/entities"
)

// Bus channels.
const (
	// ChannelMeetingJobs carries provision/cancel jobs for the worker
	ChannelMeetingJobs = "meetings.jobs"

	// ChannelMeetingLifecycle carries created/failed/deleted announcements
	ChannelMeetingLifecycle = "meetings.lifecycle"
)

// EventBus carries meeting provisioning jobs and lifecycle announcements
// between the API surface and the worker.
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.MeetingEvent) error

	// Subscribe subscribes to events on a channel. The returned channel is
	// closed when ctx is cancelled or the bus shuts down.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.MeetingEvent, error)

	// Unsubscribe tears down a channel subscription
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}
