// Package notify publishes fire-and-forget signals about sync activity to
// whoever is listening, such as a UI or the log.
package notify

import (
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Topics that can be subscribed to, along with their handler signatures.
const (
	// TopicSyncInProgress handlers are `func(inProgress bool)`.
	TopicSyncInProgress = "sync:in-progress"

	// TopicEntryStatus handlers are `func(name string, running bool)`.
	TopicEntryStatus = "entry:status"

	// TopicNotification handlers are `func(Notification)`.
	TopicNotification = "notification"
)

// Kind is the type of a user-visible notification.
type Kind string

// The notifications shown to the user.
const (
	Starting        Kind = "starting"
	ReadyToPlay     Kind = "ready-to-play"
	DownloadingData Kind = "downloading-data"
	UploadingData   Kind = "uploading-data"
	UploadFinished  Kind = "upload-finished"
	SyncError       Kind = "sync-error"
	ProcessError    Kind = "process-error"
	ReadinessError  Kind = "readiness-error"
	EntrySynced     Kind = "entry-synced"
)

// Notification is a message for the user, optionally about a single entry.
type Notification struct {
	Kind  Kind
	Entry string
	Err   error
}

// Bus publishes events. Publishing never blocks on subscribers that were
// registered with SubscribeAsync.
type Bus struct {
	bus         EventBus.Bus
	clock       clockwork.Clock
	minDuration time.Duration

	mu sync.Mutex

	// visible is whether "sync in progress" was last published as true.
	visible bool
	shownAt time.Time

	// generation is bumped whenever a sync starts, so that a delayed hide
	// scheduled for an earlier sync doesn't hide a later one.
	generation int
}

// New creates a Bus. Once "sync in progress" is shown, it stays visible for
// at least `minDuration`, so that short syncs don't make a UI flicker.
func New(clock clockwork.Clock, minDuration time.Duration) *Bus {
	return &Bus{
		bus:         EventBus.New(),
		clock:       clock,
		minDuration: minDuration,
	}
}

// Subscribe calls `fn` synchronously for every event on `topic`.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync calls `fn` for every event on `topic` from a separate
// goroutine, one event at a time.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, true)
}

// WaitAsync waits for all async subscribers to finish handling their
// events.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}

// SyncInProgress publishes whether a sync is running. Hiding is delayed until
// the signal has been visible for the minimum duration. A sync that starts
// while a hide is pending keeps the signal visible without republishing it.
func (b *Bus) SyncInProgress(inProgress bool) {
	b.mu.Lock()
	if inProgress {
		b.generation++
		alreadyVisible := b.visible
		if !alreadyVisible {
			b.visible = true
			b.shownAt = b.clock.Now()
		}
		b.mu.Unlock()

		if !alreadyVisible {
			b.bus.Publish(TopicSyncInProgress, true)
		}
		return
	}

	if !b.visible {
		b.mu.Unlock()
		return
	}

	remaining := b.minDuration - b.clock.Since(b.shownAt)
	if remaining <= 0 {
		b.visible = false
		b.mu.Unlock()
		b.bus.Publish(TopicSyncInProgress, false)
		return
	}

	generation := b.generation
	b.mu.Unlock()
	b.clock.AfterFunc(remaining, func() {
		b.mu.Lock()
		stale := generation != b.generation || !b.visible
		if !stale {
			b.visible = false
		}
		b.mu.Unlock()

		if !stale {
			b.bus.Publish(TopicSyncInProgress, false)
		}
	})
}

// SyncError publishes a SyncError notification.
func (b *Bus) SyncError(err error) {
	b.bus.Publish(TopicNotification, Notification{Kind: SyncError, Err: err})
}

// EntryStatus publishes whether the process of the entry `name` is running.
func (b *Bus) EntryStatus(name string, running bool) {
	b.bus.Publish(TopicEntryStatus, name, running)
}

// Notify publishes a notification about `entry`, which may be empty.
func (b *Bus) Notify(kind Kind, entry string) {
	b.bus.Publish(TopicNotification, Notification{Kind: kind, Entry: entry})
}

// NotifyError publishes a notification about a failure.
func (b *Bus) NotifyError(kind Kind, err error) {
	b.bus.Publish(TopicNotification, Notification{Kind: kind, Err: err})
}

// LogNotifications logs every notification published on `b`.
func LogNotifications(b *Bus) error {
	return b.Subscribe(TopicNotification, func(n Notification) {
		entry := log.WithField("notification", string(n.Kind))
		if n.Entry != "" {
			entry = entry.WithField("entry", n.Entry)
		}
		if n.Err != nil {
			entry.WithError(n.Err).Error(message(n.Kind))
			return
		}
		entry.Info(message(n.Kind))
	})
}

func message(kind Kind) string {
	switch kind {
	case Starting:
		return "Starting up. Syncing with the cloud"
	case ReadyToPlay:
		return "Ready to play"
	case DownloadingData:
		return "Downloading save data"
	case UploadingData:
		return "Uploading save data"
	case UploadFinished:
		return "Save data uploaded"
	case SyncError:
		return "Failed to sync with the cloud"
	case ProcessError:
		return "Failed to suspend or resume a running process"
	case ReadinessError:
		return "The configured entries are invalid. Nothing will be synced"
	case EntrySynced:
		return "Save data synced"
	default:
		return string(kind)
	}
}
