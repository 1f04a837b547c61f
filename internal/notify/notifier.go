package notify

import (
	"context"
	"log/slog"
)

// EventKind names the downstream notification triggered by the engine.
type EventKind string

const (
	EventLikeReceived EventKind = "like_received"
	EventMatchCreated EventKind = "match_created"
)

// Event is handed to the dispatcher after the triggering transaction
// has committed. ActorID is the user the notification speaks about
// ("X liked you"), TargetID the user being told.
type Event struct {
	Kind     EventKind
	ActorID  uint64
	TargetID uint64
}

// Dispatcher is the narrow hook the engine calls on successful like and
// match creation. Delivery (push, email, SMS) lives outside this
// service; implementations must be fire-and-forget. The engine logs
// failures and never rolls back the committed transaction for them.
type Dispatcher interface {
	Notify(ctx context.Context, ev Event) error
}

// LogDispatcher is the default Dispatcher: it records the event via
// slog and succeeds. Real delivery is wired in by the host platform.
type LogDispatcher struct {
	Logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{Logger: logger}
}

func (d *LogDispatcher) Notify(_ context.Context, ev Event) error {
	d.Logger.Info("dispatching notification",
		"event", string(ev.Kind),
		"actor", ev.ActorID,
		"target", ev.TargetID,
	)
	return nil
}
