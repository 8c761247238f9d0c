package history

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/curator/internal/resource"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event represents a committed resource change exported to external
// systems. Record is nil for deletions.
type Event struct {
	ID         string           `json:"id"`
	Type       EventType        `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Kind       string           `json:"kind"`
	ResourceID int64            `json:"resource_id"`
	Actor      string           `json:"actor,omitempty"`
	Record     *resource.Record `json:"record,omitempty"`
}

// NewEvent stamps a new event with a random id and the current time.
func NewEvent(t EventType, kind string, id int64, actor string, rec *resource.Record) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Kind:       kind,
		ResourceID: id,
		Actor:      actor,
		Record:     rec,
	}
}

// Payload returns the record as JSON, or "null" when there is none.
func (e Event) Payload() (string, error) {
	if e.Record == nil {
		return "null", nil
	}
	b, err := json.Marshal(e.Record)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

type actorKey struct{}

// WithActor records who is acting in ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

// Dispatcher fans events out to every sink. Delivery is best effort:
// failures are logged and never returned to the caller.
type Dispatcher struct {
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration
}

func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger, timeout: 5 * time.Second}
}

// SetTimeout bounds each Emit. Non-positive values are ignored.
func (d *Dispatcher) SetTimeout(t time.Duration) {
	if d != nil && t > 0 {
		d.timeout = t
	}
}

// Len reports the number of sinks.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.sinks)
}

// Emit delivers e to every sink. It is detached from ctx cancellation, so
// a client hanging up after commit does not drop the event, but is bounded
// by the dispatcher timeout.
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	if d.Len() == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	for _, s := range d.sinks {
		if err := s.Send(sendCtx, e); err != nil {
			d.logger.Warn("history sink failed",
				"event", e.Type, "kind", e.Kind, "resource_id", e.ResourceID, "error", err)
		}
	}
}

// Close closes every sink that holds resources.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
