package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
)

// EventStore defines the persistence operation required by the bus.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, arg dbgen.InsertDomainEventParams) (dbgen.DomainEvent, error)
}

// Notifier reacts to emitted events.
type Notifier interface {
	Notify(ctx context.Context, event dbgen.DomainEvent) error
}

// Bus persists domain events and fans them out to notifiers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit records the event with the bus store and dispatches it.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (dbgen.DomainEvent, error) {
	if b == nil || b.Store == nil {
		return dbgen.DomainEvent{}, errors.New("events: store not configured")
	}
	ev, err := b.Persist(ctx, b.Store, topic, aggregateID, payload)
	if err != nil {
		return dbgen.DomainEvent{}, err
	}
	return ev, b.Dispatch(ctx, ev)
}

// Persist writes the event through store, which may be bound to an open
// transaction. Notifiers are not called; use Dispatch after commit.
func (b *Bus) Persist(ctx context.Context, store EventStore, topic string, aggregateID pgtype.UUID, payload any) (dbgen.DomainEvent, error) {
	if store == nil {
		return dbgen.DomainEvent{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return dbgen.DomainEvent{}, errors.New("events: topic is required")
	}
	if !aggregateID.Valid {
		return dbgen.DomainEvent{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return dbgen.DomainEvent{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev, err := store.InsertDomainEvent(ctx, dbgen.InsertDomainEventParams{
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
	})
	if err != nil {
		return dbgen.DomainEvent{}, fmt.Errorf("events: persist event: %w", err)
	}
	return ev, nil
}

// Dispatch hands a persisted event to every notifier and joins their errors.
func (b *Bus) Dispatch(ctx context.Context, ev dbgen.DomainEvent) error {
	if b == nil {
		return nil
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return joined
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return validJSON(v)
	case json.RawMessage:
		return validJSON(v)
	case string:
		return validJSON([]byte(strings.TrimSpace(v)))
	default:
		return json.Marshal(v)
	}
}

func validJSON(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), data...), nil
}
