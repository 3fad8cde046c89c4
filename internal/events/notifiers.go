package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev dbgen.DomainEvent) error {
	n.Logger.Info().
		Str("event_id", db.UUIDString(ev.ID)).
		Str("topic", ev.Topic).
		Str("aggregate_id", db.UUIDString(ev.AggregateID)).
		RawJSON("payload", ev.Payload).
		Msg("domain event")
	return nil
}

// MetricsNotifier counts events per topic.
type MetricsNotifier struct{}

func (MetricsNotifier) Notify(_ context.Context, ev dbgen.DomainEvent) error {
	obs.Inc(obs.DomainEventsTotal, ev.Topic)
	return nil
}
