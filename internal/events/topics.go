package events

// Topic constants for domain events emitted by the ordering flow.
const (
	TopicOrderCreated       = "order.created"
	TopicDeliveryDispatched = "delivery.dispatched"
	TopicDeliveryInTransit  = "delivery.in_transit"
	TopicDeliveryNearby     = "delivery.nearby"
	TopicDeliveryDelivered  = "delivery.delivered"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicDeliveryDispatched,
		TopicDeliveryInTransit,
		TopicDeliveryNearby,
		TopicDeliveryDelivered,
	}
}
