package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/comigor/jarvis-chat/internal/logger"
)

// Topic is the watermill topic render events are published on.
const Topic = "render"

// Bus publishes render events over an in-process watermill pub/sub.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    *slog.Logger
}

// NewBus creates a bus. Publishing blocks until subscribers ack, which keeps
// events in publishing order.
func NewBus() *Bus {
	log := logger.L.With("component", "events")
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		}, NewWatermillLogger(log)),
		log: log,
	}
}

// Emit publishes e. Failures are logged and never surface to the caller.
func (b *Bus) Emit(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.log.Error("failed to marshal render event", "kind", e.Kind, "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(Topic, msg); err != nil {
		b.log.Warn("failed to publish render event", "kind", e.Kind, "error", err)
	}
}

// Subscribe delivers every event to handle until ctx is cancelled or the bus
// is closed. It returns once the subscription is registered; delivery happens
// on a separate goroutine.
func (b *Bus) Subscribe(ctx context.Context, handle func(Event)) error {
	msgs, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	go func() {
		for msg := range msgs {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				b.log.Warn("dropping undecodable render event", "uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			handle(e)
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts down the pub/sub and ends all subscriptions.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

var _ Emitter = (*Bus)(nil)
