package transportadapter

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/flowmesh/dispatchflow/transport"
)

// Build constructs the broker transport named by cfg.GetPubSubSystem() via
// transport.Build and wraps it as both a Producer and a Channel bound to
// topic, the pairing a bootstrap wires into a registry.ProducerRegistry and
// a pump.Pump respectively for the same routing key.
func Build(ctx context.Context, topic string, cfg transport.Config, logger watermill.LoggerAdapter) (*Producer, *Channel, error) {
	t, err := transport.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	caps := transport.GetCapabilities(cfg.GetPubSubSystem())

	producer := NewProducer(topic, t, caps)
	ch, err := NewChannel(ctx, topic, t, caps)
	if err != nil {
		return nil, nil, err
	}
	return producer, ch, nil
}
