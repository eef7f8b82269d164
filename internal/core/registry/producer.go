package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// Capabilities describes what a Producer's backing transport natively
// supports, mirroring the teacher's transport.Capabilities struct so
// transport adapters only need to report this once.
type Capabilities struct {
	Async          bool
	NativeDelay    bool
	PartitionKeyed bool
}

// Producer is the broker producer contract from spec §6: send accepts an
// optional delay and returns the provider's message id, or an error
// (ChannelFailure wrapping CircuitOpen on breaker trips, other broker
// errors otherwise). internal/core/transportadapter implements this by
// wrapping a watermill Publisher from one of the transport/ packages.
type Producer interface {
	Send(ctx context.Context, msg messagepkg.Message, delay time.Duration) (providerMessageID string, err error)
	Capabilities() Capabilities
}

// ProducerRegistry resolves a routing key to the Producer that should carry
// messages for it. Like SubscriberRegistry, it is read-mostly after
// startup.
type ProducerRegistry struct {
	mu        sync.RWMutex
	producers map[string]Producer
}

// NewProducerRegistry builds an empty producer registry.
func NewProducerRegistry() *ProducerRegistry {
	return &ProducerRegistry{producers: make(map[string]Producer)}
}

// Register binds routingKey to producer, overwriting any prior binding.
func (r *ProducerRegistry) Register(routingKey string, producer Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[routingKey] = producer
}

// Resolve returns the producer bound to routingKey. An unbound routing key
// is a ConfigurationError: the mediator cannot clear an outbox entry it has
// no producer for.
func (r *ProducerRegistry) Resolve(routingKey string) (Producer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[routingKey]
	if !ok {
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("no producer registered for routing key %q", routingKey), nil)
	}
	return p, nil
}
