// Package dispatchflow is a command/event dispatch and messaging runtime. It
// routes application requests (commands, events, documents) either straight
// into an in-process handler pipeline or through a transactional outbox to a
// broker producer, and consumes broker messages back into the same handler
// pipeline through a message pump.
//
// Three subsystems form the core:
//
//   - The handler pipeline builder (internal/core/handlerpipeline) compiles a
//     per-request-type chain of middleware around a user handler and drives
//     Send (one handler), Publish (fan-out) and Post (outbox-staged) dispatch.
//   - The outbox-producer mediator (internal/core/mediator) deposits messages
//     in the same transaction as business state and clears them through
//     broker producers under retry + circuit-breaker policies.
//   - The message pump (internal/core/pump) is the long-running consumer loop
//     that receives from a broker channel, unwraps to a request, dispatches,
//     and applies ack/reject/requeue semantics with poison-message limits.
//
// dispatchflow keeps the teacher runtime's Watermill-based transport layer
// (transport/*) as the broker-facing plumbing that backs registry.Producer
// and pump.Channel through internal/core/transportadapter: ten transports
// (channel, kafka, rabbitmq, aws, nats, jetstream, http, io, sqlite,
// postgres) remain available out of the box, selected through Config.
//
// A minimal setup registers handlers on a HandlerBuilder, wraps it in a
// HandlerDispatcher, builds a CommandProcessor with NewCommandProcessor, and
// calls Start (Teardown stops it). See internal/core/processor's tests for
// the Send/Publish/Post/Schedule surface itself.
package dispatchflow
