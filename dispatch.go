// Package dispatchflow is a facade re-exporting the ambient stack
// (configuration, structured logging, ULIDs, JSON codec, CloudEvents
// envelope helpers) and the transport registry, so callers can depend on
// one module root instead of reaching into internal/. The dispatch
// runtime itself — requests, messages, transforms, the handler pipeline,
// the outbox/mediator, the pump, the scheduler, and the command processor
// — is re-exported from dispatch_core.go.
package dispatchflow

import (
	ce "github.com/flowmesh/dispatchflow/internal/runtime/cloudevents"
	configpkg "github.com/flowmesh/dispatchflow/internal/runtime/config"
	idspkg "github.com/flowmesh/dispatchflow/internal/runtime/ids"
	jsoncodec "github.com/flowmesh/dispatchflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/flowmesh/dispatchflow/internal/runtime/logging"
	newtransport "github.com/flowmesh/dispatchflow/transport"
)

type (
	// Config groups the Pub/Sub settings a transport.Transport is built
	// from; it implements transport.Config.
	Config = configpkg.Config

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	// CloudEvents types
	Event = ce.Event

	// Transport registry
	TransportBuilder         = newtransport.Builder
	TransportConfig          = newtransport.Config
	TransportRegistry        = newtransport.Registry
	TransportCapabilities    = newtransport.Capabilities
	TransportDLQManager      = newtransport.DLQManager
	TransportQueueIntrospect = newtransport.QueueIntrospector
	TransportDelayedPub      = newtransport.DelayedPublisher
)

var (
	ValidateConfig = configpkg.ValidateConfig

	// CloudEvents constructors and helpers
	NewCloudEvent       = ce.New
	NewCloudEventWithID = ce.NewWithID

	GetAttempt          = ce.GetAttempt
	SetAttempt          = ce.SetAttempt
	GetMaxAttempts      = ce.GetMaxAttempts
	SetMaxAttempts      = ce.SetMaxAttempts
	IncrementAttempt    = ce.IncrementAttempt
	ExceedsMaxAttempts  = ce.ExceedsMaxAttempts
	GetNextAttemptAt    = ce.GetNextAttemptAt
	SetNextAttemptAt    = ce.SetNextAttemptAt
	SetNextAttemptAfter = ce.SetNextAttemptAfter
	IsDeadLetter        = ce.IsDeadLetter
	SetDeadLetter       = ce.SetDeadLetter
	GetOriginalTopic    = ce.GetOriginalTopic
	SetOriginalTopic    = ce.SetOriginalTopic
	GetErrorMessage     = ce.GetErrorMessage
	SetErrorMessage     = ce.SetErrorMessage
	GetTraceID          = ce.GetTraceID
	SetTraceID          = ce.SetTraceID
	GetParentID         = ce.GetParentID
	SetParentID         = ce.SetParentID
	GetCorrelationID    = ce.GetCorrelationID
	SetCorrelationID    = ce.SetCorrelationID
	GetDelayMs          = ce.GetDelayMs
	SetDelayMs          = ce.SetDelayMs
	GetDelay            = ce.GetDelay
	SetDelay            = ce.SetDelay
	GetEventVersion     = ce.GetEventVersion
	SetEventVersion     = ce.SetEventVersion
	PrepareForRetry     = ce.PrepareForRetry
	PrepareForDLQ       = ce.PrepareForDLQ
	DLQTopic            = ce.DLQTopic
	CopyTracingContext  = ce.CopyTracingContext

	// CloudEvents error types
	ErrRetry                = ce.ErrRetry
	ErrDeadLetter           = ce.ErrDeadLetter
	ErrSkip                 = ce.ErrSkip
	ErrUnprocessable        = ce.ErrUnprocessable
	ErrRetryAfter           = ce.ErrRetryAfter
	ErrDeadLetterWithReason = ce.ErrDeadLetterWithReason
	ClassifyError           = ce.ClassifyError
	IsRetryable             = ce.IsRetryable
	ShouldDeadLetter        = ce.ShouldDeadLetter

	// Transport registry
	GetTransportCapabilities = newtransport.GetCapabilities
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	CreateULID = idspkg.CreateULID
)

// CloudEvents extension keys for dispatchflow reliability semantics.
const (
	// ExtAttempt is the current retry attempt number (1-based).
	ExtAttempt = ce.ExtAttempt

	// ExtMaxAttempts is the maximum number of retry attempts allowed.
	ExtMaxAttempts = ce.ExtMaxAttempts

	// ExtNextAttemptAt is the RFC3339 timestamp for the next retry.
	ExtNextAttemptAt = ce.ExtNextAttemptAt

	// ExtDeadLetter indicates the event has been moved to DLQ.
	ExtDeadLetter = ce.ExtDeadLetter

	// ExtTraceID is the distributed trace ID (W3C traceparent compatible).
	ExtTraceID = ce.ExtTraceID

	// ExtParentID is the parent span ID for trace correlation.
	ExtParentID = ce.ExtParentID

	// ExtDelayMs is the delay in milliseconds before processing.
	ExtDelayMs = ce.ExtDelayMs

	// ExtEventVersion is an optional version number for the event schema.
	ExtEventVersion = ce.ExtEventVersion

	// ExtOriginalTopic stores the original topic when moved to DLQ.
	ExtOriginalTopic = ce.ExtOriginalTopic

	// ExtErrorMessage stores the last error message when moved to DLQ.
	ExtErrorMessage = ce.ExtErrorMessage

	// ExtCorrelationID is a correlation identifier for request tracing.
	ExtCorrelationID = ce.ExtCorrelationID
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
