package dispatchflow

import (
	dlqmetricspkg "github.com/flowmesh/dispatchflow/internal/core/dlqmetrics"
	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	handlerpipelinepkg "github.com/flowmesh/dispatchflow/internal/core/handlerpipeline"
	inboxpkg "github.com/flowmesh/dispatchflow/internal/core/inbox"
	introspectpkg "github.com/flowmesh/dispatchflow/internal/core/introspect"
	mediatorpkg "github.com/flowmesh/dispatchflow/internal/core/mediator"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	outboxpkg "github.com/flowmesh/dispatchflow/internal/core/outbox"
	processorpkg "github.com/flowmesh/dispatchflow/internal/core/processor"
	pumppkg "github.com/flowmesh/dispatchflow/internal/core/pump"
	registrypkg "github.com/flowmesh/dispatchflow/internal/core/registry"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
	schedulerpkg "github.com/flowmesh/dispatchflow/internal/core/scheduler"
	transformpkg "github.com/flowmesh/dispatchflow/internal/core/transform"
	transportadapterpkg "github.com/flowmesh/dispatchflow/internal/core/transportadapter"
	"google.golang.org/protobuf/proto"
)

// This file extends the facade's alias-block convention (see dispatch.go)
// to the command/event dispatch runtime: the request/message model, the
// transform and handler pipelines, the subscriber/producer/policy
// registries, the outbox/inbox, the outbox-producer mediator, the message
// pump, the scheduler, the command processor façade, and the transport
// adapter that backs producers and pump channels with the kept broker
// transports. Several names carry a subsystem prefix (for example
// DispatchMessage, HandlerBuilder, SubscriberRegistry).

type (
	// Request model
	Request     = requestpkg.Request
	RequestKind = requestpkg.Kind
	RequestBase = requestpkg.Base

	// Message model
	DispatchMessage = messagepkg.Message
	MessageHeader   = messagepkg.Header
	MessageBody     = messagepkg.Body
	MessageKind     = messagepkg.Type

	// Transform pipeline
	TransformMapper       = transformpkg.Mapper
	Transform             = transformpkg.Transform
	TransformPipeline     = transformpkg.Pipeline
	TransformRegistration = transformpkg.Registration
	TransformRegistry     = transformpkg.Registry
	TransformDirection    = transformpkg.Direction

	// Concrete Mapper/Transform implementations
	JSONMapper[T any]            = transformpkg.JSONMapper[T]
	ProtoMapper[T proto.Message] = transformpkg.ProtoMapper[T]
	CloudEventsTransform         = transformpkg.CloudEventsTransform

	// Handler pipeline
	HandlerTiming                 = handlerpipelinepkg.Timing
	HandlerFunc                   = handlerpipelinepkg.HandlerFunc
	HandlerMiddleware             = handlerpipelinepkg.Middleware
	HandlerMiddlewareFactory      = handlerpipelinepkg.MiddlewareFactory
	HandlerFactory                = handlerpipelinepkg.HandlerFactory
	HandlerMiddlewareRegistration = handlerpipelinepkg.MiddlewareRegistration
	HandlerRegistration           = handlerpipelinepkg.HandlerRegistration
	HandlerBuilder                = handlerpipelinepkg.Builder
	HandlerChain                  = handlerpipelinepkg.Chain
	HandlerDispatcher             = handlerpipelinepkg.Dispatcher

	// Registries
	SubscriberMultiplicity = registrypkg.Multiplicity
	SubscriberRegistry     = registrypkg.SubscriberRegistry
	BrokerProducer         = registrypkg.Producer
	BrokerCapabilities     = registrypkg.Capabilities
	ProducerRegistry       = registrypkg.ProducerRegistry
	RetryPolicyConfig      = registrypkg.RetryConfig
	CircuitBreakerConfig   = registrypkg.CircuitBreakerConfig
	Policy                 = registrypkg.Policy
	PolicyRegistry         = registrypkg.PolicyRegistry

	// Outbox / inbox
	OutboxState               = outboxpkg.State
	OutboxEntry               = outboxpkg.Entry
	OutboxTransactionProvider = outboxpkg.TransactionProvider
	Outbox                    = outboxpkg.Outbox
	InMemoryOutbox            = outboxpkg.InMemory
	OutboxPlaceholder         = outboxpkg.Placeholder
	SQLOutboxStore            = outboxpkg.SQLStore
	Inbox                     = inboxpkg.Inbox
	InMemoryInbox             = inboxpkg.InMemory
	StrictInbox               = inboxpkg.Strict

	// Outbox-producer mediator
	Mediator       = mediatorpkg.Mediator
	MediatorConfig = mediatorpkg.Config

	// Message pump
	PumpChannel             = pumppkg.Channel
	PumpUnwrapper           = pumppkg.Unwrapper
	PumpValidator           = pumppkg.Validator
	PumpDispatcher          = pumppkg.Dispatcher
	PumpExitReason          = pumppkg.ExitReason
	PumpConfig              = pumppkg.Config
	Pump                    = pumppkg.Pump
	Reactor                 = pumppkg.Reactor
	Proactor                = pumppkg.Proactor
	PoisonMetrics           = pumppkg.PoisonMetrics
	RoutingKeyPoisonMetrics = pumppkg.RoutingKeyPoisonMetrics

	// Scheduler
	SchedulerMode        = schedulerpkg.Mode
	SchedulerJob         = schedulerpkg.Job
	Scheduler            = schedulerpkg.Scheduler
	SchedulerFire        = schedulerpkg.Fire
	InMemoryScheduler    = schedulerpkg.InMemory
	SchedulerWorker      = schedulerpkg.Worker
	FireSchedulerRequest = schedulerpkg.FireSchedulerRequest

	// Command processor façade
	ProcessorDispatcher = processorpkg.Dispatcher
	ProcessorMediator   = processorpkg.Mediator
	ProcessorConfig     = processorpkg.Config
	CommandProcessor    = processorpkg.Processor
	ProcessorResult     = processorpkg.Result

	// Job lifecycle hooks, fired around Send/Publish
	JobContext = processorpkg.JobContext
	JobHooks   = processorpkg.JobHooks

	// Dead-letter metrics for transports with no native DLQ support
	DLQMetrics      = dlqmetricspkg.Metrics
	DLQTopicMetrics = dlqmetricspkg.TopicMetrics
	DLQSnapshot     = dlqmetricspkg.Snapshot

	// Reactor introspection (pending jobs, outstanding outbox, poison and
	// DLQ tallies) exposed over HTTP
	IntrospectHandler  = introspectpkg.Handler
	IntrospectConfig   = introspectpkg.Config
	IntrospectSnapshot = introspectpkg.Snapshot
	ResourceUsage      = introspectpkg.ResourceUsage

	// Dispatch error taxonomy (spec §7).
	CoreConfigurationError  = errspkg.ConfigurationError
	CoreMessageMappingError = errspkg.MessageMappingError
	CoreDeferMessageAction  = errspkg.DeferMessageAction
	CoreChannelFailure      = errspkg.ChannelFailure
	CoreOnceOnlyViolation   = errspkg.OnceOnlyViolation
	CoreRequestNotFound     = errspkg.RequestNotFound
	CoreAggregateError      = errspkg.AggregateError

	// Transport adapter: wraps a watermill Publisher/Subscriber pair (see
	// transport.Build) as a BrokerProducer / PumpChannel pair.
	AdapterProducer = transportadapterpkg.Producer
	AdapterChannel  = transportadapterpkg.Channel
)

const (
	// Request kinds
	RequestCommand  = requestpkg.Command
	RequestEvent    = requestpkg.Event
	RequestDocument = requestpkg.Document

	// Message kinds
	MessageNone         = messagepkg.None
	MessageCommandKind  = messagepkg.Command
	MessageEventKind    = messagepkg.Event
	MessageDocumentKind = messagepkg.Document
	MessageQuitKind     = messagepkg.Quit
	MessageUnacceptable = messagepkg.Unacceptable

	// Transform direction
	TransformWrap   = transformpkg.Wrap
	TransformUnwrap = transformpkg.Unwrap

	// Handler timing
	HandlerBefore = handlerpipelinepkg.Before
	HandlerAfter  = handlerpipelinepkg.After

	// Subscriber multiplicity
	SubscriberUnregistered = registrypkg.Unregistered
	SubscriberOne          = registrypkg.One
	SubscriberMany         = registrypkg.Many

	// Well-known policy names
	RetryPolicyName          = registrypkg.RetryPolicy
	RetryPolicyAsyncName     = registrypkg.RetryPolicyAsync
	CircuitBreakerPolicyName = registrypkg.CircuitBreakerPolicy
	CircuitBreakerAsyncName  = registrypkg.CircuitBreakerAsync

	// Outbox state
	OutboxOutstanding = outboxpkg.Outstanding
	OutboxDispatched  = outboxpkg.Dispatched

	// SQL placeholder styles
	PlaceholderQuestion = outboxpkg.PlaceholderQuestion
	PlaceholderDollar   = outboxpkg.PlaceholderDollar

	// Pump exit reasons
	PumpExitUnknown            = pumppkg.ExitUnknown
	PumpExitQuit               = pumppkg.ExitQuit
	PumpExitUnacceptableLimit  = pumppkg.ExitUnacceptableLimit
	PumpExitChannelDisposed    = pumppkg.ExitChannelDisposed
	PumpExitFatalConfiguration = pumppkg.ExitFatalConfiguration

	// Scheduler modes
	ScheduleModeSend    = schedulerpkg.ModeSend
	ScheduleModePublish = schedulerpkg.ModePublish
	ScheduleModePost    = schedulerpkg.ModePost
)

var (
	// Request model
	NewRequestBase       = requestpkg.NewBase
	NewRequestBaseWithID = requestpkg.NewBaseWithID
	RequestTypeName      = requestpkg.TypeName

	// Message model
	NewDispatchMessage = messagepkg.New
	NewQuitMessage     = messagepkg.NewQuit
	NewNoneMessage     = messagepkg.NewNone
	EncodeHeaderBag    = messagepkg.EncodeBag
	DecodeHeaderBag    = messagepkg.DecodeBag
	HeaderBagKey       = messagepkg.BagAttributeKey

	// Transform pipeline
	NewTransformRegistry = transformpkg.NewRegistry

	// Handler pipeline
	NewHandlerBuilder    = handlerpipelinepkg.NewBuilder
	NewHandlerDispatcher = handlerpipelinepkg.NewDispatcher

	// Registries
	NewSubscriberRegistry    = registrypkg.NewSubscriberRegistry
	NewProducerRegistry      = registrypkg.NewProducerRegistry
	NewPolicyRegistry        = registrypkg.NewPolicyRegistry
	NewDefaultPolicyRegistry = registrypkg.NewDefaultPolicyRegistry

	// Outbox / inbox
	NewInMemoryOutbox = outboxpkg.NewInMemory
	NewSQLOutboxStore = outboxpkg.NewSQLStore
	NewInMemoryInbox  = inboxpkg.NewInMemory
	NewStrictInbox    = inboxpkg.NewStrict

	// Mediator
	NewMediator = mediatorpkg.New

	// Pump
	NewPump          = pumppkg.New
	NewReactor       = pumppkg.NewReactor
	NewProactor      = pumppkg.NewProactor
	NewPoisonMetrics = pumppkg.NewPoisonMetrics

	// Scheduler
	NewInMemoryScheduler    = schedulerpkg.NewInMemory
	NewSchedulerWorker      = schedulerpkg.NewWorker
	NewFireSchedulerRequest = schedulerpkg.NewFireSchedulerRequest

	// Command processor façade
	NewCommandProcessor = processorpkg.New

	// Job lifecycle hooks
	LoggingHooks  = processorpkg.LoggingHooks
	MetricsHooks  = processorpkg.MetricsHooks
	AlertingHooks = processorpkg.AlertingHooks

	// Dead-letter metrics
	NewDLQMetrics = dlqmetricspkg.New

	// Reactor introspection
	NewIntrospectHandler = introspectpkg.NewHandler

	// Dispatch error taxonomy
	NewCoreConfigurationError  = errspkg.NewConfigurationError
	NewCoreMessageMappingError = errspkg.NewMessageMappingError
	NewCoreDeferMessageAction  = errspkg.NewDeferMessageAction
	NewCoreChannelFailure      = errspkg.NewChannelFailure
	NewCoreOnceOnlyViolation   = errspkg.NewOnceOnlyViolation
	NewCoreRequestNotFound     = errspkg.NewRequestNotFound
	NewCoreAggregateError      = errspkg.NewAggregateError
	CoreCircuitOpen            = errspkg.CircuitOpen
	IsCoreCircuitOpen          = errspkg.IsCircuitOpen

	// Transport adapter
	NewAdapterProducer   = transportadapterpkg.NewProducer
	NewAdapterChannel    = transportadapterpkg.NewChannel
	BuildAdapter         = transportadapterpkg.Build
	ToWatermillMessage   = transportadapterpkg.ToWatermill
	FromWatermillMessage = transportadapterpkg.FromWatermill
)

// NewJSONMapper builds a JSONMapper for requestType, wrapping messages
// addressed to routingKey as msgType. Re-exported as a plain function
// (rather than a var alias) since Go cannot alias a generic function value
// without instantiating it first.
func NewJSONMapper[T any](requestType, routingKey string, msgType MessageKind, toRequest func(RequestBase, T) Request, toPayload func(Request) T) (*JSONMapper[T], error) {
	return transformpkg.NewJSONMapper(requestType, routingKey, msgType, toRequest, toPayload)
}

// NewProtoMapper builds a ProtoMapper for requestType around prototype.
func NewProtoMapper[T proto.Message](requestType, routingKey string, msgType MessageKind, prototype T, toRequest func(RequestBase, T) Request, toPayload func(Request) T) (*ProtoMapper[T], error) {
	return transformpkg.NewProtoMapper(requestType, routingKey, msgType, prototype, toRequest, toPayload)
}

// NewCloudEventsTransform builds a transform that stamps CloudEvents
// envelope attributes, ordered at step among a request type's other
// transforms.
func NewCloudEventsTransform(source string, step int) *CloudEventsTransform {
	return transformpkg.NewCloudEventsTransform(source, step)
}
