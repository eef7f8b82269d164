// Package errs defines the error taxonomy shared by the handler pipeline,
// the outbox-producer mediator, and the message pump, in the style of the
// teacher runtime's internal/runtime/errors sentinels and
// internal/runtime/cloudevents typed errors.
package errs

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ConfigurationError reports a fatal, operator-fixable wiring mistake:
// a missing mapper, a missing handler, a mis-registered multiplicity, or a
// missing producer. It is never retried.
type ConfigurationError struct {
	Reason string
	Cause  error
}

func NewConfigurationError(reason string, cause error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Cause: cause}
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dispatchflow: configuration error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("dispatchflow: configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// MessageMappingError reports a wrap/unwrap failure. Pumps treat it as
// poison-pill containment (increment unacceptable-count, ack); the publish
// side lets it bubble to the caller.
type MessageMappingError struct {
	RequestType string
	Cause       error
}

func NewMessageMappingError(requestType string, cause error) *MessageMappingError {
	return &MessageMappingError{RequestType: requestType, Cause: cause}
}

func (e *MessageMappingError) Error() string {
	return fmt.Sprintf("dispatchflow: failed to map message for %s: %v", e.RequestType, e.Cause)
}

func (e *MessageMappingError) Unwrap() error { return e.Cause }

// DeferMessageAction is not an error in the usual sense but a control-flow
// signal a handler raises to request that the current message be requeued.
type DeferMessageAction struct {
	// Delay, if non-zero, asks the pump to carry the requeue with this
	// visibility delay when the broker supports it.
	Delay time.Duration
	Cause error
}

func NewDeferMessageAction(delay time.Duration, cause error) *DeferMessageAction {
	return &DeferMessageAction{Delay: delay, Cause: cause}
}

func (e *DeferMessageAction) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dispatchflow: defer message (delay %v): %v", e.Delay, e.Cause)
	}
	return fmt.Sprintf("dispatchflow: defer message (delay %v)", e.Delay)
}

func (e *DeferMessageAction) Unwrap() error { return e.Cause }

// CircuitOpen is wrapped by ChannelFailure when a resilience policy's
// circuit breaker refuses a call outright.
var CircuitOpen = errors.New("dispatchflow: circuit open")

// ChannelFailure reports a broker-level I/O error. It may wrap CircuitOpen;
// pumps and the mediator apply a backoff delay when they see one.
type ChannelFailure struct {
	Op    string
	Cause error
}

func NewChannelFailure(op string, cause error) *ChannelFailure {
	return &ChannelFailure{Op: op, Cause: cause}
}

func (e *ChannelFailure) Error() string {
	return fmt.Sprintf("dispatchflow: channel failure during %s: %v", e.Op, e.Cause)
}

func (e *ChannelFailure) Unwrap() error { return e.Cause }

// IsCircuitOpen reports whether err is, or wraps, CircuitOpen.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, CircuitOpen)
}

// OnceOnlyViolation reports an inbox duplicate when the inbox is configured
// to raise rather than silently swallow the repeat.
type OnceOnlyViolation struct {
	RequestID string
}

func NewOnceOnlyViolation(requestID string) *OnceOnlyViolation {
	return &OnceOnlyViolation{RequestID: requestID}
}

func (e *OnceOnlyViolation) Error() string {
	return fmt.Sprintf("dispatchflow: request %s already handled", e.RequestID)
}

// RequestNotFound reports an inbox/outbox read miss where a hit was
// required.
type RequestNotFound struct {
	ID string
}

func NewRequestNotFound(id string) *RequestNotFound {
	return &RequestNotFound{ID: id}
}

func (e *RequestNotFound) Error() string {
	return fmt.Sprintf("dispatchflow: not found: %s", e.ID)
}

// AggregateError collects the independent failures of a Publish fan-out, one
// inner error per failed handler chain. It is backed by
// hashicorp/go-multierror rather than a hand-rolled slice type so formatting
// and Unwrap (Go 1.20+ multi-unwrap) behave the way the rest of the pack's
// aggregate-error users expect.
type AggregateError struct {
	inner *multierror.Error
}

// NewAggregateError builds an AggregateError from the supplied inner errors,
// skipping any nils. Returns nil if every inner error is nil.
func NewAggregateError(inner ...error) *AggregateError {
	agg := &multierror.Error{}
	for _, err := range inner {
		if err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	if agg.Len() == 0 {
		return nil
	}
	return &AggregateError{inner: agg}
}

func (e *AggregateError) Error() string {
	if e == nil || e.inner == nil {
		return ""
	}
	return e.inner.Error()
}

// Errors returns the individual failures that were aggregated.
func (e *AggregateError) Errors() []error {
	if e == nil || e.inner == nil {
		return nil
	}
	return e.inner.Errors
}

// Unwrap exposes the inner errors for errors.Is/errors.As traversal.
func (e *AggregateError) Unwrap() []error {
	if e == nil || e.inner == nil {
		return nil
	}
	return e.inner.WrappedErrors()
}

// AsError returns e as an error interface, or a true nil interface (not a
// nil-pointer-in-an-interface) when e is nil — the safe way to return an
// AggregateError built from NewAggregateError directly as an error value.
func (e *AggregateError) AsError() error {
	if e == nil {
		return nil
	}
	return e
}

// Has reports whether any inner error matches target via errors.As.
func (e *AggregateError) Has(target any) bool {
	if e == nil {
		return false
	}
	for _, err := range e.Errors() {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
