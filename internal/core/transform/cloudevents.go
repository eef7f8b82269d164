package transform

import (
	"context"
	"strconv"

	ce "github.com/flowmesh/dispatchflow/internal/runtime/cloudevents"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// CloudEventsTransform stamps a message's CloudEvents v1.0 envelope
// attributes (already first-class fields on message.Header) and threads the
// teacher's pf_attempt/pf_correlation_id reliability extensions through the
// header bag, adapted from internal/runtime/cloudevents's pure Event type.
// It replaces the teacher's *Service-bound cloudevents_api.go: that file's
// PublishOption/toWatermillMessage machinery only made sense wired to the
// watermill router this module no longer uses, but the CloudEvents
// attribute model itself is reused as-is.
type CloudEventsTransform struct {
	source string
	step   int
}

// NewCloudEventsTransform builds a transform that stamps source as the
// CloudEvents "source" attribute for every message it wraps, ordered at
// step among a request type's other transforms.
func NewCloudEventsTransform(source string, step int) *CloudEventsTransform {
	return &CloudEventsTransform{source: source, step: step}
}

// Name implements Transform.
func (t *CloudEventsTransform) Name() string { return "cloudevents" }

// Step implements Transform.
func (t *CloudEventsTransform) Step() int { return t.step }

// Wrap stamps the envelope fields and records the attempt number (1-based,
// following Header.HandledCount) as the pf_attempt extension in the bag.
func (t *CloudEventsTransform) Wrap(ctx context.Context, m messagepkg.Message) (messagepkg.Message, error) {
	m.Header.Source = t.source
	if m.Header.SpecVersion == "" {
		m.Header.SpecVersion = ce.SpecVersion
	}
	if m.Header.CEType == "" {
		m.Header.CEType = m.Header.RoutingKey
	}

	evt := ce.NewWithID(m.Header.MessageID, m.Header.CEType, t.source, nil)
	ce.SetAttempt(&evt, m.Header.HandledCount+1)
	if m.Header.CorrelationID != "" {
		ce.SetCorrelationID(&evt, m.Header.CorrelationID)
	}

	m = m.WithBagValue(ce.ExtAttempt, strconv.Itoa(ce.GetAttempt(evt)))
	if corr := ce.GetCorrelationID(evt); corr != "" {
		m = m.WithBagValue(ce.ExtCorrelationID, corr)
	}
	return m, nil
}

// Unwrap reconciles the pf_attempt extension back into Header.HandledCount,
// so a redelivery the pump never saw as its own Requeue call (e.g. a
// broker-native redelivery) still counts against the requeue limit from
// spec §4.6, and backfills CorrelationID from pf_correlation_id when the
// transport didn't carry it as a first-class header.
func (t *CloudEventsTransform) Unwrap(ctx context.Context, m messagepkg.Message) (messagepkg.Message, error) {
	if raw, ok := m.Header.Bag[ce.ExtAttempt]; ok {
		if attempt, err := strconv.Atoi(raw); err == nil && attempt-1 > m.Header.HandledCount {
			m.Header.HandledCount = attempt - 1
		}
	}
	if m.Header.CorrelationID == "" {
		if corr, ok := m.Header.Bag[ce.ExtCorrelationID]; ok {
			m.Header.CorrelationID = corr
		}
	}
	return m, nil
}
