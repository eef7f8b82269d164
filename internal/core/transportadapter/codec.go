// Package transportadapter wraps the watermill-based broker transports
// under transport/ so the ten broker bindings registered there (channel,
// kafka, rabbitmq, nats, jetstream, aws, sqlite, postgres, io, http) can
// back the core registry.Producer and pump.Channel contracts instead of
// sitting unreachable behind the teacher's original runtime.Transport
// wiring.
package transportadapter

import (
	"fmt"
	"strconv"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// Metadata keys used to round-trip the parts of message.Header a watermill
// message can't carry as first-class fields. MessageID and RoutingKey are
// not included: MessageID maps to the watermill message's own UUID field,
// and RoutingKey is the pub/sub topic the adapter is already bound to.
const (
	metaMessageType   = "dispatchflow_message_type"
	metaTimestamp     = "dispatchflow_timestamp"
	metaCorrelationID = "dispatchflow_correlation_id"
	metaReplyTo       = "dispatchflow_reply_to"
	metaContentType   = "dispatchflow_content_type"
	metaHandledCount  = "dispatchflow_handled_count"
	metaPartitionKey  = "dispatchflow_partition_key"
	metaSource        = "dispatchflow_source"
	metaCEType        = "dispatchflow_ce_type"
	metaSpecVersion   = "dispatchflow_spec_version"
	metaDataSchema    = "dispatchflow_data_schema"
	metaSubject       = "dispatchflow_subject"
)

var messageTypeNames = map[messagepkg.Type]string{
	messagepkg.None:         "NONE",
	messagepkg.Command:      "COMMAND",
	messagepkg.Event:        "EVENT",
	messagepkg.Document:     "DOCUMENT",
	messagepkg.Quit:         "QUIT",
	messagepkg.Unacceptable: "UNACCEPTABLE",
}

var messageTypeValues = func() map[string]messagepkg.Type {
	out := make(map[string]messagepkg.Type, len(messageTypeNames))
	for v, name := range messageTypeNames {
		out[name] = v
	}
	return out
}()

// ToWatermill converts a core Message into the watermill wire format a
// transport.Transport's Publisher accepts. The message's own id becomes
// the watermill message UUID; everything else in Header is folded into
// Metadata, with the unrecognised bag carried as a single JSON attribute
// (message.EncodeBag) the same way other transports in the pack encode
// out-of-band metadata.
func ToWatermill(msg messagepkg.Message) (*wmmessage.Message, error) {
	wm := wmmessage.NewMessage(msg.Header.MessageID, wmmessage.Payload(msg.Body.Bytes))

	wm.Metadata.Set(metaMessageType, messageTypeNames[msg.Header.MessageType])
	wm.Metadata.Set(metaTimestamp, msg.Header.Timestamp.Format(time.RFC3339Nano))
	wm.Metadata.Set(metaCorrelationID, msg.Header.CorrelationID)
	wm.Metadata.Set(metaReplyTo, msg.Header.ReplyTo)
	wm.Metadata.Set(metaHandledCount, strconv.Itoa(msg.Header.HandledCount))
	wm.Metadata.Set(metaPartitionKey, msg.Header.PartitionKey)
	wm.Metadata.Set(metaSource, msg.Header.Source)
	wm.Metadata.Set(metaCEType, msg.Header.CEType)
	wm.Metadata.Set(metaSpecVersion, msg.Header.SpecVersion)
	wm.Metadata.Set(metaDataSchema, msg.Header.DataSchema)
	wm.Metadata.Set(metaSubject, msg.Header.Subject)

	contentType := msg.Body.ContentType
	if contentType == "" {
		contentType = msg.Header.ContentType
	}
	wm.Metadata.Set(metaContentType, contentType)

	bag, err := messagepkg.EncodeBag(msg.Header.Bag)
	if err != nil {
		return nil, fmt.Errorf("transportadapter: encode bag: %w", err)
	}
	if bag != "" {
		wm.Metadata.Set(messagepkg.BagAttributeKey(), bag)
	}

	return wm, nil
}

// FromWatermill reverses ToWatermill, reconstructing the core Message a
// pump's Channel should deliver. routingKey is supplied by the caller
// because a watermill Subscriber only ever yields messages for the topic it
// was subscribed to; it isn't itself a wire field.
func FromWatermill(routingKey string, wm *wmmessage.Message) (messagepkg.Message, error) {
	bag, err := messagepkg.DecodeBag(wm.Metadata.Get(messagepkg.BagAttributeKey()))
	if err != nil {
		return messagepkg.Message{}, fmt.Errorf("transportadapter: decode bag: %w", err)
	}

	timestamp := time.Now().UTC()
	if raw := wm.Metadata.Get(metaTimestamp); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			timestamp = parsed
		}
	}

	handledCount := 0
	if raw := wm.Metadata.Get(metaHandledCount); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			handledCount = parsed
		}
	}

	msgType, ok := messageTypeValues[wm.Metadata.Get(metaMessageType)]
	if !ok {
		msgType = messagepkg.Unacceptable
	}

	return messagepkg.Message{
		Header: messagepkg.Header{
			MessageID:     wm.UUID,
			RoutingKey:    routingKey,
			MessageType:   msgType,
			Timestamp:     timestamp,
			CorrelationID: wm.Metadata.Get(metaCorrelationID),
			ReplyTo:       wm.Metadata.Get(metaReplyTo),
			ContentType:   wm.Metadata.Get(metaContentType),
			HandledCount:  handledCount,
			PartitionKey:  wm.Metadata.Get(metaPartitionKey),
			Bag:           bag,
			Source:        wm.Metadata.Get(metaSource),
			CEType:        wm.Metadata.Get(metaCEType),
			SpecVersion:   wm.Metadata.Get(metaSpecVersion),
			DataSchema:    wm.Metadata.Get(metaDataSchema),
			Subject:       wm.Metadata.Get(metaSubject),
		},
		Body: messagepkg.Body{
			Bytes:       []byte(wm.Payload),
			ContentType: wm.Metadata.Get(metaContentType),
		},
	}, nil
}
