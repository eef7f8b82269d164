package message

import (
	"fmt"

	jsoncodec "github.com/flowmesh/dispatchflow/internal/runtime/jsoncodec"
)

// bagAttributeKey is the broker-native attribute used to carry the
// unrecognised header set as a single JSON-encoded value, grounded on the
// envelope pattern of JSON-encoding arbitrary headers when the underlying
// transport doesn't support out-of-band metadata per entry.
const bagAttributeKey = "dispatchflow_bag"

// EncodeBag JSON-encodes the Bag for transports that only carry a single
// opaque attribute out of band (see spec §6, "Wire envelope").
func EncodeBag(bag map[string]string) (string, error) {
	if len(bag) == 0 {
		return "", nil
	}
	encoded, err := jsoncodec.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("dispatchflow: encode header bag: %w", err)
	}
	return string(encoded), nil
}

// DecodeBag reverses EncodeBag. An empty input decodes to an empty, non-nil
// map so callers can safely range over the result.
func DecodeBag(encoded string) (map[string]string, error) {
	bag := make(map[string]string)
	if encoded == "" {
		return bag, nil
	}
	if err := jsoncodec.Unmarshal([]byte(encoded), &bag); err != nil {
		return nil, fmt.Errorf("dispatchflow: decode header bag: %w", err)
	}
	return bag, nil
}

// BagAttributeKey exposes the attribute name transports should use to store
// the encoded bag, so transport adapters agree with EncodeBag/DecodeBag.
func BagAttributeKey() string { return bagAttributeKey }
