package trace

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes events as canonical CBOR. Equal event lists encode to
// equal bytes.
func Marshal(events []Event) ([]byte, error) {
	return encMode.Marshal(events)
}

// Unmarshal decodes events written by Marshal.
func Unmarshal(data []byte) ([]Event, error) {
	var events []Event
	if err := cbor.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("trace: unmarshal events: %w", err)
	}
	return events, nil
}
