package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sempicanha/commilink/internal/domain"
)

// ErrMalformed indicates a frame that decoded but fails shape
// validation for its declared type.
var ErrMalformed = errors.New("wire: malformed message")

// Encode serialises a message to its CBOR wire form.
func Encode(m *domain.Message) ([]byte, error) {
	return cbor.Marshal(m)
}

// Decode parses a CBOR frame and validates its shape. Unknown type
// tags decode without validation; callers forward them as-is.
func Decode(raw []byte) (*domain.Message, error) {
	var m domain.Message
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every field a message type requires is present.
func Validate(m *domain.Message) error {
	switch m.Type {
	case domain.TypeHello:
		if m.From == "" || len(m.Pub) == 0 {
			return fmt.Errorf("%w: HELLO needs from and pub", ErrMalformed)
		}
	case domain.TypeAccept:
		if m.From == "" || len(m.Pub) == 0 {
			return fmt.Errorf("%w: ACCEPT needs from and pub", ErrMalformed)
		}
	case domain.TypeEnc:
		if m.From == "" || m.MID == "" || len(m.Nonce) == 0 || len(m.Data) == 0 {
			return fmt.Errorf("%w: ENC needs from, mid, nonce and data", ErrMalformed)
		}
	case domain.TypeSubscribe:
		if m.From == "" || m.Room == "" {
			return fmt.Errorf("%w: SUBSCRIBE needs from and room", ErrMalformed)
		}
	case domain.TypeAck:
		if m.MID == "" || m.AckFor == "" {
			return fmt.Errorf("%w: ACK needs mid and ack_for", ErrMalformed)
		}
	case domain.TypeTombstone:
		if m.TargetMID == "" {
			return fmt.Errorf("%w: TOMBSTONE needs target_mid", ErrMalformed)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return nil
}
