package wire

import "github.com/lattice-trading/hft-gateway/pkg/serial"

var _ serial.Serializable[*Message] = (*Message)(nil)

// Serialize encodes the message into its wire representation.
func (m *Message) Serialize() ([]byte, error) {
	return Encode(m), nil
}

// Deserialize replaces m's fields with the message decoded from b.
// Trailing bytes beyond the frame are ignored, matching the codec's
// "consume exactly what is needed" contract.
func (m *Message) Deserialize(b []byte) error {
	decoded, _, err := Decode(b)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}
