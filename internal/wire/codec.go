package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	headerSize = 1 + 1 + 8 + 8 + 8 // type + priority + sequence + timestamp + client_id

	minFrameHeartbeat  = 26
	minFrameOrder      = 50
	minFrameMarketData = 50
	minFrameError      = 30

	maxStringLen = 255
)

// DecodeErrorKind distinguishes the ways a frame can fail to decode.
type DecodeErrorKind uint8

const (
	Truncated DecodeErrorKind = iota
	UnknownType
)

// DecodeError reports why Decode could not produce a Message. It never
// indicates a panic: Decode is total over all byte strings.
type DecodeError struct {
	Kind DecodeErrorKind
	Type byte
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnknownType:
		return fmt.Sprintf("wire: unknown message type %d", e.Type)
	default:
		return "wire: truncated frame"
	}
}

// Encode serializes m into its wire representation. It never returns an
// error: callers are expected to construct valid Messages via the
// package's body types.
func Encode(m *Message) []byte {
	var body []byte
	switch {
	case m.Kind.IsOrder():
		body = encodeOrderBody(m.Order)
	case m.Kind == KindMarketData:
		body = encodeMarketDataBody(m.MarketData)
	case m.Kind == KindHeartbeat:
		body = nil
	case m.Kind == KindError:
		body = encodeErrorBody(m.Error)
	}

	buf := make([]byte, headerSize+len(body))
	buf[0] = byte(m.Kind)
	buf[1] = byte(m.Priority)
	binary.LittleEndian.PutUint64(buf[2:10], m.Sequence)
	binary.LittleEndian.PutUint64(buf[10:18], m.TimestampUs)
	binary.LittleEndian.PutUint64(buf[18:26], m.ClientID)
	copy(buf[26:], body)
	return buf
}

// Decode parses a single frame from the front of b. It returns the
// decoded Message and the number of bytes consumed, or a *DecodeError.
// Decode never panics, regardless of the contents of b.
func Decode(b []byte) (*Message, int, error) {
	if len(b) < headerSize {
		return nil, 0, &DecodeError{Kind: Truncated}
	}

	kind := Kind(b[0])
	m := &Message{
		Kind:        kind,
		Priority:    Priority(b[1]),
		Sequence:    binary.LittleEndian.Uint64(b[2:10]),
		TimestampUs: binary.LittleEndian.Uint64(b[10:18]),
		ClientID:    binary.LittleEndian.Uint64(b[18:26]),
	}

	switch {
	case kind.IsOrder():
		if len(b) < minFrameOrder {
			return nil, 0, &DecodeError{Kind: Truncated}
		}
		body, n, err := decodeOrderBody(b[headerSize:])
		if err != nil {
			return nil, 0, err
		}
		m.Order = body
		return m, headerSize + n, nil

	case kind == KindMarketData:
		if len(b) < minFrameMarketData {
			return nil, 0, &DecodeError{Kind: Truncated}
		}
		body, n, err := decodeMarketDataBody(b[headerSize:])
		if err != nil {
			return nil, 0, err
		}
		m.MarketData = body
		return m, headerSize + n, nil

	case kind == KindHeartbeat:
		if len(b) < minFrameHeartbeat {
			return nil, 0, &DecodeError{Kind: Truncated}
		}
		m.Heartbeat = &HeartbeatBody{}
		return m, headerSize, nil

	case kind == KindError:
		if len(b) < minFrameError {
			return nil, 0, &DecodeError{Kind: Truncated}
		}
		body, n, err := decodeErrorBody(b[headerSize:])
		if err != nil {
			return nil, 0, err
		}
		m.Error = body
		return m, headerSize + n, nil

	case kind == KindLogin || kind == KindLogout:
		// Header-only control messages, like Heartbeat.
		if len(b) < minFrameHeartbeat {
			return nil, 0, &DecodeError{Kind: Truncated}
		}
		return m, headerSize, nil

	default:
		return nil, 0, &DecodeError{Kind: UnknownType, Type: b[0]}
	}
}

func encodeOrderBody(o *OrderBody) []byte {
	symbol := []byte(o.Symbol)
	if len(symbol) > maxStringLen {
		symbol = symbol[:maxStringLen]
	}
	buf := make([]byte, 8+1+len(symbol)+8+4+1)
	i := 0
	binary.LittleEndian.PutUint64(buf[i:i+8], o.OrderID)
	i += 8
	buf[i] = byte(len(symbol))
	i++
	copy(buf[i:], symbol)
	i += len(symbol)
	binary.LittleEndian.PutUint64(buf[i:i+8], math.Float64bits(o.Price))
	i += 8
	binary.LittleEndian.PutUint32(buf[i:i+4], o.Quantity)
	i += 4
	if o.IsBuy {
		buf[i] = 1
	}
	return buf
}

func decodeOrderBody(b []byte) (*OrderBody, int, error) {
	if len(b) < 8+1 {
		return nil, 0, &DecodeError{Kind: Truncated}
	}
	orderID := binary.LittleEndian.Uint64(b[0:8])
	symLen := int(b[8])
	i := 9
	if len(b) < i+symLen+8+4+1 {
		return nil, 0, &DecodeError{Kind: Truncated}
	}
	symbol := string(b[i : i+symLen])
	i += symLen
	price := math.Float64frombits(binary.LittleEndian.Uint64(b[i : i+8]))
	i += 8
	quantity := binary.LittleEndian.Uint32(b[i : i+4])
	i += 4
	isBuy := b[i] != 0
	i++
	return &OrderBody{
		OrderID:  orderID,
		Symbol:   symbol,
		Price:    price,
		Quantity: quantity,
		IsBuy:    isBuy,
	}, i, nil
}

func encodeMarketDataBody(md *MarketDataBody) []byte {
	symbol := []byte(md.Symbol)
	if len(symbol) > maxStringLen {
		symbol = symbol[:maxStringLen]
	}
	buf := make([]byte, 1+len(symbol)+8+8+4+4)
	i := 0
	buf[i] = byte(len(symbol))
	i++
	copy(buf[i:], symbol)
	i += len(symbol)
	binary.LittleEndian.PutUint64(buf[i:i+8], math.Float64bits(md.Bid))
	i += 8
	binary.LittleEndian.PutUint64(buf[i:i+8], math.Float64bits(md.Ask))
	i += 8
	binary.LittleEndian.PutUint32(buf[i:i+4], md.BidSize)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:i+4], md.AskSize)
	return buf
}

func decodeMarketDataBody(b []byte) (*MarketDataBody, int, error) {
	if len(b) < 1 {
		return nil, 0, &DecodeError{Kind: Truncated}
	}
	symLen := int(b[0])
	i := 1
	if len(b) < i+symLen+8+8+4+4 {
		return nil, 0, &DecodeError{Kind: Truncated}
	}
	symbol := string(b[i : i+symLen])
	i += symLen
	bid := math.Float64frombits(binary.LittleEndian.Uint64(b[i : i+8]))
	i += 8
	ask := math.Float64frombits(binary.LittleEndian.Uint64(b[i : i+8]))
	i += 8
	bidSize := binary.LittleEndian.Uint32(b[i : i+4])
	i += 4
	askSize := binary.LittleEndian.Uint32(b[i : i+4])
	i += 4
	return &MarketDataBody{
		Symbol:  symbol,
		Bid:     bid,
		Ask:     ask,
		BidSize: bidSize,
		AskSize: askSize,
	}, i, nil
}

func encodeErrorBody(e *ErrorBody) []byte {
	msg := []byte(e.ErrorMessage)
	if len(msg) > maxStringLen {
		msg = msg[:maxStringLen]
	}
	buf := make([]byte, 4+1+len(msg))
	i := 0
	binary.LittleEndian.PutUint32(buf[i:i+4], e.ErrorCode)
	i += 4
	buf[i] = byte(len(msg))
	i++
	copy(buf[i:], msg)
	return buf
}

func decodeErrorBody(b []byte) (*ErrorBody, int, error) {
	if len(b) < 4+1 {
		return nil, 0, &DecodeError{Kind: Truncated}
	}
	code := binary.LittleEndian.Uint32(b[0:4])
	msgLen := int(b[4])
	i := 5
	if len(b) < i+msgLen {
		return nil, 0, &DecodeError{Kind: Truncated}
	}
	msg := string(b[i : i+msgLen])
	i += msgLen
	return &ErrorBody{
		ErrorCode:    code,
		ErrorMessage: msg,
	}, i, nil
}
