package rudp

import "encoding/binary"

// MessageType identifies an RUDP message's purpose.
type MessageType uint16

const (
	InitRequest MessageType = iota
	InitResponse
	CookieRequest
	CookieResponse
	SessionMessage
	StreamConnectionSwitchAck
	Ack
	CtrlMessage
	Unknown
	Finish
)

func (t MessageType) String() string {
	switch t {
	case InitRequest:
		return "Init Request"
	case InitResponse:
		return "Init Response"
	case CookieRequest:
		return "Cookie Request"
	case CookieResponse:
		return "Cookie Response"
	case SessionMessage:
		return "Session Message"
	case StreamConnectionSwitchAck:
		return "Takion Switch Ack"
	case Ack:
		return "Ack"
	case CtrlMessage:
		return "Ctrl Message"
	case Unknown:
		return "Unknown"
	case Finish:
		return "Finish"
	default:
		return "Undefined"
	}
}

// rudpConstant is the fixed magic value every frame header carries.
const rudpConstant = 0x244F244F

// Message is one RUDP frame, optionally carrying one nested sub-message
// (the length field's high nibble is reserved and ignored on parse).
type Message struct {
	Size        uint16
	Type        MessageType
	Data        []byte
	SubMessage  *Message
}

// Serialize appends the wire encoding of m (and any sub-message) to
// dst, returning the extended slice. Frame layout: size_be16 |
// constant(0x244F244F)_be32 | type_be16 | payload.
func Serialize(dst []byte, m *Message) []byte {
	header := make([]byte, 8)
	binary.BigEndian.PutUint16(header[0:], m.Size)
	binary.BigEndian.PutUint32(header[2:], rudpConstant)
	binary.BigEndian.PutUint16(header[6:], uint16(m.Type))
	dst = append(dst, header...)
	dst = append(dst, m.Data...)
	if m.SubMessage != nil {
		dst = Serialize(dst, m.SubMessage)
	}
	return dst
}

// Parse decodes one frame (and any nested sub-message) from buf.
// The size field's high nibble is masked off before use, matching the
// source's reserved-bits handling.
func Parse(buf []byte) (*Message, error) {
	if len(buf) < 8 {
		return nil, errShortBuffer
	}
	lengthMasked := buf[0] & 0x0f
	length := binary.BigEndian.Uint16([]byte{lengthMasked, buf[1]})
	msgType := MessageType(binary.BigEndian.Uint16(buf[6:8]))

	m := &Message{Size: binary.BigEndian.Uint16(buf[0:2]), Type: msgType}

	remaining := len(buf) - 8
	dataLeft := 0
	if length > 8 {
		dataLeft = int(length) - 8
		if dataLeft > remaining {
			dataLeft = remaining
		}
		m.Data = append([]byte(nil), buf[8:8+dataLeft]...)
	}

	remaining -= dataLeft
	if remaining >= 8 {
		sub, err := Parse(buf[8+dataLeft:])
		if err != nil {
			return nil, err
		}
		m.SubMessage = sub
	}
	return m, nil
}
