package feedback

import (
	"encoding/binary"
	"math"

	"github.com/duskline/rpcore/internal/errs"
)

const (
	gyroMin, gyroMax   = -30.0, 30.0
	accelMin, accelMax = -5.0, 5.0

	sqrtHalf = math.Sqrt2 / 2

	// StateV9Size is the length in bytes of the v9 wire encoding.
	StateV9Size = 0x19
	// StateV12Size is the length in bytes of the v12 wire encoding.
	StateV12Size = 0x1c
)

func scaleUint16(v, min, max float32) uint16 {
	return uint16(0xffff * (v - min) / (max - min))
}

// compressQuat packs a unit quaternion (x, y, z, w) into 32 bits using
// smallest-three compression: the largest-magnitude component's index
// and sign are stored in 3 bits, the remaining three components each
// quantized to 9 bits over [-√½, √½].
func compressQuat(q [4]float32) uint32 {
	largest := 0
	for i := 1; i < 4; i++ {
		if abs32(q[i]) > abs32(q[largest]) {
			largest = i
		}
	}
	sign := uint32(0)
	if q[largest] < 0 {
		sign = 1
	}
	r := sign | uint32(largest)<<1

	half := float32(sqrtHalf)
	for i := 0; i < 3; i++ {
		qi := i
		if i >= largest {
			qi = i + 1
		}
		v := q[qi]
		if v < -half {
			v = -half
		}
		if v > half {
			v = half
		}
		v += half
		v *= float32(0x1ff) / (2.0 * half)
		r |= uint32(v) << (3 + i*9)
	}
	return r
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// EncodeStateV9 writes the v9 wire encoding of state into buf, which
// must be at least StateV9Size bytes.
func EncodeStateV9(buf []byte, state ControllerState) {
	_ = buf[StateV9Size-1]
	buf[0x0] = 0xa0

	v := scaleUint16(state.GyroX, gyroMin, gyroMax)
	buf[0x1], buf[0x2] = byte(v), byte(v>>8)
	v = scaleUint16(state.GyroY, gyroMin, gyroMax)
	buf[0x3], buf[0x4] = byte(v), byte(v>>8)
	v = scaleUint16(state.GyroZ, gyroMin, gyroMax)
	buf[0x5], buf[0x6] = byte(v), byte(v>>8)
	v = scaleUint16(state.AccelX, accelMin, accelMax)
	buf[0x7], buf[0x8] = byte(v), byte(v>>8)
	v = scaleUint16(state.AccelY, accelMin, accelMax)
	buf[0x9], buf[0xa] = byte(v), byte(v>>8)
	v = scaleUint16(state.AccelZ, accelMin, accelMax)
	buf[0xb], buf[0xc] = byte(v), byte(v>>8)

	qc := compressQuat([4]float32{state.OrientX, state.OrientY, state.OrientZ, state.OrientW})
	buf[0xd] = byte(qc)
	buf[0xe] = byte(qc >> 0x8)
	buf[0xf] = byte(qc >> 0x10)
	buf[0x10] = byte(qc >> 0x18)

	binary.BigEndian.PutUint16(buf[0x11:], uint16(state.LeftX))
	binary.BigEndian.PutUint16(buf[0x13:], uint16(state.LeftY))
	binary.BigEndian.PutUint16(buf[0x15:], uint16(state.RightX))
	binary.BigEndian.PutUint16(buf[0x17:], uint16(state.RightY))
}

// EncodeStateV12 writes the v12 wire encoding (v9 plus a trailing
// DualSense flag byte) into buf, which must be at least StateV12Size
// bytes.
func EncodeStateV12(buf []byte, state ControllerState, enableDualsense bool) {
	_ = buf[StateV12Size-1]
	EncodeStateV9(buf, state)
	buf[0x19] = 0x0
	buf[0x1a] = 0x0
	if enableDualsense {
		buf[0x1b] = 0x0
	} else {
		buf[0x1b] = 0x1
	}
}

// HistoryEvent is a single button or touch history event, 2-5 bytes.
type HistoryEvent struct {
	Buf [5]byte
	Len int
}

// SetButton fills event with the opcode sequence for a button edge.
// Some buttons pack an explicit state byte; the rest are implied by
// distinct press/release opcodes.
func SetButton(event *HistoryEvent, button Button, state uint8) error {
	event.Buf[0] = 0x80
	event.Len = 2
	switch button {
	case ButtonCross:
		event.Buf[1] = 0x88
	case ButtonMoon:
		event.Buf[1] = 0x89
	case ButtonBox:
		event.Buf[1] = 0x8a
	case ButtonPyramid:
		event.Buf[1] = 0x8b
	case ButtonDpadLeft:
		event.Buf[1] = 0x82
	case ButtonDpadRight:
		event.Buf[1] = 0x83
	case ButtonDpadUp:
		event.Buf[1] = 0x80
	case ButtonDpadDown:
		event.Buf[1] = 0x81
	case ButtonL1:
		event.Buf[1] = 0x84
	case ButtonR1:
		event.Buf[1] = 0x85
	case ButtonAnalogL2:
		event.Buf[1] = 0x86
	case ButtonAnalogR2:
		event.Buf[1] = 0x87
	case ButtonL3:
		event.Buf[1] = stateByte(state, 0xaf, 0x8f)
		return nil
	case ButtonR3:
		event.Buf[1] = stateByte(state, 0xb0, 0x90)
		return nil
	case ButtonOptions:
		event.Buf[1] = stateByte(state, 0xac, 0x8c)
		return nil
	case ButtonShare:
		event.Buf[1] = stateByte(state, 0xad, 0x8d)
		return nil
	case ButtonTouchpad:
		event.Buf[1] = stateByte(state, 0xb1, 0x91)
		return nil
	case ButtonPS:
		event.Buf[1] = stateByte(state, 0xae, 0x8e)
		return nil
	default:
		return errs.New(errs.InvalidData, "feedback.set_button", nil)
	}
	event.Buf[2] = state
	event.Len = 3
	return nil
}

func stateByte(state uint8, onOpcode, offOpcode byte) byte {
	if state != 0 {
		return onOpcode
	}
	return offOpcode
}

// SetTouchpad fills event with a touch-down or touch-up opcode.
func SetTouchpad(event *HistoryEvent, down bool, pointerID uint8, x, y uint16) {
	event.Len = 5
	if down {
		event.Buf[0] = 0xd0
	} else {
		event.Buf[0] = 0xc0
	}
	event.Buf[1] = pointerID & 0x7f
	event.Buf[2] = byte(x >> 4)
	event.Buf[3] = byte((x&0xf)<<4) | byte(y>>8)
	event.Buf[4] = byte(y)
}
