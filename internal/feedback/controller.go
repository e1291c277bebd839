// Package feedback encodes controller/IMU snapshots and button/touch
// history events into the exact wire formats the console expects, and
// buffers history events in a ring with newest-first serialization.
package feedback

// Button identifies a discrete controller input reported via history events.
type Button uint64

const (
	ButtonCross Button = iota
	ButtonMoon
	ButtonBox
	ButtonPyramid
	ButtonDpadLeft
	ButtonDpadRight
	ButtonDpadUp
	ButtonDpadDown
	ButtonL1
	ButtonR1
	ButtonAnalogL2
	ButtonAnalogR2
	ButtonL3
	ButtonR3
	ButtonOptions
	ButtonShare
	ButtonTouchpad
	ButtonPS
)

// TouchesMax is the number of simultaneous touch points tracked.
const TouchesMax = 2

// Touch is one active touch point; ID < 0 means the slot is free.
type Touch struct {
	ID   int8
	X, Y uint16
}

// ControllerState is the full input snapshot sent upstream: buttons,
// analog triggers/sticks, touches, and fused IMU orientation.
type ControllerState struct {
	Buttons uint64
	L2State uint8
	R2State uint8

	LeftX, LeftY   int16
	RightX, RightY int16

	TouchIDNext uint8
	Touches     [TouchesMax]Touch

	GyroX, GyroY, GyroZ    float32
	AccelX, AccelY, AccelZ float32
	OrientX, OrientY, OrientZ, OrientW float32
}

// Idle returns a ControllerState at rest: no input, touches released,
// accelerometer pointing along Y, identity orientation.
func Idle() ControllerState {
	s := ControllerState{AccelY: 1.0, OrientW: 1.0}
	for i := range s.Touches {
		s.Touches[i].ID = -1
	}
	return s
}

// StartTouch allocates the first free touch slot, assigning the next
// monotonic (mod 0x80) touch id. Returns -1 if no slot is free.
func (s *ControllerState) StartTouch(x, y uint16) int8 {
	for i := range s.Touches {
		if s.Touches[i].ID < 0 {
			id := int8(s.TouchIDNext)
			s.Touches[i].ID = id
			s.TouchIDNext = (s.TouchIDNext + 1) & 0x7f
			s.Touches[i].X = x
			s.Touches[i].Y = y
			return id
		}
	}
	return -1
}

// StopTouch releases the touch slot holding id, if any.
func (s *ControllerState) StopTouch(id uint8) {
	for i := range s.Touches {
		if s.Touches[i].ID == int8(id) {
			s.Touches[i].ID = -1
			return
		}
	}
}

// SetTouchPos updates the position of an active touch.
func (s *ControllerState) SetTouchPos(id uint8, x, y uint16) {
	id &= 0x7f
	for i := range s.Touches {
		if s.Touches[i].ID == int8(id) {
			s.Touches[i].X = x
			s.Touches[i].Y = y
			return
		}
	}
}

const floatEq = 0.0000001

func floatEqual(a, b float32) bool {
	return !(a < b-floatEq || a > b+floatEq)
}

// Equal reports whether a and b carry the same input, ignoring touch
// slots that are inactive in both.
func Equal(a, b ControllerState) bool {
	if a.Buttons != b.Buttons || a.L2State != b.L2State || a.R2State != b.R2State ||
		a.LeftX != b.LeftX || a.LeftY != b.LeftY || a.RightX != b.RightX || a.RightY != b.RightY {
		return false
	}
	for i := range a.Touches {
		if a.Touches[i].ID != b.Touches[i].ID {
			return false
		}
		if a.Touches[i].ID >= 0 && (a.Touches[i].X != b.Touches[i].X || a.Touches[i].Y != b.Touches[i].Y) {
			return false
		}
	}
	return floatEqual(a.GyroX, b.GyroX) && floatEqual(a.GyroY, b.GyroY) && floatEqual(a.GyroZ, b.GyroZ) &&
		floatEqual(a.AccelX, b.AccelX) && floatEqual(a.AccelY, b.AccelY) && floatEqual(a.AccelZ, b.AccelZ) &&
		floatEqual(a.OrientX, b.OrientX) && floatEqual(a.OrientY, b.OrientY) &&
		floatEqual(a.OrientZ, b.OrientZ) && floatEqual(a.OrientW, b.OrientW)
}

func maxAbs16(a, b int16) int16 {
	av, bv := a, b
	if av < 0 {
		av = -av
	}
	if bv < 0 {
		bv = -bv
	}
	if av > bv {
		return a
	}
	return b
}

// Or merges two controller states for multi-source input (e.g. two
// physical pads feeding one virtual one): buttons OR, triggers/sticks
// take the larger-magnitude value, touches prefer a (then b).
func Or(a, b ControllerState) ControllerState {
	var out ControllerState
	out.Buttons = a.Buttons | b.Buttons
	if a.L2State > b.L2State {
		out.L2State = a.L2State
	} else {
		out.L2State = b.L2State
	}
	if a.R2State > b.R2State {
		out.R2State = a.R2State
	} else {
		out.R2State = b.R2State
	}
	out.LeftX = maxAbs16(a.LeftX, b.LeftX)
	out.LeftY = maxAbs16(a.LeftY, b.LeftY)
	out.RightX = maxAbs16(a.RightX, b.RightX)
	out.RightY = maxAbs16(a.RightY, b.RightY)

	for i := range out.Touches {
		var src *Touch
		switch {
		case a.Touches[i].ID >= 0:
			src = &a.Touches[i]
		case b.Touches[i].ID >= 0:
			src = &b.Touches[i]
		}
		if src == nil {
			out.Touches[i].ID = -1
			continue
		}
		out.Touches[i] = *src
	}
	return out
}
