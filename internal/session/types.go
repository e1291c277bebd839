// Package session implements the top-level session state machine: the
// single driver thread that resolves a host, optionally registers,
// connects and handshakes Takion, sends the launch spec, opens Ctrl,
// and streams until stopped or a fatal error occurs.
package session

// Platform identifies the target console generation.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformPS4
	PlatformPS5
)

// Codec identifies the negotiated video codec.
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
	CodecH265HDR
)

// VideoProfile describes the requested stream parameters.
type VideoProfile struct {
	Width   int
	Height  int
	MaxFPS  int
	Bitrate int
	Codec   Codec
}

// ConnectInfo is everything a Session needs to start: target identity,
// credentials, and stream preferences.
type ConnectInfo struct {
	Platform        Platform
	Host            string
	RegistKey       [16]byte
	Morning         [16]byte
	LoginPIN        []byte // optional; nil if not yet known
	Profile         VideoProfile
	EnableKeyboard  bool
	EnableDualsense bool
	PSNAccountID    [8]byte
}

// State is a position in the session driver's state machine.
type State int

const (
	StateInit State = iota
	StateLookingUp
	StateConnectingTakion
	StateSendingHello
	StateRegistering
	StateStreaming
	StateStopping
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLookingUp:
		return "looking_up"
	case StateConnectingTakion:
		return "connecting_takion"
	case StateSendingHello:
		return "sending_hello"
	case StateRegistering:
		return "registering"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// QuitReason explains why a Session's driver thread exited.
type QuitReason int

const (
	QuitUnknown QuitReason = iota
	QuitStopped
	QuitSessionRequestFailed
	QuitCtrlFailed
	QuitStreamConnectionFailed
	QuitSystemVersionMismatch
	QuitHostUnreachable
	QuitAuthFailed
	QuitPSPlusRequired
)

func (q QuitReason) String() string {
	switch q {
	case QuitStopped:
		return "stopped"
	case QuitSessionRequestFailed:
		return "session_request_failed"
	case QuitCtrlFailed:
		return "ctrl_failed"
	case QuitStreamConnectionFailed:
		return "stream_connection_failed"
	case QuitSystemVersionMismatch:
		return "system_version_mismatch"
	case QuitHostUnreachable:
		return "host_unreachable"
	case QuitAuthFailed:
		return "auth_failed"
	case QuitPSPlusRequired:
		return "ps_plus_required"
	default:
		return "unknown"
	}
}
