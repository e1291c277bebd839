package takion

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/hkdf"

	"github.com/duskline/rpcore/internal/bufpool"
	"github.com/duskline/rpcore/internal/errs"
	"github.com/duskline/rpcore/internal/logger"
	"github.com/duskline/rpcore/internal/rudp"
	"github.com/duskline/rpcore/internal/stoppipe"
)

const (
	initTimeout   = 5 * time.Second
	initMaxTries  = 5
	nonceSize     = 16
	sessionKeyLen = 16
)

// Keys holds the symmetric material derived from the handshake, ready
// to hand to the Ctrl channel's AES-GMAC layer.
type Keys struct {
	SessionKey []byte
}

// Endpoint is one Takion transport instance: a bound UDP socket plus
// the connect/handshake/established/closing lifecycle described in
// spec.md's Takion section.
type Endpoint struct {
	conn  *net.UDPConn
	pipe  *stoppipe.Pipe
	state ConnState
	log   *slog.Logger

	morning []byte // session-level root key, from ConnectInfo

	Reliable *ReliableChannel

	// ReassemblerVideo/Audio/Mic are independent per spec's per-type
	// reassembly window: frame_index is only monotonic within a single
	// channel, so video, audio, and mic frames cannot share one
	// frames map without index collisions.
	ReassemblerVideo *Reassembler
	ReassemblerAudio *Reassembler
	ReassemblerMic   *Reassembler
	pool             *bufpool.Pool

	Keys Keys

	// OnControlData receives the payload of every PacketControl
	// datagram (header stripped), in arrival order. Set before Connect
	// returns to avoid missing the first few packets.
	OnControlData func([]byte)

	recvDone chan struct{}
}

// NewEndpoint constructs an Endpoint bound to a local UDP socket, not
// yet connected. morning is the 16-byte ConnectInfo root key used to
// derive the session key during handshake. reg may be nil to skip
// metrics registration (e.g. in unit tests).
func NewEndpoint(morning []byte, pool *bufpool.Pool, reg prometheus.Registerer) *Endpoint {
	e := &Endpoint{
		pipe:    stoppipe.New(),
		state:   StateClosed,
		morning: morning,
		pool:    pool,
		log:     logger.Logger().With("transport", "takion"),
	}
	e.Reliable = NewReliableChannel(e.sendRaw, reg)

	fecRecoveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rpcore_takion_fec_recoveries_total", Help: "Frames reconstructed from parity units after data-unit loss.",
	}, []string{"channel"})
	if reg != nil {
		reg.MustRegister(fecRecoveries)
	}
	e.ReassemblerVideo = NewReassembler(2, 1, 2*time.Second, fecRecoveries.WithLabelValues("video"))
	e.ReassemblerAudio = NewReassembler(2, 1, 2*time.Second, fecRecoveries.WithLabelValues("audio"))
	e.ReassemblerMic = NewReassembler(2, 1, 2*time.Second, fecRecoveries.WithLabelValues("mic"))
	return e
}

// sendRaw wraps buf in a ControlHeader carrying seq (the Reliable
// sub-channel's own sequence number, reusing the GMAC/KeyPos-bearing
// header purely as framing since Ctrl authenticates its payload
// independently) and writes the framed packet to the socket. Both
// first sends and ReliableChannel's retransmits flow through here.
func (e *Endpoint) sendRaw(seq uint32, buf []byte) {
	if e.conn == nil {
		return
	}
	framed := make([]byte, ControlHeaderSize+len(buf))
	EncodeControlHeader(framed, ControlHeader{Seq: seq})
	copy(framed[ControlHeaderSize:], buf)
	_, _ = e.conn.Write(framed)
}

// SendUnreliable writes an already-framed data-channel packet (audio,
// video, mic, or feedback) directly to the socket with no retry or
// sequencing, matching the unreliable delivery spec.md describes for
// those channels.
func (e *Endpoint) SendUnreliable(buf []byte) error {
	if e.conn == nil {
		return errs.New(errs.InvalidData, "takion.SendUnreliable", fmt.Errorf("endpoint not connected"))
	}
	_, err := e.conn.Write(buf)
	if err != nil {
		return errs.New(errs.Network, "takion.SendUnreliable", err)
	}
	return nil
}

// State returns the endpoint's current lifecycle state.
func (e *Endpoint) State() ConnState { return e.state }

func (e *Endpoint) transition(to ConnState) error {
	if !CanTransition(e.state, to) {
		return errs.New(errs.InvalidData, "takion.transition", fmt.Errorf("%s -> %s", e.state, to))
	}
	e.state = to
	return nil
}

// Connect binds to addr, sends INIT_REQUEST, and awaits INIT_RESPONSE,
// retrying up to initMaxTries times within initTimeout each.
func (e *Endpoint) Connect(ctx context.Context, addr string) error {
	if err := e.transition(StateConnecting); err != nil {
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return errs.New(errs.HostUnreach, "takion.connect", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return errs.New(errs.Network, "takion.connect", err)
	}
	e.conn = conn

	localNonce := make([]byte, nonceSize)
	if _, err := rand.Read(localNonce); err != nil {
		return errs.New(errs.Unknown, "takion.connect", err)
	}

	var remoteNonce []byte
	for attempt := 0; attempt < initMaxTries; attempt++ {
		req := rudp.Serialize(nil, &rudp.Message{Size: uint16(8 + len(localNonce)), Type: rudp.InitRequest, Data: localNonce})
		if _, err := conn.Write(req); err != nil {
			return errs.New(errs.Network, "takion.connect", err)
		}

		_ = conn.SetReadDeadline(time.Now().Add(initTimeout))
		buf := make([]byte, 1500)
		n, err := conn.Read(buf)
		if err == nil {
			msg, perr := rudp.Parse(buf[:n])
			if perr == nil && msg.Type == rudp.InitResponse {
				remoteNonce = msg.Data
				break
			}
		}
		select {
		case <-ctx.Done():
			return errs.New(errs.Canceled, "takion.connect", ctx.Err())
		case <-e.pipe.Done():
			return errs.New(errs.Canceled, "takion.connect", nil)
		default:
		}
	}
	if remoteNonce == nil {
		return errs.New(errs.Timeout, "takion.connect", fmt.Errorf("no INIT_RESPONSE after %d tries", initMaxTries))
	}

	if err := e.transition(StateHandshake); err != nil {
		return err
	}
	return e.handshake(localNonce, remoteNonce)
}

// handshake exchanges AE cookies (modeled here as an echoed nonce
// round-trip, since the console's proprietary cookie contents are not
// reproduced) and derives the session key via HKDF-SHA256 over
// morning and both handshake nonces.
func (e *Endpoint) handshake(localNonce, remoteNonce []byte) error {
	cookieReq := rudp.Serialize(nil, &rudp.Message{Size: uint16(8 + len(localNonce)), Type: rudp.CookieRequest, Data: localNonce})
	if _, err := e.conn.Write(cookieReq); err != nil {
		return errs.New(errs.Network, "takion.handshake", err)
	}

	_ = e.conn.SetReadDeadline(time.Now().Add(initTimeout))
	buf := make([]byte, 1500)
	n, err := e.conn.Read(buf)
	if err != nil {
		return errs.New(errs.Timeout, "takion.handshake", err)
	}
	msg, err := rudp.Parse(buf[:n])
	if err != nil || msg.Type != rudp.CookieResponse {
		return errs.New(errs.InvalidData, "takion.handshake", fmt.Errorf("unexpected cookie response"))
	}

	key, err := deriveSessionKey(e.morning, localNonce, remoteNonce)
	if err != nil {
		return errs.New(errs.Unknown, "takion.handshake", err)
	}
	e.Keys.SessionKey = key

	if err := e.transition(StateEstablished); err != nil {
		return err
	}
	e.log.Info("handshake established")

	e.recvDone = make(chan struct{})
	go e.recvLoop()
	return nil
}

// recvLoop demultiplexes incoming datagrams by their leading
// PacketType byte: video/audio/mic packets feed their own per-channel
// Reassembler, control packets are deduplicated, stripped of their
// transport header, and handed to OnControlData, ack packets update
// Reliable's outstanding-packet bookkeeping, and a disconnect packet
// ends this loop; the endpoint's state and socket stay as they are
// until Close. A read timeout doubles as the reliable
// sub-channel's retransmit tick. Runs until the socket closes or the
// stop-pipe fires.
func (e *Endpoint) recvLoop() {
	defer close(e.recvDone)
	buf := make([]byte, 65536)
	for {
		select {
		case <-e.pipe.Done():
			return
		default:
		}

		_ = e.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := e.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// No traffic within the read window doubles as the
				// reliable sub-channel's retransmit tick, per spec's
				// note that it may be merged into the receive loop.
				e.Reliable.Tick()
				continue
			}
			return
		}
		if n == 0 {
			continue
		}

		switch PacketType(buf[0]) {
		case PacketVideo:
			e.pushData(buf[:n], e.ReassemblerVideo)
		case PacketAudio:
			e.pushData(buf[:n], e.ReassemblerAudio)
		case PacketMic:
			e.pushData(buf[:n], e.ReassemblerMic)
		case PacketControl:
			if n < ControlHeaderSize {
				continue
			}
			h := DecodeControlHeader(buf[:ControlHeaderSize])
			if e.Reliable.Duplicate(h.Seq) {
				continue
			}
			if e.OnControlData != nil {
				payload := append([]byte(nil), buf[ControlHeaderSize:n]...)
				e.OnControlData(payload)
			}
		case PacketAck:
			if n < AckHeaderSize {
				continue
			}
			a := DecodeAckHeader(buf[:AckHeaderSize])
			e.Reliable.Ack(a.Cumulative, a.SackBitmap)
		case PacketDisconnect:
			return
		default:
			// congestion/handshake stragglers after establishment; ignore.
		}
	}
}

func (e *Endpoint) pushData(buf []byte, r *Reassembler) {
	if len(buf) < DataHeaderSize {
		return
	}
	h := DecodeDataHeader(buf[:DataHeaderSize])
	payload := append([]byte(nil), buf[DataHeaderSize:]...)
	r.Push(h, payload)
}

func deriveSessionKey(morning, localNonce, remoteNonce []byte) ([]byte, error) {
	salt := append(append([]byte{}, localNonce...), remoteNonce...)
	h := hkdf.New(sha256.New, morning, salt, []byte("takion-session-key"))
	key := make([]byte, sessionKeyLen)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Close begins graceful teardown: transitions to Closing, stops the
// reliable channel's retransmit activity, and closes the socket.
func (e *Endpoint) Close() error {
	if e.state == StateEstablished {
		if err := e.transition(StateClosing); err != nil {
			return err
		}
	}
	e.pipe.Stop()
	if e.conn != nil {
		_ = e.conn.Close()
	}
	if e.recvDone != nil {
		<-e.recvDone
	}
	e.state = StateClosed
	return nil
}
