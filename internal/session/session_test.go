package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/duskline/rpcore/internal/rudp"
)

func TestQuitReasonStringsAreNonEmpty(t *testing.T) {
	reasons := []QuitReason{
		QuitUnknown, QuitStopped, QuitSessionRequestFailed, QuitCtrlFailed,
		QuitStreamConnectionFailed, QuitSystemVersionMismatch, QuitHostUnreachable,
		QuitAuthFailed, QuitPSPlusRequired,
	}
	for _, r := range reasons {
		if r.String() == "" {
			t.Fatalf("expected non-empty string for QuitReason %d", r)
		}
	}
}

func TestStateStringsAreNonEmpty(t *testing.T) {
	states := []State{
		StateInit, StateLookingUp, StateConnectingTakion, StateSendingHello,
		StateRegistering, StateStreaming, StateStopping, StateDone,
	}
	for _, s := range states {
		if s.String() == "" {
			t.Fatalf("expected non-empty string for State %d", s)
		}
	}
}

func TestRunFailsFastWhenHostResolutionErrors(t *testing.T) {
	s := New(ConnectInfo{Host: "unreachable"}, Dependencies{
		ResolveHost: func(ctx context.Context, info ConnectInfo) (string, error) {
			return "", errUnreachable{}
		},
	})

	s.Start(context.Background())
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	if s.QuitReason() != QuitHostUnreachable {
		t.Fatalf("expected QuitHostUnreachable, got %v", s.QuitReason())
	}
	if s.State() != StateDone {
		t.Fatalf("expected StateDone, got %v", s.State())
	}
}

type errUnreachable struct{}

func (errUnreachable) Error() string { return "unreachable" }

// fakeTakionPeer answers the INIT/COOKIE handshake minimally so
// Session.run can reach StateStreaming.
func fakeTakionPeer(t *testing.T, conn *net.UDPConn) {
	t.Helper()
	buf := make([]byte, 1500)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return
	}
	msg, err := rudp.Parse(buf[:n])
	if err != nil || msg.Type != rudp.InitRequest {
		return
	}
	nonce := []byte("remote-nonce-0001")
	resp := rudp.Serialize(nil, &rudp.Message{Size: uint16(8 + len(nonce)), Type: rudp.InitResponse, Data: nonce})
	if _, err := conn.WriteToUDP(resp, addr); err != nil {
		return
	}

	n, addr, err = conn.ReadFromUDP(buf)
	if err != nil {
		return
	}
	msg, err = rudp.Parse(buf[:n])
	if err != nil || msg.Type != rudp.CookieRequest {
		return
	}
	ack := []byte("cookie-ok")
	cookieResp := rudp.Serialize(nil, &rudp.Message{Size: uint16(8 + len(ack)), Type: rudp.CookieResponse, Data: ack})
	_, _ = conn.WriteToUDP(cookieResp, addr)
}

func TestRunReachesStreamingAndStopsCleanly(t *testing.T) {
	peerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer peerConn.Close()
	go fakeTakionPeer(t, peerConn)

	s := New(ConnectInfo{Host: peerConn.LocalAddr().String()}, Dependencies{})

	s.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for s.State() != StateStreaming {
		select {
		case <-deadline:
			t.Fatalf("session never reached StateStreaming (stuck at %v)", s.State())
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish after Stop")
	}
	if s.State() != StateDone {
		t.Fatalf("expected StateDone, got %v", s.State())
	}
	if s.QuitReason() != QuitStopped {
		t.Fatalf("expected QuitStopped, got %v", s.QuitReason())
	}
}
