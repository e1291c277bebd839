package takion

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/duskline/rpcore/internal/rudp"
)

// fakePeer answers the INIT/COOKIE exchange like a minimal remote
// Takion endpoint, for exercising Endpoint.Connect end to end.
func fakePeer(t *testing.T, conn *net.UDPConn) {
	t.Helper()
	buf := make([]byte, 1500)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Errorf("fakePeer: read init request: %v", err)
		return
	}
	msg, err := rudp.Parse(buf[:n])
	if err != nil || msg.Type != rudp.InitRequest {
		t.Errorf("fakePeer: expected InitRequest, got %+v err=%v", msg, err)
		return
	}
	nonce := []byte("remote-nonce-0001")
	resp := rudp.Serialize(nil, &rudp.Message{Size: uint16(8 + len(nonce)), Type: rudp.InitResponse, Data: nonce})
	if _, err := conn.WriteToUDP(resp, addr); err != nil {
		t.Errorf("fakePeer: write init response: %v", err)
		return
	}

	n, addr, err = conn.ReadFromUDP(buf)
	if err != nil {
		t.Errorf("fakePeer: read cookie request: %v", err)
		return
	}
	msg, err = rudp.Parse(buf[:n])
	if err != nil || msg.Type != rudp.CookieRequest {
		t.Errorf("fakePeer: expected CookieRequest, got %+v err=%v", msg, err)
		return
	}
	ack := []byte("cookie-ok")
	cookieResp := rudp.Serialize(nil, &rudp.Message{Size: uint16(8 + len(ack)), Type: rudp.CookieResponse, Data: ack})
	if _, err := conn.WriteToUDP(cookieResp, addr); err != nil {
		t.Errorf("fakePeer: write cookie response: %v", err)
	}
}

func TestEndpointConnectReachesEstablished(t *testing.T) {
	peerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer peerConn.Close()

	go fakePeer(t, peerConn)

	morning := make([]byte, 16)
	ep := NewEndpoint(morning, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ep.Connect(ctx, peerConn.LocalAddr().String()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ep.State() != StateEstablished {
		t.Fatalf("expected StateEstablished, got %v", ep.State())
	}
	if len(ep.Keys.SessionKey) != sessionKeyLen {
		t.Fatalf("expected derived session key of length %d, got %d", sessionKeyLen, len(ep.Keys.SessionKey))
	}

	if err := ep.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ep.State() != StateClosed {
		t.Fatalf("expected StateClosed after Close, got %v", ep.State())
	}
}

func TestDeriveSessionKeyIsDeterministic(t *testing.T) {
	morning := []byte("0123456789abcdef")
	local := []byte("local-nonce-16by")
	remote := []byte("remote-nonce-16b")

	k1, err := deriveSessionKey(morning, local, remote)
	if err != nil {
		t.Fatalf("deriveSessionKey: %v", err)
	}
	k2, err := deriveSessionKey(morning, local, remote)
	if err != nil {
		t.Fatalf("deriveSessionKey: %v", err)
	}
	if string(k1) != string(k2) {
		t.Fatalf("expected deterministic derivation for identical inputs")
	}

	k3, _ := deriveSessionKey(morning, remote, local)
	if string(k1) == string(k3) {
		t.Fatalf("expected different salt ordering to change the derived key")
	}
}
