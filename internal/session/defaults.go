package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/duskline/rpcore/internal/bufpool"
	"github.com/duskline/rpcore/internal/ctrl"
	"github.com/duskline/rpcore/internal/discovery"
	"github.com/duskline/rpcore/internal/errs"
	"github.com/duskline/rpcore/internal/launchspec"
	"github.com/duskline/rpcore/internal/registration"
	"github.com/duskline/rpcore/internal/takion"
)

const discoveryResolveTimeout = 5 * time.Second

// DefaultNeedsRegistration reports whether info carries a usable
// regist_key; a zero key means the console has never paired this
// client.
func DefaultNeedsRegistration(info ConnectInfo) bool {
	return info.RegistKey == [16]byte{}
}

// DefaultResolveHost turns a bare host into a dialable Takion address.
// If info.Host already names a port, it is used verbatim. Otherwise
// this probes the console's discovery responder for its
// host-request-port, per spec.md §4.10.
func DefaultResolveHost(ctx context.Context, info ConnectInfo) (string, error) {
	if _, _, err := net.SplitHostPort(info.Host); err == nil {
		return info.Host, nil
	}

	svc, err := discovery.NewService()
	if err != nil {
		return "", err
	}
	defer svc.Stop()

	port := discovery.PortPS4
	if info.Platform == PlatformPS5 {
		port = discovery.PortPS5
	}

	found := make(chan discovery.Host, 1)
	svc.OnHost = func(_ string, h *discovery.TrackedHost, dropped bool) {
		if dropped {
			return
		}
		select {
		case found <- h.Host:
		default:
		}
	}
	go svc.Run()

	if err := svc.SendTo(info.Host, port); err != nil {
		return "", err
	}

	select {
	case h := <-found:
		if h.HostRequestPort == 0 {
			return "", errs.New(errs.InvalidData, "session.resolve_host", fmt.Errorf("host %s reported no request port", info.Host))
		}
		return net.JoinHostPort(info.Host, fmt.Sprintf("%d", h.HostRequestPort)), nil
	case <-ctx.Done():
		return "", errs.New(errs.Canceled, "session.resolve_host", ctx.Err())
	case <-time.After(discoveryResolveTimeout):
		return "", errs.New(errs.Timeout, "session.resolve_host", fmt.Errorf("no discovery response from %s", info.Host))
	}
}

// DefaultSendHello builds the launch-spec document for info, generates
// a fresh handshake key, and sends it over the reliable sub-channel
// prefixed only by its length as a big-endian uint32, with no type
// field (Ctrl isn't constructed yet at this point in the state machine).
func DefaultSendHello(_ context.Context, ep *takion.Endpoint, info ConnectInfo) error {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return errs.New(errs.Unknown, "session.send_hello", err)
	}

	spec := launchspec.Spec{
		Width:        uint32(info.Profile.Width),
		Height:       uint32(info.Profile.Height),
		MaxFPS:       uint32(info.Profile.MaxFPS),
		BWKbpsSent:   uint32(info.Profile.Bitrate),
		MTU:          1454,
		PS5:          info.Platform == PlatformPS5,
		Codec:        launchspec.Codec(info.Profile.Codec),
		HandshakeKey: key,
	}
	payload := []byte(launchspec.Format(spec))

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	ep.Reliable.Send(frame)
	return nil
}

// NewDefaultDependencies wires the library's own collaborators
// (discovery, registration, launch-spec) into a Dependencies usable
// without a caller hand-rolling its own. registrationAddr is the
// console's regist listener, dialed only when NeedsRegistration
// reports true.
func NewDefaultDependencies(pool *bufpool.Pool, mediaSink MediaSink, displaySink ctrl.DisplaySink, pinSource ctrl.PINSource, registrationAddr string) Dependencies {
	return Dependencies{
		ResolveHost:       DefaultResolveHost,
		NeedsRegistration: DefaultNeedsRegistration,
		Register: func(ctx context.Context, info ConnectInfo) ([16]byte, [16]byte, error) {
			resp, err := registration.DialAndRegister(ctx, registrationAddr, info.LoginPIN, info.PSNAccountID, info.PSNAccountID[:])
			if err != nil {
				return [16]byte{}, [16]byte{}, err
			}
			var registKey [16]byte
			copy(registKey[:], resp.RegistKey[:])
			return registKey, resp.Key, nil
		},
		SendHello:   DefaultSendHello,
		Pool:        pool,
		MediaSink:   mediaSink,
		DisplaySink: displaySink,
		PINSource:   pinSource,
	}
}
