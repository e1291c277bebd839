package registration

import (
	"context"
	"io"
	"net"

	"github.com/duskline/rpcore/internal/errs"
)

const responseSize = registKeySize + sessionKeySize + 4

// DialAndRegister dials addr over TCP and performs one regist round
// trip: encrypt payload, send it, read the fixed-size response, and
// decrypt it. addr is the console's registration listener -- no port
// for this exchange is named anywhere in the pack, so callers supply
// it explicitly rather than this package assuming one.
func DialAndRegister(ctx context.Context, addr string, pin []byte, psnAccountID [8]byte, payload []byte) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, errs.New(errs.Network, "registration.dial_and_register", err)
	}
	defer conn.Close()

	req, err := EncryptRequest(pin, psnAccountID, payload)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(req); err != nil {
		return Response{}, errs.New(errs.Network, "registration.dial_and_register", err)
	}

	resp := make([]byte, responseSize)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return Response{}, errs.New(errs.Network, "registration.dial_and_register", err)
	}

	return DecryptResponse(pin, psnAccountID, resp)
}
