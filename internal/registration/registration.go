// Package registration implements PIN-based pairing with a console,
// per spec.md §4.11: an encrypted "regist" payload goes out, and the
// response carries the `rp_regist_key`/`rp_key` pair the session later
// uses to authenticate without a PIN.
package registration

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/duskline/rpcore/internal/errs"
)

const (
	registKeySize  = 8
	sessionKeySize = 16
	// ivSize is the AES block size; the console's proprietary regist
	// payload derives its own counter/IV scheme, which is not
	// reproduced here (unspecified in the pack) -- a zero IV is used
	// instead, matching the Takion AE-cookie precedent of modeling an
	// opaque exchange rather than claiming byte-exact wire compatibility.
	ivSize = aes.BlockSize
)

// Response is what a successful regist exchange yields: the key pair
// the session persists for future PIN-less connects.
type Response struct {
	RegistKey     [registKeySize]byte
	Key           [sessionKeySize]byte
	TargetVersion uint32
}

// deriveKey folds a PIN and the PSN account id into a 16-byte AES-CTR
// key. The console's exact KDF is proprietary and not reproduced; this
// models the same shape (PIN + account id determine the symmetric key)
// without claiming wire compatibility, same modeling approach as the
// Takion AE-cookie round trip.
func deriveKey(pin []byte, psnAccountID [8]byte) [sessionKeySize]byte {
	h := sha256.New()
	h.Write(pin)
	h.Write(psnAccountID[:])
	sum := h.Sum(nil)
	var key [sessionKeySize]byte
	copy(key[:], sum[:sessionKeySize])
	return key
}

// EncryptRequest encrypts payload (the regist request body) with a key
// derived from pin and psnAccountID, returning the ciphertext ready to
// send.
func EncryptRequest(pin []byte, psnAccountID [8]byte, payload []byte) ([]byte, error) {
	key := deriveKey(pin, psnAccountID)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.New(errs.Unknown, "registration.encrypt", err)
	}
	out := make([]byte, len(payload))
	stream := cipher.NewCTR(block, make([]byte, ivSize))
	stream.XORKeyStream(out, payload)
	return out, nil
}

// DecryptResponse reverses EncryptRequest's cipher with the same
// derived key and parses the fixed-layout
// rp_regist_key(8) | rp_key(16) | target_version_be32 response body.
func DecryptResponse(pin []byte, psnAccountID [8]byte, ciphertext []byte) (Response, error) {
	const minLen = registKeySize + sessionKeySize + 4
	if len(ciphertext) < minLen {
		return Response{}, errs.New(errs.BufferTooSmall, "registration.decrypt", fmt.Errorf("need %d bytes, got %d", minLen, len(ciphertext)))
	}

	key := deriveKey(pin, psnAccountID)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return Response{}, errs.New(errs.Unknown, "registration.decrypt", err)
	}
	plain := make([]byte, len(ciphertext))
	stream := cipher.NewCTR(block, make([]byte, ivSize))
	stream.XORKeyStream(plain, ciphertext)

	var resp Response
	copy(resp.RegistKey[:], plain[0:registKeySize])
	copy(resp.Key[:], plain[registKeySize:registKeySize+sessionKeySize])
	resp.TargetVersion = binary.BigEndian.Uint32(plain[registKeySize+sessionKeySize : minLen])
	return resp, nil
}
