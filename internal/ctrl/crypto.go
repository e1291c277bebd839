package ctrl

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"sync/atomic"

	"github.com/duskline/rpcore/internal/errs"
)

const gmacSize = 16

// Crypt authenticates Ctrl frames with AES-GMAC: an AES-GCM instance
// used purely as a MAC (empty plaintext, the frame bytes as additional
// data) over a key derived from the Takion handshake, keyed per-call by
// a monotonically increasing counter so no (key, nonce) pair repeats.
type Crypt struct {
	aead          cipher.AEAD
	counterLocal  atomic.Uint64
	counterRemote atomic.Uint64
}

// NewCrypt builds a Crypt from a 16 or 32-byte session key.
func NewCrypt(key []byte) (*Crypt, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.New(errs.InvalidData, "ctrl.new_crypt", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.New(errs.Unknown, "ctrl.new_crypt", err)
	}
	return &Crypt{aead: aead}, nil
}

func nonceFromCounter(counter uint64) []byte {
	nonce := make([]byte, 12)
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// SealLocal computes the GMAC for frame under the next local counter
// value (counters start at 1; 0 is reserved to mean "none sent yet"),
// returning the tag and the counter it was keyed with.
func (c *Crypt) SealLocal(frame []byte) (tag [gmacSize]byte, counter uint64) {
	counter = c.counterLocal.Add(1)
	sealed := c.aead.Seal(nil, nonceFromCounter(counter), nil, frame)
	copy(tag[:], sealed)
	return tag, counter
}

// VerifyRemote checks frame's GMAC against the given counter and
// rejects any counter at or below the highest already accepted, which
// is how the crypt-counter's "never reused" invariant is enforced.
func (c *Crypt) VerifyRemote(frame []byte, tag [gmacSize]byte, counter uint64) error {
	if counter <= c.counterRemote.Load() {
		return errs.New(errs.InvalidData, "ctrl.verify_remote", nil)
	}
	want := c.aead.Seal(nil, nonceFromCounter(counter), nil, frame)
	if len(want) != gmacSize || [gmacSize]byte(want[:gmacSize]) != tag {
		return errs.New(errs.InvalidData, "ctrl.verify_remote", nil)
	}
	c.counterRemote.Store(counter)
	return nil
}
