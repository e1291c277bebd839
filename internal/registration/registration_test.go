package registration

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	pin := []byte("1234")
	accountID := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}

	payload := make([]byte, registKeySize+sessionKeySize+4)
	copy(payload[0:registKeySize], []byte("REGKEY01"))
	copy(payload[registKeySize:registKeySize+sessionKeySize], bytes.Repeat([]byte{0xAB}, sessionKeySize))
	payload[registKeySize+sessionKeySize+0] = 0x07
	payload[registKeySize+sessionKeySize+1] = 0x02
	payload[registKeySize+sessionKeySize+2] = 0x00
	payload[registKeySize+sessionKeySize+3] = 0x01

	ciphertext, err := EncryptRequest(pin, accountID, payload)
	if err != nil {
		t.Fatalf("EncryptRequest: %v", err)
	}
	if bytes.Equal(ciphertext, payload) {
		t.Fatalf("expected ciphertext to differ from plaintext")
	}

	resp, err := DecryptResponse(pin, accountID, ciphertext)
	if err != nil {
		t.Fatalf("DecryptResponse: %v", err)
	}
	if string(resp.RegistKey[:]) != "REGKEY01" {
		t.Fatalf("unexpected regist key: %q", resp.RegistKey)
	}
	if !bytes.Equal(resp.Key[:], bytes.Repeat([]byte{0xAB}, sessionKeySize)) {
		t.Fatalf("unexpected key: %x", resp.Key)
	}
	if resp.TargetVersion != 0x07020001 {
		t.Fatalf("unexpected target version: %x", resp.TargetVersion)
	}
}

func TestDecryptResponseRejectsShortCiphertext(t *testing.T) {
	_, err := DecryptResponse([]byte("0000"), [8]byte{}, []byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected error for short ciphertext")
	}
}

func TestDecryptResponseWithWrongPINFailsToRecoverOriginal(t *testing.T) {
	pin := []byte("1234")
	accountID := [8]byte{9}
	payload := bytes.Repeat([]byte{0x42}, registKeySize+sessionKeySize+4)

	ciphertext, err := EncryptRequest(pin, accountID, payload)
	if err != nil {
		t.Fatalf("EncryptRequest: %v", err)
	}

	resp, err := DecryptResponse([]byte("9999"), accountID, ciphertext)
	if err != nil {
		t.Fatalf("DecryptResponse: %v", err)
	}
	if bytes.Equal(resp.RegistKey[:], payload[0:registKeySize]) {
		t.Fatalf("expected wrong-PIN decrypt to not recover the original regist key")
	}
}
