package ctrl

import "testing"

func TestChannelSendReceiveRoundTrip(t *testing.T) {
	key := testKey()
	var wire []byte
	sender, err := NewChannel(key, func(b []byte) error { wire = b; return nil })
	if err != nil {
		t.Fatalf("NewChannel sender: %v", err)
	}
	receiver, err := NewChannel(key, nil)
	if err != nil {
		t.Fatalf("NewChannel receiver: %v", err)
	}

	if err := sender.Send(Frame{Type: TypeGoHome}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := receiver.Receive(wire)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Type != TypeGoHome {
		t.Fatalf("unexpected frame type: %v", got.Type)
	}
}

func TestChannelReceiveRejectsShortWire(t *testing.T) {
	receiver, _ := NewChannel(testKey(), nil)
	if _, err := receiver.Receive([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short wire message")
	}
}

func TestChannelReceiveRejectsBadKey(t *testing.T) {
	sender, _ := NewChannel(testKey(), nil)
	var wire []byte
	sender.SendRaw = func(b []byte) error { wire = b; return nil }
	if err := sender.Send(Frame{Type: TypeGoHome}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	otherKey := []byte("fedcba9876543210")
	receiver, _ := NewChannel(otherKey, nil)
	if _, err := receiver.Receive(wire); err == nil {
		t.Fatalf("expected verification failure with mismatched key")
	}
}
