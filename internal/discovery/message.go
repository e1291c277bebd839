// Package discovery implements the LAN probe and wake-on-LAN-style
// wakeup protocol described in spec.md §4.10: a textual UDP broadcast
// on the console's discovery port, and a service thread that tracks
// which hosts are currently responding.
package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Port is the UDP port a console's discovery service listens on.
type Port int

const (
	PortPS4 Port = 987
	PortPS5 Port = 9302
)

// HostState is the console's reported availability.
type HostState int

const (
	StateUnknown HostState = iota
	StateReady
	StateStandby
)

func (s HostState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStandby:
		return "standby"
	default:
		return "unknown"
	}
}

// Host is the set of fields a discovery response can carry.
type Host struct {
	SystemVersion     string
	HostName          string
	HostID            string
	HostType          string
	HostRequestPort   int
	RunningAppTitleID string
	RunningAppName    string
	State             HostState
	PS5               bool
}

// searchRequest is the textual SRCH probe sent to the broadcast
// address, per spec.md §4.10.
const searchRequest = "SRCH * HTTP/1.1\r\n\r\n"

// buildWakeup formats the WAKEUP datagram. credential is the regist
// key's hex bytes reinterpreted as a big-endian uint64 per spec.md
// §4.10 ("Credential is the hex regist-key parsed as uint64_t").
func buildWakeup(credential uint64) []byte {
	return []byte(fmt.Sprintf(
		"WAKEUP * HTTP/1.1\r\nclient-type:vr\r\nauth-type:R\r\nuser-credential:%d\r\n\r\n",
		credential,
	))
}

// ParseResponse decodes a discovery response: a "HTTP/1.1 200 Ok"
// status line followed by "key:value" fields, one per line.
func ParseResponse(buf []byte) (Host, error) {
	lines := strings.Split(strings.TrimRight(string(buf), "\r\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "HTTP/1.1 200") {
		return Host{}, fmt.Errorf("discovery: not a 200 response")
	}

	var h Host
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "system-version":
			h.SystemVersion = val
		case "host-name":
			h.HostName = val
		case "host-id":
			h.HostID = val
		case "host-type":
			h.HostType = val
		case "host-request-port":
			if p, err := strconv.Atoi(val); err == nil {
				h.HostRequestPort = p
			}
		case "running-app-titleid":
			h.RunningAppTitleID = val
		case "running-app-name":
			h.RunningAppName = val
		case "status":
			if strings.Contains(strings.ToLower(val), "standby") {
				h.State = StateStandby
			} else {
				h.State = StateReady
			}
		}
	}
	if h.State == StateUnknown {
		h.State = StateReady
	}
	// A PS5's system-version encodes the device/protocol generation as
	// an 8-digit decimal string (e.g. "07020001"); PS4 responses carry
	// a lower leading digit pair.
	if len(h.SystemVersion) >= 2 && h.SystemVersion[:2] >= "07" {
		h.PS5 = true
	}
	return h, nil
}

// MACFromHostID derives a colon-separated MAC address string from a
// host-id field, which the console reports as 12 hex digits.
func MACFromHostID(hostID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(hostID))
	if len(id) != 12 {
		return "", fmt.Errorf("discovery: host-id %q is not 12 hex digits", hostID)
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(id[i : i+2])
	}
	return b.String(), nil
}
