// Package launchspec builds the "big" launch-spec JSON payload sent
// during session handshake (spec.md §6): a fixed-field-order document
// with PS5-only extras spliced in at exact positions, matching the
// original console client byte-for-byte (no whitespace).
package launchspec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Codec identifies the negotiated video codec for the PS5 extras.
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
	CodecH265HDR
)

func (c Codec) isH265() bool { return c == CodecH265 || c == CodecH265HDR }
func (c Codec) isHDR() bool  { return c == CodecH265HDR }

// Spec is everything needed to render the launch-spec document.
type Spec struct {
	Width        uint32
	Height       uint32
	MaxFPS       uint32
	BWKbpsSent   uint32
	MTU          uint32
	RTT          uint32
	PS5          bool
	Codec        Codec
	HandshakeKey [32]byte
}

// appSpecification, konan, and userProfile are fixed blocks the
// console expects verbatim; spec.md names only their presence and
// position, not per-field values a client would vary.
const (
	appSpecificationBlock = `"appSpecification":{"minFps":30,"minBandwidth":0,"extTitleId":"ps3","version":1,"timeLimit":1,"startTimeout":100,"afkTimeout":100,"afkTimeoutDisconnect":100}`
	konanBlock            = `"konan":{"ps3AccessToken":"accessToken","ps3RefreshToken":"refreshToken"}`
	userProfileBlock      = `"userProfile":{"onlineId":"psnId","npId":"npId","region":"US","languagesUsed":["en","jp"]}`
)

// Format renders the launch-spec document for s, field order fixed to
// match the console's expectations exactly.
func Format(s Spec) string {
	var extraAdaptive, extraVideoCodec, extraDynamicRange string
	if s.PS5 {
		extraAdaptive = `,"adaptiveStreamMode":"resize"`
		if s.Codec.isH265() {
			extraVideoCodec = `"videoCodec":"hevc",`
		} else {
			extraVideoCodec = `"videoCodec":"avc",`
		}
		if s.Codec.isHDR() {
			extraDynamicRange = `"dynamicRange":"HDR",`
		} else {
			extraDynamicRange = `"dynamicRange":"SDR",`
		}
	}

	handshakeKeyB64 := base64.StdEncoding.EncodeToString(s.HandshakeKey[:])

	var b strings.Builder
	b.WriteString(`{"sessionId":"sessionId4321","streamResolutions":[{"resolution":{"width":`)
	fmt.Fprintf(&b, "%d", s.Width)
	b.WriteString(`,"height":`)
	fmt.Fprintf(&b, "%d", s.Height)
	b.WriteString(`},"maxFps":`)
	fmt.Fprintf(&b, "%d", s.MaxFPS)
	b.WriteString(`,"score":10}],"network":{"bwKbpsSent":`)
	fmt.Fprintf(&b, "%d", s.BWKbpsSent)
	b.WriteString(`,"bwLoss":0.001000,"mtu":`)
	fmt.Fprintf(&b, "%d", s.MTU)
	b.WriteString(`,"rtt":`)
	fmt.Fprintf(&b, "%d", s.RTT)
	b.WriteString(`,"ports":[53,2053]},"slotId":1,`)
	b.WriteString(appSpecificationBlock)
	b.WriteString(`,`)
	b.WriteString(konanBlock)
	b.WriteString(`,"requestGameSpecification":{"model":"bravia_tv","platform":"android","audioChannels":"5.1","language":"sp","acceptButton":"X","connectedControllers":["xinput","ds3","ds4"],"yuvCoefficient":"bt601","videoEncoderProfile":"hw4.1","audioEncoderProfile":"audio1"`)
	b.WriteString(extraAdaptive)
	b.WriteString(`},`)
	b.WriteString(userProfileBlock)
	b.WriteString(`,`)
	b.WriteString(extraVideoCodec)
	b.WriteString(extraDynamicRange)
	b.WriteString(`"handshakeKey":"`)
	b.WriteString(handshakeKeyB64)
	b.WriteString(`"}`)
	return b.String()
}
