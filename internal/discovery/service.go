package discovery

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/duskline/rpcore/internal/errs"
	"github.com/duskline/rpcore/internal/logger"
	"github.com/duskline/rpcore/internal/stoppipe"
)

const (
	pingInterval = 500 * time.Millisecond
	dropPings    = 3
	hostsMax     = 16
)

// TrackedHost is one console the service thread has seen respond,
// with its liveness bookkeeping.
type TrackedHost struct {
	ID   string // xid, assigned on first discovery
	Addr string
	Host Host

	missedPings int
	lastSeen    time.Time
}

// Service runs the discovery broadcast probe and the ping/miss/down
// tracking thread described in spec.md §4.10: pings every 500ms,
// drops a host after 3 consecutive misses, and keeps at most 16
// tracked hosts (oldest evicted first when a new host would exceed
// the cap).
type Service struct {
	conn *net.UDPConn
	pipe *stoppipe.Pipe
	log  *slog.Logger

	mu    sync.Mutex
	order []string // insertion order of host IDs, for eviction
	hosts map[string]*TrackedHost

	// OnHost is invoked whenever a tracked host's state changes:
	// discovered, refreshed, or dropped after missed pings (h then still
	// holds its last known state). A host evicted to stay within
	// hostsMax is removed without a callback.
	OnHost func(addr string, h *TrackedHost, dropped bool)

	now func() time.Time
}

// NewService binds an ephemeral UDP socket for sending probes and
// receiving responses.
func NewService() (*Service, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, errs.New(errs.Network, "discovery.new", err)
	}
	if err := conn.SetWriteBuffer(1 << 16); err != nil {
		// best effort; not fatal if the platform rejects it.
		_ = err
	}
	return &Service{
		conn:  conn,
		pipe:  stoppipe.New(),
		log:   logger.Logger().With("component", "discovery"),
		hosts: make(map[string]*TrackedHost),
		now:   time.Now,
	}, nil
}

// Broadcast sends one SRCH probe to the subnet broadcast address on
// port.
func (s *Service) Broadcast(port Port) error {
	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: int(port)}
	_, err := s.conn.WriteToUDP([]byte(searchRequest), addr)
	if err != nil {
		return errs.New(errs.Network, "discovery.broadcast", err)
	}
	return nil
}

// SendTo sends one SRCH probe directly to host:port.
func (s *Service) SendTo(host string, port Port) error {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return errs.New(errs.HostUnreach, "discovery.sendto", err)
	}
	if _, err := s.conn.WriteToUDP([]byte(searchRequest), addr); err != nil {
		return errs.New(errs.Network, "discovery.sendto", err)
	}
	return nil
}

// Wakeup sends a WAKEUP datagram to host:port, waking a console in
// standby. registKeyHex is the paired regist-key's hex encoding.
func (s *Service) Wakeup(host string, port Port, registKeyHex string) error {
	credential, err := WakeupCredentialFromHex(registKeyHex)
	if err != nil {
		return err
	}
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return errs.New(errs.HostUnreach, "discovery.wakeup", err)
	}
	if _, err := s.conn.WriteToUDP(buildWakeup(credential), addr); err != nil {
		return errs.New(errs.Network, "discovery.wakeup", err)
	}
	return nil
}

// WakeupCredentialFromHex parses a regist-key's hex string as a
// big-endian uint64, per spec.md §4.10.
func WakeupCredentialFromHex(regKeyHex string) (uint64, error) {
	raw, err := hex.DecodeString(regKeyHex)
	if err != nil {
		return 0, errs.New(errs.InvalidData, "discovery.wakeup_credential", err)
	}
	if len(raw) > 8 {
		return 0, errs.New(errs.InvalidData, "discovery.wakeup_credential", fmt.Errorf("regist key longer than 8 bytes"))
	}
	var padded [8]byte
	copy(padded[8-len(raw):], raw)
	return binary.BigEndian.Uint64(padded[:]), nil
}

// Run blocks, receiving discovery responses and driving the ping/miss
// tracking loop, until the stop-pipe fires.
func (s *Service) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.recvLoop() }()
	go func() { defer wg.Done(); s.pingLoop() }()
	wg.Wait()
}

// Stop signals Run to return and closes the socket.
func (s *Service) Stop() {
	s.pipe.Stop()
	_ = s.conn.Close()
}

func (s *Service) recvLoop() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-s.pipe.Done():
			return
		default:
		}
		_ = s.conn.SetReadDeadline(s.now().Add(500 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		host, err := ParseResponse(buf[:n])
		if err != nil {
			continue
		}
		s.touch(addr.IP.String(), host)
	}
}

func (s *Service) touch(addr string, h Host) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.hosts[addr]
	if !ok {
		if len(s.order) >= hostsMax {
			s.evictOldestLocked()
		}
		existing = &TrackedHost{ID: xid.New().String(), Addr: addr}
		s.hosts[addr] = existing
		s.order = append(s.order, addr)
	}
	existing.Host = h
	existing.missedPings = 0
	existing.lastSeen = s.now()

	if s.OnHost != nil {
		s.OnHost(addr, existing, false)
	}
}

// evictOldestLocked drops the longest-tracked host to make room.
// Callers must hold s.mu.
func (s *Service) evictOldestLocked() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.hosts, oldest)
}

func (s *Service) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.pipe.Done():
			return
		case <-ticker.C:
			s.pingRound()
		}
	}
}

func (s *Service) pingRound() {
	s.mu.Lock()
	addrs := make([]string, len(s.order))
	copy(addrs, s.order)
	s.mu.Unlock()

	for _, addr := range addrs {
		_ = s.SendTo(addr, PortPS5)

		s.mu.Lock()
		host, ok := s.hosts[addr]
		if !ok {
			s.mu.Unlock()
			continue
		}
		host.missedPings++
		dropped := host.missedPings > dropPings
		if dropped {
			delete(s.hosts, addr)
			for i, a := range s.order {
				if a == addr {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		}
		cb := s.OnHost
		s.mu.Unlock()

		if dropped && cb != nil {
			cb(addr, host, true)
		}
	}
}

// Hosts returns a snapshot of currently tracked hosts.
func (s *Service) Hosts() []TrackedHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedHost, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, *s.hosts[addr])
	}
	return out
}
