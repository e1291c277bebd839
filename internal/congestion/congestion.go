// Package congestion runs the periodic packet-loss reporting loop that
// feeds a congestion-control packet back to the console every tick.
package congestion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"

	"github.com/duskline/rpcore/internal/stoppipe"
)

const tickInterval = 200 * time.Millisecond

// Stats supplies the running totals a Controller reports on each tick.
// Take returns the received/lost counts accumulated since its previous
// call and resets them, mirroring chiaki_packet_stats_get's
// read-and-reset flag.
type Stats interface {
	Take() (received, lost uint64)
}

// Packet is the wire-ready congestion report sent over the Takion
// control path.
type Packet struct {
	Received uint16
	Lost     uint16
}

// Controller runs chiaki's 200ms congestion-reporting loop: read
// cumulative (received, lost), compute loss ratio, clamp the reported
// loss at PacketLossMax before emitting a Packet so the console doesn't
// overreact to a momentarily bad link.
type Controller struct {
	Stats         Stats
	PacketLossMax float64
	Send          func(Packet)
	OnClamp       func()

	pipe *stoppipe.Pipe
	wg   conc.WaitGroup

	lossGauge     prometheus.Gauge
	receivedGauge prometheus.Gauge
	lostGauge     prometheus.Gauge
}

// NewController constructs a Controller. Registerer may be nil to skip
// metrics registration (e.g. in unit tests).
func NewController(stats Stats, packetLossMax float64, send func(Packet), reg prometheus.Registerer) *Controller {
	c := &Controller{
		Stats:         stats,
		PacketLossMax: packetLossMax,
		Send:          send,
		pipe:          stoppipe.New(),
		lossGauge:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "rpcore_congestion_packet_loss_ratio", Help: "Reported packet loss ratio over the last tick."}),
		receivedGauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: "rpcore_congestion_received_total", Help: "Received packets reported in the last tick."}),
		lostGauge:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "rpcore_congestion_lost_total", Help: "Lost packets reported in the last tick."}),
	}
	if reg != nil {
		reg.MustRegister(c.lossGauge, c.receivedGauge, c.lostGauge)
	}
	return c
}

// Start launches the reporting loop in a panic-safe goroutine.
func (c *Controller) Start() {
	c.wg.Go(c.run)
}

// Stop signals the loop to exit and blocks until it has.
func (c *Controller) Stop() {
	c.pipe.Stop()
	c.wg.Wait()
}

func (c *Controller) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.pipe.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	received, lost := c.Stats.Take()
	total := received + lost

	var loss float64
	if total > 0 {
		loss = float64(lost) / float64(total)
	}
	if loss > c.PacketLossMax {
		if c.OnClamp != nil {
			c.OnClamp()
		}
		lost = uint64(float64(total) * c.PacketLossMax)
		received = total - lost
	}

	c.lossGauge.Set(loss)
	c.receivedGauge.Set(float64(received))
	c.lostGauge.Set(float64(lost))

	if c.Send != nil {
		c.Send(Packet{Received: uint16(received), Lost: uint16(lost)})
	}
}
