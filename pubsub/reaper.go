package pubsub

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// runReaper sleeps for the configured reaper window and then sweeps the
// registry once, reclaiming every subscription that has not been polled
// since the previous sweep. It runs for the lifetime of the PubSub, one
// goroutine per node, and exits when Close is called.
func (p *PubSub) runReaper() {
	defer close(p.reaperDone)

	window := p.cfg.ReaperWindow()
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-p.reaperStop:
			return
		case <-timer.C:
			reaped := p.reg.Sweep()
			if len(reaped) > 0 {
				log.WithField("count", len(reaped)).Info("pubsub: reaped idle subscriptions")
			}
			timer.Reset(p.cfg.ReaperWindow())
		}
	}
}
