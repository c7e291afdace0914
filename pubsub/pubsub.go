// Package pubsub is the command facade for the embedded publish/subscribe
// fabric: publish, subscribe, poll, and unsubscribe, plus the background
// reaper that reclaims abandoned subscriptions. It wires together the
// transport, topology, and registry packages the way a node's startup
// path would.
package pubsub

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mongodb-labs/pubsub/internal/config"
	"github.com/mongodb-labs/pubsub/internal/registry"
	"github.com/mongodb-labs/pubsub/internal/topology"
)

// PubSub is the node-wide pub/sub engine. One instance is created per
// process at startup; every client-handler goroutine calls its methods
// concurrently.
type PubSub struct {
	cfg config.Config
	top *topology.Topology
	reg *registry.Registry

	sendMu sync.Mutex

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New bootstraps the node's topology for cfg.Role and starts its
// background reaper. A topology bootstrap failure is logged and leaves
// the returned PubSub inert: every operation will fail or no-op rather
// than panicking, so the surrounding server can continue without pub/sub.
func New(cfg config.Config) *PubSub {
	top, err := topology.Bootstrap(cfg)
	if err != nil {
		log.WithError(err).Error("pubsub: starting with pub/sub disabled")
		top = nil
	}

	p := &PubSub{
		cfg:        cfg,
		top:        top,
		reg:        registry.New(),
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}

	go p.runReaper()

	return p
}

// Close stops the background reaper. It does not tear down subscriber
// sockets; callers that own the process lifecycle are expected to exit
// the process rather than reuse a closed PubSub.
func (p *PubSub) Close() {
	close(p.reaperStop)
	<-p.reaperDone
}

// disabled reports whether bootstrap failed to produce a usable outbound
// route, in which case publish and subscribe are inert.
func (p *PubSub) disabled() bool {
	return p.top == nil || p.top.Outbound == nil
}
