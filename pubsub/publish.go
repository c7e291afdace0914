package pubsub

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// Publish serializes a (channel, payload, timestamp) frame onto the
// outbound socket under the send mutex and reports whether the transport
// accepted it. It never returns an error to the caller: publish is often
// called by internal event emitters that must not fail a write because
// pub/sub happened to be unavailable, so a transport failure is logged
// and reported as false instead.
//
// On a shard-serving node participating in a sharded cluster, a channel
// starting with the reserved "$events" prefix is additionally forwarded,
// under the same critical section, to the dedicated PUSH route toward the
// configuration node.
func (p *PubSub) Publish(channel string, message bson.Raw) bool {
	if p.disabled() {
		return false
	}

	frame := encodeFrame([]byte(channel), message, time.Now())

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if err := p.top.Outbound.SendFrames(frame); err != nil {
		log.WithError(err).WithField("channel", channel).Error("pubsub: failed to publish")
		return false
	}

	if p.top.EventsPush != nil && strings.HasPrefix(channel, p.cfg.EventsChannelPrefix()) {
		if err := p.top.EventsPush.SendFrames(frame); err != nil {
			log.WithError(err).WithField("channel", channel).
				Error("pubsub: failed to forward $events publication to configuration node")
			return false
		}
	}

	return true
}
