package pubsub

import (
	"container/heap"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/pubsub/internal/registry"
	"github.com/mongodb-labs/pubsub/internal/transport"
)

// PollResult is the outcome of a single Poll call: messages grouped by
// subscription then channel (newest first within a channel), the time
// actually spent waiting, whether the system poll cap was hit without any
// message arriving, and a per-subscription error map.
type PollResult struct {
	Messages     map[registry.SubscriptionID]map[string][]bson.Raw
	MillisPolled int64
	PollAgain    bool
	Errors       map[registry.SubscriptionID]string
}

func newPollResult() *PollResult {
	return &PollResult{
		Messages: make(map[registry.SubscriptionID]map[string][]bson.Raw),
		Errors:   make(map[registry.SubscriptionID]string),
	}
}

type leasedSub struct {
	id  registry.SubscriptionID
	rec *registry.Record
}

// Poll implements the multi-subscription long-poll algorithm: it leases
// every requested subscription, waits in bounded ticks for any of them to
// become readable (while watching for an unsubscribe racing in
// underneath it), drains whatever arrived, and always releases every
// lease it still holds before returning.
//
// timeout <= 0 means return immediately after a non-blocking drain;
// timeout > 0 waits up to timeout, capped at the node's configured system
// poll window (10 minutes in production, 100ms under the debug flag).
func (p *PubSub) Poll(ids []registry.SubscriptionID, timeout time.Duration) *PollResult {
	result := newPollResult()

	// Step 1: acquire leases.
	var subs []leasedSub
	for _, id := range ids {
		rec, err := p.reg.Checkout(id)
		if err != nil {
			result.Errors[id] = err.Error()
			continue
		}
		subs = append(subs, leasedSub{id: id, rec: rec})
	}

	// Step 2: fast return. There may already be errors to report from
	// failed checkouts above.
	if len(subs) == 0 {
		return result
	}

	sysCap := p.cfg.ReaperWindow()
	tick := p.cfg.Tick()

	pendingFrames := make(map[registry.SubscriptionID][]byte)

	if timeout > 0 {
		if timeout > sysCap {
			timeout = sysCap
		}

		var elapsed time.Duration
		for timeout > 0 {
			currTick := tick
			if timeout < currTick {
				currTick = timeout
			}

			sockets := make([]*transport.Socket, len(subs))
			for i, s := range subs {
				sockets[i] = s.rec.Socket
			}

			ready, frames, err := transport.NewPoller(sockets).Wait(currTick)
			if err != nil {
				// Step 5: a transport failure aborts the whole wait.
				// Record it across every lease still held and release
				// them; we don't know which subscriptions already drained
				// something, so none are silently dropped.
				for _, s := range subs {
					result.Errors[s.id] = err.Error()
					p.reg.Checkin(s.rec)
				}
				return result
			}

			anyReady := false
			for _, r := range ready {
				if r {
					anyReady = true
					break
				}
			}
			if anyReady {
				for i, r := range ready {
					if r {
						pendingFrames[subs[i].id] = frames[i]
					}
				}
				break
			}

			// Between ticks: watch for a racing unsubscribe.
			remaining := subs[:0:0]
			for _, s := range subs {
				if p.reg.IsShouldUnsub(s.rec) {
					result.Errors[s.id] = "Poll interrupted by unsubscribe."
					if _, err := p.reg.Remove(s.id, true); err != nil {
						log.WithError(err).WithField("subscription", s.id.Hex()).
							Warn("pubsub: error closing socket for canceled subscription")
					}
					continue
				}
				remaining = append(remaining, s)
			}
			subs = remaining
			if len(subs) == 0 {
				return result
			}

			timeout -= currTick
			elapsed += currTick

			if elapsed >= sysCap {
				result.PollAgain = true
				result.MillisPolled = elapsed.Milliseconds()
				for _, s := range subs {
					p.reg.Checkin(s.rec)
				}
				return result
			}
		}
		result.MillisPolled = elapsed.Milliseconds()
	}

	// Step 4: drain. Subscriptions that never became ready (timeout <= 0,
	// or the wait loop exited because the client timeout ran out) simply
	// contribute whatever is already queued on their socket, if anything.
	queue := &messageQueue{}
	for _, s := range subs {
		frames := make([][]byte, 0, 1)
		if frame, ok := pendingFrames[s.id]; ok {
			frames = append(frames, frame)
		}
		for {
			frame, ok, err := s.rec.Socket.RecvNonBlocking()
			if err != nil {
				result.Errors[s.id] = err.Error()
				break
			}
			if !ok {
				break
			}
			frames = append(frames, frame)
		}

		for _, frame := range frames {
			channel, payload, sentAt, err := decodeFrame(frame)
			if err != nil {
				log.WithError(err).WithField("subscription", s.id.Hex()).
					Warn("pubsub: dropping malformed frame")
				continue
			}
			if s.rec.Matcher != nil && !s.rec.Matcher.Match(payload) {
				continue
			}
			if s.rec.Projector != nil {
				payload = s.rec.Projector.Project(payload)
			}
			heap.Push(queue, Message{
				SubscriptionID: s.id,
				Channel:        string(channel),
				Payload:        bson.Raw(payload),
				SentAt:         sentAt,
			})
		}

		// Step 6: release.
		p.reg.Checkin(s.rec)
	}

	for _, m := range drainOrdered(queue) {
		byChannel, ok := result.Messages[m.SubscriptionID]
		if !ok {
			byChannel = make(map[string][]bson.Raw)
			result.Messages[m.SubscriptionID] = byChannel
		}
		byChannel[m.Channel] = append(byChannel[m.Channel], m.Payload)
	}

	return result
}
