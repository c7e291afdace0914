package topology

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mongodb-labs/pubsub/internal/transport"
)

// PeerSet tracks the other shard-serving nodes this node's outbound socket
// is connected to, along with a liveness bit used for prune-on-missing
// semantics. It carries no mutex of its own: the replication driver that
// owns peer discovery is expected to serialize PeerJoined/ScanComplete
// calls itself, matching the upstream mongod replication coordinator that
// drives it.
type PeerSet struct {
	outbound *transport.Socket
	port     int
	live     map[string]bool
}

func newPeerSet(outbound *transport.Socket, port int) *PeerSet {
	return &PeerSet{outbound: outbound, port: port, live: make(map[string]bool)}
}

// PeerJoined connects the outbound socket to a newly observed peer and
// marks it live. Calling it again for an already-known peer just ticks its
// liveness bit, matching a replication topology scan re-observing a
// member it already knew about.
func (p *PeerSet) PeerJoined(host string, port int) error {
	key := fmt.Sprintf("%s:%d", host, port)
	if _, known := p.live[key]; known {
		p.live[key] = true
		return nil
	}

	endpoint := replEndpoint(host, port)
	if err := p.outbound.Dial(endpoint); err != nil {
		log.WithError(err).WithField("peer", key).Error("pubsub: failed to connect to replica set member")
		return err
	}
	log.WithField("peer", key).Info("pubsub: connected to new replica set member")
	p.live[key] = true
	return nil
}

// PeerScanComplete disconnects any peer whose liveness bit was not ticked
// since the last scan, then resets every remaining bit to false so the
// next scan must re-observe each peer to keep it connected.
func (p *PeerSet) PeerScanComplete() {
	for key, live := range p.live {
		if !live {
			host, port := splitHostPort(key)
			if err := p.outbound.Disconnect(replEndpoint(host, port)); err != nil {
				log.WithError(err).WithField("peer", key).Error("pubsub: failed to disconnect stale replica set member")
			} else {
				log.WithField("peer", key).Info("pubsub: disconnected from replica set member")
			}
			delete(p.live, key)
		}
	}
	for key := range p.live {
		p.live[key] = false
	}
}

// Peers returns a snapshot of the currently-connected peer addresses, for
// introspection.
func (p *PeerSet) Peers() []string {
	out := make([]string, 0, len(p.live))
	for key := range p.live {
		out = append(out, key)
	}
	return out
}

func splitHostPort(key string) (string, int) {
	var host string
	var port int
	// key is always produced by fmt.Sprintf("%s:%d", ...) above.
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			host = key[:i]
			fmt.Sscanf(key[i+1:], "%d", &port)
			break
		}
	}
	return host, port
}
