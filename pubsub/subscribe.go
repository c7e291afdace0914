package pubsub

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/pubsub/internal/registry"
	"github.com/mongodb-labs/pubsub/internal/topology"
	"github.com/mongodb-labs/pubsub/internal/transport"
)

// ErrDisabled is returned by Subscribe when the node's topology bootstrap
// failed and pub/sub is inert.
var ErrDisabled = errors.New("pubsub: disabled on this node")

// Subscribe mints a SubscriptionID, connects a fresh SUB socket to the
// node's internal fan-out endpoint filtered to channel, optionally
// compiles a match predicate and field projection from filter and
// projection, registers the subscription, and returns its id.
//
// A transport failure while creating or connecting the socket raises a
// typed error to the caller, unlike publish's best-effort failure mode:
// a client that asked to subscribe needs to know it didn't.
func (p *PubSub) Subscribe(channel string, filter, projection bson.Raw) (registry.SubscriptionID, error) {
	if p.disabled() {
		return registry.SubscriptionID{}, ErrDisabled
	}

	sock, err := transport.NewSocket(transport.KindSub)
	if err != nil {
		return registry.SubscriptionID{}, errors.Wrap(err, "pubsub: could not create subscription")
	}
	if err := sock.Dial(topology.InternalEndpoint); err != nil {
		return registry.SubscriptionID{}, errors.Wrap(err, "pubsub: could not create subscription")
	}
	if err := sock.SetSubscribeFilter([]byte(channel)); err != nil {
		return registry.SubscriptionID{}, errors.Wrap(err, "pubsub: could not create subscription")
	}

	matcher, err := compileFilter(filter)
	if err != nil {
		_ = sock.Close()
		return registry.SubscriptionID{}, errors.Wrap(err, "pubsub: invalid filter document")
	}
	projector, err := compileProjection(projection)
	if err != nil {
		_ = sock.Close()
		return registry.SubscriptionID{}, errors.Wrap(err, "pubsub: invalid projection document")
	}

	rec := &registry.Record{
		ID:      registry.NewSubscriptionID(),
		Channel: []byte(channel),
		Socket:  sock,
	}
	// Record.Matcher/Projector are typed as interfaces; a nil *equalityFilter
	// or *fieldProjection still satisfies them and short-circuits to a
	// pass-through, so only assign when compilation actually produced one.
	if matcher != nil {
		rec.Matcher = matcher
	}
	if projector != nil {
		rec.Projector = projector
	}

	if err := p.reg.Insert(rec); err != nil {
		_ = sock.Close()
		return registry.SubscriptionID{}, errors.Wrap(err, "pubsub: could not create subscription")
	}

	return rec.ID, nil
}
