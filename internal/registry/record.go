package registry

import "github.com/mongodb-labs/pubsub/internal/transport"

// Matcher decides whether a published payload satisfies a subscription's
// optional filter document. Accepting an interface here, rather than a
// concrete BSON type, keeps the registry ignorant of document encoding.
type Matcher interface {
	Match(payload []byte) bool
}

// Projector trims a payload down to the fields a subscription asked to
// see. Implementations that do nothing should simply return payload
// unchanged.
type Projector interface {
	Project(payload []byte) []byte
}

// Record is one live subscription's state. Every field is only ever
// mutated while the owning Registry's mutex is held; Checkout/Checkin/
// Remove/Sweep are the only code paths allowed to touch inUse, shouldUnsub,
// and polledRecently.
type Record struct {
	ID      SubscriptionID
	Channel []byte
	Socket  *transport.Socket

	Matcher   Matcher
	Projector Projector

	// inUse is the exclusive lease: at most one poll may hold it at a
	// time for a given record.
	inUse bool
	// shouldUnsub is set when an unsubscribe arrives while a poll holds
	// the lease; the poll loop observes it at its next tick and tears the
	// subscription down instead of the unsubscribe call doing so inline.
	shouldUnsub bool
	// polledRecently is the reaper's liveness bit, set at every checkout
	// and checkin (so a poll in flight always reads as live) and left
	// false from subscribe until a poll first touches it, so a
	// subscription that is never polled is reaped after one window;
	// cleared by a reaper sweep that finds it already set.
	polledRecently bool
}

// InUse reports whether a poll currently holds this record's lease.
func (r *Record) InUse() bool { return r.inUse }

// ShouldUnsub reports whether an unsubscribe is pending behind the lease.
func (r *Record) ShouldUnsub() bool { return r.shouldUnsub }
