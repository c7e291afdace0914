// Package registry implements the process-wide subscription table: a
// SubscriptionID to Record map guarded by one mutex, with an exclusive
// lease protocol so exactly one poll at a time may read a given
// subscription's socket.
package registry

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Sentinel errors returned to callers verbatim as the externally-visible
// per-subscription error text.
var (
	ErrNotFound   = errors.New("Subscription not found.")
	ErrPollActive = errors.New("Poll currently active.")
	ErrExists     = errors.New("Subscription already exists.")
)

// RemoveOutcome reports what Remove actually did.
type RemoveOutcome int

const (
	// RemoveOK means the record was torn down and erased immediately.
	RemoveOK RemoveOutcome = iota
	// RemoveDeferred means the record is leased; it was flagged
	// shouldUnsub and will be torn down by the poll loop or, failing
	// that, the reaper.
	RemoveDeferred
	// RemoveNotFound means no such subscription existed.
	RemoveNotFound
)

// Registry is the process-wide SubscriptionID to Record map. All
// create/find/erase operations hold mu only for the map mutation itself
// (Remove and Sweep also close the erased record's socket under it); no
// socket read or wait happens while it is held, so pollers never block
// registry access for the duration of a socket read.
type Registry struct {
	mu      sync.Mutex
	records map[SubscriptionID]*Record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{records: make(map[SubscriptionID]*Record)}
}

// Insert adds a freshly-created record, failing if its id is already
// present. A collision is vanishingly unlikely given a 12-byte id, but
// cheap to check.
func (r *Registry) Insert(rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ID]; exists {
		return ErrExists
	}
	r.records[rec.ID] = rec
	return nil
}

// Checkout leases a record for the calling poll. It fails with ErrNotFound
// if the id is unknown or pending destruction, and with ErrPollActive if
// another poll already holds the lease. It also sets polledRecently, so a
// subscription's very first poll is protected from a reaper sweep landing
// mid-poll; a never-polled record still leaves polledRecently false from
// Insert until its first Checkout, so it still reaps after one idle
// window.
func (r *Registry) Checkout(id SubscriptionID) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.shouldUnsub {
		return nil, ErrNotFound
	}
	if rec.inUse {
		return nil, ErrPollActive
	}
	rec.inUse = true
	rec.polledRecently = true
	return rec, nil
}

// Checkin releases a record's lease and marks it as recently polled so
// the reaper leaves it alone for another window.
func (r *Registry) Checkin(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.polledRecently = true
	rec.inUse = false
}

// markShouldUnsub flags a leased record for deferred destruction. Remove
// calls it, with mu held, when the record is leased and force is false.
func (r *Registry) markShouldUnsub(rec *Record) {
	rec.shouldUnsub = true
}

// Remove tears down a subscription. If the record is not leased, or force
// is set, the socket is closed and the record erased immediately. If the
// record is leased and force is false, the record is flagged shouldUnsub
// for the poll loop (or the reaper) to finish off later.
func (r *Registry) Remove(id SubscriptionID, force bool) (RemoveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return RemoveNotFound, ErrNotFound
	}

	if rec.inUse && !force {
		r.markShouldUnsub(rec)
		return RemoveDeferred, nil
	}

	delete(r.records, id)
	if err := rec.Socket.Close(); err != nil {
		log.WithError(err).WithField("subscription", id.Hex()).
			Warn("registry: error closing socket for removed subscription")
	}
	return RemoveOK, nil
}

// IsShouldUnsub reports, under the registry lock, whether rec has been
// flagged for deferred destruction. The poll loop uses this between ticks
// to notice an unsubscribe that arrived while it held the lease.
func (r *Registry) IsShouldUnsub(rec *Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rec.shouldUnsub
}

// Sweep is the reaper's single pass: every record still marked
// polledRecently has that bit cleared and survives; every record that
// was not gets its socket closed and is erased. Records currently leased
// are by construction polledRecently (set at both checkout and checkin),
// so a sweep never destroys a leased record, including one in the middle
// of its very first poll.
func (r *Registry) Sweep() (reaped []SubscriptionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.records {
		if rec.polledRecently {
			rec.polledRecently = false
			continue
		}
		delete(r.records, id)
		_ = rec.Socket.Close()
		reaped = append(reaped, id)
	}
	return reaped
}

// Snapshot returns the ids of every currently-registered subscription,
// for introspection.
func (r *Registry) Snapshot() []SubscriptionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]SubscriptionID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
