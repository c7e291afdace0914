package pubsub

import "github.com/mongodb-labs/pubsub/internal/registry"

// Unsubscribe tears down each of ids. A subscription currently leased by an
// in-flight poll is flagged for deferred destruction instead of being torn
// down immediately; that poll (or, failing that, the reaper) finishes the
// job. The returned map holds one entry per id that failed outright, keyed
// by the id's hex string, and is empty (never nil) when every id was found.
func (p *PubSub) Unsubscribe(ids []registry.SubscriptionID) map[string]string {
	errs := make(map[string]string)
	for _, id := range ids {
		if _, err := p.reg.Remove(id, false); err != nil {
			errs[id.Hex()] = err.Error()
		}
	}
	return errs
}
