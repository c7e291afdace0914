package registry

import (
	"bytes"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionID is the 12-byte globally-unique identifier minted at
// subscribe time. It is opaque to callers and total-ordered so the poll
// engine can iterate subscriptions deterministically.
type SubscriptionID = primitive.ObjectID

// NewSubscriptionID mints a fresh, time-ordered identifier the same way
// the rest of the deployment mints document identifiers.
func NewSubscriptionID() SubscriptionID {
	return primitive.NewObjectID()
}

// ParseSubscriptionID parses the hex string form returned to clients back
// into a SubscriptionID.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	return primitive.ObjectIDFromHex(s)
}

// Less reports whether a sorts before b, giving subscriptions a total
// order for deterministic iteration.
func Less(a, b SubscriptionID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
