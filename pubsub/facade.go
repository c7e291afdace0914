package pubsub

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongodb-labs/pubsub/internal/registry"
)

// ErrInvalidArgument is returned by the command facade when a command
// document is missing a required field or has the wrong shape. It is
// surfaced synchronously, before any state change, per the input
// validation error kind.
var ErrInvalidArgument = errors.New("pubsub: invalid command arguments")

// defaultPollTimeout applies when a poll command omits the optional
// timeout field: return immediately after a non-blocking drain.
const defaultPollTimeout = time.Duration(0)

// toRaw accepts either a bson.Raw (already-encoded document) or any value
// bson.Marshal knows how to encode (the shape a command document's nested
// fields take depends on how far upstream decoding got before reaching the
// facade), and normalizes it to bson.Raw.
func toRaw(v interface{}) (bson.Raw, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(bson.Raw); ok {
		return raw, nil
	}
	return bson.Marshal(v)
}

// parseIDs accepts the `<id | array-of-ids>` shape common to poll and
// unsubscribe: a single id or a slice of them, each either a
// primitive.ObjectID or its hex string form.
func parseIDs(v interface{}) ([]registry.SubscriptionID, error) {
	switch t := v.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidArgument, "missing id(s)")
	case registry.SubscriptionID:
		return []registry.SubscriptionID{t}, nil
	case string:
		id, err := registry.ParseSubscriptionID(t)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidArgument, "malformed subscription id")
		}
		return []registry.SubscriptionID{id}, nil
	case []registry.SubscriptionID:
		return t, nil
	case []interface{}:
		ids := make([]registry.SubscriptionID, 0, len(t))
		for _, elem := range t {
			parsed, err := parseIDs(elem)
			if err != nil {
				return nil, err
			}
			ids = append(ids, parsed...)
		}
		return ids, nil
	default:
		return nil, errors.Wrap(ErrInvalidArgument, "id must be a subscription id or array of them")
	}
}

// PublishCommand implements the `publish` command's wire shape:
// { publish: <channel>, message: <document> } -> { ok: 1 }. A transport
// failure is reported as ok: 0 rather than a command failure, matching
// Publish's best-effort contract.
func (p *PubSub) PublishCommand(args bson.M) (bson.M, error) {
	channel, ok := args["publish"].(string)
	if !ok || channel == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "publish requires a non-empty channel string")
	}
	message, err := toRaw(args["message"])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, "message must be a document")
	}

	if p.Publish(channel, message) {
		return bson.M{"ok": 1}, nil
	}
	return bson.M{"ok": 0}, nil
}

// SubscribeCommand implements the `subscribe` command's wire shape:
// { subscribe: <channel>, filter?: <document>, projection?: <document> }
// -> { subscriptionId: <id> }.
func (p *PubSub) SubscribeCommand(args bson.M) (bson.M, error) {
	channel, ok := args["subscribe"].(string)
	if !ok || channel == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "subscribe requires a non-empty channel string")
	}
	filter, err := toRaw(args["filter"])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, "filter must be a document")
	}
	projection, err := toRaw(args["projection"])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, "projection must be a document")
	}

	id, err := p.Subscribe(channel, filter, projection)
	if err != nil {
		return nil, err
	}
	return bson.M{"subscriptionId": id}, nil
}

// PollCommand implements the `poll` command's wire shape:
// { poll: <id | array-of-ids>, timeout?: <millis> } ->
// { messages: {...}, millisPolled: <int>, pollAgain?: true, errors?: {...} }.
func (p *PubSub) PollCommand(args bson.M) (bson.M, error) {
	ids, err := parseIDs(args["poll"])
	if err != nil {
		return nil, err
	}

	timeout := defaultPollTimeout
	if raw, ok := args["timeout"]; ok {
		ms, ok := toInt64(raw)
		if !ok {
			return nil, errors.Wrap(ErrInvalidArgument, "timeout must be a number of milliseconds")
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	result := p.Poll(ids, timeout)

	messages := bson.M{}
	for id, byChannel := range result.Messages {
		channels := bson.M{}
		for channel, docs := range byChannel {
			channels[channel] = docs
		}
		messages[id.Hex()] = channels
	}

	out := bson.M{
		"messages":     messages,
		"millisPolled": result.MillisPolled,
	}
	if result.PollAgain {
		out["pollAgain"] = true
	}
	if len(result.Errors) > 0 {
		errs := bson.M{}
		for id, msg := range result.Errors {
			errs[id.Hex()] = msg
		}
		out["errors"] = errs
	}
	return out, nil
}

// UnsubscribeCommand implements the `unsubscribe` command's wire shape:
// { unsubscribe: <id | array-of-ids> } -> { errors?: {...} }.
func (p *PubSub) UnsubscribeCommand(args bson.M) (bson.M, error) {
	ids, err := parseIDs(args["unsubscribe"])
	if err != nil {
		return nil, err
	}

	errs := p.Unsubscribe(ids)
	if len(errs) == 0 {
		return bson.M{}, nil
	}
	out := bson.M{}
	for id, msg := range errs {
		out[id] = msg
	}
	return bson.M{"errors": out}, nil
}

// SubscriptionsCommand is the introspection call: it lists every
// subscription id currently registered on this node, live or not yet
// reaped, for diagnostics and tests. It has no analogue in the client
// command surface proper.
func (p *PubSub) SubscriptionsCommand() bson.M {
	ids := p.reg.Snapshot()
	hex := make([]string, 0, len(ids))
	for _, id := range ids {
		hex = append(hex, id.Hex())
	}
	return bson.M{"subscriptions": hex, "count": len(hex)}
}

// toInt64 accepts the handful of numeric shapes a decoded BSON document
// might hand back for an integer field.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case primitive.Timestamp:
		return int64(n.T), true
	default:
		return 0, false
	}
}
