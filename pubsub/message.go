package pubsub

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/pubsub/internal/registry"
)

// timestampBytes is the fixed width of the trailing send-timestamp frame:
// an 8-byte little-endian microsecond count, per the wire protocol.
const timestampBytes = 8

// encodeFrame lays out the three-part wire frame as a single buffer: the
// channel bytes including a trailing NUL, the raw payload bytes, and an
// 8-byte little-endian send timestamp in microseconds. The NUL terminator
// and fixed-width timestamp make the frame self-delimiting without a
// separate length prefix.
func encodeFrame(channel []byte, payload []byte, sentAt time.Time) []byte {
	buf := make([]byte, 0, len(channel)+1+len(payload)+timestampBytes)
	buf = append(buf, channel...)
	buf = append(buf, 0)
	buf = append(buf, payload...)
	var ts [timestampBytes]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(sentAt.UnixMicro()))
	buf = append(buf, ts[:]...)
	return buf
}

// decodeFrame splits a wire frame back into its channel, payload, and send
// timestamp.
func decodeFrame(frame []byte) (channel []byte, payload []byte, sentAt time.Time, err error) {
	if len(frame) < timestampBytes {
		return nil, nil, time.Time{}, errors.New("pubsub: frame shorter than the trailing timestamp")
	}
	nul := bytes.IndexByte(frame, 0)
	if nul < 0 {
		return nil, nil, time.Time{}, errors.New("pubsub: frame missing NUL-terminated channel")
	}
	channel = frame[:nul]
	rest := frame[nul+1:]
	if len(rest) < timestampBytes {
		return nil, nil, time.Time{}, errors.New("pubsub: frame payload shorter than the trailing timestamp")
	}
	payload = rest[:len(rest)-timestampBytes]
	micros := binary.LittleEndian.Uint64(rest[len(rest)-timestampBytes:])
	sentAt = time.UnixMicro(int64(micros))
	return channel, payload, sentAt, nil
}

// Message is one delivered publication, scoped to the subscription that
// received it.
type Message struct {
	SubscriptionID registry.SubscriptionID
	Channel        string
	Payload        bson.Raw
	SentAt         time.Time
}

// messageQueue orders messages first by subscription id ascending, then by
// channel ascending, then by timestamp descending, so draining it yields
// every message for one subscription grouped together, each channel's
// messages grouped within that, newest first within a channel. It is a
// purely output-side convenience: nothing requires the poll engine to
// route messages through a priority queue rather than appending straight
// into the response structure, but doing so keeps the ordering invariant
// in one place instead of scattered across callers.
type messageQueue []Message

func (q messageQueue) Len() int { return len(q) }

func (q messageQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if c := registryCompare(a.SubscriptionID, b.SubscriptionID); c != 0 {
		return c < 0
	}
	if a.Channel != b.Channel {
		return a.Channel < b.Channel
	}
	return a.SentAt.After(b.SentAt)
}

func (q messageQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *messageQueue) Push(x any) { *q = append(*q, x.(Message)) }

func (q *messageQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func registryCompare(a, b registry.SubscriptionID) int {
	return bytes.Compare(a[:], b[:])
}

// drainOrdered pops every message out of the heap in (id, channel,
// newest-first) order.
func drainOrdered(q *messageQueue) []Message {
	out := make([]Message, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, heap.Pop(q).(Message))
	}
	return out
}
