package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestPublishCommand_WireShape(t *testing.T) {
	p := newTestNode(t)

	out, err := p.PublishCommand(bson.M{"publish": "room.a", "message": bson.M{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"ok": 1}, out)
}

func TestPublishCommand_RejectsMissingChannel(t *testing.T) {
	p := newTestNode(t)

	_, err := p.PublishCommand(bson.M{"message": bson.M{"x": 1}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubscribeCommand_ReturnsSubscriptionID(t *testing.T) {
	p := newTestNode(t)

	out, err := p.SubscribeCommand(bson.M{"subscribe": "room.a"})
	require.NoError(t, err)
	_, ok := out["subscriptionId"]
	assert.True(t, ok)
}

func TestPollCommand_RoundTripsThroughWireShape(t *testing.T) {
	p := newTestNode(t)

	sub, err := p.SubscribeCommand(bson.M{"subscribe": "room.a"})
	require.NoError(t, err)
	id := sub["subscriptionId"]
	settleSubscription()

	_, err = p.PublishCommand(bson.M{"publish": "room.a", "message": bson.M{"x": 1}})
	require.NoError(t, err)

	out, err := p.PollCommand(bson.M{"poll": id, "timeout": int32(500)})
	require.NoError(t, err)

	messages, ok := out["messages"].(bson.M)
	require.True(t, ok)
	assert.NotEmpty(t, messages)
	assert.Contains(t, out, "millisPolled")
}

func TestPollCommand_RejectsMissingID(t *testing.T) {
	p := newTestNode(t)

	_, err := p.PollCommand(bson.M{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUnsubscribeCommand_EmptyErrorsOnSuccess(t *testing.T) {
	p := newTestNode(t)

	sub, err := p.SubscribeCommand(bson.M{"subscribe": "room.a"})
	require.NoError(t, err)

	out, err := p.UnsubscribeCommand(bson.M{"unsubscribe": sub["subscriptionId"]})
	require.NoError(t, err)
	_, hasErrors := out["errors"]
	assert.False(t, hasErrors)
}

func TestSubscriptionsCommand_ListsRegisteredIDs(t *testing.T) {
	p := newTestNode(t)

	_, err := p.SubscribeCommand(bson.M{"subscribe": "room.a"})
	require.NoError(t, err)

	out := p.SubscriptionsCommand()
	assert.EqualValues(t, 1, out["count"])
}

func TestParseIDs_AcceptsArrayOfHexStrings(t *testing.T) {
	a, b := "507f1f77bcf86cd799439011", "507f191e810c19729de860ea"
	ids, err := parseIDs([]interface{}{a, b})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, a, ids[0].Hex())
	assert.Equal(t, b, ids[1].Hex())
}

func TestParseIDs_RejectsMalformedID(t *testing.T) {
	_, err := parseIDs("not-a-valid-object-id")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
