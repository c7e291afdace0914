package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb-labs/pubsub/internal/registry"
)

func TestUnsubscribe_TwiceSecondReportsNotFound(t *testing.T) {
	p := newTestNode(t)

	id, err := p.Subscribe("room.a", nil, nil)
	require.NoError(t, err)

	errs := p.Unsubscribe([]registry.SubscriptionID{id})
	assert.Empty(t, errs)

	errs = p.Unsubscribe([]registry.SubscriptionID{id})
	require.Len(t, errs, 1)
	assert.Equal(t, "Subscription not found.", errs[id.Hex()])
}

func TestUnsubscribe_MultipleIDsIsolatesErrors(t *testing.T) {
	p := newTestNode(t)

	known, err := p.Subscribe("room.a", nil, nil)
	require.NoError(t, err)
	unknown := registry.NewSubscriptionID()

	errs := p.Unsubscribe([]registry.SubscriptionID{known, unknown})
	require.Len(t, errs, 1)
	assert.Equal(t, "Subscription not found.", errs[unknown.Hex()])
	_, hasKnown := errs[known.Hex()]
	assert.False(t, hasKnown)
}
