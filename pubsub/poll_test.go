package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb-labs/pubsub/internal/registry"
)

func TestPoll_UnknownIDReportsNotFound(t *testing.T) {
	p := newTestNode(t)

	result := p.Poll([]registry.SubscriptionID{registry.NewSubscriptionID()}, 0)
	require.Len(t, result.Errors, 1)
	for _, msg := range result.Errors {
		assert.Equal(t, "Subscription not found.", msg)
	}
}

func TestPoll_EmptyIDListFastReturns(t *testing.T) {
	p := newTestNode(t)

	start := time.Now()
	result := p.Poll(nil, 5*time.Second)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Empty(t, result.Messages)
	assert.Empty(t, result.Errors)
}

func TestPoll_ZeroTimeoutReturnsImmediatelyWithNoMessages(t *testing.T) {
	p := newTestNode(t)

	id, err := p.Subscribe("q", nil, nil)
	require.NoError(t, err)
	settleSubscription()

	start := time.Now()
	result := p.Poll([]registry.SubscriptionID{id}, 0)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Empty(t, result.Messages[id])
}

func TestPoll_TimeoutWithNoPublishWaitsOutFullWindow(t *testing.T) {
	p := newTestNodeWithCap(t, false)

	id, err := p.Subscribe("q", nil, nil)
	require.NoError(t, err)
	settleSubscription()

	start := time.Now()
	result := p.Poll([]registry.SubscriptionID{id}, 300*time.Millisecond)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Empty(t, result.Messages[id])
	assert.False(t, result.PollAgain)
}

func TestPoll_CapHitSetsPollAgain(t *testing.T) {
	// newTestNode already sets Debug: true, collapsing the reaper window
	// (and thus the poll cap) to 100ms.
	p := newTestNode(t)

	id, err := p.Subscribe("q", nil, nil)
	require.NoError(t, err)
	settleSubscription()

	result := p.Poll([]registry.SubscriptionID{id}, 5*time.Second)
	assert.True(t, result.PollAgain)
	assert.Equal(t, int64(100), result.MillisPolled)
}

func TestPoll_TwoConcurrentPollsOneWins(t *testing.T) {
	p := newTestNode(t)

	id, err := p.Subscribe("q", nil, nil)
	require.NoError(t, err)
	settleSubscription()

	type outcome struct {
		result *PollResult
	}
	results := make(chan outcome, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			results <- outcome{p.Poll([]registry.SubscriptionID{id}, 200*time.Millisecond)}
		}()
	}
	close(start)

	first := <-results
	second := <-results

	conflicts := 0
	clean := 0
	for _, o := range []outcome{first, second} {
		if msg, ok := o.result.Errors[id]; ok {
			assert.Equal(t, "Poll currently active.", msg)
			conflicts++
		} else {
			clean++
		}
	}
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, clean)
}

func TestPoll_UnsubscribeMidPollCancelsWithinOneTick(t *testing.T) {
	p := newTestNode(t)

	id, err := p.Subscribe("q", nil, nil)
	require.NoError(t, err)
	settleSubscription()

	done := make(chan *PollResult, 1)
	go func() {
		done <- p.Poll([]registry.SubscriptionID{id}, 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	errs := p.Unsubscribe([]registry.SubscriptionID{id})
	assert.Empty(t, errs)

	select {
	case result := <-done:
		assert.Equal(t, "Poll interrupted by unsubscribe.", result.Errors[id])
	case <-time.After(time.Second):
		t.Fatal("poll did not observe the unsubscribe within one tick")
	}
}

func TestPoll_MixedKnownAndUnknownIDsIsolatesErrors(t *testing.T) {
	p := newTestNode(t)

	known, err := p.Subscribe("q", nil, nil)
	require.NoError(t, err)
	settleSubscription()

	unknown := registry.NewSubscriptionID()
	result := p.Poll([]registry.SubscriptionID{known, unknown}, 0)

	assert.Empty(t, result.Messages[known])
	assert.Equal(t, "Subscription not found.", result.Errors[unknown])
	_, stillFine := result.Errors[known]
	assert.False(t, stillFine)
}
