package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxy_ForwardsFrames(t *testing.T) {
	pushEndpoint := "inproc://transport-test-proxy-push"
	pubEndpoint := "inproc://transport-test-proxy-pub"

	from, err := NewSocket(KindPull)
	require.NoError(t, err)
	defer from.Close()
	require.NoError(t, from.Bind(pushEndpoint))

	to, err := NewSocket(KindPub)
	require.NoError(t, err)
	defer to.Close()
	require.NoError(t, to.Bind(pubEndpoint))

	sub, err := NewSocket(KindSub)
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, sub.Dial(pubEndpoint))
	require.NoError(t, sub.SetSubscribeFilter(nil))

	done := make(chan error, 1)
	go func() { done <- Proxy(from, to) }()

	push, err := NewSocket(KindPush)
	require.NoError(t, err)
	defer push.Close()
	require.NoError(t, push.Dial(pushEndpoint))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, push.SendFrames([]byte("forwarded")))

	frame, ok, err := sub.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("forwarded"), frame)

	from.Close()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("proxy goroutine did not exit after its source socket closed")
	}
}
