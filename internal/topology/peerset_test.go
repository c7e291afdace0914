package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb-labs/pubsub/internal/transport"
)

func TestPeerSet_JoinTracksLivenessAndScanPrunesMissing(t *testing.T) {
	outbound, err := transport.NewSocket(transport.KindPub)
	require.NoError(t, err)
	defer outbound.Close()

	ps := newPeerSet(outbound, 27017)

	require.NoError(t, ps.PeerJoined("10.0.0.1", 27017))
	require.NoError(t, ps.PeerJoined("10.0.0.2", 27017))
	assert.ElementsMatch(t, []string{"10.0.0.1:27017", "10.0.0.2:27017"}, ps.Peers())

	// Completing a scan keeps both freshly joined peers but resets their
	// liveness bits, so the next scan must re-observe each one.
	ps.PeerScanComplete()

	// A scan that only re-observes one peer prunes the other.
	require.NoError(t, ps.PeerJoined("10.0.0.1", 27017))
	ps.PeerScanComplete()
	assert.Equal(t, []string{"10.0.0.1:27017"}, ps.Peers())

	// A second scan with no re-observation at all prunes everything.
	ps.PeerScanComplete()
	assert.Empty(t, ps.Peers())
}

func TestSplitHostPort(t *testing.T) {
	host, port := splitHostPort("10.0.0.1:27017")
	assert.Equal(t, "10.0.0.1", host)
	assert.Equal(t, 27017, port)
}
