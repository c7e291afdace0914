package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoints(t *testing.T) {
	assert.Equal(t, "tcp://localhost:28251", replEndpoint("localhost", 27017))
	assert.Equal(t, "tcp://localhost:29362", fanoutEndpoint("localhost", 27017))
	assert.Equal(t, "tcp://*:28251", bindReplEndpoint(27017))
	assert.Equal(t, "tcp://*:29362", bindFanoutEndpoint(27017))
}

func TestPickWidestConfigPort(t *testing.T) {
	assert.Equal(t, "", pickWidestConfigPort(nil))
	assert.Equal(t, "host:27019", pickWidestConfigPort([]string{"host:27019"}))
	assert.Equal(t, "host:27020", pickWidestConfigPort([]string{"host:27019", "host:27020", "host:27018"}))
	assert.Equal(t, "host:27019", pickWidestConfigPort([]string{"host:27019", "not-a-valid-peer"}))
}
