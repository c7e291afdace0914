package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb-labs/pubsub/internal/config"
)

func TestOptions_ToConfig(t *testing.T) {
	opts := newOptions()
	opts.role = "Proxy"
	opts.peers = []string{"host:27019"}

	cfg, err := opts.toConfig()
	require.NoError(t, err)
	assert.Equal(t, config.RoleProxy, cfg.Role)
	assert.Equal(t, []string{"host:27019"}, cfg.Peers)
}

func TestOptions_ToConfigRejectsUnknownRole(t *testing.T) {
	opts := newOptions()
	opts.role = "replica"

	_, err := opts.toConfig()
	assert.Error(t, err)
}
