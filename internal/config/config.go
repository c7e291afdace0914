// Package config holds the environment inputs that shape how a node wires
// up its pub/sub topology: its role in the deployment, its base port, the
// peers it already knows about, and the debug switches that shrink the
// reaper window for testing.
package config

import "time"

// Role identifies which of the three bootstrap topologies a node assembles
// at startup.
type Role int

const (
	// RoleShard is a shard-serving node: it publishes and subscribes
	// directly to its replica set peers.
	RoleShard Role = iota
	// RoleConfig is a configuration node: it fans out messages pushed to
	// it by routing proxies to every subscribed routing proxy.
	RoleConfig
	// RoleProxy is a routing proxy: it has no peers of its own and
	// reaches the deployment only through a configuration node.
	RoleProxy
)

func (r Role) String() string {
	switch r {
	case RoleShard:
		return "shard"
	case RoleConfig:
		return "config"
	case RoleProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// defaultReaperWindow is the production idle window: a subscription
// survives as long as some poll touches it within ten minutes.
const defaultReaperWindow = 10 * time.Minute

// debugReaperWindow collapses both the reaper window and the poll cap to
// 100ms so integration tests don't have to wait ten minutes for a sweep.
const debugReaperWindow = 100 * time.Millisecond

// tickInterval bounds how long a single wait iteration inside the poll
// loop runs before it comes up for air to check for cancellation.
const tickInterval = 100 * time.Millisecond

// Config is the process-wide configuration the topology bootstrap and the
// poll engine read from.
type Config struct {
	// Role selects which of the three bootstrap topologies to assemble.
	Role Role
	// Port is this node's base port P; pub/sub derives its own endpoints
	// at P+1234 and P+2345.
	Port int
	// Peers lists the configuration nodes a routing proxy may connect to;
	// the proxy picks the one with the numerically largest port. Only
	// consulted when Role == RoleProxy.
	Peers []string
	// ConfigAddr is a configuration node's "host:port" base address. A
	// sharded shard node uses it to reach the dedicated $events route.
	// Only consulted when Role == RoleShard && Sharded.
	ConfigAddr string
	// Debug collapses the reaper window and poll cap to 100ms.
	Debug bool
	// Sharded marks a shard node as participating in a sharded cluster,
	// which enables forwarding of $events-prefixed publications to the
	// configuration node's dedicated PUSH route.
	Sharded bool
	// EventsPrefix is the reserved channel prefix forwarded to the
	// configuration node alongside the normal outbound route. Defaults to
	// "$events" when empty.
	EventsPrefix string
}

// ReaperWindow returns the idle window after which an unpolled
// subscription is reclaimed, and the same value doubles as the system's
// maximum poll cap.
func (c Config) ReaperWindow() time.Duration {
	if c.Debug {
		return debugReaperWindow
	}
	return defaultReaperWindow
}

// Tick returns the bounded wait granularity used inside the poll loop.
func (c Config) Tick() time.Duration {
	return tickInterval
}

// EventsChannelPrefix returns the configured reserved prefix, defaulting
// to "$events".
func (c Config) EventsChannelPrefix() string {
	if c.EventsPrefix == "" {
		return "$events"
	}
	return c.EventsPrefix
}
