package topology

import (
	"net"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/mongodb-labs/pubsub/internal/config"
	"github.com/mongodb-labs/pubsub/internal/transport"
)

// Topology is the assembled socket wiring for one node. Exactly one of the
// three bootstrap configurations produces it, chosen by cfg.Role.
type Topology struct {
	cfg config.Config

	// Outbound is where a local publish lands: a PUB socket reaching
	// replica set peers (shard role), a PUB socket bound for routing
	// proxies to subscribe to (config role), or a PUSH socket reaching
	// the chosen configuration node (proxy role).
	Outbound *transport.Socket

	// EventsPush is the dedicated route for $events-prefixed
	// publications on a sharded shard node. Nil on every other role.
	EventsPush *transport.Socket

	// Internal is the inproc PUB socket every local subscriber dials
	// into on the shard and proxy roles. It is nil on the config role,
	// which does not create one, and nil if bootstrap failed before
	// reaching it.
	Internal *transport.Socket

	// Peers tracks replica set membership. Non-nil only on the shard
	// role, where peer churn is driven by the replication layer.
	Peers *PeerSet

	inbound *transport.Socket
}

// Bootstrap assembles the topology for cfg.Role. A transport failure during
// bootstrap is logged and returned; the caller (the node's startup path)
// is expected to leave pub/sub disabled rather than fail the whole
// process, per the host server's degrade-gracefully policy.
func Bootstrap(cfg config.Config) (*Topology, error) {
	switch cfg.Role {
	case config.RoleShard:
		return bootstrapShard(cfg)
	case config.RoleConfig:
		return bootstrapConfig(cfg)
	case config.RoleProxy:
		return bootstrapProxy(cfg)
	default:
		log.WithField("role", cfg.Role).Error("pubsub: unknown node role, leaving pub/sub disabled")
		return &Topology{cfg: cfg}, nil
	}
}

func bootstrapShard(cfg config.Config) (*Topology, error) {
	t := &Topology{cfg: cfg}

	outbound, err := transport.NewSocket(transport.KindPub)
	if err != nil {
		return t, logBootstrapErr("create outbound PUB socket", err)
	}
	t.Outbound = outbound

	inbound, err := transport.NewSocket(transport.KindSub)
	if err != nil {
		return t, logBootstrapErr("create inbound SUB socket", err)
	}
	if err := inbound.Bind(bindReplEndpoint(cfg.Port)); err != nil {
		return t, logBootstrapErr("bind inbound SUB socket", err)
	}
	if err := inbound.SetSubscribeFilter(nil); err != nil {
		return t, logBootstrapErr("set match-all filter on inbound SUB socket", err)
	}
	t.inbound = inbound

	// Connect the outbound PUB socket to our own inbound endpoint so
	// locally-published messages reach locally-connected subscribers the
	// same way a peer's messages would.
	if err := outbound.Dial(replEndpoint("localhost", cfg.Port)); err != nil {
		return t, logBootstrapErr("connect outbound socket to self", err)
	}

	internal, err := transport.NewSocket(transport.KindPub)
	if err != nil {
		return t, logBootstrapErr("create internal PUB socket", err)
	}
	if err := internal.Bind(InternalEndpoint); err != nil {
		return t, logBootstrapErr("bind internal PUB socket", err)
	}
	t.Internal = internal

	go runProxy(inbound, internal)

	t.Peers = newPeerSet(outbound, cfg.Port)

	if cfg.Sharded && cfg.ConfigAddr != "" {
		host, portStr, err := net.SplitHostPort(cfg.ConfigAddr)
		if err != nil {
			log.WithError(err).Error("pubsub: invalid config server address, $events route disabled")
		} else if port, err := strconv.Atoi(portStr); err != nil {
			log.WithError(err).Error("pubsub: invalid config server port, $events route disabled")
		} else {
			eventsPush, err := transport.NewSocket(transport.KindPush)
			if err != nil {
				log.WithError(err).Error("pubsub: failed to create $events PUSH socket")
			} else if err := eventsPush.Dial(replEndpoint(host, port)); err != nil {
				log.WithError(err).Error("pubsub: failed to connect $events PUSH socket")
			} else {
				t.EventsPush = eventsPush
			}
		}
	}

	return t, nil
}

func bootstrapConfig(cfg config.Config) (*Topology, error) {
	t := &Topology{cfg: cfg}

	outbound, err := transport.NewSocket(transport.KindPub)
	if err != nil {
		return t, logBootstrapErr("create outbound PUB socket", err)
	}
	if err := outbound.Bind(bindFanoutEndpoint(cfg.Port)); err != nil {
		return t, logBootstrapErr("bind outbound PUB socket", err)
	}
	t.Outbound = outbound

	inbound, err := transport.NewSocket(transport.KindPull)
	if err != nil {
		return t, logBootstrapErr("create inbound PULL socket", err)
	}
	if err := inbound.Bind(bindReplEndpoint(cfg.Port)); err != nil {
		return t, logBootstrapErr("bind inbound PULL socket", err)
	}
	t.inbound = inbound

	go runProxy(inbound, outbound)

	return t, nil
}

func bootstrapProxy(cfg config.Config) (*Topology, error) {
	t := &Topology{cfg: cfg}

	target := pickWidestConfigPort(cfg.Peers)
	if target == "" {
		return t, logBootstrapErr("select configuration node", errNoConfigPeers)
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return t, logBootstrapErr("parse configuration node address", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return t, logBootstrapErr("parse configuration node port", err)
	}

	outbound, err := transport.NewSocket(transport.KindPush)
	if err != nil {
		return t, logBootstrapErr("create outbound PUSH socket", err)
	}
	if err := outbound.Dial(replEndpoint(host, port)); err != nil {
		return t, logBootstrapErr("connect outbound PUSH socket", err)
	}
	t.Outbound = outbound

	inbound, err := transport.NewSocket(transport.KindSub)
	if err != nil {
		return t, logBootstrapErr("create inbound SUB socket", err)
	}
	if err := inbound.Dial(fanoutEndpoint(host, port)); err != nil {
		return t, logBootstrapErr("connect inbound SUB socket", err)
	}
	if err := inbound.SetSubscribeFilter(nil); err != nil {
		return t, logBootstrapErr("set match-all filter on inbound SUB socket", err)
	}
	t.inbound = inbound

	internal, err := transport.NewSocket(transport.KindPub)
	if err != nil {
		return t, logBootstrapErr("create internal PUB socket", err)
	}
	if err := internal.Bind(InternalEndpoint); err != nil {
		return t, logBootstrapErr("bind internal PUB socket", err)
	}
	t.Internal = internal

	go runProxy(inbound, internal)

	// The routing-proxy role relies on a single configuration-node
	// connection; it has no PeerSet of its own, normalizing the upstream
	// mongos variant's omission of replica-set-style peer churn.
	return t, nil
}

func runProxy(from, to *transport.Socket) {
	if err := transport.Proxy(from, to); err != nil {
		log.WithError(err).WithField("from", from.Kind()).WithField("to", to.Kind()).
			Error("pubsub: internal fan-out proxy stopped")
	}
}

func logBootstrapErr(step string, err error) error {
	log.WithError(err).WithField("step", step).Error("pubsub: topology bootstrap failed, leaving pub/sub disabled")
	return err
}

var errNoConfigPeers = bootstrapError("no configuration node peers configured")

type bootstrapError string

func (e bootstrapError) Error() string { return string(e) }

// pickWidestConfigPort returns the peer address whose port is numerically
// largest, matching the upstream mongos rule for choosing which
// configuration server to route pub/sub traffic through.
func pickWidestConfigPort(peers []string) string {
	best := ""
	bestPort := -1
	for _, p := range peers {
		_, portStr, err := net.SplitHostPort(p)
		if err != nil {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		if port > bestPort {
			bestPort = port
			best = p
		}
	}
	return best
}
