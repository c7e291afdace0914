// Package topology assembles the pub/sub socket wiring for a node,
// depending on whether it is shard-serving, a configuration node, or a
// routing proxy. On the shard and routing-proxy roles every local
// subscriber ends up connected to the same inproc fan-out endpoint (the
// config role binds none), and on every role a local publisher ends up
// with a single outbound socket whose reach is the whole deployment.
package topology

import "fmt"

// InternalEndpoint is the well-known in-process fan-out endpoint every
// local subscriber connects to.
const InternalEndpoint = "inproc://pubsub"

// replEndpoint is the port shard nodes use to publish to and receive from
// their replica set peers, and that routing proxies push to on the
// configuration node.
func replEndpoint(host string, port int) string {
	return fmt.Sprintf("tcp://%s:%d", host, port+1234)
}

// fanoutEndpoint is the port configuration nodes publish fan-out on, and
// that routing proxies subscribe to.
func fanoutEndpoint(host string, port int) string {
	return fmt.Sprintf("tcp://%s:%d", host, port+2345)
}

// bindReplEndpoint returns the wildcard bind address for the repl port.
func bindReplEndpoint(port int) string {
	return replEndpoint("*", port)
}

// bindFanoutEndpoint returns the wildcard bind address for the fanout port.
func bindFanoutEndpoint(port int) string {
	return fanoutEndpoint("*", port)
}
