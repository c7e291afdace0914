package transport

// Proxy blockingly forwards every frame received on from to to, until
// either socket is closed out from under it. It is the Go-level analogue of
// a ZeroMQ proxy device: losslessness during steady state is its only
// contract, so any fan-out primitive (a goroutine copying loop, a kernel
// device, a broker) can stand in for it.
//
// Proxy is meant to run in its own goroutine for the lifetime of the node.
func Proxy(from, to *Socket) error {
	for {
		msg, err := from.Raw().RecvMsg()
		if err != nil {
			return newError(from.kind, "proxy recv", err)
		}
		if err := to.Raw().SendMsg(msg); err != nil {
			return newError(to.kind, "proxy send", err)
		}
	}
}
