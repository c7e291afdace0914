// Package transport wraps the nanomsg socket kinds used to move pub/sub
// frames between processes and between goroutines in the same process. It
// exists so the rest of the module talks about PUB/SUB/PUSH/PULL sockets
// and inproc/tcp endpoints without depending directly on the wire library.
package transport

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/pull"
	"go.nanomsg.org/mangos/v3/protocol/push"
	"go.nanomsg.org/mangos/v3/protocol/sub"
	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// Kind identifies the socket role, mirroring the four primitives the
// original pubsub module built on top of ZeroMQ.
type Kind int

const (
	// KindPub fans a message out to every connected KindSub peer.
	KindPub Kind = iota
	// KindSub receives from a KindPub peer, optionally filtered by a
	// subscribed prefix.
	KindSub
	// KindPush round-robins messages to a single connected KindPull peer.
	KindPush
	// KindPull receives messages pushed by a KindPush peer.
	KindPull
)

func (k Kind) String() string {
	switch k {
	case KindPub:
		return "PUB"
	case KindSub:
		return "SUB"
	case KindPush:
		return "PUSH"
	case KindPull:
		return "PULL"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a failure raised by the underlying transport, carrying along
// the socket kind and operation for diagnosis.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return "transport: " + e.Op + " on " + e.Kind.String() + " socket: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Socket is a thin, typed handle over a mangos socket. Sockets are NOT
// thread-safe: callers must ensure only one goroutine uses a given Socket
// for sending and only one for receiving at a time.
type Socket struct {
	kind Kind
	sock mangos.Socket

	pipeMu sync.Mutex
	pipes  map[string]mangos.Pipe
}

// NewSocket constructs a socket of the given kind. It does not bind or
// connect; call Bind or Dial next.
func NewSocket(kind Kind) (*Socket, error) {
	var (
		s   mangos.Socket
		err error
	)
	switch kind {
	case KindPub:
		s, err = pub.NewSocket()
	case KindSub:
		s, err = sub.NewSocket()
	case KindPush:
		s, err = push.NewSocket()
	case KindPull:
		s, err = pull.NewSocket()
	default:
		return nil, errors.Errorf("transport: unknown socket kind %v", kind)
	}
	if err != nil {
		return nil, newError(kind, "new", err)
	}
	sock := &Socket{kind: kind, sock: s, pipes: make(map[string]mangos.Pipe)}
	s.SetPipeEventHook(sock.onPipeEvent)
	return sock, nil
}

// onPipeEvent tracks, per remote address, the pipe mangos attached for a
// Dial'd peer so Disconnect can tear down that specific peer's connection
// later without affecting any others dialed on the same socket.
func (s *Socket) onPipeEvent(ev mangos.PipeEvent, p mangos.Pipe) {
	s.pipeMu.Lock()
	defer s.pipeMu.Unlock()
	switch ev {
	case mangos.PipeEventAttached:
		s.pipes[p.Address()] = p
	case mangos.PipeEventDetached:
		delete(s.pipes, p.Address())
	}
}

// Kind reports the socket's role.
func (s *Socket) Kind() Kind { return s.kind }

// Bind listens for connections at the given URI (e.g. "tcp://*:27018" or
// "inproc://pubsub").
func (s *Socket) Bind(uri string) error {
	return newError(s.kind, "bind "+uri, s.sock.Listen(uri))
}

// Dial connects out to a peer bound at the given URI.
func (s *Socket) Dial(uri string) error {
	return newError(s.kind, "dial "+uri, s.sock.Dial(uri))
}

// Disconnect tears down a previously-established Dial to uri, used when a
// peer leaves the deployment. It is a no-op if no pipe is currently
// attached for uri (the dial never connected, or the peer already dropped
// it from its end).
func (s *Socket) Disconnect(uri string) error {
	s.pipeMu.Lock()
	p, ok := s.pipes[uri]
	s.pipeMu.Unlock()
	if !ok {
		return nil
	}
	return newError(s.kind, "disconnect "+uri, p.Close())
}

// SetSubscribeFilter sets the topic prefix this SUB socket will accept. An
// empty filter matches every channel.
func (s *Socket) SetSubscribeFilter(prefix []byte) error {
	if s.kind != KindSub {
		return errors.Errorf("transport: SetSubscribeFilter called on %s socket", s.kind)
	}
	return newError(s.kind, "subscribe", s.sock.SetOption(mangos.OptionSubscribe, prefix))
}

// SendFrames writes a multi-part message atomically.
func (s *Socket) SendFrames(frames ...[]byte) error {
	msg := mangos.NewMessage(0)
	for _, f := range frames {
		msg.Body = append(msg.Body, f...)
	}
	// Frames are already length-delimited by the caller (NUL-terminated
	// channel, then payload, then timestamp); mangos carries them as one
	// opaque body so we simply concatenate in send order.
	return newError(s.kind, "send", s.sock.SendMsg(msg))
}

// RecvNonBlocking returns the next message if one is immediately available,
// or (nil, false, nil) if the socket has no more frames queued right now.
func (s *Socket) RecvNonBlocking() ([]byte, bool, error) {
	if err := s.sock.SetOption(mangos.OptionRecvDeadline, time.Duration(0)); err != nil {
		return nil, false, newError(s.kind, "set recv deadline", err)
	}
	msg, err := s.sock.RecvMsg()
	if err != nil {
		if errors.Is(err, mangos.ErrRecvTimeout) {
			return nil, false, nil
		}
		return nil, false, newError(s.kind, "recv", err)
	}
	body := append([]byte(nil), msg.Body...)
	msg.Free()
	return body, true, nil
}

// RecvTimeout blocks for up to d waiting for a message. A zero result with
// ok==false and err==nil means the deadline elapsed with nothing arriving.
func (s *Socket) RecvTimeout(d time.Duration) ([]byte, bool, error) {
	if err := s.sock.SetOption(mangos.OptionRecvDeadline, d); err != nil {
		return nil, false, newError(s.kind, "set recv deadline", err)
	}
	msg, err := s.sock.RecvMsg()
	if err != nil {
		if errors.Is(err, mangos.ErrRecvTimeout) {
			return nil, false, nil
		}
		return nil, false, newError(s.kind, "recv", err)
	}
	body := append([]byte(nil), msg.Body...)
	msg.Free()
	return body, true, nil
}

// Close releases the underlying socket. Must not be called while another
// goroutine may be reading from or writing to it.
func (s *Socket) Close() error {
	return newError(s.kind, "close", s.sock.Close())
}

// Raw exposes the underlying mangos socket; Proxy uses it to forward
// messages unchanged from one socket to another.
func (s *Socket) Raw() mangos.Socket { return s.sock }
