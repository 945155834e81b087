package qtcore

import "github.com/birkeland/qtcore/transport"

// Connection-lifecycle events. These share transport.EventType's
// underlying type but live outside its iota range so a Handler's switch
// over e.Type can match both transport-level stream events and the
// engine-level connection events in one statement, the same way the
// teacher's client command switched on quic.EventConnAccept and
// transport.EventStream side by side.
const (
	EventConnAccept transport.EventType = iota + 100
	EventConnHandshakeDone
	EventConnClose
)

// Handler processes the events a connection accumulated since the last
// call: stream readability/writability/reset notifications from the
// transport core, plus the connection-lifecycle events above.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(c Conn, events []transport.Event)

func (f HandlerFunc) Serve(c Conn, events []transport.Event) {
	f(c, events)
}
