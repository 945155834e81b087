package transport

// EventType identifies the kind of application-visible event a Conn
// produced (§7 of the connection's event queue).
type EventType uint8

const (
	// EventStreamReadable indicates a stream has newly-readable data or a FIN.
	EventStreamReadable EventType = iota
	// EventStreamWritable indicates a previously send-blocked stream can
	// accept more data, or that its peer reset read interest (STOP_SENDING).
	EventStreamWritable
	// EventStreamComplete indicates all sent data on a stream has been acked.
	EventStreamComplete
	// EventStreamReset indicates the peer reset the stream (RESET_STREAM).
	EventStreamReset
	// EventStreamStop indicates the peer asked this endpoint to stop
	// sending on a stream (STOP_SENDING).
	EventStreamStop
	// EventNewToken indicates the peer (server) sent a NEW_TOKEN the
	// client may present on a future connection to this server to skip
	// the Retry round trip (see token.go).
	EventNewToken
)

func (t EventType) String() string {
	switch t {
	case EventStreamReadable:
		return "stream_readable"
	case EventStreamWritable:
		return "stream_writable"
	case EventStreamComplete:
		return "stream_complete"
	case EventStreamReset:
		return "stream_reset"
	case EventStreamStop:
		return "stream_stop"
	case EventNewToken:
		return "new_token"
	default:
		return "unknown"
	}
}

// Event is an application-visible notification raised by a Conn while
// processing received packets. Callers drain these via Conn.Events after
// each Write.
type Event struct {
	Type      EventType
	StreamID  uint64
	ErrorCode uint64
	Token     []byte // Set only for EventNewToken.
}

func newStreamRecvEvent(id uint64) Event {
	return Event{Type: EventStreamReadable, StreamID: id}
}

func newStreamCompleteEvent(id uint64) Event {
	return Event{Type: EventStreamComplete, StreamID: id}
}

func newStreamResetEvent(id, errorCode uint64) Event {
	return Event{Type: EventStreamReset, StreamID: id, ErrorCode: errorCode}
}

func newStreamStopEvent(id, errorCode uint64) Event {
	return Event{Type: EventStreamStop, StreamID: id, ErrorCode: errorCode}
}

func newTokenEvent(token []byte) Event {
	return Event{Type: EventNewToken, Token: token}
}
