package channel

import "context"

// EventKind identifies a transport lifecycle or traffic event.
type EventKind int

const (
	// EventOpened fires when the transport-level connection is up and,
	// for in-band auth backends, the auth frame has been sent.
	EventOpened EventKind = iota
	// EventAuthOK fires on an affirmative auth acknowledgement.
	EventAuthOK
	// EventAuthRejected fires on an explicit auth rejection.
	EventAuthRejected
	// EventClosed fires on any transport close, expected or not.
	EventClosed
	// EventMessage delivers one inbound channel message.
	EventMessage
)

// Event is what a transport reports back to the client.
type Event struct {
	Kind   EventKind
	Reason string
	Msg    *Message
}

// Sink receives transport events. Transports may call it from any
// goroutine; the installed sink posts onto the bridge loop.
type Sink func(Event)

// Transport is one backend's connection machinery. Methods are only
// called from the bridge loop; results and inbound traffic come back
// asynchronously through the Sink.
type Transport interface {
	// Open starts connecting with the given credential. Outcomes arrive
	// as Opened/AuthOK/AuthRejected/Closed events.
	Open(ctx context.Context, credential string)
	// Publish sends one message. Only called while connected.
	Publish(ctx context.Context, msg Message) error
	// Subscribe and Unsubscribe scope inbound traffic to one session.
	// No-ops for backends that scope server-side.
	Subscribe(game string)
	Unsubscribe(game string)
	// Close tears the connection down; a Closed event follows.
	Close(reason string)
}
