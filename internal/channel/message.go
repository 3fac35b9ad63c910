package channel

// MessageKind classifies backend-neutral presence channel traffic.
type MessageKind int

const (
	// KindChat is a chat line.
	KindChat MessageKind = iota
	// KindJoin announces the local player joining the session channel.
	KindJoin
	// KindLeave announces departure. Backends define the wire semantics:
	// the broker publishes an explicit leave envelope, the relay closes
	// the connection gracefully and lets the server announce it.
	KindLeave
)

// Message is the backend-neutral shape of one channel frame.
// Game carries the session key; inbound relay frames leave it empty
// because the relay scopes traffic server-side.
type Message struct {
	Kind MessageKind
	Game string
	ID   uint32
	Name string
	Hue  float64
	Text string
}
