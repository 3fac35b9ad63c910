package bridge

// StreamEventKind classifies what an observer extracted from the game
// stream.
type StreamEventKind int

const (
	// StreamSessionWelcome announces which session the stream belongs to.
	StreamSessionWelcome StreamEventKind = iota
	// StreamIdentityAssigned carries the local participant's id.
	StreamIdentityAssigned
	// StreamParticipantNamed announces or updates a participant's info.
	StreamParticipantNamed
	// StreamParticipantRemoved reports a participant leaving the game.
	StreamParticipantRemoved
)

// StreamEvent is one classified observation from the game stream.
type StreamEvent struct {
	Kind    StreamEventKind
	Session SessionKey
	ID      ParticipantID
	Name    string
	Hue     float64
	Custom  map[string]any
}
