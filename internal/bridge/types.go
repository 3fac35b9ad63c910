package bridge

import "fmt"

// ParticipantID identifies one game participant. Assigned by the game
// protocol; the bridge only ever observes it.
type ParticipantID uint32

// SessionKey identifies one game session instance, derived from the
// session's symbolic name and numeric id. Two observer events with the
// same key refer to the same logical session even across game-stream
// reconnects.
type SessionKey struct {
	Name string
	ID   string
}

func (k SessionKey) String() string {
	return k.Name + ":" + k.ID
}

// IsZero reports whether no session is known.
func (k SessionKey) IsZero() bool {
	return k.Name == "" && k.ID == ""
}

// ParticipantInfo is display info gathered opportunistically from the
// game stream. Any field may be missing at any time.
type ParticipantInfo struct {
	ID     ParticipantID
	Name   string
	Hue    float64
	Custom map[string]any
}

// DisplayKind distinguishes chat lines from presence notices.
type DisplayKind int

const (
	DisplayChat DisplayKind = iota
	DisplayPresence
)

// DisplayEvent is what the bridge hands to the view layer. Hue is nil
// when the line should use neutral styling.
type DisplayEvent struct {
	Speaker string
	Text    string
	Hue     *float64
	Kind    DisplayKind
	Self    bool
}

// DisplaySink receives display events and the rare blocking notice
// (auth failure). The bridge assumes nothing about rendering.
type DisplaySink interface {
	Display(ev DisplayEvent)
	Notice(text string)
}

func placeholderName(id ParticipantID) string {
	return fmt.Sprintf("ID%d", id)
}
