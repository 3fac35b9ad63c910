package bridge

import "github.com/rs/zerolog"

// Tracker maintains the current session identity inferred from the
// game stream: which session is live, who the local participant is,
// and what is known about the other participants.
type Tracker struct {
	sync *Synchronizer
	log  *zerolog.Logger

	current   SessionKey
	localID   *ParticipantID
	directory map[ParticipantID]ParticipantInfo

	// active is false before the first welcome and after the local
	// participant left the game; it gates reconnect appetite.
	active bool
}

func newTracker(logger *zerolog.Logger) *Tracker {
	return &Tracker{
		log:       logger,
		directory: make(map[ParticipantID]ParticipantInfo),
	}
}

// Handle applies one observer event. Runs on the bridge loop.
func (t *Tracker) Handle(ev StreamEvent) {
	switch ev.Kind {
	case StreamSessionWelcome:
		t.onWelcome(ev.Session)
	case StreamIdentityAssigned:
		t.onIdentity(ev.ID)
	case StreamParticipantNamed:
		t.onNamed(ev)
	case StreamParticipantRemoved:
		t.onRemoved(ev.ID)
	}
}

func (t *Tracker) onWelcome(key SessionKey) {
	if key.IsZero() {
		return
	}
	if key != t.current {
		old := t.current
		t.log.Info().Str("old", old.String()).Str("new", key.String()).Msg("session changed")
		// Membership teardown happens before the key moves.
		t.sync.onSessionChanged(old, key)
		t.current = key
		t.localID = nil
	}
	t.active = true
	t.sync.onSessionSeen()
}

func (t *Tracker) onIdentity(id ParticipantID) {
	t.localID = &id
	t.active = true
	t.log.Debug().Uint32("id", uint32(id)).Msg("local identity assigned")
	t.sync.onIdentityReady()
}

func (t *Tracker) onNamed(ev StreamEvent) {
	t.directory[ev.ID] = ParticipantInfo{
		ID:     ev.ID,
		Name:   ev.Name,
		Hue:    ev.Hue,
		Custom: ev.Custom,
	}
}

func (t *Tracker) onRemoved(id ParticipantID) {
	// Removals for ids we never tracked are replay/ordering noise.
	if !t.sync.isMember(id) {
		return
	}

	if t.localID != nil && *t.localID == id {
		t.log.Info().Uint32("id", uint32(id)).Msg("local participant left the game")
		t.active = false
		t.sync.onLocalSessionEnded(id)
		return
	}

	t.sync.onGameDeparture(id)
}

// SessionToken names the session the bridge wants connectivity for,
// or "" when there is none.
func (t *Tracker) SessionToken() string {
	if !t.active || t.current.IsZero() {
		return ""
	}
	return t.current.String()
}

func (t *Tracker) info(id ParticipantID) (ParticipantInfo, bool) {
	info, ok := t.directory[id]
	return info, ok
}

func (t *Tracker) isSelf(id ParticipantID) bool {
	return t.localID != nil && *t.localID == id
}
