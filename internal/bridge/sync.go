package bridge

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/channel"
)

const (
	// selfHue colors the local player's own chat lines.
	selfHue = 310.0
	// joinNudgeDelay retries the join announcement shortly after a
	// welcome, for the case where identity landed before the channel.
	joinNudgeDelay = time.Second

	fallbackName = "Unknown"
)

// Synchronizer is the bridge between inferred session membership and
// the presence channel. It is the only writer of the membership set and
// the only emitter of join/leave announcements.
type Synchronizer struct {
	tracker *Tracker
	client  *channel.Client
	sink    DisplaySink
	limiter *sendLimiter
	after   func(d time.Duration, fn func())
	log     *zerolog.Logger

	members map[ParticipantID]struct{}

	// joined guards the at-most-once join announcement per
	// (session, connection) pair. Reset on session change and on every
	// transition into Connected.
	joined bool
}

func newSynchronizer(sink DisplaySink, limiter *sendLimiter, logger *zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		sink:    sink,
		limiter: limiter,
		log:     logger,
		members: make(map[ParticipantID]struct{}),
	}
}

func (s *Synchronizer) isMember(id ParticipantID) bool {
	_, ok := s.members[id]
	return ok
}

// onSessionChanged tears membership state down for the old session and
// points the channel subscription at the new one. Called before the
// tracker updates its current key.
func (s *Synchronizer) onSessionChanged(_, next SessionKey) {
	s.members = make(map[ParticipantID]struct{})
	s.joined = false
	s.client.SetTopic(next.String())
}

// onSessionSeen fires connect intent and schedules the deferred join
// nudge. The nudge result is discarded if the session moved on.
func (s *Synchronizer) onSessionSeen() {
	s.client.EnsureConnected()

	key := s.tracker.current
	s.after(joinNudgeDelay, func() {
		if s.tracker.active && s.tracker.current == key {
			s.maybeAnnounceJoin()
		}
	})
}

func (s *Synchronizer) onIdentityReady() {
	s.client.EnsureConnected()
	s.maybeAnnounceJoin()
}

// onChannelConnected runs on every transition into Connected; the join
// guard resets because the new connection has seen no announcement yet.
func (s *Synchronizer) onChannelConnected() {
	s.joined = false
	s.maybeAnnounceJoin()
}

func (s *Synchronizer) onChannelDisconnected() {
	s.joined = false
}

// maybeAnnounceJoin publishes the join announcement when everything is
// in place: connected channel, known session, known identity, and no
// announcement sent yet on this (session, connection).
func (s *Synchronizer) maybeAnnounceJoin() {
	if s.joined || s.client.State() != channel.StateConnected {
		return
	}
	if !s.tracker.active || s.tracker.current.IsZero() || s.tracker.localID == nil {
		return
	}

	id := *s.tracker.localID
	name := fallbackName
	var hue float64
	if info, ok := s.tracker.info(id); ok {
		if info.Name != "" {
			name = info.Name
		}
		hue = info.Hue
	}

	if !s.limiter.allow() {
		// Dropped by the rate limiter; the guard stays clear so a
		// later trigger can retry.
		return
	}

	ok := s.client.Publish(channel.Message{
		Kind: channel.KindJoin,
		Game: s.tracker.current.String(),
		ID:   uint32(id),
		Name: name,
		Hue:  hue,
	})
	if !ok {
		return
	}

	s.joined = true
	s.members[id] = struct{}{}
	s.log.Info().Str("game", s.tracker.current.String()).Uint32("id", uint32(id)).Msg("join announced")
}

// onLocalSessionEnded tears down local presence. Both backends get an
// explicit leave; the relay transport maps it to a graceful close. The
// leave bypasses the rate limiter: teardown is not droppable traffic.
func (s *Synchronizer) onLocalSessionEnded(id ParticipantID) {
	delete(s.members, id)
	s.joined = false

	if s.client.State() != channel.StateConnected {
		return
	}
	s.client.Publish(channel.Message{
		Kind: channel.KindLeave,
		Game: s.tracker.current.String(),
		ID:   uint32(id),
	})
}

// onGameDeparture shows a participant leaving the game itself, as
// opposed to leaving the chat channel.
func (s *Synchronizer) onGameDeparture(id ParticipantID) {
	delete(s.members, id)

	name := placeholderName(id)
	var hue *float64
	if info, ok := s.tracker.info(id); ok {
		if info.Name != "" {
			name = info.Name
		}
		h := info.Hue
		hue = &h
	}
	s.sink.Display(DisplayEvent{
		Speaker: name,
		Text:    "left game",
		Hue:     hue,
		Kind:    DisplayPresence,
	})
}

// onChannelMessage handles inbound channel traffic. Frames carrying a
// session key that disagrees with the current one never touch state.
func (s *Synchronizer) onChannelMessage(msg channel.Message) {
	if msg.Game != "" && msg.Game != s.tracker.current.String() {
		return
	}

	switch msg.Kind {
	case channel.KindJoin:
		s.onRemoteJoin(msg)
	case channel.KindLeave:
		s.onRemoteLeave(msg)
	case channel.KindChat:
		s.onRemoteChat(msg)
	}
}

func (s *Synchronizer) onRemoteJoin(msg channel.Message) {
	id := ParticipantID(msg.ID)
	s.members[id] = struct{}{}
	if s.tracker.isSelf(id) {
		// Local joins are implicit, never displayed.
		return
	}

	name, hue := s.resolve(id, msg.Name, msg.Hue)
	s.sink.Display(DisplayEvent{
		Speaker: name,
		Text:    "joined chat",
		Hue:     &hue,
		Kind:    DisplayPresence,
	})
}

func (s *Synchronizer) onRemoteLeave(msg channel.Message) {
	id := ParticipantID(msg.ID)
	delete(s.members, id)
	if s.tracker.isSelf(id) {
		return
	}

	name, _ := s.resolve(id, msg.Name, msg.Hue)
	s.sink.Display(DisplayEvent{
		Speaker: name,
		Text:    "left chat",
		Kind:    DisplayPresence,
	})
}

func (s *Synchronizer) onRemoteChat(msg channel.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	id := ParticipantID(msg.ID)
	s.members[id] = struct{}{}

	if s.tracker.isSelf(id) {
		hue := selfHue
		s.sink.Display(DisplayEvent{
			Speaker: "You",
			Text:    msg.Text,
			Hue:     &hue,
			Kind:    DisplayChat,
			Self:    true,
		})
		return
	}

	name, hue := s.resolve(id, msg.Name, msg.Hue)
	s.sink.Display(DisplayEvent{
		Speaker: name,
		Text:    msg.Text,
		Hue:     &hue,
		Kind:    DisplayChat,
	})
}

// sendChat publishes a chat line typed by the local user. Empty input
// is dropped; sends inside the rate window are dropped; sends while
// disconnected fire connect intent and are dropped.
func (s *Synchronizer) sendChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if s.client.State() != channel.StateConnected {
		s.client.EnsureConnected()
		return
	}
	if !s.limiter.allow() {
		s.log.Debug().Msg("chat dropped by rate limit")
		return
	}

	msg := channel.Message{
		Kind: channel.KindChat,
		Game: s.tracker.current.String(),
		Text: text,
	}
	if s.tracker.localID != nil {
		id := *s.tracker.localID
		msg.ID = uint32(id)
		if info, ok := s.tracker.info(id); ok {
			msg.Name = info.Name
			msg.Hue = info.Hue
		}
	}
	s.client.Publish(msg)
}

// resolve picks a display name and hue: the game-stream directory wins,
// then the payload, then a synthesized placeholder.
func (s *Synchronizer) resolve(id ParticipantID, payloadName string, payloadHue float64) (string, float64) {
	name := payloadName
	hue := payloadHue
	if info, ok := s.tracker.info(id); ok {
		if info.Name != "" {
			name = info.Name
		}
		hue = info.Hue
	}
	if name == "" {
		name = placeholderName(id)
	}
	return name, hue
}
