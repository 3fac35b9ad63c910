package observer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/bridge"
	"github.com/juliachat/bridge/internal/proto"
)

// ErrSelfReference is returned when the observer is asked to tap the
// presence channel's own connection. Attaching there would loop the
// bridge's own traffic back into itself.
var ErrSelfReference = errors.New("observer: source is the presence channel endpoint")

// FrameSource yields raw text frames from the externally owned game
// stream. The bridge never writes through a source.
type FrameSource interface {
	// Next blocks for the next frame. Any error means the source is
	// gone; the game stream is foreign, so the observer never tries to
	// revive it.
	Next(ctx context.Context) ([]byte, error)
	// Origin names the endpoint the frames come from.
	Origin() string
}

// Observer turns raw frames into classified stream events. Frames that
// fail to parse or match no known shape are dropped without a trace.
type Observer struct {
	source FrameSource
	post   func(bridge.StreamEvent)
	log    *zerolog.Logger
}

// New builds an observer over source. excludeOrigin is the presence
// channel endpoint; a source claiming the same origin is refused.
func New(source FrameSource, post func(bridge.StreamEvent), excludeOrigin string, logger *zerolog.Logger) (*Observer, error) {
	if excludeOrigin != "" && source.Origin() == excludeOrigin {
		return nil, ErrSelfReference
	}
	return &Observer{source: source, post: post, log: logger}, nil
}

// Run consumes the source until it ends or ctx is cancelled.
func (o *Observer) Run(ctx context.Context) error {
	o.log.Info().Str("origin", o.source.Origin()).Msg("observer attached")
	for {
		raw, err := o.source.Next(ctx)
		if err != nil {
			return err
		}
		if ev, ok := Classify(raw); ok {
			o.post(ev)
		}
	}
}

// Classify decodes one game frame into a stream event. The bool is
// false for anything unrecognized or malformed.
func Classify(raw []byte) (bridge.StreamEvent, bool) {
	var frame proto.GameFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return bridge.StreamEvent{}, false
	}

	switch frame.Name {
	case proto.GameFrameWelcome:
		var d proto.GameWelcomeData
		if err := json.Unmarshal(frame.Data, &d); err != nil {
			return bridge.StreamEvent{}, false
		}
		name := d.Name
		if name == "" {
			name = "unknown"
		}
		id := d.SystemID.String()
		if id == "" {
			id = "0"
		}
		return bridge.StreamEvent{
			Kind:    bridge.StreamSessionWelcome,
			Session: bridge.SessionKey{Name: name, ID: id},
		}, true

	case proto.GameFrameEntered:
		var d proto.GameEnteredData
		if err := json.Unmarshal(frame.Data, &d); err != nil || d.ShipID == nil {
			return bridge.StreamEvent{}, false
		}
		return bridge.StreamEvent{
			Kind: bridge.StreamIdentityAssigned,
			ID:   bridge.ParticipantID(*d.ShipID),
		}, true

	case proto.GameFramePlayerName:
		var d proto.GamePlayerNameData
		if err := json.Unmarshal(frame.Data, &d); err != nil {
			return bridge.StreamEvent{}, false
		}
		return bridge.StreamEvent{
			Kind:   bridge.StreamParticipantNamed,
			ID:     bridge.ParticipantID(d.ID),
			Name:   d.PlayerName,
			Hue:    d.Hue,
			Custom: d.Custom,
		}, true

	case proto.GameFrameShipGone:
		// The payload is the bare participant id.
		var id uint32
		if err := json.Unmarshal(frame.Data, &id); err != nil {
			return bridge.StreamEvent{}, false
		}
		return bridge.StreamEvent{
			Kind: bridge.StreamParticipantRemoved,
			ID:   bridge.ParticipantID(id),
		}, true

	default:
		return bridge.StreamEvent{}, false
	}
}
