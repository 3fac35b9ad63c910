package observer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/bridge"
)

// Snapshot is one observation of the host's session state, for hosts
// that expose a settings object instead of a frame stream.
type Snapshot struct {
	GameName string
	GameID   string
	LocalID  *uint32
	Players  map[uint32]PlayerInfo
}

// PlayerInfo mirrors what a frame-based host announces per player.
type PlayerInfo struct {
	Name   string
	Hue    float64
	Custom map[string]any
}

// SnapshotFunc reads the current snapshot; ok is false while the host
// state is unavailable.
type SnapshotFunc func() (snap Snapshot, ok bool)

// Poller is the alternate observer: it polls snapshots, diffs against
// the previous poll, and synthesizes the same stream events a
// frame-based observer would emit. Downstream cannot tell them apart.
type Poller struct {
	snap     SnapshotFunc
	interval time.Duration
	post     func(bridge.StreamEvent)
	log      *zerolog.Logger

	prev     Snapshot
	havePrev bool
}

// NewPoller builds a poller with the given interval.
func NewPoller(snap SnapshotFunc, interval time.Duration, post func(bridge.StreamEvent), logger *zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{snap: snap, interval: interval, post: post, log: logger}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.interval).Msg("snapshot poller started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	snap, ok := p.snap()
	if !ok {
		return
	}
	p.diff(snap)
	p.prev = snap
	p.havePrev = true
}

// diff emits events for everything that changed since the last poll.
// Ordering mirrors the frame stream: welcome, identity, names, removals.
func (p *Poller) diff(snap Snapshot) {
	sessionChanged := !p.havePrev || snap.GameName != p.prev.GameName || snap.GameID != p.prev.GameID
	if sessionChanged && snap.GameName != "" {
		p.post(bridge.StreamEvent{
			Kind:    bridge.StreamSessionWelcome,
			Session: bridge.SessionKey{Name: snap.GameName, ID: snap.GameID},
		})
	}

	if snap.LocalID != nil {
		if sessionChanged || !p.havePrev || p.prev.LocalID == nil || *p.prev.LocalID != *snap.LocalID {
			p.post(bridge.StreamEvent{
				Kind: bridge.StreamIdentityAssigned,
				ID:   bridge.ParticipantID(*snap.LocalID),
			})
		}
	}

	for id, player := range snap.Players {
		prev, existed := p.prev.Players[id]
		if p.havePrev && existed && prev.Name == player.Name && prev.Hue == player.Hue {
			continue
		}
		p.post(bridge.StreamEvent{
			Kind:   bridge.StreamParticipantNamed,
			ID:     bridge.ParticipantID(id),
			Name:   player.Name,
			Hue:    player.Hue,
			Custom: player.Custom,
		})
	}

	if p.havePrev && !sessionChanged {
		for id := range p.prev.Players {
			if _, still := snap.Players[id]; !still {
				p.post(bridge.StreamEvent{
					Kind: bridge.StreamParticipantRemoved,
					ID:   bridge.ParticipantID(id),
				})
			}
		}
	}
}
