package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/channel"
)

// Bridge is the single thread of control. Observer events, channel
// events, timer fires, and credential prompt results all land on one
// queue and run to completion in arrival order, so no component state
// needs locking.
type Bridge struct {
	events chan func()
	log    *zerolog.Logger

	tracker *Tracker
	sync    *Synchronizer
	client  *channel.Client
}

// New builds the bridge core. Bind must be called with the channel
// client before Run.
func New(sink DisplaySink, minSendInterval time.Duration, logger *zerolog.Logger) *Bridge {
	b := &Bridge{
		events: make(chan func(), 256),
		log:    logger,
	}
	b.sync = newSynchronizer(sink, newSendLimiter(minSendInterval), logger)
	b.tracker = newTracker(logger)
	b.tracker.sync = b.sync
	b.sync.tracker = b.tracker
	b.sync.after = b.After
	return b
}

// Bind attaches the channel client and wires its callbacks into the
// synchronizer. The sink passed to New receives auth failures as a
// blocking notice.
func (b *Bridge) Bind(client *channel.Client) {
	b.client = client
	b.sync.client = client

	client.OnConnected = b.sync.onChannelConnected
	client.OnDisconnected = b.sync.onChannelDisconnected
	client.OnMessage = b.sync.onChannelMessage
	client.OnAuthFailed = func(reason string) {
		if reason == "" {
			reason = "credential rejected"
		}
		b.sync.sink.Notice("chat authorization failed: " + reason)
	}
}

// SessionToken is wired into the channel client's reconnect policy.
// Only called on the bridge loop.
func (b *Bridge) SessionToken() string {
	return b.tracker.SessionToken()
}

// Post queues fn onto the bridge loop.
func (b *Bridge) Post(fn func()) {
	b.events <- fn
}

// After runs fn on the bridge loop after the delay.
func (b *Bridge) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { b.Post(fn) })
}

// HandleStream accepts one classified observer event.
func (b *Bridge) HandleStream(ev StreamEvent) {
	b.Post(func() { b.tracker.Handle(ev) })
}

// HandleChannel accepts one transport event.
func (b *Bridge) HandleChannel(ev channel.Event) {
	b.Post(func() { b.client.Handle(ev) })
}

// SendChat queues a chat line typed by the local user.
func (b *Bridge) SendChat(text string) {
	b.Post(func() { b.sync.sendChat(text) })
}

// Run dispatches queued events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.client.Start(ctx)
	b.log.Info().Msg("bridge loop started")

	for {
		select {
		case <-ctx.Done():
			b.client.Shutdown("shutting down")
			return ctx.Err()
		case fn := <-b.events:
			fn()
		}
	}
}
