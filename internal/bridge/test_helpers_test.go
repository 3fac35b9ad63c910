package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/juliachat/bridge/internal/channel"
	"github.com/juliachat/bridge/internal/log"
)

// fakeClock drives the rate limiter deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// fakeSink records display events and notices.
type fakeSink struct {
	events  []DisplayEvent
	notices []string
}

func (f *fakeSink) Display(ev DisplayEvent) { f.events = append(f.events, ev) }
func (f *fakeSink) Notice(text string)      { f.notices = append(f.notices, text) }

// fakeTransport records outbound traffic; tests inject inbound events
// through the harness.
type fakeTransport struct {
	published []channel.Message
	subs      []string
	unsubs    []string
	opens     int
	closes    int
}

func (f *fakeTransport) Open(context.Context, string)                   { f.opens++ }
func (f *fakeTransport) Publish(_ context.Context, m channel.Message) error { f.published = append(f.published, m); return nil }
func (f *fakeTransport) Subscribe(game string)                          { f.subs = append(f.subs, game) }
func (f *fakeTransport) Unsubscribe(game string)                        { f.unsubs = append(f.unsubs, game) }
func (f *fakeTransport) Close(string)                                   { f.closes++ }

// memStore is an in-memory credentials.Store.
type memStore struct {
	val     string
	cleared int
}

func (m *memStore) Get() (string, error)             { return m.val, nil }
func (m *memStore) Set(v string, _ time.Duration) error { m.val = v; return nil }
func (m *memStore) Clear() error                     { m.val = ""; m.cleared++; return nil }
func (m *memStore) Close() error                     { return nil }

type scheduled struct {
	d  time.Duration
	fn func()
}

// harness runs the bridge core without the loop goroutine: posts are
// queued and drained on the test goroutine, timers fire on demand.
type harness struct {
	t     *testing.T
	b     *Bridge
	tr    *fakeTransport
	sink  *fakeSink
	store *memStore
	clock *fakeClock

	mu     sync.Mutex
	posts  []func()
	timers []scheduled
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		tr:    &fakeTransport{},
		sink:  &fakeSink{},
		store: &memStore{val: "1234"},
		clock: &fakeClock{t: time.Unix(1000, 0)},
	}

	h.b = New(h.sink, time.Second, log.Nop())
	h.b.sync.limiter.now = h.clock.now
	h.b.sync.after = h.schedule

	client := channel.NewClient(channel.Options{
		Transport:      h.tr,
		Store:          h.store,
		Prompt:         declineProvider{},
		ReconnectDelay: 5 * time.Second,
		SessionToken:   h.b.SessionToken,
		Post:           h.post,
		After:          h.schedule,
		Log:            log.Nop(),
	})
	h.b.Bind(client)
	client.Start(context.Background())

	return h
}

type declineProvider struct{}

func (declineProvider) Request(context.Context) (string, bool) { return "", false }

func (h *harness) post(fn func()) {
	h.mu.Lock()
	h.posts = append(h.posts, fn)
	h.mu.Unlock()
}

func (h *harness) schedule(d time.Duration, fn func()) {
	h.mu.Lock()
	h.timers = append(h.timers, scheduled{d: d, fn: fn})
	h.mu.Unlock()
}

// drain runs queued posts until the queue is empty.
func (h *harness) drain() {
	for {
		h.mu.Lock()
		if len(h.posts) == 0 {
			h.mu.Unlock()
			return
		}
		fn := h.posts[0]
		h.posts = h.posts[1:]
		h.mu.Unlock()
		fn()
	}
}

// fireTimers runs every scheduled timer once, in order.
func (h *harness) fireTimers() {
	h.mu.Lock()
	timers := h.timers
	h.timers = nil
	h.mu.Unlock()
	for _, tm := range timers {
		tm.fn()
	}
	h.drain()
}

func (h *harness) pendingTimers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}

// stream feeds one observer event straight into the tracker.
func (h *harness) stream(ev StreamEvent) {
	h.b.tracker.Handle(ev)
	h.drain()
}

func (h *harness) welcome(name, id string) {
	h.stream(StreamEvent{Kind: StreamSessionWelcome, Session: SessionKey{Name: name, ID: id}})
}

func (h *harness) identity(id uint32) {
	h.stream(StreamEvent{Kind: StreamIdentityAssigned, ID: ParticipantID(id)})
}

func (h *harness) named(id uint32, name string, hue float64) {
	h.stream(StreamEvent{Kind: StreamParticipantNamed, ID: ParticipantID(id), Name: name, Hue: hue})
}

func (h *harness) removed(id uint32) {
	h.stream(StreamEvent{Kind: StreamParticipantRemoved, ID: ParticipantID(id)})
}

// connect walks the channel through open and auth acknowledgement.
func (h *harness) connect() {
	h.b.client.Handle(channel.Event{Kind: channel.EventOpened})
	h.b.client.Handle(channel.Event{Kind: channel.EventAuthOK})
	h.drain()
}

// inbound delivers one remote channel message.
func (h *harness) inbound(msg channel.Message) {
	h.b.client.Handle(channel.Event{Kind: channel.EventMessage, Msg: &msg})
	h.drain()
}

func (h *harness) joins() []channel.Message {
	var out []channel.Message
	for _, m := range h.tr.published {
		if m.Kind == channel.KindJoin {
			out = append(out, m)
		}
	}
	return out
}

func (h *harness) chats() []channel.Message {
	var out []channel.Message
	for _, m := range h.tr.published {
		if m.Kind == channel.KindChat {
			out = append(out, m)
		}
	}
	return out
}
