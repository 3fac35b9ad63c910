package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/juliachat/bridge/internal/bridge"
	"github.com/juliachat/bridge/internal/log"
)

func TestClassifyKnownFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bridge.StreamEvent
	}{
		{
			name: "welcome",
			raw:  `{"name":"welcome","data":{"name":"Alpha","systemid":7}}`,
			want: bridge.StreamEvent{
				Kind:    bridge.StreamSessionWelcome,
				Session: bridge.SessionKey{Name: "Alpha", ID: "7"},
			},
		},
		{
			name: "welcome without system id",
			raw:  `{"name":"welcome","data":{"name":"Alpha"}}`,
			want: bridge.StreamEvent{
				Kind:    bridge.StreamSessionWelcome,
				Session: bridge.SessionKey{Name: "Alpha", ID: "0"},
			},
		},
		{
			name: "entered",
			raw:  `{"name":"entered","data":{"shipid":42}}`,
			want: bridge.StreamEvent{Kind: bridge.StreamIdentityAssigned, ID: 42},
		},
		{
			name: "player name",
			raw:  `{"name":"player_name","data":{"id":3,"player_name":"ace","hue":120}}`,
			want: bridge.StreamEvent{
				Kind: bridge.StreamParticipantNamed,
				ID:   3,
				Name: "ace",
				Hue:  120,
			},
		},
		{
			name: "ship gone",
			raw:  `{"name":"shipgone","data":17}`,
			want: bridge.StreamEvent{Kind: bridge.StreamParticipantRemoved, ID: 17},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Classify([]byte(tc.raw))
			if !ok {
				t.Fatalf("frame not classified")
			}
			if got.Kind != tc.want.Kind || got.Session != tc.want.Session ||
				got.ID != tc.want.ID || got.Name != tc.want.Name || got.Hue != tc.want.Hue {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClassifyDropsNoise(t *testing.T) {
	noise := []string{
		`not json at all`,
		`{"name":"telemetry","data":{"x":1}}`,
		`{"name":"welcome","data":"oops"}`,
		`{"name":"entered","data":{}}`,
		`{"name":"shipgone","data":"seventeen"}`,
		`{}`,
		``,
	}
	for _, raw := range noise {
		if _, ok := Classify([]byte(raw)); ok {
			t.Fatalf("noise frame classified: %q", raw)
		}
	}
}

type stubSource struct {
	frames [][]byte
	origin string
}

func (s *stubSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, context.Canceled
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *stubSource) Origin() string { return s.origin }

func TestObserverRefusesChannelEndpoint(t *testing.T) {
	src := &stubSource{origin: "wss://relay.example.com"}
	_, err := New(src, func(bridge.StreamEvent) {}, "wss://relay.example.com", log.Nop())
	if !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected self-reference refusal, got %v", err)
	}
}

func TestObserverEmitsInArrivalOrder(t *testing.T) {
	src := &stubSource{
		origin: "tap://127.0.0.1:7388",
		frames: [][]byte{
			[]byte(`{"name":"welcome","data":{"name":"Alpha","systemid":7}}`),
			[]byte(`garbage in between`),
			[]byte(`{"name":"entered","data":{"shipid":42}}`),
			[]byte(`{"name":"shipgone","data":42}`),
		},
	}

	var events []bridge.StreamEvent
	obs, err := New(src, func(ev bridge.StreamEvent) { events = append(events, ev) }, "wss://relay.example.com", log.Nop())
	if err != nil {
		t.Fatalf("new observer: %v", err)
	}

	if err := obs.Run(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected run error: %v", err)
	}

	wantKinds := []bridge.StreamEventKind{
		bridge.StreamSessionWelcome,
		bridge.StreamIdentityAssigned,
		bridge.StreamParticipantRemoved,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("expected %d events, got %d", len(wantKinds), len(events))
	}
	for i, kind := range wantKinds {
		if events[i].Kind != kind {
			t.Fatalf("event %d: got kind %v, want %v", i, events[i].Kind, kind)
		}
	}
}
