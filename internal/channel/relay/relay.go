package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/channel"
	"github.com/juliachat/bridge/internal/proto"
)

// Transport speaks the dedicated relay protocol: a persistent WebSocket
// with an in-band PIN auth handshake. The relay scopes traffic
// server-side, so Subscribe/Unsubscribe are no-ops, and a leave is
// announced by closing the connection gracefully (the server emits the
// presence frame on our behalf).
type Transport struct {
	url  string
	sink channel.Sink
	log  *zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// New builds a relay transport for the given wss:// endpoint.
func New(url string, sink channel.Sink, logger *zerolog.Logger) *Transport {
	return &Transport{url: url, sink: sink, log: logger}
}

// Open dials the relay and sends the auth frame. Outcomes are reported
// through the sink.
func (t *Transport) Open(ctx context.Context, credential string) {
	dialCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	connLog := t.log.With().Str("conn_id", uuid.NewString()).Logger()

	go func() {
		conn, _, err := websocket.Dial(dialCtx, t.url, nil)
		if err != nil {
			cancel()
			t.sink(channel.Event{Kind: channel.EventClosed, Reason: fmt.Sprintf("dial: %v", err)})
			return
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		auth := proto.RelayFrame{Type: proto.RelayTypeAuth, PIN: credential}
		if err := wsjson.Write(dialCtx, conn, auth); err != nil {
			t.teardown()
			t.sink(channel.Event{Kind: channel.EventClosed, Reason: fmt.Sprintf("auth write: %v", err)})
			return
		}

		t.sink(channel.Event{Kind: channel.EventOpened})
		t.readLoop(dialCtx, conn, &connLog)
	}()
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, connLog *zerolog.Logger) {
	authed := false
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			reason := "closed"
			if s := websocket.CloseStatus(err); s != -1 {
				reason = fmt.Sprintf("closed (%d)", s)
			} else if !errors.Is(err, context.Canceled) {
				reason = err.Error()
			}
			t.teardown()
			t.sink(channel.Event{Kind: channel.EventClosed, Reason: reason})
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var frame proto.RelayFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed frames are dropped, never fatal.
			continue
		}

		switch frame.Type {
		case proto.RelayTypeAuthSuccess:
			authed = true
			t.sink(channel.Event{Kind: channel.EventAuthOK})

		case proto.RelayTypeError:
			if !authed {
				t.sink(channel.Event{Kind: channel.EventAuthRejected, Reason: frame.Message})
				continue
			}
			connLog.Warn().Str("message", frame.Message).Msg("relay error frame")

		case proto.RelayTypeChat:
			msg := channel.Message{
				Kind: channel.KindChat,
				Game: frame.Game,
				Name: frame.Name,
				Text: frame.Text,
			}
			if frame.ID != nil {
				msg.ID = *frame.ID
			}
			if frame.Hue != nil {
				msg.Hue = *frame.Hue
			}
			t.sink(channel.Event{Kind: channel.EventMessage, Msg: &msg})

		case proto.RelayTypePresence:
			msg := channel.Message{Game: frame.Game, Name: frame.Name}
			switch frame.State {
			case proto.PresenceStateJoin:
				msg.Kind = channel.KindJoin
			case proto.PresenceStateLeave:
				msg.Kind = channel.KindLeave
			default:
				continue
			}
			if frame.ID != nil {
				msg.ID = *frame.ID
			}
			if frame.Hue != nil {
				msg.Hue = *frame.Hue
			}
			t.sink(channel.Event{Kind: channel.EventMessage, Msg: &msg})

		default:
			// Unknown frame types are ignored.
		}
	}
}

// Publish maps a neutral message onto relay frames.
func (t *Transport) Publish(ctx context.Context, msg channel.Message) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("relay not connected")
	}

	switch msg.Kind {
	case channel.KindChat:
		return wsjson.Write(ctx, conn, proto.RelayFrame{
			Type: proto.RelayTypeChat,
			Text: msg.Text,
		})

	case channel.KindJoin:
		id, hue := msg.ID, msg.Hue
		return wsjson.Write(ctx, conn, proto.RelayFrame{
			Type: proto.RelayTypeJoin,
			Game: msg.Game,
			ID:   &id,
			Name: msg.Name,
			Hue:  &hue,
		})

	case channel.KindLeave:
		// Departure is signalled by a graceful close; the relay
		// announces the leave to the others.
		t.Close("leaving session")
		return nil

	default:
		return fmt.Errorf("unsupported message kind %d", msg.Kind)
	}
}

// Subscribe is a no-op; the relay scopes traffic by the joined game.
func (t *Transport) Subscribe(string) {}

// Unsubscribe is a no-op for the relay.
func (t *Transport) Unsubscribe(string) {}

// Close tears the connection down gracefully.
func (t *Transport) Close(reason string) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, reason)
	}
	t.teardown()
}

func (t *Transport) teardown() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.conn = nil
	t.mu.Unlock()
}
