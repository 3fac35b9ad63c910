package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/channel"
	"github.com/juliachat/bridge/internal/proto"
)

// Transport speaks to a shared MQTT broker. Auth is transport-level
// (username/password at CONNECT), so a connect acknowledgement doubles
// as the auth acknowledgement. Session scoping is done with one
// subscription per session topic, and every payload carries the game
// key so stale frames can be filtered upstream.
type Transport struct {
	url       string
	account   string
	namespace string
	sink      channel.Sink
	log       *zerolog.Logger

	mu  sync.Mutex
	cli mqtt.Client
}

// New builds a broker transport. Topics are <account>/<namespace>/<game>.
func New(url, account, namespace string, sink channel.Sink, logger *zerolog.Logger) *Transport {
	return &Transport{
		url:       url,
		account:   account,
		namespace: namespace,
		sink:      sink,
		log:       logger,
	}
}

// Open connects to the broker with the credential as password.
// Reconnection is owned by the channel client, not the MQTT library.
func (t *Transport) Open(_ context.Context, credential string) {
	opts := mqtt.NewClientOptions().
		AddBroker(t.url).
		SetClientID("juliabridge-" + uuid.NewString()[:8]).
		SetUsername(t.account).
		SetPassword(credential).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			t.sink(channel.Event{Kind: channel.EventClosed, Reason: err.Error()})
		})

	cli := mqtt.NewClient(opts)

	t.mu.Lock()
	t.cli = cli
	t.mu.Unlock()

	go func() {
		token := cli.Connect()
		if !token.WaitTimeout(15 * time.Second) {
			t.sink(channel.Event{Kind: channel.EventClosed, Reason: "connect timeout"})
			return
		}
		if err := token.Error(); err != nil {
			if isAuthError(err) {
				t.sink(channel.Event{Kind: channel.EventAuthRejected, Reason: err.Error()})
				return
			}
			t.sink(channel.Event{Kind: channel.EventClosed, Reason: err.Error()})
			return
		}

		// Broker auth happens at CONNECT, so both fire together.
		t.sink(channel.Event{Kind: channel.EventOpened})
		t.sink(channel.Event{Kind: channel.EventAuthOK})
	}()
}

func isAuthError(err error) bool {
	return errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised)
}

// Publish marshals a neutral message into the session topic.
func (t *Transport) Publish(ctx context.Context, msg channel.Message) error {
	t.mu.Lock()
	cli := t.cli
	t.mu.Unlock()
	if cli == nil || !cli.IsConnected() {
		return errors.New("broker not connected")
	}
	if msg.Game == "" {
		return errors.New("broker publish requires a session key")
	}

	env := proto.BrokerEnvelope{
		Game: msg.Game,
		ID:   msg.ID,
		Name: msg.Name,
		Hue:  msg.Hue,
	}
	switch msg.Kind {
	case channel.KindChat:
		env.Type = proto.EnvelopeTypeChat
		env.Text = msg.Text
	case channel.KindJoin:
		env.Type = proto.EnvelopeTypePresence
		env.State = proto.PresenceStateJoin
	case channel.KindLeave:
		env.Type = proto.EnvelopeTypePresence
		env.State = proto.PresenceStateLeave
	default:
		return fmt.Errorf("unsupported message kind %d", msg.Kind)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	topic := proto.BrokerTopic(t.account, t.namespace, msg.Game)
	token := cli.Publish(topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.log.Warn().Err(err).Str("topic", topic).Msg("broker publish failed")
		}
	}()
	return nil
}

// Subscribe starts receiving the session's topic.
func (t *Transport) Subscribe(game string) {
	t.mu.Lock()
	cli := t.cli
	t.mu.Unlock()
	if cli == nil {
		return
	}
	topic := proto.BrokerTopic(t.account, t.namespace, game)
	cli.Subscribe(topic, 0, t.onMessage)
}

// Unsubscribe drops the session's topic.
func (t *Transport) Unsubscribe(game string) {
	t.mu.Lock()
	cli := t.cli
	t.mu.Unlock()
	if cli == nil {
		return
	}
	cli.Unsubscribe(proto.BrokerTopic(t.account, t.namespace, game))
}

func (t *Transport) onMessage(_ mqtt.Client, m mqtt.Message) {
	var env proto.BrokerEnvelope
	if err := json.Unmarshal(m.Payload(), &env); err != nil {
		// Malformed payloads are dropped silently.
		return
	}

	msg := channel.Message{
		Game: env.Game,
		ID:   env.ID,
		Name: env.Name,
		Hue:  env.Hue,
	}
	switch env.Type {
	case proto.EnvelopeTypeChat:
		msg.Kind = channel.KindChat
		msg.Text = env.Text
	case proto.EnvelopeTypePresence:
		switch env.State {
		case proto.PresenceStateJoin:
			msg.Kind = channel.KindJoin
		case proto.PresenceStateLeave:
			msg.Kind = channel.KindLeave
		default:
			return
		}
	default:
		return
	}

	t.sink(channel.Event{Kind: channel.EventMessage, Msg: &msg})
}

// Close disconnects from the broker. Paho does not invoke the lost
// handler on a requested disconnect, so the Closed event is posted here.
func (t *Transport) Close(reason string) {
	t.mu.Lock()
	cli := t.cli
	t.cli = nil
	t.mu.Unlock()
	if cli == nil {
		return
	}
	if cli.IsConnected() {
		cli.Disconnect(250)
	}
	t.sink(channel.Event{Kind: channel.EventClosed, Reason: reason})
}
