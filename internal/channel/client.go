package channel

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/juliachat/bridge/internal/credentials"
)

// State is the channel session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthPending
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthPending:
		return "auth_pending"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options configures a Client. Post and After marshal work onto the
// bridge loop; every Client method and callback runs there, so the
// Client needs no locking.
type Options struct {
	Transport Transport
	Store     credentials.Store
	Prompt    credentials.Provider

	ReconnectDelay time.Duration
	CredentialTTL  time.Duration

	// SessionToken reports the session the bridge currently wants
	// connectivity for; "" means none.
	SessionToken func() string

	Post  func(fn func())
	After func(d time.Duration, fn func())

	Log *zerolog.Logger
}

// Client owns the presence channel connection lifecycle: credential
// acquisition, connect/auth, subscription scope, and the single-timer
// reconnect policy. It is driven entirely from the bridge loop.
type Client struct {
	opts Options

	ctx   context.Context
	state State
	topic string

	cred      string
	credFresh bool

	reconnectPending bool
	reconnectGen     uint64

	promptPending bool
	declinedFor   string

	// OnConnected fires on every transition into Connected, after the
	// session topic (if any) has been resubscribed.
	OnConnected    func()
	OnDisconnected func()
	OnAuthFailed   func(reason string)
	OnMessage      func(msg Message)
}

// NewClient builds a disconnected client.
func NewClient(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	return &Client{opts: opts, state: StateDisconnected}
}

// Start binds the client to the bridge's run context.
func (c *Client) Start(ctx context.Context) {
	c.ctx = ctx
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return c.state
}

// SetTopic switches the subscription scope to a new session. Called on
// every session change, connected or not; the topic is (re)applied on
// the next transition into Connected.
func (c *Client) SetTopic(game string) {
	if game == c.topic {
		return
	}
	if c.state == StateConnected && c.topic != "" {
		c.opts.Transport.Unsubscribe(c.topic)
	}
	c.topic = game
	if c.state == StateConnected && c.topic != "" {
		c.opts.Transport.Subscribe(c.topic)
	}
}

// EnsureConnected fires the intent to connect. It is a no-op while a
// connection or prompt is in flight, or after the user declined a
// credential for the current session.
func (c *Client) EnsureConnected() {
	if c.state != StateDisconnected || c.promptPending {
		return
	}

	token := c.opts.SessionToken()
	if c.declinedFor != "" && c.declinedFor == token {
		return
	}

	cred, err := c.opts.Store.Get()
	if err != nil {
		c.opts.Log.Warn().Err(err).Msg("credential read failed")
		cred = ""
	}
	if cred != "" {
		c.open(cred, false)
		return
	}

	c.promptPending = true
	forToken := token
	go func() {
		value, ok := c.opts.Prompt.Request(c.ctx)
		c.opts.Post(func() { c.promptResult(forToken, value, ok) })
	}()
}

func (c *Client) promptResult(forToken, value string, ok bool) {
	c.promptPending = false

	// A session change while the prompt was open invalidates the answer.
	if forToken != c.opts.SessionToken() {
		c.opts.Log.Debug().Msg("discarding credential prompt result for stale session")
		return
	}

	if !ok || value == "" {
		c.declinedFor = forToken
		c.opts.Log.Info().Msg("credential prompt declined")
		return
	}

	if c.state != StateDisconnected {
		return
	}
	c.open(value, true)
}

func (c *Client) open(cred string, fresh bool) {
	c.cred = cred
	c.credFresh = fresh
	c.state = StateConnecting
	c.opts.Log.Debug().Msg("channel connecting")
	c.opts.Transport.Open(c.ctx, cred)
}

// Handle applies one transport event to the state machine.
func (c *Client) Handle(ev Event) {
	switch ev.Kind {
	case EventOpened:
		if c.state == StateConnecting {
			c.state = StateAuthPending
		}

	case EventAuthOK:
		if c.state != StateAuthPending && c.state != StateConnecting {
			return
		}
		c.state = StateConnected
		c.declinedFor = ""
		if c.credFresh {
			if err := c.opts.Store.Set(c.cred, c.opts.CredentialTTL); err != nil {
				c.opts.Log.Warn().Err(err).Msg("credential store failed")
			}
			c.credFresh = false
		}
		if c.topic != "" {
			c.opts.Transport.Subscribe(c.topic)
		}
		c.opts.Log.Info().Msg("channel connected")
		if c.OnConnected != nil {
			c.OnConnected()
		}

	case EventAuthRejected:
		c.opts.Log.Warn().Str("reason", ev.Reason).Msg("channel auth rejected")
		if err := c.opts.Store.Clear(); err != nil {
			c.opts.Log.Warn().Err(err).Msg("credential clear failed")
		}
		c.credFresh = false
		c.opts.Transport.Close("auth rejected")
		c.state = StateDisconnected
		if c.OnAuthFailed != nil {
			c.OnAuthFailed(ev.Reason)
		}

	case EventClosed:
		if c.state == StateDisconnected {
			return
		}
		c.state = StateDisconnected
		c.opts.Log.Info().Str("reason", ev.Reason).Msg("channel closed")
		if c.OnDisconnected != nil {
			c.OnDisconnected()
		}
		c.maybeReconnect()

	case EventMessage:
		if c.state == StateConnected && ev.Msg != nil && c.OnMessage != nil {
			c.OnMessage(*ev.Msg)
		}
	}
}

// maybeReconnect arms the single reconnection timer. Arming while one
// is pending is a no-op; a fire for a superseded generation is ignored.
func (c *Client) maybeReconnect() {
	if c.reconnectPending {
		return
	}
	if c.opts.SessionToken() == "" {
		return
	}
	cred, err := c.opts.Store.Get()
	if err != nil || cred == "" {
		return
	}

	c.reconnectPending = true
	c.reconnectGen++
	gen := c.reconnectGen
	c.opts.Log.Debug().Dur("delay", c.opts.ReconnectDelay).Msg("reconnect scheduled")
	c.opts.After(c.opts.ReconnectDelay, func() { c.reconnectFired(gen) })
}

func (c *Client) reconnectFired(gen uint64) {
	if gen != c.reconnectGen {
		return
	}
	c.reconnectPending = false
	if c.state == StateDisconnected {
		c.EnsureConnected()
	}
}

// Publish sends one message if connected. While disconnected the
// message is dropped and a connection attempt is fired instead.
// Returns whether the message went out.
func (c *Client) Publish(msg Message) bool {
	if c.state != StateConnected {
		c.opts.Log.Debug().Msg("publish while disconnected dropped")
		c.EnsureConnected()
		return false
	}
	if err := c.opts.Transport.Publish(c.ctx, msg); err != nil {
		c.opts.Log.Warn().Err(err).Msg("publish failed")
		return false
	}
	return true
}

// Shutdown closes the connection and cancels any pending reconnect.
func (c *Client) Shutdown(reason string) {
	c.reconnectGen++
	c.reconnectPending = false
	if c.state != StateDisconnected {
		c.opts.Transport.Close(reason)
	}
}
