package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/juliachat/bridge/internal/bridge"
	"github.com/juliachat/bridge/internal/channel"
	"github.com/juliachat/bridge/internal/channel/broker"
	"github.com/juliachat/bridge/internal/channel/relay"
	"github.com/juliachat/bridge/internal/config"
	"github.com/juliachat/bridge/internal/credentials"
	"github.com/juliachat/bridge/internal/observer"
)

// App wires the observer, bridge core, and presence channel together.
type App struct {
	cfg    *config.Config
	log    *zerolog.Logger
	bridge *bridge.Bridge
	store  credentials.Store
	tap    *observer.Tap
	obs    *observer.Observer
	poller *observer.Poller
}

// Options carries the host-environment collaborators the core calls
// into: where display events go, who asks the user for credentials,
// and (optionally) a snapshot getter enabling the polling observer.
type Options struct {
	Sink     bridge.DisplaySink
	Prompt   credentials.Provider
	Snapshot observer.SnapshotFunc
}

// New constructs the application with the provided configuration.
func New(cfg *config.Config, opts Options, logger *zerolog.Logger) (*App, error) {
	store, err := credentials.Open(cfg.CredentialDB, cfg.ChannelEndpoint())
	if err != nil {
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	logger.Info().Str("db_path", cfg.CredentialDB).Msg("credential store initialized")

	b := bridge.New(opts.Sink, cfg.MinSendInterval, logger)

	var transport channel.Transport
	switch cfg.Backend {
	case config.BackendBroker:
		transport = broker.New(cfg.BrokerURL, cfg.BrokerAccount, cfg.BrokerNamespace, b.HandleChannel, logger)
	default:
		transport = relay.New(cfg.RelayURL, b.HandleChannel, logger)
	}

	client := channel.NewClient(channel.Options{
		Transport:      transport,
		Store:          store,
		Prompt:         opts.Prompt,
		ReconnectDelay: cfg.ReconnectDelay,
		CredentialTTL:  cfg.CredentialTTL,
		SessionToken:   b.SessionToken,
		Post:           b.Post,
		After:          b.After,
		Log:            logger,
	})
	b.Bind(client)

	a := &App{cfg: cfg, log: logger, bridge: b, store: store}

	if opts.Snapshot != nil {
		a.poller = observer.NewPoller(opts.Snapshot, cfg.PollInterval, b.HandleStream, logger)
	} else {
		a.tap = observer.NewTap(cfg.TapAddr, logger)
		obs, err := observer.New(a.tap, b.HandleStream, cfg.ChannelEndpoint(), logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.obs = obs
	}

	return a, nil
}

// SendChat queues a chat line typed by the local user.
func (a *App) SendChat(text string) {
	a.bridge.SendChat(text)
}

// Run starts everything and blocks until ctx cancellation or a fatal
// error in one of the components.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.bridge.Run(ctx) })

	if a.poller != nil {
		g.Go(func() error { return a.poller.Run(ctx) })
	} else {
		g.Go(func() error { return a.tap.Run(ctx) })
		g.Go(func() error {
			err := a.obs.Run(ctx)
			// The tap survives host reconnects; only ctx ends the observer.
			return err
		})
	}

	err := g.Wait()
	a.cleanup()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close credential store")
		} else {
			a.log.Info().Msg("credential store closed")
		}
	}
}
