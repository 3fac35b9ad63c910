package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juliachat/bridge/internal/app"
	"github.com/juliachat/bridge/internal/config"
	"github.com/juliachat/bridge/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bridge: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		backend    string
		relayURL   string
		brokerURL  string
		tapAddr    string
	)

	cmd := &cobra.Command{
		Use:           "bridge",
		Short:         "Bridges a game session's presence and chat onto a secondary channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := log.New(logLevel)

			cfg, path, err := config.Load(bootstrap, configPath)
			if err != nil {
				return err
			}

			// Flags override the file and env.
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backend
			}
			if cmd.Flags().Changed("relay-url") {
				cfg.RelayURL = relayURL
			}
			if cmd.Flags().Changed("broker-url") {
				cfg.BrokerURL = brokerURL
			}
			if cmd.Flags().Changed("tap-addr") {
				cfg.TapAddr = tapAddr
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("backend", cfg.Backend).Msg("starting bridge")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			console := newConsole()
			application, err := app.New(&cfg, app.Options{
				Sink:   console,
				Prompt: console,
			}, logger)
			if err != nil {
				return err
			}

			go console.inputLoop(ctx, application.SendChat)

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info().Msg("bridge stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&backend, "backend", config.BackendRelay, "presence channel backend (relay or broker)")
	cmd.Flags().StringVar(&relayURL, "relay-url", "", "dedicated chat relay endpoint")
	cmd.Flags().StringVar(&brokerURL, "broker-url", "", "MQTT broker endpoint")
	cmd.Flags().StringVar(&tapAddr, "tap-addr", "", "local address the host forwards game frames to")

	return cmd
}
