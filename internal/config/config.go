package config

import "time"

// Backend selects which presence channel implementation the bridge runs.
const (
	BackendRelay  = "relay"
	BackendBroker = "broker"
)

// Config holds bridge configuration values.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Backend is either "relay" or "broker".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// RelayURL is the dedicated chat relay endpoint (wss://...).
	RelayURL string `mapstructure:"relay_url" yaml:"relay_url"`

	// Broker settings; topics are <account>/<namespace>/<session key>.
	BrokerURL       string `mapstructure:"broker_url" yaml:"broker_url"`
	BrokerAccount   string `mapstructure:"broker_account" yaml:"broker_account"`
	BrokerNamespace string `mapstructure:"broker_namespace" yaml:"broker_namespace"`

	// TapAddr is the local address the host forwards game-frame copies to.
	TapAddr string `mapstructure:"tap_addr" yaml:"tap_addr"`

	// PollInterval enables the snapshot-polling observer when > 0.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	ReconnectDelay  time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MinSendInterval time.Duration `mapstructure:"min_send_interval" yaml:"min_send_interval"`

	CredentialDB  string        `mapstructure:"credential_db" yaml:"credential_db"`
	CredentialTTL time.Duration `mapstructure:"credential_ttl" yaml:"credential_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:        "info",
		Backend:         BackendRelay,
		RelayURL:        "wss://chat-relay.example.com",
		BrokerURL:       "tcp://broker.emqx.io:1883",
		BrokerAccount:   "juliachat",
		BrokerNamespace: "rooms",
		TapAddr:         "127.0.0.1:7388",
		ReconnectDelay:  5 * time.Second,
		MinSendInterval: time.Second,
		CredentialDB:    "bridge.db",
		CredentialTTL:   30 * 24 * time.Hour,
	}
}

// ChannelEndpoint returns the endpoint identity credentials are scoped by.
func (c *Config) ChannelEndpoint() string {
	if c.Backend == BackendBroker {
		return c.BrokerURL
	}
	return c.RelayURL
}
