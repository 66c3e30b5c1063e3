package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/paychan/src/common"
	"github.com/sirupsen/logrus"
)

// Config ...
type Config struct {
	// HeartbeatTimeout is the period at which bootstrap peers that are not
	// connected are dialed again, and at which mDNS is browsed.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// QueueSize bounds the ledger event queue and the overlay queues.
	QueueSize int `mapstructure:"queue-size"`

	// Bootstrap addresses are dialed at startup.
	Bootstrap []string

	// MDNS enables LAN discovery.
	MDNS bool `mapstructure:"mdns"`

	// Moniker is announced to the peers.
	Moniker string `mapstructure:"moniker"`

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(heartbeat time.Duration,
	queueSize int,
	bootstrap []string,
	mdns bool,
	moniker string,
	logger *logrus.Logger) *Config {

	return &Config{
		HeartbeatTimeout: heartbeat,
		QueueSize:        queueSize,
		Bootstrap:        bootstrap,
		MDNS:             mdns,
		Moniker:          moniker,
		Logger:           logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		HeartbeatTimeout: 10 * time.Second,
		QueueSize:        256,
		Logger:           logger,
	}
}

// TestConfig ...
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.HeartbeatTimeout = time.Second
	config.Logger = common.NewTestLogger(t)
	return config
}
