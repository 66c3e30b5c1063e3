package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/paychan/src/common"
	"github.com/mosaicnetworks/paychan/src/node"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultBindAddr         = "127.0.0.1:4001"
	DefaultServiceAddr      = "127.0.0.1:3000"
	DefaultHeartbeatTimeout = 10 * time.Second
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultHelloTimeout     = 5000 * time.Millisecond
	DefaultMaxPool          = 2
	DefaultQueueSize        = 256
	DefaultStore            = true
	DefaultMDNS             = true
)

// Config contains all the configuration properties of a payment channel node.
type Config struct {
	// DataDir is the top-level directory containing the key, peers.json, the
	// optional config file and the database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a JSON copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port of the gossip transport.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP API.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatTimeout is the period at which unreachable bootstrap peers are
	// dialed again and mDNS is browsed.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// MaxPool controls how many connections are pooled per peer.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of gossip RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// HelloTimeout is the timeout of the Hello handshake.
	HelloTimeout time.Duration `mapstructure:"hello-timeout"`

	// QueueSize bounds the event, inbound and outbound queues.
	QueueSize int `mapstructure:"queue-size"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// MDNS enables discovery of peers on the local network.
	MDNS bool `mapstructure:"mdns"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		TCPTimeout:       DefaultTCPTimeout,
		HelloTimeout:     DefaultHelloTimeout,
		MaxPool:          DefaultMaxPool,
		QueueSize:        DefaultQueueSize,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		MDNS:             DefaultMDNS,
	}
}

// NewTestConfig is NewDefaultConfig with logs routed to t.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir moves the data directory. A database directory still at its
// default follows it; an explicit one is left alone.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "paychan".
func (c *Config) Logger() *logrus.Entry {
	return c.baseLogger().WithField("prefix", "paychan")
}

// baseLogger builds the process logger once: prefixed text on the console and,
// with LogFile set, a JSON copy of every entry in that file.
func (c *Config) baseLogger() *logrus.Logger {
	if c.logger != nil {
		return c.logger
	}

	logger := logrus.New()
	logger.Level = LogLevel(c.LogLevel)
	logger.Formatter = &prefixed.TextFormatter{FullTimestamp: true}

	if c.LogFile != "" {
		logger.Hooks.Add(lfshook.NewHook(c.LogFile, &logrus.JSONFormatter{}))
	}

	c.logger = logger
	return logger
}

// NodeConfig derives the node configuration. bootstrap lists the addresses
// to dial at startup.
func (c *Config) NodeConfig(bootstrap []string) *node.Config {
	return node.NewConfig(
		c.HeartbeatTimeout,
		c.QueueSize,
		bootstrap,
		c.MDNS,
		c.Moniker,
		c.baseLogger(),
	)
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the per-user data directory following the platform
// convention, or "" when no home directory can be found.
func DefaultDataDir() string {
	home := HomeDir()
	if home == "" {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Paychan")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Paychan")
	default:
		return filepath.Join(home, ".paychan")
	}
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a logrus level name. Unknown names give DebugLevel.
func LogLevel(l string) logrus.Level {
	level, err := logrus.ParseLevel(l)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}
