package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/paychan/src/paychan"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a payment channel node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runPaychan,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runPaychan(cmd *cobra.Command, args []string) error {
	engine := paychan.NewPaychan(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Run(ctx)

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write JSON logs to this file")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for the gossip transport")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for the gossip transport")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("hello-timeout", _config.HelloTimeout, "Hello handshake timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")
	cmd.Flags().Bool("mdns", _config.MDNS, "Discover peers on the local network")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP API")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP API")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between bootstrap re-dials and mDNS queries")
	cmd.Flags().Int("queue-size", _config.QueueSize, "Size of the event and gossip queues")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":          _config.DataDir,
		"BindAddr":         _config.BindAddr,
		"AdvertiseAddr":    _config.AdvertiseAddr,
		"ServiceAddr":      _config.ServiceAddr,
		"NoService":        _config.NoService,
		"MaxPool":          _config.MaxPool,
		"Store":            _config.Store,
		"LogLevel":         _config.LogLevel,
		"LogFile":          _config.LogFile,
		"Moniker":          _config.Moniker,
		"HeartbeatTimeout": _config.HeartbeatTimeout,
		"TCPTimeout":       _config.TCPTimeout,
		"HelloTimeout":     _config.HelloTimeout,
		"MDNS":             _config.MDNS,
		"QueueSize":        _config.QueueSize,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/paychan.toml (.json, .yaml also work)
	viper.SetConfigName("paychan")
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
