// Package config defines the configuration of a payment channel node.
//
// The Config object is filled from command line flags and an optional
// paychan.toml (or .json, .yaml) file in the data directory. On top of these
// options, the node relies on a data directory, defined by Config.DataDir,
// where it expects to find a few additional files:
//
//  priv_key // a plain text file containing the hex private key (cf. paychan keygen).
//  peers.json // (optional) a JSON file listing bootstrap peers.
//  badger_db // the channel database, unless --db points elsewhere.
package config
