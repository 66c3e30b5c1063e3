// Package paychan assembles a payment channel node from its configuration:
// it loads or creates the private key, opens the channel store, binds the
// gossip transport, reads the bootstrap peers and starts the node and its
// HTTP service.
package paychan
