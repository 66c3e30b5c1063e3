package paychan

import (
	"context"
	"fmt"

	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/config"
	"github.com/mosaicnetworks/paychan/src/crypto/keys"
	"github.com/mosaicnetworks/paychan/src/gossip"
	"github.com/mosaicnetworks/paychan/src/identity"
	"github.com/mosaicnetworks/paychan/src/node"
	"github.com/mosaicnetworks/paychan/src/peers"
	"github.com/mosaicnetworks/paychan/src/service"
	"github.com/sirupsen/logrus"
)

// Paychan is a payment channel node with everything it needs: identity,
// store, transport, node and HTTP service.
type Paychan struct {
	Config    *config.Config
	Identity  *identity.Identity
	Store     channel.Store
	Transport gossip.Transport
	Bootstrap []string
	Node      *node.Node
	Service   *service.Service

	logger *logrus.Entry
}

// NewPaychan ...
func NewPaychan(c *config.Config) *Paychan {
	engine := &Paychan{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

func (p *Paychan) initKey() error {
	keyfile := keys.NewSimpleKeyfile(p.Config.Keyfile())

	key, created, err := keys.LoadOrCreate(keyfile)
	if err != nil {
		return fmt.Errorf("loading private key %s: %v", p.Config.Keyfile(), err)
	}

	if created {
		p.logger.WithField("path", p.Config.Keyfile()).Info("Created a new key")
	}

	p.Identity, err = identity.New(key)
	if err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"node_id":            p.Identity.NodeID(),
		"public_key":         p.Identity.PublicKeyHex(),
		"settlement_address": p.Identity.SettlementAddress(),
	}).Info("Node identity")

	return nil
}

func (p *Paychan) initStore() error {
	if !p.Config.Store {
		p.Store = channel.NewInmemStore()
		p.logger.Debug("Created new in-mem store")
		return nil
	}

	p.logger.WithField("path", p.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := channel.NewBadgerStore(p.Config.DatabaseDir, p.logger.WithField("prefix", "badger"))
	if err != nil {
		return err
	}

	p.Store = store

	return nil
}

func (p *Paychan) initTransport() error {
	transport, err := gossip.NewTCPTransport(
		p.Config.BindAddr,
		p.Config.AdvertiseAddr,
		p.Config.MaxPool,
		p.Config.TCPTimeout,
		p.Config.HelloTimeout,
		p.logger.WithField("prefix", "transport"),
	)
	if err != nil {
		return err
	}

	p.Transport = transport

	return nil
}

func (p *Paychan) initPeers() error {
	addrs, err := peers.NewJSONPeers(p.Config.DataDir).Addresses()
	if err != nil {
		return err
	}

	p.Bootstrap = addrs

	p.logger.WithField("bootstrap", addrs).Debug("Bootstrap peers")

	return nil
}

func (p *Paychan) initNode() error {
	n, err := node.NewNode(
		p.Config.NodeConfig(p.Bootstrap),
		p.Identity,
		p.Store,
		p.Transport,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	p.Node = n

	return nil
}

func (p *Paychan) initService() {
	if !p.Config.NoService {
		p.Service = service.NewService(
			p.Config.ServiceAddr,
			p.Node,
			p.Node.Registry(),
			p.logger.WithField("prefix", "service"),
		)
	}
}

// Init prepares every component. Nothing is served before Run.
func (p *Paychan) Init() error {
	if err := p.initKey(); err != nil {
		return err
	}

	if err := p.initStore(); err != nil {
		return err
	}

	if err := p.initTransport(); err != nil {
		p.Store.Close()
		return err
	}

	if err := p.initPeers(); err != nil {
		p.Transport.Close()
		p.Store.Close()
		return err
	}

	if err := p.initNode(); err != nil {
		p.Transport.Close()
		p.Store.Close()
		return err
	}

	p.initService()

	return nil
}

// Run serves the API and runs the node until ctx is done. The store is
// closed once both have stopped, so API requests still in flight during the
// graceful shutdown can commit.
func (p *Paychan) Run(ctx context.Context) {
	served := make(chan struct{})

	if p.Service != nil {
		go func() {
			defer close(served)
			if err := p.Service.Serve(ctx); err != nil {
				p.logger.WithError(err).Error("API service stopped")
			}
		}()
	} else {
		close(served)
	}

	p.Node.Run(ctx)

	<-served

	if err := p.Store.Close(); err != nil {
		p.logger.WithError(err).Error("Closing store")
	}
}

// Keygen creates a new key in keyfile, refusing to overwrite an existing one.
func Keygen(keyfile string) (*identity.Identity, error) {
	k := keys.NewSimpleKeyfile(keyfile)

	if k.Exists() {
		return nil, fmt.Errorf("another key already lives in %s", keyfile)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := k.WriteKey(key); err != nil {
		return nil, err
	}

	return identity.New(key)
}
