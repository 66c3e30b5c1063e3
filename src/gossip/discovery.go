package gossip

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/mosaicnetworks/paychan/src/peers"
	"github.com/sirupsen/logrus"
)

// MDNSService is the service type members advertise on the local network.
const MDNSService = "_paychan._tcp"

// Discovery finds the addresses of other overlay members.
type Discovery interface {
	// Start returns a channel of candidate addresses, closed when ctx is
	// done.
	Start(ctx context.Context) (<-chan string, error)
	Close() error
}

// MDNSDiscovery advertises this member over mDNS and periodically browses
// for the others.
type MDNSDiscovery struct {
	self     peers.Peer
	interval time.Duration
	logger   *logrus.Entry
	server   *mdns.Server
}

// NewMDNSDiscovery ...
func NewMDNSDiscovery(self peers.Peer, interval time.Duration, logger *logrus.Entry) *MDNSDiscovery {
	return &MDNSDiscovery{
		self:     self,
		interval: interval,
		logger:   logger,
	}
}

// Start implements the Discovery interface.
func (d *MDNSDiscovery) Start(ctx context.Context) (<-chan string, error) {
	host, portStr, err := net.SplitHostPort(d.self.NetAddr)
	if err != nil {
		return nil, fmt.Errorf("mdns: %v", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("mdns: invalid port %q", portStr)
	}

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	}

	if loopbackOnly(d.self.NetAddr) {
		d.logger.WithField("addr", d.self.NetAddr).Warn("mDNS advertises a loopback address, only peers on this host can connect; set --listen or --advertise to a LAN address")
	}

	service, err := mdns.NewMDNSService(
		d.self.OverlayID,
		MDNSService,
		"",
		"",
		port,
		ips,
		[]string{"overlay=" + d.self.OverlayID, "pubkey=" + d.self.PubKeyHex},
	)
	if err != nil {
		return nil, fmt.Errorf("mdns: %v", err)
	}

	d.server, err = mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns: %v", err)
	}

	out := make(chan string, 16)

	go d.browse(ctx, out)

	return out, nil
}

func (d *MDNSDiscovery) browse(ctx context.Context, out chan<- string) {
	defer close(out)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.query(ctx, out)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (d *MDNSDiscovery) query(ctx context.Context, out chan<- string) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			addr, ok := d.entryAddr(e)
			if !ok {
				continue
			}
			select {
			case out <- addr:
			case <-ctx.Done():
			default:
				d.logger.WithField("addr", addr).Debug("Discovery queue full")
			}
		}
	}()

	params := mdns.DefaultParams(MDNSService)
	params.Entries = entries
	params.Timeout = d.interval / 2
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		d.logger.WithError(err).Debug("mDNS query failed")
	}

	close(entries)
	<-done
}

func (d *MDNSDiscovery) entryAddr(e *mdns.ServiceEntry) (string, bool) {
	for _, f := range e.InfoFields {
		if f == "overlay="+d.self.OverlayID {
			return "", false
		}
	}

	if e.AddrV4 == nil || e.Port == 0 {
		return "", false
	}

	return net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)), true
}

// loopbackOnly reports whether netAddr is reachable from this host only.
// Other hostnames are not resolved.
func loopbackOnly(netAddr string) bool {
	host, _, err := net.SplitHostPort(netAddr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Close implements the Discovery interface.
func (d *MDNSDiscovery) Close() error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown()
}
