package gossip

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// tcpKeepAlive is the keep-alive period set on every gossip connection, dialed
// or accepted.
const tcpKeepAlive = 30 * time.Second

// StreamLayer is the connection source under a NetworkTransport: a listener for
// inbound streams plus a dialer for outbound ones.
type StreamLayer interface {
	net.Listener

	// Dial opens an outbound stream to address
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr is the address other members should dial to reach us
	AdvertiseAddr() string
}

// TCPStreamLayer is a StreamLayer over plain TCP.
type TCPStreamLayer struct {
	*net.TCPListener
	advertise string
}

// Dial implements StreamLayer.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout, KeepAlive: tcpKeepAlive}
	return d.Dial("tcp", address)
}

// Accept implements net.Listener and enables keep-alives on the new stream.
func (t *TCPStreamLayer) Accept() (net.Conn, error) {
	conn, err := t.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(tcpKeepAlive)
	return conn, nil
}

// AdvertiseAddr implements StreamLayer.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	return t.advertise
}

// advertisable picks the address announced in Hello requests. An explicit
// advertise address wins; otherwise the bound address is used, which must not
// be a wildcard.
func advertisable(advertise string, bound net.Addr) (string, error) {
	addr := bound
	if advertise != "" {
		resolved, err := net.ResolveTCPAddr("tcp", advertise)
		if err != nil {
			return "", fmt.Errorf("resolving advertise address %s: %v", advertise, err)
		}
		addr = resolved
	}

	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "", errNotTCP
	}
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		return "", errNotAdvertisable
	}

	if advertise != "" {
		return advertise, nil
	}
	return tcp.String(), nil
}

// NewTCPTransport binds bindAddr and returns a NetworkTransport on top of it.
func NewTCPTransport(
	bindAddr string,
	advertiseAddr string,
	maxPool int,
	timeout time.Duration,
	helloTimeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {

	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	advertise, err := advertisable(advertiseAddr, list.Addr())
	if err != nil {
		list.Close()
		return nil, err
	}

	stream := &TCPStreamLayer{
		TCPListener: list.(*net.TCPListener),
		advertise:   advertise,
	}

	return NewNetworkTransport(stream, maxPool, timeout, helloTimeout, logger), nil
}
