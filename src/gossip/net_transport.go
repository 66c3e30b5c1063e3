package gossip

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Command bytes. Every frame starts with one of them followed by the JSON
// request; the answer is a JSON error string followed by the JSON response.
const (
	rpcHello uint8 = iota
	rpcPublish
	rpcBye
)

const bufSize = 64 * 1024

// ErrTransportShutdown is returned by calls made after Close.
var ErrTransportShutdown = errors.New("transport shutdown")

// commandDecoders builds the request value for each command byte.
var commandDecoders = map[uint8]func() interface{}{
	rpcHello:   func() interface{} { return &HelloRequest{} },
	rpcPublish: func() interface{} { return &PublishRequest{} },
	rpcBye:     func() interface{} { return &ByeRequest{} },
}

/*
NetworkTransport is a Transport over a StreamLayer. Outbound connections are
kept in a small per-target pool so that a burst of publishes to the same
member reuses one stream. Requests on a stream are strictly sequential.
*/
type NetworkTransport struct {
	stream StreamLayer
	pool   *connPool
	logger *logrus.Entry

	consumeCh chan RPC

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	timeout      time.Duration
	helloTimeout time.Duration
}

// NewNetworkTransport wraps stream. maxPool bounds idle connections per target;
// timeout is the I/O deadline of Publish and Bye, helloTimeout that of Hello.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	helloTimeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &NetworkTransport{
		stream:       stream,
		pool:         newConnPool(maxPool),
		logger:       logger,
		consumeCh:    make(chan RPC),
		shutdownCh:   make(chan struct{}),
		timeout:      timeout,
		helloTimeout: helloTimeout,
	}
}

// Close stops accepting, releases pooled connections and unblocks pending
// inbound commands. It is safe to call more than once.
func (n *NetworkTransport) Close() error {
	n.shutdownOnce.Do(func() {
		close(n.shutdownCh)
		n.stream.Close()
		n.pool.closeAll()
	})
	return nil
}

// Consumer implements Transport.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements Transport.
func (n *NetworkTransport) LocalAddr() string {
	if addr := n.stream.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// AdvertiseAddr implements Transport.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown reports whether Close was called.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Hello implements Transport.
func (n *NetworkTransport) Hello(target string, args *HelloRequest, resp *HelloResponse) error {
	return n.call(target, rpcHello, n.helloTimeout, args, resp)
}

// Publish implements Transport.
func (n *NetworkTransport) Publish(target string, args *PublishRequest, resp *PublishResponse) error {
	return n.call(target, rpcPublish, n.timeout, args, resp)
}

// Bye implements Transport.
func (n *NetworkTransport) Bye(target string, args *ByeRequest, resp *ByeResponse) error {
	return n.call(target, rpcBye, n.timeout, args, resp)
}

func (n *NetworkTransport) call(target string, rpcType uint8, timeout time.Duration, args interface{}, resp interface{}) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	conn := n.pool.get(target)
	if conn == nil {
		raw, err := n.stream.Dial(target, timeout)
		if err != nil {
			return err
		}
		conn = newNetConn(target, raw)
	}

	if timeout > 0 {
		conn.conn.SetDeadline(time.Now().Add(timeout))
	}

	remoteErr, err := conn.roundTrip(rpcType, args, resp)
	if err != nil {
		// the stream is in an unknown state
		conn.Release()
		return err
	}

	if n.IsShutdown() {
		conn.Release()
	} else {
		n.pool.put(conn)
	}

	return remoteErr
}

// Listen accepts inbound streams until the transport is closed.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithError(err).Error("Failed to accept connection")
			continue
		}

		n.logger.WithField("from", conn.RemoteAddr()).Debug("Accepted connection")

		go n.serve(conn)
	}
}

// serve answers the commands of one inbound stream until it closes.
func (n *NetworkTransport) serve(raw net.Conn) {
	conn := newNetConn("", raw)
	defer conn.Release()

	for {
		err := n.serveOne(conn)
		switch {
		case err == nil:
			continue
		case err == io.EOF:
		case err == ErrTransportShutdown:
			n.logger.Debug("Dropping connection on shutdown")
		default:
			n.logger.WithError(err).Error("Failed to serve incoming command")
		}
		return
	}
}

func (n *NetworkTransport) serveOne(conn *netConn) error {
	// requests are sequential so the decoder never buffers past the trailing
	// newline of the previous request
	rpcType, err := conn.r.ReadByte()
	if err != nil {
		return err
	}

	newReq, ok := commandDecoders[rpcType]
	if !ok {
		return fmt.Errorf("unknown rpc type %d", rpcType)
	}

	req := newReq()
	if err := conn.dec.Decode(req); err != nil {
		return err
	}

	respCh := make(chan RPCResponse, 1)

	select {
	case n.consumeCh <- RPC{Command: req, RespChan: respCh}:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	var resp RPCResponse
	select {
	case resp = <-respCh:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	errStr := ""
	if resp.Error != nil {
		errStr = resp.Error.Error()
	}
	if err := conn.enc.Encode(errStr); err != nil {
		return err
	}
	if err := conn.enc.Encode(resp.Response); err != nil {
		return err
	}
	return conn.w.Flush()
}

// netConn is a stream with its buffered JSON codec.
type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *json.Decoder
	enc    *json.Encoder
}

func newNetConn(target string, conn net.Conn) *netConn {
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	return &netConn{
		target: target,
		conn:   conn,
		r:      r,
		w:      w,
		dec:    json.NewDecoder(r),
		enc:    json.NewEncoder(w),
	}
}

// Release closes the underlying stream.
func (c *netConn) Release() error {
	return c.conn.Close()
}

// roundTrip writes one framed request and reads its answer. err reports a
// broken stream; remoteErr is the error string returned by the other side.
func (c *netConn) roundTrip(rpcType uint8, args interface{}, resp interface{}) (remoteErr error, err error) {
	if err = c.w.WriteByte(rpcType); err != nil {
		return nil, err
	}
	if err = c.enc.Encode(args); err != nil {
		return nil, err
	}
	if err = c.w.Flush(); err != nil {
		return nil, err
	}

	var errStr string
	if err = c.dec.Decode(&errStr); err != nil {
		return nil, err
	}
	if err = c.dec.Decode(resp); err != nil {
		return nil, err
	}

	if errStr != "" {
		return errors.New(errStr), nil
	}
	return nil, nil
}

// connPool keeps up to max idle outbound streams per target.
type connPool struct {
	sync.Mutex
	max   int
	conns map[string][]*netConn
}

func newConnPool(max int) *connPool {
	return &connPool{
		max:   max,
		conns: make(map[string][]*netConn),
	}
}

func (p *connPool) get(target string) *netConn {
	p.Lock()
	defer p.Unlock()

	idle := p.conns[target]
	if len(idle) == 0 {
		return nil
	}

	last := len(idle) - 1
	conn := idle[last]
	idle[last] = nil
	p.conns[target] = idle[:last]
	return conn
}

func (p *connPool) put(conn *netConn) {
	p.Lock()
	defer p.Unlock()

	if len(p.conns[conn.target]) >= p.max {
		conn.Release()
		return
	}
	p.conns[conn.target] = append(p.conns[conn.target], conn)
}

func (p *connPool) closeAll() {
	p.Lock()
	defer p.Unlock()

	for target, idle := range p.conns {
		for _, c := range idle {
			c.Release()
		}
		delete(p.conns, target)
	}
}
