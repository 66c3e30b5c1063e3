package gossip

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const inmemTimeout = 200 * time.Millisecond

// NewInmemAddr returns a random in-memory address.
func NewInmemAddr() string {
	return "inmem-" + uuid.New().String()
}

// InmemTransport routes RPCs between transports of the same process. Routes
// are explicit: a transport only reaches the ones it was Connected to, which
// lets tests cut links to simulate partitions.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	routes     map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport creates a transport at addr, or at a random address when
// addr is empty, and returns the address with the transport.
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	return addr, &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		routes:     make(map[string]*InmemTransport),
		timeout:    inmemTimeout,
	}
}

// Consumer implements Transport.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements Transport.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements Transport.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Hello implements Transport.
func (i *InmemTransport) Hello(target string, args *HelloRequest, resp *HelloResponse) error {
	out, err := i.call(target, args)
	if err != nil {
		return err
	}
	*resp = *out.(*HelloResponse)
	return nil
}

// Publish implements Transport.
func (i *InmemTransport) Publish(target string, args *PublishRequest, resp *PublishResponse) error {
	out, err := i.call(target, args)
	if err != nil {
		return err
	}
	*resp = *out.(*PublishResponse)
	return nil
}

// Bye implements Transport.
func (i *InmemTransport) Bye(target string, args *ByeRequest, resp *ByeResponse) error {
	out, err := i.call(target, args)
	if err != nil {
		return err
	}
	*resp = *out.(*ByeResponse)
	return nil
}

func (i *InmemTransport) call(target string, args interface{}) (interface{}, error) {
	i.RLock()
	dst, ok := i.routes[target]
	i.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no route to %s", target)
	}

	// a late answer must never block the responder
	respCh := make(chan RPCResponse, 1)

	timer := time.NewTimer(i.timeout)
	defer timer.Stop()

	select {
	case dst.consumerCh <- RPC{Command: args, RespChan: respCh}:
	case <-timer.C:
		return nil, fmt.Errorf("%s did not accept the command in time", target)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Response, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s did not answer in time", target)
	}
}

// Connect adds a route to t under addr.
func (i *InmemTransport) Connect(addr string, t Transport) {
	i.Lock()
	defer i.Unlock()
	i.routes[addr] = t.(*InmemTransport)
}

// Disconnect removes the route to addr.
func (i *InmemTransport) Disconnect(addr string) {
	i.Lock()
	defer i.Unlock()
	delete(i.routes, addr)
}

// DisconnectAll removes every route.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.routes = make(map[string]*InmemTransport)
}

// Close implements Transport.
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen implements Transport. Routes exist from Connect on.
func (i *InmemTransport) Listen() {}

// ConnectAll routes every transport to every other one.
func ConnectAll(transports ...*InmemTransport) {
	for _, a := range transports {
		for _, b := range transports {
			if a != b {
				a.Connect(b.LocalAddr(), b)
			}
		}
	}
}
