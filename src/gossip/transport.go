package gossip

// Transport carries overlay RPCs between members. Outbound calls block until
// the target answers or the transport's deadline expires; inbound calls are
// delivered on Consumer and answered through RPC.Respond.
type Transport interface {
	Listen()
	Consumer() <-chan RPC

	// LocalAddr is the bound address, AdvertiseAddr the one members dial.
	LocalAddr() string
	AdvertiseAddr() string

	Hello(target string, args *HelloRequest, resp *HelloResponse) error
	Publish(target string, args *PublishRequest, resp *PublishResponse) error
	Bye(target string, args *ByeRequest, resp *ByeResponse) error

	Close() error
}

// RPC is an inbound command waiting for its answer.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// RPCResponse pairs a response body with the error returned to the caller.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// Respond answers the RPC. It must be called exactly once.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{Response: resp, Error: err}
}
