package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/node"
)

// APIError is returned by the Client when the service answered with an error
// body.
type APIError struct {
	Status int
	Kind   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Msg)
}

// Client talks to a node's HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for the service at server, with or without
// scheme.
func NewClient(server string, timeout time.Duration) *Client {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}

	return &Client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Info ...
func (c *Client) Info() (*node.Info, error) {
	var info node.Info
	if err := c.do(http.MethodGet, "/api/node/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Channels ...
func (c *Client) Channels() ([]*channel.Channel, error) {
	var chans []*channel.Channel
	if err := c.do(http.MethodGet, "/api/channels", nil, &chans); err != nil {
		return nil, err
	}
	return chans, nil
}

// OpenChannel ...
func (c *Client) OpenChannel(peerID string, capacity uint64) (*channel.Channel, error) {
	var ch channel.Channel
	req := OpenChannelRequest{PeerNodeID: peerID, Capacity: capacity}
	if err := c.do(http.MethodPost, "/api/channels", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SendPayment ...
func (c *Client) SendPayment(channelID string, amount uint64) (*channel.Payment, error) {
	var p channel.Payment
	path := fmt.Sprintf("/api/channels/%s/payments", url.PathEscape(channelID))
	if err := c.do(http.MethodPost, path, PaymentRequest{Amount: amount}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Payments ...
func (c *Client) Payments(channelID string) ([]*channel.Payment, error) {
	var payments []*channel.Payment
	path := fmt.Sprintf("/api/channels/%s/payments", url.PathEscape(channelID))
	if err := c.do(http.MethodGet, path, nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// CloseChannel ...
func (c *Client) CloseChannel(channelID string) error {
	var resp CloseResponse
	path := fmt.Sprintf("/api/channels/%s/close", url.PathEscape(channelID))
	return c.do(http.MethodPost, path, nil, &resp)
}

func (c *Client) do(method, path string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return &APIError{Status: resp.StatusCode, Kind: "Unknown", Msg: resp.Status}
		}
		return &APIError{Status: resp.StatusCode, Kind: e.Kind, Msg: e.Error}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
