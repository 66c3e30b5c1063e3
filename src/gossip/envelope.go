package gossip

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/mosaicnetworks/paychan/src/identity"
	"github.com/ugorji/go/codec"
)

// ErrBadEnvelopeSignature is returned by Open when the envelope was not
// signed by its Sender.
var ErrBadEnvelopeSignature = errors.New("envelope signature does not verify")

// Signer seals envelopes.
type Signer interface {
	PublicKeyHex() string
	Sign(data []byte) (string, error)
}

// Envelope is what travels on the topic: an encoded Message signed by its
// originator.
type Envelope struct {
	Sender    string          `json:"sender"`
	Timestamp int64           `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
	Signature string          `json:"signature"`
}

type signedEnvelope struct {
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	Message   []byte `json:"message"`
}

// Seal encodes b and signs it.
func Seal(b Body, s Signer) (*Envelope, error) {
	msg, err := EncodeMessage(b)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		Sender:    s.PublicKeyHex(),
		Timestamp: time.Now().UnixNano(),
		Message:   msg,
	}

	data, err := env.signedBytes()
	if err != nil {
		return nil, err
	}

	if env.Signature, err = s.Sign(data); err != nil {
		return nil, err
	}

	return env, nil
}

func (e *Envelope) signedBytes() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(&signedEnvelope{
		Sender:    e.Sender,
		Timestamp: e.Timestamp,
		Message:   []byte(e.Message),
	}); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Verify reports whether the envelope was signed by Sender.
func (e *Envelope) Verify() bool {
	data, err := e.signedBytes()
	if err != nil {
		return false
	}
	return identity.Verify(data, e.Signature, e.Sender)
}

// Open verifies the envelope and decodes its message.
func (e *Envelope) Open() (Body, error) {
	if !e.Verify() {
		return nil, ErrBadEnvelopeSignature
	}
	return DecodeMessage(e.Message)
}

// Marshal ...
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope ...
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	e := new(Envelope)
	if err := json.Unmarshal(data, e); err != nil {
		return nil, err
	}
	return e, nil
}
