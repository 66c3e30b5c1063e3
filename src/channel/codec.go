package channel

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

func newJSONHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, newJSONHandle())

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewBuffer(data), newJSONHandle())
	return dec.Decode(v)
}
