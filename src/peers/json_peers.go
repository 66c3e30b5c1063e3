package peers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerPath = "peers.json"

// JSONPeers is the operator-edited bootstrap list, a JSON array of Peer
// objects in peers.json. Only NetAddr is required in each entry.
type JSONPeers struct {
	l    sync.Mutex
	path string
}

// NewJSONPeers points at peers.json in dir.
func NewJSONPeers(dir string) *JSONPeers {
	return &JSONPeers{path: filepath.Join(dir, jsonPeerPath)}
}

// Path returns the location of peers.json.
func (j *JSONPeers) Path() string {
	return j.path
}

// Peers returns the bootstrap entries. A missing or empty file is not an
// error.
func (j *JSONPeers) Peers() ([]*Peer, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var list []*Peer
	if err := json.Unmarshal(buf, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Addresses returns the distinct non-empty NetAddr values in file order.
func (j *JSONPeers) Addresses() ([]string, error) {
	list, err := j.Peers()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(list))
	res := []string{}
	for _, p := range list {
		if p == nil || p.NetAddr == "" || seen[p.NetAddr] {
			continue
		}
		seen[p.NetAddr] = true
		res = append(res, p.NetAddr)
	}
	return res, nil
}

// SetPeers overwrites peers.json with the given entries.
func (j *JSONPeers) SetPeers(list []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(list, "", "\t")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return os.WriteFile(j.path, append(buf, '\n'), 0644)
}
