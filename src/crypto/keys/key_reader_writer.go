package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// KeyReaderWriter reads and writes ecdsa keys from/to any format or support.
type KeyReaderWriter interface {
	ReadKey() (*ecdsa.PrivateKey, error)
	WriteKey(*ecdsa.PrivateKey) error
}

// SimpleKeyfile implements KeyReaderWriter with unencrypted and unformated
// files.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile instantiates a new SimpleKeyfile with an underlying file
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	simpleKeyfile := &SimpleKeyfile{
		keyfile: keyfile,
	}

	return simpleKeyfile
}

// CheckFileInfo verifies that the file exists and has user permissions only.
func (k *SimpleKeyfile) CheckFileInfo() error {
	info, err := os.Stat(k.keyfile)
	if err != nil {
		return err
	}

	// group and other bits must be clear
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("%s permissions should exclude 'groups' and 'others'. Got %o", filepath.Base(k.keyfile), perm)
	}

	return nil
}

// ReadKey implements KeyReaderWriter. The file holds the hex encoded
// 32-byte scalar written by WriteKey.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := k.CheckFileInfo(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKeyHex(string(buf))
}

// WriteKey implements KeyReaderWriter. It writes the hex encoded scalar with
// owner-only permissions, creating parent directories as needed.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.keyfile, []byte(hex.EncodeToString(DumpPrivateKey(key))), 0600)
}

// Exists reports whether the underlying file is present.
func (k *SimpleKeyfile) Exists() bool {
	_, err := os.Stat(k.keyfile)
	return err == nil
}

// LoadOrCreate reads the key from the underlying file, or generates a new key
// and writes it when the file does not exist yet. The node identity, and
// therefore the counterparty key of every channel it opened, survives restarts.
func LoadOrCreate(k *SimpleKeyfile) (key *ecdsa.PrivateKey, created bool, err error) {
	if k.Exists() {
		key, err = k.ReadKey()
		return key, false, err
	}

	key, err = GenerateECDSAKey()
	if err != nil {
		return nil, false, err
	}

	if err := k.WriteKey(key); err != nil {
		return nil, false, err
	}

	return key, true, nil
}
