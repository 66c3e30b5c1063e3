package keys

import (
	"encoding/hex"
	"io/ioutil"
	"os"
	"path"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	pcrypto "github.com/mosaicnetworks/paychan/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {

	// Create a test dir
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "paychan")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	simpleKeyfile := NewSimpleKeyfile(path.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, created, err := LoadOrCreate(simpleKeyfile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("LoadOrCreate should have created a key")
	}

	// Try a read, should get key
	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(nKey.D, key.D) || PublicKeyHex(&nKey.PublicKey) != PublicKeyHex(&key.PublicKey) {
		t.Fatalf("Keys do not match")
	}

	again, created, err := LoadOrCreate(simpleKeyfile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("LoadOrCreate should have reused the existing key")
	}
	if again.D.Cmp(key.D) != 0 {
		t.Fatalf("LoadOrCreate returned a different key")
	}
}

func TestFilePermissions(t *testing.T) {

	// Create a test dir
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "paychan")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	key, _ := GenerateECDSAKey()
	rawKey := hex.EncodeToString(DumpPrivateKey(key))

	badKeyPath := path.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
	}

	for _, fm := range shouldErr {
		os.Remove(badKeyPath)
		ioutil.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || keyfile should return permissions error", fm)
		}
	}

	goodKeyPath := path.Join(dir, "priv_key_good")

	for _, fm := range []os.FileMode{0700, 0600} {
		os.Remove(goodKeyPath)
		ioutil.WriteFile(goodKeyPath, []byte(rawKey), fm)
		os.Chmod(goodKeyPath, fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || keyfile should not return error. Got %v", fm, err)
		}
	}
}

func TestSignatureEncoding(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	msgHashBytes := pcrypto.SHA256([]byte("J'aime mieux forger mon ame que la meubler"))

	r, s, err := Sign(privKey, msgHashBytes)
	if err != nil {
		t.Fatal(err)
	}

	if !IsLowS(s) {
		t.Fatalf("s should be normalized to the lower half of N")
	}

	encodedSig := EncodeSignature(r, s)
	if len(encodedSig) != 2*SignatureLen {
		t.Fatalf("encoded signature should be %d hex chars, got %d", 2*SignatureLen, len(encodedSig))
	}

	dr, ds, err := DecodeSignature(encodedSig)
	if err != nil {
		t.Fatal(err)
	}

	if r.Cmp(dr) != 0 {
		t.Fatalf("Signature Rs differ")
	}

	if s.Cmp(ds) != 0 {
		t.Fatalf("Signature Ss differ")
	}

	if !Verify(&privKey.PublicKey, msgHashBytes, dr, ds) {
		t.Fatalf("decoded signature should verify")
	}

	if _, _, err := DecodeSignature(encodedSig[:10]); err == nil {
		t.Fatalf("truncated signature should not decode")
	}
}

func TestDeterministicSignature(t *testing.T) {
	privKey, _ := GenerateECDSAKey()
	hash := pcrypto.SHA256([]byte("same input"))

	r1, s1, _ := Sign(privKey, hash)
	r2, s2, _ := Sign(privKey, hash)

	if EncodeSignature(r1, s1) != EncodeSignature(r2, s2) {
		t.Fatalf("signatures of the same hash with the same key should be identical")
	}
}

func TestParsePublicKey(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	compressed := FromPublicKey(&privKey.PublicKey)
	if len(compressed) != CompressedPubKeyLen {
		t.Fatalf("compressed key should be %d bytes, got %d", CompressedPubKeyLen, len(compressed))
	}

	pub, err := ParsePublicKey(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if pub.X.Cmp(privKey.PublicKey.X) != 0 || pub.Y.Cmp(privKey.PublicKey.Y) != 0 {
		t.Fatalf("parsed key differs")
	}

	uncompressed := (*btcec.PublicKey)(pub).SerializeUncompressed()
	canonical, err := CanonicalPublicKeyHex(hex.EncodeToString(uncompressed))
	if err != nil {
		t.Fatal(err)
	}
	if canonical != PublicKeyHex(&privKey.PublicKey) {
		t.Fatalf("uncompressed key should canonicalize to the compressed form")
	}

	if _, err := ParsePublicKey(compressed[:20]); err == nil {
		t.Fatalf("short key should not parse")
	}
	if _, err := ParsePublicKeyHex("zz"); err == nil {
		t.Fatalf("non-hex key should not parse")
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	dump := DumpPrivateKey(key)
	if len(dump) != PrivateKeyLen {
		t.Fatalf("dump should be %d bytes, got %d", PrivateKeyLen, len(dump))
	}

	parsed, err := ParsePrivateKeyHex(PrivateKeyHex(key))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.D.Cmp(key.D) != 0 || parsed.X.Cmp(key.X) != 0 || parsed.Y.Cmp(key.Y) != 0 {
		t.Fatalf("parsed key differs")
	}

	if _, err := ParsePrivateKey(make([]byte, PrivateKeyLen)); err == nil {
		t.Fatalf("zero key should not parse")
	}
	if _, err := ParsePrivateKey(curveN.Bytes()); err == nil {
		t.Fatalf("key equal to the curve order should not parse")
	}
	if _, err := ParsePrivateKey(dump[:31]); err == nil {
		t.Fatalf("short key should not parse")
	}
}
