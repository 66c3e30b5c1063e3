package identity

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	pcrypto "github.com/mosaicnetworks/paychan/src/crypto"
	"github.com/mosaicnetworks/paychan/src/crypto/keys"
)

// NetParams are the settlement network parameters addresses are encoded for.
var NetParams = &chaincfg.RegressionNetParams

func settlementAddress(pubKey []byte) (string, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey), NetParams)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// JointScript returns the OP_2 <k1> <k2> OP_2 OP_CHECKMULTISIG witness script
// of two public keys. Keys are canonicalized to their compressed form and
// sorted, so the script does not depend on which party builds it.
func JointScript(a, b []byte) ([]byte, error) {
	ka, err := compressed(a)
	if err != nil {
		return nil, err
	}
	kb, err := compressed(b)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(ka, kb) {
		return nil, fmt.Errorf("joint script needs two distinct keys")
	}

	sorted := [][]byte{ka, kb}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(sorted[0]).
		AddData(sorted[1]).
		AddOp(txscript.OP_2).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}

// JointAddress returns the pay-to-witness-script-hash address of JointScript.
func JointAddress(a, b []byte) (string, error) {
	script, err := JointScript(a, b)
	if err != nil {
		return "", fmt.Errorf("deriving joint address: %v", err)
	}

	addr, err := btcutil.NewAddressWitnessScriptHash(pcrypto.SHA256(script), NetParams)
	if err != nil {
		return "", fmt.Errorf("deriving joint address: %v", err)
	}

	return addr.EncodeAddress(), nil
}

func compressed(pub []byte) ([]byte, error) {
	key, err := keys.ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return keys.FromPublicKey(key), nil
}
