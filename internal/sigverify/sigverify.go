// Package sigverify checks Bitcoin signed messages.
//
// Signatures are the 65-byte compact recoverable form, base64 encoded, over
// the double SHA-256 of the "Bitcoin Signed Message" envelope. The public key
// is recovered from the signature and hashed into an address that must match
// the claimed one.
package sigverify

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const messageMagic = "Bitcoin Signed Message:\n"

const compactSigLen = 65

// Sentinel errors for malformed input.
var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrMalformedAddress   = errors.New("malformed address")
)

// ParamsForNetwork returns the chain parameters for a network name.
func ParamsForNetwork(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

// MessageHash returns the digest a Bitcoin wallet signs for message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = wire.WriteVarString(&buf, 0, messageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// BitcoinVerifier verifies signed messages for addresses on one network.
type BitcoinVerifier struct {
	params *chaincfg.Params
}

// NewBitcoinVerifier creates a verifier for params.
func NewBitcoinVerifier(params *chaincfg.Params) *BitcoinVerifier {
	return &BitcoinVerifier{params: params}
}

// Verify reports whether signature is address's signature over message.
// Malformed signatures or addresses return an error; callers that only need
// a yes/no answer treat any error as false.
func (v *BitcoinVerifier) Verify(message, address, signature string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != compactSigLen {
		return false, fmt.Errorf("%w: %d bytes", ErrMalformedSignature, len(sig))
	}

	pub, compressed, err := ecdsa.RecoverCompact(sig, MessageHash(message))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	addr, err := btcutil.DecodeAddress(address, v.params)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	var serialized []byte
	if compressed {
		serialized = pub.SerializeCompressed()
	} else {
		serialized = pub.SerializeUncompressed()
	}
	keyHash := btcutil.Hash160(serialized)

	switch a := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		return bytes.Equal(keyHash, a.Hash160()[:]), nil
	case *btcutil.AddressWitnessPubKeyHash:
		// Segwit addresses commit to the compressed key only.
		return compressed && bytes.Equal(keyHash, a.WitnessProgram()), nil
	default:
		return false, fmt.Errorf("%w: unsupported address type %T", ErrMalformedAddress, addr)
	}
}

// SignMessage signs message with key and returns the base64 compact
// signature a wallet would produce.
func SignMessage(key *btcec.PrivateKey, message string, compressed bool) (string, error) {
	if key == nil {
		return "", errors.New("sign message: nil private key")
	}
	sig := ecdsa.SignCompact(key, MessageHash(message), compressed)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// AddressForKey returns the P2PKH address of key on params.
func AddressForKey(key *btcec.PrivateKey, compressed bool, params *chaincfg.Params) (string, error) {
	var serialized []byte
	if compressed {
		serialized = key.PubKey().SerializeCompressed()
	} else {
		serialized = key.PubKey().SerializeUncompressed()
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized), params)
	if err != nil {
		return "", fmt.Errorf("derive address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// NewKey generates a private key and returns it with its WIF encoding and
// P2PKH address.
func NewKey(params *chaincfg.Params) (key *btcec.PrivateKey, wif string, address string, err error) {
	key, err = btcec.NewPrivateKey()
	if err != nil {
		return nil, "", "", fmt.Errorf("generate key: %w", err)
	}
	w, err := btcutil.NewWIF(key, params, true)
	if err != nil {
		return nil, "", "", fmt.Errorf("encode wif: %w", err)
	}
	address, err = AddressForKey(key, true, params)
	if err != nil {
		return nil, "", "", err
	}
	return key, w.String(), address, nil
}

// ParseWIF decodes a WIF private key.
func ParseWIF(s string) (key *btcec.PrivateKey, compressed bool, err error) {
	w, err := btcutil.DecodeWIF(s)
	if err != nil {
		return nil, false, fmt.Errorf("decode wif: %w", err)
	}
	return w.PrivKey, w.CompressPubKey, nil
}
