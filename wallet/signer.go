package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/mezonai/starledger/common"
)

// BitcoinKey is a secp256k1 key together with the address form it signs for.
type BitcoinKey struct {
	PrivKey    *btcec.PrivateKey
	Compressed bool
	Net        *chaincfg.Params
}

// NewBitcoinKey generates a compressed mainnet key.
func NewBitcoinKey() (*BitcoinKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &BitcoinKey{PrivKey: priv, Compressed: true, Net: &chaincfg.MainNetParams}, nil
}

// ParseBitcoinKey accepts a WIF string or a 32-byte hex private key.
func ParseBitcoinKey(s string) (*BitcoinKey, error) {
	s = strings.TrimSpace(s)
	if wif, err := btcutil.DecodeWIF(s); err == nil {
		net := &chaincfg.MainNetParams
		if wif.IsForNet(&chaincfg.TestNet3Params) {
			net = &chaincfg.TestNet3Params
		}
		return &BitcoinKey{PrivKey: wif.PrivKey, Compressed: wif.CompressPubKey, Net: net}, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("private key must be WIF or 32 bytes of hex")
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &BitcoinKey{PrivKey: priv, Compressed: true, Net: &chaincfg.MainNetParams}, nil
}

// Address returns the P2PKH address of the key.
func (k *BitcoinKey) Address() (string, error) {
	var serialized []byte
	if k.Compressed {
		serialized = k.PrivKey.PubKey().SerializeCompressed()
	} else {
		serialized = k.PrivKey.PubKey().SerializeUncompressed()
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized), k.Net)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// WIF returns the wallet import format of the key.
func (k *BitcoinKey) WIF() (string, error) {
	wif, err := btcutil.NewWIF(k.PrivKey, k.Net, k.Compressed)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

// SignBitcoinMessage produces the base64 compact signature a Bitcoin wallet would
// return for message.
func SignBitcoinMessage(k *BitcoinKey, message string) (string, error) {
	if k == nil || k.PrivKey == nil {
		return "", fmt.Errorf("missing signing key")
	}
	sig := ecdsa.SignCompact(k.PrivKey, BitcoinMessageHash(message), k.Compressed)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// NewEd25519Key generates a key and returns it with its base58 address.
func NewEd25519Key() (ed25519.PrivateKey, string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", err
	}
	return priv, common.EncodeBytesToBase58(pub), nil
}

// ParseEd25519Key accepts a hex 32-byte seed or 64-byte private key.
func ParseEd25519Key(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("ed25519 key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
}

// Ed25519Address is the base58 encoding of the public half of priv.
func Ed25519Address(priv ed25519.PrivateKey) string {
	return common.EncodeBytesToBase58(priv.Public().(ed25519.PublicKey))
}

// SignEd25519 returns the hex signature of message.
func SignEd25519(priv ed25519.PrivateKey, message string) string {
	return hex.EncodeToString(ed25519.Sign(priv, []byte(message)))
}
