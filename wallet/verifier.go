package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/mezonai/starledger/common"
	"github.com/mezonai/starledger/logx"
)

const bitcoinMessageMagic = "Bitcoin Signed Message:\n"

// Verifier decides whether signature over message was produced by the owner of address.
type Verifier interface {
	Verify(message, address, signature string) bool
}

// BitcoinMessageVerifier checks base64 compact signatures produced by wallets
// implementing the Bitcoin signed-message scheme against P2PKH addresses.
type BitcoinMessageVerifier struct {
	nets []*chaincfg.Params
}

// NewBitcoinMessageVerifier accepts addresses of the given networks, mainnet and
// testnet3 when none are given.
func NewBitcoinMessageVerifier(nets ...*chaincfg.Params) *BitcoinMessageVerifier {
	if len(nets) == 0 {
		nets = []*chaincfg.Params{&chaincfg.MainNetParams, &chaincfg.TestNet3Params}
	}
	return &BitcoinMessageVerifier{nets: nets}
}

// BitcoinMessageHash is the double SHA-256 digest a Bitcoin wallet signs for message.
func BitcoinMessageHash(message string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, bitcoinMessageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

func (v *BitcoinMessageVerifier) Verify(message, address, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != 65 {
		return false
	}
	pub, compressed, err := ecdsa.RecoverCompact(sig, BitcoinMessageHash(message))
	if err != nil {
		logx.Debug("WALLET", "Compact signature recovery failed: ", err)
		return false
	}

	var serialized []byte
	if compressed {
		serialized = pub.SerializeCompressed()
	} else {
		serialized = pub.SerializeUncompressed()
	}
	keyHash := btcutil.Hash160(serialized)
	for _, net := range v.nets {
		addr, err := btcutil.NewAddressPubKeyHash(keyHash, net)
		if err != nil {
			continue
		}
		if addr.EncodeAddress() == address {
			return true
		}
	}
	return false
}

// Ed25519Verifier treats the address as a base58 encoded ed25519 public key.
// Signatures may be hex or base58.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(message, address, signature string) bool {
	pubKeyBytes, err := common.DecodeBase58ToBytes(address)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := common.DecodeHexOrBase58(signature)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(message), sigBytes)
}

// MultiVerifier accepts a signature as soon as one of its verifiers does.
type MultiVerifier []Verifier

func (m MultiVerifier) Verify(message, address, signature string) bool {
	for _, v := range m {
		if v != nil && v.Verify(message, address, signature) {
			return true
		}
	}
	return false
}

// DefaultVerifier understands Bitcoin P2PKH addresses and base58 ed25519 keys.
func DefaultVerifier() Verifier {
	return MultiVerifier{NewBitcoinMessageVerifier(), Ed25519Verifier{}}
}
