package block

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mezonai/starledger/jsonx"
)

// GenesisBody is the fixed payload of the block at height 0.
const GenesisBody = "First block in the chain - Genesis block"

// Block is one hash-linked record of the chain. Field order is part of the
// digest; do not reorder.
type Block struct {
	Hash              string          `json:"hash"`
	Height            uint64          `json:"height"`
	Body              json.RawMessage `json:"body"`
	Time              int64           `json:"time"`
	PreviousBlockHash string          `json:"previousBlockHash"`
}

// NewBlock wraps an application payload. body must be valid JSON; it is compacted
// so equal payloads always hash the same.
func NewBlock(body []byte) (*Block, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return nil, fmt.Errorf("block body is not valid JSON: %w", err)
	}
	return &Block{Body: buf.Bytes()}, nil
}

// NewGenesisBlock returns the sealed, deterministic height-0 block.
func NewGenesisBlock() *Block {
	body, _ := jsonx.Marshal(GenesisBody)
	b := &Block{
		Height: 0,
		Body:   body,
		Time:   0,
	}
	b.Seal()
	return b
}

// Link assigns the chain position of b. Height and previous hash are never taken
// from the caller.
func (b *Block) Link(height uint64, previousHash string, now time.Time) {
	b.Height = height
	b.PreviousBlockHash = previousHash
	b.Time = now.Unix()
}

// ComputeHash returns the hex SHA-256 digest of b with its hash field blanked.
func (b *Block) ComputeHash() string {
	unsealed := *b
	unsealed.Hash = ""
	payload, err := jsonx.Marshal(&unsealed)
	if err != nil {
		// Body is validated JSON and the rest are scalars
		panic(fmt.Sprintf("block %d cannot be encoded: %v", b.Height, err))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Seal computes and stores the block hash. It must be the last mutation.
func (b *Block) Seal() {
	b.Hash = b.ComputeHash()
}

// VerifyHash reports whether the stored hash matches the block content.
func (b *Block) VerifyHash() bool {
	return b.Hash != "" && b.Hash == b.ComputeHash()
}

// Encode serializes the sealed block for storage.
func (b *Block) Encode() ([]byte, error) {
	return jsonx.Marshal(b)
}

// Decode parses a stored block payload.
func Decode(data []byte) (*Block, error) {
	var b Block
	if err := jsonx.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode block: %w", err)
	}
	return &b, nil
}

// Address returns the "address" field of an object body, or "" when the body
// does not carry one (genesis, foreign payloads).
func (b *Block) Address() string {
	if len(b.Body) == 0 || b.Body[0] != '{' {
		return ""
	}
	var withAddress struct {
		Address string `json:"address"`
	}
	if err := jsonx.Unmarshal(b.Body, &withAddress); err != nil {
		return ""
	}
	return withAddress.Address
}
