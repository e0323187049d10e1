package interfaces

import (
	"context"

	"github.com/mezonai/starledger/block"
	"github.com/mezonai/starledger/mempool"
)

// Chain defines the chain engine operations the services rely on
type Chain interface {
	Ready() bool
	// Height is the height of the last block, genesis is 0
	Height() (uint64, error)
	GetBlock(height uint64) (*block.Block, error)
	// GetBlockByHash returns (nil, nil) on a miss
	GetBlockByHash(hash string) (*block.Block, error)
	GetBlocksByAddress(address string) ([]*block.Block, error)
	AddBlock(ctx context.Context, body []byte) (*block.Block, error)
	ValidateBlock(height uint64) (bool, error)
	ValidateChain() ([]uint64, error)
}

// ValidationRegistry tracks wallet challenges and one-shot authorizations
type ValidationRegistry interface {
	AddRequestValidation(address string) (*mempool.ValidationRequest, error)
	ValidateRequestByWallet(address, signature string) (*mempool.AuthorizationResult, error)
	IsAuthorized(address string) bool
	ReserveAuthorization(address string) error
	ReleaseAuthorization(address string)
	ConsumeAuthorization(address string)
	Len() int
}
