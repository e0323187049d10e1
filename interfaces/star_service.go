package interfaces

import (
	"context"

	"github.com/mezonai/starledger/block"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/types"
)

// ChainReport is the outcome of a full chain verification
type ChainReport struct {
	Height uint64   `json:"height"`
	Valid  bool     `json:"valid"`
	Faults []uint64 `json:"faults"`
}

type StarService interface {
	GetChainHeight(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, height int64) (*block.Block, error)
	GetBlockByHash(ctx context.Context, hash string) (*block.Block, error)
	GetBlocksByAddress(ctx context.Context, address string) ([]*block.Block, error)
	AddStar(ctx context.Context, req *types.StarRequest) (*block.Block, error)
	RequestValidation(ctx context.Context, address string) (*mempool.ValidationRequest, error)
	ValidateSignature(ctx context.Context, address, signature string) (*mempool.AuthorizationResult, error)
	ValidateChain(ctx context.Context) (*ChainReport, error)
}
