package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mezonai/starledger/block"
	"github.com/mezonai/starledger/common"
	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/interfaces"
	"github.com/mezonai/starledger/jsonx"
	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/security/validation"
	"github.com/mezonai/starledger/types"
)

type StarServiceImpl struct {
	chain    interfaces.Chain
	registry interfaces.ValidationRegistry
}

func NewStarService(chain interfaces.Chain, registry interfaces.ValidationRegistry) *StarServiceImpl {
	return &StarServiceImpl{chain: chain, registry: registry}
}

func (s *StarServiceImpl) GetChainHeight(ctx context.Context) (uint64, error) {
	return s.chain.Height()
}

// GetBlock returns the block at height. Star bodies get their story decoded.
func (s *StarServiceImpl) GetBlock(ctx context.Context, height int64) (*block.Block, error) {
	if height < 0 {
		return nil, errors.NotFoundf("block %d not found, height cannot be negative", height)
	}
	blk, err := s.chain.GetBlock(uint64(height))
	if err != nil {
		return nil, err
	}
	return withDecodedStory(blk), nil
}

func (s *StarServiceImpl) GetBlockByHash(ctx context.Context, hash string) (*block.Block, error) {
	return s.chain.GetBlockByHash(strings.TrimSpace(hash))
}

func (s *StarServiceImpl) GetBlocksByAddress(ctx context.Context, address string) ([]*block.Block, error) {
	return s.chain.GetBlocksByAddress(strings.TrimSpace(address))
}

// AddStar registers a star for an authorized address. The authorization is
// reserved for the duration of the append and consumed only when it commits.
func (s *StarServiceImpl) AddStar(ctx context.Context, req *types.StarRequest) (*block.Block, error) {
	body, err := validation.ValidateStarRequest(req)
	if err != nil {
		return nil, err
	}
	if !s.chain.Ready() {
		return nil, errors.ErrNotReady
	}

	if err := s.registry.ReserveAuthorization(body.Address); err != nil {
		logx.Warn("STAR", "Rejected star from unauthorized address ", body.Address)
		return nil, err
	}

	body.Star.Story = common.StringToHex(body.Star.Story)
	data, err := jsonx.Marshal(body)
	if err != nil {
		s.registry.ReleaseAuthorization(body.Address)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to encode star body")
	}

	blk, err := s.chain.AddBlock(ctx, data)
	if err != nil {
		s.registry.ReleaseAuthorization(body.Address)
		return nil, err
	}
	s.registry.ConsumeAuthorization(body.Address)
	logx.Info("STAR", "Registered star for ", body.Address, " at height ", blk.Height)
	return blk, nil
}

func (s *StarServiceImpl) RequestValidation(ctx context.Context, address string) (*mempool.ValidationRequest, error) {
	if err := validation.ValidateShortTextLength(validation.AddressField, address); err != nil {
		return nil, err
	}
	return s.registry.AddRequestValidation(address)
}

func (s *StarServiceImpl) ValidateSignature(ctx context.Context, address, signature string) (*mempool.AuthorizationResult, error) {
	if err := validation.ValidateRequired(validation.AddressField, address); err != nil {
		return nil, err
	}
	if err := validation.ValidateRequired(validation.SignatureField, signature); err != nil {
		return nil, err
	}
	return s.registry.ValidateRequestByWallet(strings.TrimSpace(address), strings.TrimSpace(signature))
}

func (s *StarServiceImpl) ValidateChain(ctx context.Context) (*interfaces.ChainReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	faults, err := s.chain.ValidateChain()
	if err != nil {
		return nil, err
	}
	height, err := s.chain.Height()
	if err != nil {
		return nil, err
	}
	return &interfaces.ChainReport{Height: height, Valid: len(faults) == 0, Faults: faults}, nil
}

// withDecodedStory returns a copy of blk whose star story is also present in
// plain text. Fields the registry does not model are kept; other bodies are
// returned as stored.
func withDecodedStory(blk *block.Block) *block.Block {
	if blk.Height == 0 {
		return blk
	}
	var body map[string]json.RawMessage
	if err := jsonx.Unmarshal(blk.Body, &body); err != nil || len(body["star"]) == 0 {
		return blk
	}
	var star map[string]json.RawMessage
	if err := jsonx.Unmarshal(body["star"], &star); err != nil || len(star["story"]) == 0 {
		return blk
	}
	var encoded string
	if err := jsonx.Unmarshal(star["story"], &encoded); err != nil || encoded == "" {
		return blk
	}
	decoded, err := common.HexToString(encoded)
	if err != nil {
		return blk
	}

	if star["storyDecoded"], err = jsonx.Marshal(decoded); err != nil {
		return blk
	}
	if body["star"], err = jsonx.Marshal(star); err != nil {
		return blk
	}
	data, err := jsonx.Marshal(body)
	if err != nil {
		return blk
	}
	out := *blk
	out.Body = data
	return &out
}
