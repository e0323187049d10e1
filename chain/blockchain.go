package chain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/mezonai/starledger/block"
	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/events"
	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/monitoring"
	"github.com/mezonai/starledger/store"
)

const defaultHashMemoSize = 1024

// Blockchain is the single writer of a linear, hash-linked chain.
//
// Appends are serialized by appendMu and committed with PutIfAbsent, so at most
// one block is ever written per height. Reads never take appendMu; they see the
// tip published after the last committed append and read each block with a
// single store Get.
type Blockchain struct {
	store store.BlockStore
	bus   *events.EventBus
	now   func() time.Time

	appendMu sync.Mutex
	ready    atomic.Bool
	tip      atomic.Uint64

	// hash -> height; advisory, always confirmed against the stored block
	hashMemo *lru.Cache
}

type Option func(*Blockchain)

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(bc *Blockchain) { bc.now = now }
}

// WithEventBus publishes BlockAdded events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(bc *Blockchain) { bc.bus = bus }
}

// NewBlockchain wraps bs. Initialize must be called before any other method.
func NewBlockchain(bs store.BlockStore, opts ...Option) (*Blockchain, error) {
	if bs == nil {
		return nil, fmt.Errorf("block store cannot be nil")
	}
	memo, err := lru.New(defaultHashMemoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash memo: %w", err)
	}
	bc := &Blockchain{
		store:    bs,
		now:      time.Now,
		hashMemo: memo,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc, nil
}

// Initialize appends the genesis block to an empty store and marks the chain
// ready. Calling it again is a no-op.
func (bc *Blockchain) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bc.appendMu.Lock()
	defer bc.appendMu.Unlock()

	if bc.ready.Load() {
		return nil
	}

	logx.Info("CHAIN", "Initializing blockchain")
	count, err := bc.store.Count()
	if err != nil {
		return err
	}

	if count == 0 {
		logx.Info("CHAIN", "Adding genesis block")
		genesis := block.NewGenesisBlock()
		data, err := genesis.Encode()
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "failed to encode genesis block")
		}
		if err := bc.store.PutIfAbsent(0, data); err != nil && !errors.Is(err, errors.ErrAppendRace) {
			return err
		}
		if count, err = bc.store.Count(); err != nil {
			return err
		}
	} else {
		logx.Info("CHAIN", "Genesis block already exists, height ", count-1)
	}

	bc.tip.Store(count - 1)
	bc.ready.Store(true)
	monitoring.SetBlockHeight(count - 1)
	return nil
}

// Ready reports whether Initialize has completed.
func (bc *Blockchain) Ready() bool {
	return bc.ready.Load()
}

// Height returns the height of the last block. Genesis is height 0.
func (bc *Blockchain) Height() (uint64, error) {
	if !bc.ready.Load() {
		return 0, errors.ErrNotReady
	}
	return bc.tip.Load(), nil
}

// GetBlock returns the block stored at height.
func (bc *Blockchain) GetBlock(height uint64) (*block.Block, error) {
	tip, err := bc.Height()
	if err != nil {
		return nil, err
	}
	if height > tip {
		return nil, errors.NotFoundf("block %d not found, current height is %d", height, tip)
	}
	return bc.readBlock(height)
}

func (bc *Blockchain) readBlock(height uint64) (*block.Block, error) {
	data, err := bc.store.Get(height)
	if err != nil {
		return nil, err
	}
	blk, err := block.Decode(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "block %d is unreadable", height)
	}
	return blk, nil
}

// GetBlockByHash scans the chain for hash. A miss is (nil, nil).
func (bc *Blockchain) GetBlockByHash(hash string) (*block.Block, error) {
	tip, err := bc.Height()
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, nil
	}

	if cached, ok := bc.hashMemo.Get(hash); ok {
		height := cached.(uint64)
		if blk, err := bc.readBlock(height); err == nil && blk.Hash == hash {
			return blk, nil
		}
		bc.hashMemo.Remove(hash)
	}

	var found *block.Block
	err = bc.scan(0, tip, func(h uint64, blk *block.Block) bool {
		if blk.Hash == hash {
			found = blk
			bc.hashMemo.Add(hash, h)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetBlocksByAddress returns every block whose body carries address, in height order.
func (bc *Blockchain) GetBlocksByAddress(address string) ([]*block.Block, error) {
	tip, err := bc.Height()
	if err != nil {
		return nil, err
	}

	blocks := make([]*block.Block, 0)
	if address == "" {
		return blocks, nil
	}
	err = bc.scan(1, tip, func(h uint64, blk *block.Block) bool {
		if blk.Address() == address {
			blocks = append(blocks, blk)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// scan visits heights from..to in order. Store failures abort the scan; blocks
// that cannot be decoded are skipped so a corrupted record does not hide the rest.
func (bc *Blockchain) scan(from, to uint64, visit func(h uint64, blk *block.Block) bool) error {
	for h := from; h <= to; h++ {
		data, err := bc.store.Get(h)
		if err != nil {
			return err
		}
		blk, err := block.Decode(data)
		if err != nil {
			logx.Warn("CHAIN", "Skipping undecodable block ", h, ": ", err)
			continue
		}
		if !visit(h, blk) {
			return nil
		}
	}
	return nil
}

// AddBlock links body to the current tip, seals it and commits it. A lost race
// for the height is retried once against the reloaded tip before surfacing.
func (bc *Blockchain) AddBlock(ctx context.Context, body []byte) (*block.Block, error) {
	if !bc.ready.Load() {
		return nil, errors.ErrNotReady
	}
	draft, err := block.NewBlock(body)
	if err != nil {
		return nil, errors.InvalidRequestf("%s", err.Error())
	}

	bc.appendMu.Lock()
	defer bc.appendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	sealed, size, err := bc.appendLocked(draft)
	if errors.Is(err, errors.ErrAppendRace) {
		monitoring.IncreaseAppendRaceCount()
		logx.Warn("CHAIN", "Height ", bc.tip.Load()+1, " was taken by another writer, reloading tip")
		if rerr := bc.reloadTipLocked(); rerr != nil {
			return nil, rerr
		}
		sealed, size, err = bc.appendLocked(draft)
		if errors.Is(err, errors.ErrAppendRace) {
			monitoring.IncreaseAppendRaceCount()
		}
	}
	if err != nil {
		logx.Error("CHAIN", "Failed to append block: ", err)
		return nil, err
	}

	bc.tip.Store(sealed.Height)
	bc.hashMemo.Add(sealed.Hash, sealed.Height)
	monitoring.SetBlockHeight(sealed.Height)
	monitoring.RecordAppendedBlock(size, time.Since(start))
	bc.bus.Publish(events.NewBlockAdded(sealed.Hash, sealed.Height, sealed.Address()))
	logx.Info("CHAIN", "Added block ", sealed.Height, " hash ", sealed.Hash)
	return sealed, nil
}

func (bc *Blockchain) appendLocked(draft *block.Block) (*block.Block, int, error) {
	tip := bc.tip.Load()
	prev, err := bc.readBlock(tip)
	if err != nil {
		return nil, 0, err
	}

	next := &block.Block{Body: draft.Body}
	next.Link(tip+1, prev.Hash, bc.now())
	next.Seal()

	data, err := next.Encode()
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeInternal, err, "failed to encode block %d", next.Height)
	}
	if err := bc.store.PutIfAbsent(next.Height, data); err != nil {
		return nil, 0, err
	}
	return next, len(data), nil
}

func (bc *Blockchain) reloadTipLocked() error {
	count, err := bc.store.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		return errors.Wrap(errors.ErrCodeIO, nil, "block store lost its genesis block")
	}
	bc.tip.Store(count - 1)
	return nil
}

// ValidateBlock recomputes the digest of the stored block at height.
func (bc *Blockchain) ValidateBlock(height uint64) (bool, error) {
	if _, err := bc.Height(); err != nil {
		return false, err
	}
	data, err := bc.store.Get(height)
	if err != nil {
		return false, err
	}
	blk, err := block.Decode(data)
	if err != nil {
		logx.Warn("CHAIN", "Block #", height, " cannot be decoded: ", err)
		return false, nil
	}
	if blk.Height != height {
		logx.Warn("CHAIN", "Block #", height, " claims height ", blk.Height)
		return false, nil
	}
	if !blk.VerifyHash() {
		logx.Warn("CHAIN", fmt.Sprintf("Block #%d invalid hash: %s<>%s", height, blk.Hash, blk.ComputeHash()))
		return false, nil
	}
	return true, nil
}

// ValidateChain checks every block digest and every link, and returns the faulty
// heights in ascending order. Faults are data, the chain stays queryable.
func (bc *Blockchain) ValidateChain() ([]uint64, error) {
	tip, err := bc.Height()
	if err != nil {
		return nil, err
	}

	faults := make([]uint64, 0)
	prevHash, prevKnown := "", false
	for h := uint64(0); h <= tip; h++ {
		faulty := false

		data, err := bc.store.Get(h)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}

		var blk *block.Block
		if err == nil {
			blk, err = block.Decode(data)
			if err != nil {
				blk = nil
			}
		}

		switch {
		case blk == nil:
			faulty = true
		case blk.Height != h || !blk.VerifyHash():
			faulty = true
		}
		if h > 0 && (blk == nil || !prevKnown || blk.PreviousBlockHash != prevHash) {
			faulty = true
		}

		if faulty {
			faults = append(faults, h)
		}
		if blk != nil {
			prevHash, prevKnown = blk.Hash, true
		} else {
			prevHash, prevKnown = "", false
		}
	}

	monitoring.SetChainFaults(len(faults))
	if len(faults) > 0 {
		logx.Warn("CHAIN", "Block errors = ", len(faults), " blocks: ", faults)
	} else {
		logx.Info("CHAIN", "No errors detected")
	}
	return faults, nil
}
