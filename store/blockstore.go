package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mezonai/starledger/db"
	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/logx"
)

// BlockStore maps sequential integer keys to serialized block payloads.
type BlockStore interface {
	Put(key uint64, value []byte) (uint64, []byte, error)
	Get(key uint64) ([]byte, error)
	Count() (uint64, error)
	AppendNext(value []byte) (uint64, []byte, error)
	PutIfAbsent(key uint64, value []byte) error
	MustClose()
}

// GenericBlockStore is a database-agnostic implementation that uses DatabaseProvider
// This allows it to work with any database backend (LevelDB, Badger, bbolt)
type GenericBlockStore struct {
	provider db.DatabaseProvider
	// serializes PutIfAbsent's existence check with its write
	writeMu sync.Mutex
}

// NewGenericBlockStore creates a new generic block store with the given provider
func NewGenericBlockStore(provider db.DatabaseProvider) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericBlockStore{provider: provider}, nil
}

// heightToBlockKey converts a height to a block storage key. Big-endian keeps
// prefix iteration in height order.
func heightToBlockKey(height uint64) []byte {
	key := make([]byte, len(PrefixBlock)+8)
	copy(key, PrefixBlock)
	binary.BigEndian.PutUint64(key[len(PrefixBlock):], height)
	return key
}

// Put stores value under key, overwriting whatever is there.
func (s *GenericBlockStore) Put(key uint64, value []byte) (uint64, []byte, error) {
	if err := s.provider.Put(heightToBlockKey(key), value); err != nil {
		logx.Error("BLOCKSTORE", "Failed to put block ", key, " error: ", err)
		return 0, nil, errors.IOError(err, fmt.Sprintf("put block %d", key))
	}
	return key, value, nil
}

// Get returns the payload stored at key.
func (s *GenericBlockStore) Get(key uint64) ([]byte, error) {
	value, err := s.provider.Get(heightToBlockKey(key))
	if err != nil {
		logx.Error("BLOCKSTORE", "Failed to get block ", key, " error: ", err)
		return nil, errors.IOError(err, fmt.Sprintf("get block %d", key))
	}
	if value == nil {
		return nil, errors.NotFoundf("block %d not found", key)
	}
	return value, nil
}

// Count scans every block entry. O(n).
func (s *GenericBlockStore) Count() (uint64, error) {
	var n uint64
	err := s.provider.IteratePrefix([]byte(PrefixBlock), func(key, value []byte) bool {
		n++
		return true
	})
	if err != nil {
		return 0, errors.IOError(err, "count blocks")
	}
	return n, nil
}

// AppendNext writes value at key Count(). The scan and the write are not atomic;
// concurrent callers can pick the same key. The chain never uses it for appends.
func (s *GenericBlockStore) AppendNext(value []byte) (uint64, []byte, error) {
	n, err := s.Count()
	if err != nil {
		return 0, nil, err
	}
	return s.Put(n, value)
}

// PutIfAbsent writes value at key only when the key is free.
func (s *GenericBlockStore) PutIfAbsent(key uint64, value []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	bkey := heightToBlockKey(key)
	exists, err := s.provider.Has(bkey)
	if err != nil {
		return errors.IOError(err, fmt.Sprintf("check block %d", key))
	}
	if exists {
		logx.Warn("BLOCKSTORE", "Block ", key, " already exists")
		return errors.Wrap(errors.ErrCodeAppendRace, nil, "block at height %d already exists", key)
	}
	if err := s.provider.Put(bkey, value); err != nil {
		return errors.IOError(err, fmt.Sprintf("put block %d", key))
	}
	return nil
}

// MustClose closes the underlying database provider
func (s *GenericBlockStore) MustClose() {
	if err := s.provider.Close(); err != nil {
		logx.Error("BLOCKSTORE", "Failed to close provider: ", err)
	}
}
