package store

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starledger/db"
	"github.com/mezonai/starledger/errors"
)

func newMemoryStore(t *testing.T) *GenericBlockStore {
	t.Helper()
	bs, err := CreateStore(&StoreConfig{Type: MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)
	return bs
}

func TestPutGetCount(t *testing.T) {
	bs := newMemoryStore(t)

	n, err := bs.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	key, value, err := bs.Put(0, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), key)
	assert.Equal(t, []byte(`{"a":1}`), value)

	got, err := bs.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	n, err = bs.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestGetMissingIsNotFound(t *testing.T) {
	bs := newMemoryStore(t)

	_, err := bs.Get(42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAppendNextUsesCount(t *testing.T) {
	bs := newMemoryStore(t)

	for i := 0; i < 3; i++ {
		key, _, err := bs.AppendNext([]byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), key)
	}
	n, err := bs.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestPutIfAbsentRejectsTakenKey(t *testing.T) {
	bs := newMemoryStore(t)

	require.NoError(t, bs.PutIfAbsent(0, []byte("first")))
	err := bs.PutIfAbsent(0, []byte("second"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAppendRace))

	got, err := bs.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestPutIfAbsentSingleWinner(t *testing.T) {
	bs := newMemoryStore(t)

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := bs.PutIfAbsent(7, []byte{byte(i)}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

type failingProvider struct {
	db.DatabaseProvider
}

func (failingProvider) Put(key, value []byte) error { return stderrors.New("disk full") }
func (failingProvider) Get(key []byte) ([]byte, error) { return nil, stderrors.New("read error") }

func TestProviderFailuresSurfaceAsIOError(t *testing.T) {
	mem, err := db.NewMemoryProvider()
	require.NoError(t, err)
	defer mem.Close()

	bs, err := NewGenericBlockStore(failingProvider{mem})
	require.NoError(t, err)

	_, _, err = bs.Put(0, []byte("x"))
	assert.True(t, errors.Is(err, errors.ErrIO))

	_, err = bs.Get(0)
	assert.True(t, errors.Is(err, errors.ErrIO))
}

func TestStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{"memory without dir", StoreConfig{Type: MemoryStoreType}, false},
		{"leveldb with dir", StoreConfig{Type: LevelDBStoreType, Directory: "x"}, false},
		{"leveldb without dir", StoreConfig{Type: LevelDBStoreType}, true},
		{"empty type", StoreConfig{Directory: "x"}, true},
		{"unknown type", StoreConfig{Type: "rocksdb", Directory: "x"}, true},
		{"redis with address", StoreConfig{Type: RedisStoreType, Address: "localhost:6379"}, false},
		{"redis without address", StoreConfig{Type: RedisStoreType, Directory: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateStoreOnDisk(t *testing.T) {
	for _, typ := range []StoreType{LevelDBStoreType, BadgerStoreType, BoltStoreType} {
		t.Run(string(typ), func(t *testing.T) {
			bs, err := CreateStore(&StoreConfig{Type: typ, Directory: t.TempDir()})
			require.NoError(t, err)
			defer bs.MustClose()

			_, _, err = bs.AppendNext([]byte("genesis"))
			require.NoError(t, err)
			n, err := bs.Count()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), n)
		})
	}
}

func TestCreateStoreOnRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	bs, err := CreateStore(&StoreConfig{Type: RedisStoreType, Address: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)

	require.NoError(t, bs.PutIfAbsent(0, []byte("genesis")))
	require.NoError(t, bs.PutIfAbsent(1, []byte("one")))
	assert.True(t, errors.Is(bs.PutIfAbsent(1, []byte("again")), errors.ErrAppendRace))

	n, err := bs.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	value, err := bs.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), value)
	assert.True(t, srv.Exists("blk:1"))
}
