package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starledger/block"
	"github.com/mezonai/starledger/chain"
	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/jsonx"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/ratelimit"
	"github.com/mezonai/starledger/service"
	"github.com/mezonai/starledger/store"
	"github.com/mezonai/starledger/types"
	"github.com/mezonai/starledger/wallet"
)

func newTestServer(t *testing.T, limiter *ratelimit.ValidationLimiter) (*APIServer, *chain.Blockchain) {
	t.Helper()
	bs, err := store.CreateStore(&store.StoreConfig{Type: store.MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)

	bc, err := chain.NewBlockchain(bs)
	require.NoError(t, err)
	require.NoError(t, bc.Initialize(context.Background()))

	pool := mempool.NewMempool()
	t.Cleanup(pool.Close)

	s := NewAPIServer(service.NewStarService(bc, pool), service.NewHealthService(bc, pool, "test"), limiter, ":0")
	return s, bc
}

func do(t *testing.T, s *APIServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, jsonx.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, jsonx.Unmarshal(w.Body.Bytes(), v))
}

func TestRootAndHeight(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server up!", w.Body.String())

	w = do(t, s, http.MethodGet, "/block-height", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var h struct {
		Height uint64 `json:"height"`
	}
	decode(t, w, &h)
	assert.Equal(t, uint64(0), h.Height)

	w = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetBlockErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/block/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var genesis block.Block
	decode(t, w, &genesis)
	assert.NotEmpty(t, genesis.Hash)
	assert.Empty(t, genesis.PreviousBlockHash)

	w = do(t, s, http.MethodGet, "/block/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, string(errors.ErrCodeNotFound), body["code"])

	w = do(t, s, http.MethodGet, "/block/-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/block/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStarRegistrationFlow(t *testing.T) {
	s, _ := newTestServer(t, nil)
	key, err := wallet.NewBitcoinKey()
	require.NoError(t, err)
	addr, err := key.Address()
	require.NoError(t, err)

	star := types.StarRequest{
		Address: addr,
		Star:    &types.Star{RA: "16h 29m 1.0s", Dec: "68° 52' 56.9", Story: "Found star using https://www.google.com/sky/"},
	}

	w := do(t, s, http.MethodPost, "/block", star)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodPost, "/requestValidation", map[string]string{"address": addr})
	require.Equal(t, http.StatusOK, w.Code)
	var req mempool.ValidationRequest
	decode(t, w, &req)
	assert.Equal(t, int64(300), req.ValidationWindow)

	w = do(t, s, http.MethodPost, "/message-signature/validate", map[string]string{"address": addr, "signature": "AAAA"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sig, err := wallet.SignBitcoinMessage(key, req.Message)
	require.NoError(t, err)
	w = do(t, s, http.MethodPost, "/message-signature/validate", map[string]string{"address": addr, "signature": sig})
	require.Equal(t, http.StatusOK, w.Code)
	var res mempool.AuthorizationResult
	decode(t, w, &res)
	assert.True(t, res.RegisterStar)
	assert.True(t, res.Status.MessageSignature)

	w = do(t, s, http.MethodPost, "/block", star)
	require.Equal(t, http.StatusOK, w.Code)
	var added block.Block
	decode(t, w, &added)
	assert.Equal(t, uint64(1), added.Height)

	w = do(t, s, http.MethodPost, "/block", star)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "authorization is one-shot")

	w = do(t, s, http.MethodGet, "/block/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Body types.StarBody `json:"body"`
	}
	decode(t, w, &got)
	assert.Equal(t, star.Star.Story, got.Body.Star.StoryDecoded)

	w = do(t, s, http.MethodGet, "/stars/hash/"+added.Hash, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodGet, "/stars/hash/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/stars/address/"+addr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var blocks []block.Block
	decode(t, w, &blocks)
	assert.Len(t, blocks, 1)

	w = do(t, s, http.MethodGet, "/chain/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Valid  bool     `json:"valid"`
		Faults []uint64 `json:"faults"`
	}
	decode(t, w, &report)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Faults)
}

func TestValidateWithoutRequest(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/message-signature/validate", map[string]string{"address": "1abc", "signature": "sig"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, string(errors.ErrCodeNoPendingRequest), body["code"])

	w = do(t, s, http.MethodPost, "/requestValidation", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestValidationRateLimit(t *testing.T) {
	limiter := ratelimit.NewValidationLimiter(
		&ratelimit.RateLimiterConfig{MaxRequests: 2, WindowSize: time.Minute},
		&ratelimit.RateLimiterConfig{MaxRequests: 10, WindowSize: time.Minute},
	)
	t.Cleanup(limiter.Stop)
	s, _ := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		w := do(t, s, http.MethodPost, "/requestValidation", map[string]string{"address": "1abc"})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, s, http.MethodPost, "/requestValidation", map[string]string{"address": "1abc"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestNotReadyMapsTo503(t *testing.T) {
	bs, err := store.CreateStore(&store.StoreConfig{Type: store.MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)
	bc, err := chain.NewBlockchain(bs)
	require.NoError(t, err)
	pool := mempool.NewMempool()
	t.Cleanup(pool.Close)

	s := NewAPIServer(service.NewStarService(bc, pool), service.NewHealthService(bc, pool, "test"), nil, ":0")
	w := do(t, s, http.MethodGet, "/block-height", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		errors.ErrNotFound:          http.StatusNotFound,
		errors.ErrAppendRace:        http.StatusConflict,
		errors.ErrUnauthorized:      http.StatusUnauthorized,
		errors.ErrInvalidSignature:  http.StatusUnauthorized,
		errors.ErrValidationExpired: http.StatusGone,
		errors.ErrNoPendingRequest:  http.StatusUnprocessableEntity,
		errors.ErrInvalidRequest:    http.StatusUnprocessableEntity,
		errors.ErrNotReady:          http.StatusServiceUnavailable,
		errors.ErrIO:                http.StatusInternalServerError,
		context.Canceled:            http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}
