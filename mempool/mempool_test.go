package mempool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/events"
	"github.com/mezonai/starledger/wallet"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records armed timers; tests fire them explicitly.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{at: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[len(s.timers)-1]
}

// fireAll runs every armed timer, stopped or not, like a timer that already
// fired before Stop was called.
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	timers := append([]*fakeTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		t.fn()
	}
}

// verifier accepts exactly one signature string
type stubVerifier struct{ good string }

func (v stubVerifier) Verify(message, address, signature string) bool {
	return signature == v.good
}

const addr = "1HZwkjkeaoZfTSaJxDw6aKkxp45agDiEzN"

func newTestMempool(t *testing.T, opts ...Option) (*Mempool, *fakeClock, *fakeScheduler) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1532296090, 0)}
	sched := &fakeScheduler{}
	base := []Option{
		WithClock(clock.Now),
		WithScheduler(sched),
		WithVerifier(stubVerifier{good: "good"}),
	}
	m := NewMempool(append(base, opts...)...)
	t.Cleanup(m.Close)
	return m, clock, sched
}

func TestAddRequestValidation(t *testing.T) {
	m, _, sched := newTestMempool(t)

	req, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	assert.Equal(t, addr, req.WalletAddress)
	assert.Equal(t, int64(1532296090), req.RequestTimeStamp)
	assert.Equal(t, addr+":1532296090:starRegistry", req.Message)
	assert.Equal(t, int64(300), req.ValidationWindow)
	assert.Equal(t, 300*time.Second, sched.last().at)
	assert.Equal(t, 1, m.Len())

	_, err = m.AddRequestValidation("  ")
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestRequestWithinWindowReturnsSameRequest(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	first, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	clock.Advance(100 * time.Second)

	second, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	assert.Equal(t, first.RequestTimeStamp, second.RequestTimeStamp)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, int64(200), second.ValidationWindow)
	assert.Len(t, sched.timers, 1, "no second challenge is scheduled")
}

func TestRequestAfterWindowIssuesNewChallenge(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	first, err := m.AddRequestValidation(addr)
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	sched.last().fn()
	assert.Equal(t, 0, m.Len())

	second, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	assert.Equal(t, first.RequestTimeStamp+300, second.RequestTimeStamp)
	assert.NotEqual(t, first.Message, second.Message)
	assert.Equal(t, int64(300), second.ValidationWindow)
}

func TestLazyExpiryWithoutTimer(t *testing.T) {
	m, clock, _ := newTestMempool(t)

	first, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	clock.Advance(301 * time.Second)

	// the timer has not fired yet
	_, err = m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrValidationExpired)

	_, err = m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrNoPendingRequest)

	second, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestTimeStamp, second.RequestTimeStamp)
}

func TestBadThenGoodSignature(t *testing.T) {
	m, _, _ := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)

	_, err = m.ValidateRequestByWallet(addr, "bad")
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
	assert.False(t, m.IsAuthorized(addr))

	res, err := m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)
	assert.True(t, res.RegisterStar)
	assert.True(t, res.Status.MessageSignature)
	assert.Equal(t, addr, res.Status.Address)
	assert.Equal(t, addr+":1532296090:starRegistry", res.Status.Message)
	assert.True(t, m.IsAuthorized(addr))
}

func TestValidateWithoutRequest(t *testing.T) {
	m, _, _ := newTestMempool(t)

	_, err := m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrNoPendingRequest)

	_, err = m.ValidateRequestByWallet(addr, "")
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestResolutionWinsOverStaleExpiry(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	pendingTimer := sched.last()

	clock.Advance(299 * time.Second)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)
	assert.True(t, pendingTimer.stopped)

	// the pending timer raced with the resolution and fires anyway
	pendingTimer.fn()
	assert.True(t, m.IsAuthorized(addr))
}

func TestExpiryWinsOverLateResolution(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	clock.Advance(300 * time.Second)
	sched.fireAll()

	_, err = m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrNoPendingRequest)
	assert.False(t, m.IsAuthorized(addr))
}

func TestAuthorizationIsOneShot(t *testing.T) {
	m, _, _ := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)

	require.NoError(t, m.ReserveAuthorization(addr))
	assert.False(t, m.IsAuthorized(addr), "reserved authorization is not available")
	assert.ErrorIs(t, m.ReserveAuthorization(addr), errors.ErrUnauthorized)

	m.ConsumeAuthorization(addr)
	assert.False(t, m.IsAuthorized(addr))
	assert.ErrorIs(t, m.ReserveAuthorization(addr), errors.ErrUnauthorized)
	assert.Equal(t, 0, m.Len())

	_, err = m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrNoPendingRequest)
}

func TestReleaseRestoresAuthorization(t *testing.T) {
	m, _, _ := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)

	require.NoError(t, m.ReserveAuthorization(addr))
	m.ReleaseAuthorization(addr)
	assert.True(t, m.IsAuthorized(addr))
}

func TestValidateWhenNoLongerPending(t *testing.T) {
	m, _, _ := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)

	res, err := m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrNoPendingRequest)
	assert.Nil(t, res)
	assert.True(t, m.IsAuthorized(addr), "a second resolution leaves the authorization alone")

	require.NoError(t, m.ReserveAuthorization(addr))
	res, err = m.ValidateRequestByWallet(addr, "good")
	assert.ErrorIs(t, err, errors.ErrNoPendingRequest)
	assert.Nil(t, res)

	m.ReleaseAuthorization(addr)
	assert.True(t, m.IsAuthorized(addr))
}

func TestUnusedAuthorizationExpiresWithItsRequest(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	clock.Advance(290 * time.Second)
	res, err := m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Status.ValidationWindow)

	authTimer := sched.last()
	assert.Equal(t, 10*time.Second, authTimer.at, "authorization ends with the request window")

	clock.Advance(10 * time.Second)
	assert.False(t, m.IsAuthorized(addr))
	assert.ErrorIs(t, m.ReserveAuthorization(addr), errors.ErrUnauthorized)
	authTimer.fn()
	assert.Equal(t, 0, m.Len())
}

func TestUnusedAuthorizationExpiresOnTimer(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	clock.Advance(100 * time.Second)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)

	clock.Advance(200 * time.Second)
	sched.last().fn()
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.IsAuthorized(addr))
}

func TestReservedAuthorizationSurvivesExpiryUntilSettled(t *testing.T) {
	m, clock, sched := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)
	require.NoError(t, m.ReserveAuthorization(addr))

	clock.Advance(400 * time.Second)
	sched.last().fn()
	assert.Equal(t, 1, m.Len())

	// the submission failed after the deadline, nothing is left to release into
	m.ReleaseAuthorization(addr)
	assert.False(t, m.IsAuthorized(addr))
	assert.Equal(t, 0, m.Len())
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	m, _, _ := newTestMempool(t)

	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.ReserveAuthorization(addr) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestEventsArePublished(t *testing.T) {
	bus := events.NewEventBus()
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	m, _, _ := newTestMempool(t, WithEventBus(bus))
	_, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(addr, "good")
	require.NoError(t, err)
	m.ConsumeAuthorization(addr)

	want := []events.EventType{
		events.EventValidationRequested,
		events.EventAddressAuthorized,
		events.EventAuthorizationUsed,
	}
	for _, w := range want {
		select {
		case ev := <-ch:
			assert.Equal(t, w, ev.Type())
			assert.Equal(t, addr, ev.Subject())
		case <-time.After(time.Second):
			t.Fatalf("missing event %s", w)
		}
	}
}

func TestWithRealVerifier(t *testing.T) {
	key, err := wallet.NewBitcoinKey()
	require.NoError(t, err)
	address, err := key.Address()
	require.NoError(t, err)

	m, _, _ := newTestMempool(t, WithVerifier(wallet.DefaultVerifier()))
	req, err := m.AddRequestValidation(address)
	require.NoError(t, err)

	sig, err := wallet.SignBitcoinMessage(key, req.Message)
	require.NoError(t, err)
	_, err = m.ValidateRequestByWallet(address, sig)
	require.NoError(t, err)
	assert.True(t, m.IsAuthorized(address))
}

func TestWithWindow(t *testing.T) {
	m, _, sched := newTestMempool(t, WithWindow(60*time.Second))
	req, err := m.AddRequestValidation(addr)
	require.NoError(t, err)
	assert.Equal(t, int64(60), req.ValidationWindow)
	assert.Equal(t, 60*time.Second, sched.last().at)

	assert.Equal(t, DefaultValidationWindow, NewMempool(WithWindow(0)).Window())
}
