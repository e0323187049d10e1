package mempool

import (
	"strings"
	"sync"
	"time"

	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/events"
	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/monitoring"
	"github.com/mezonai/starledger/wallet"
)

// Mempool holds per-address validation state: pending challenges and one-shot
// authorizations. Every transition happens under mu; scheduled expiries carry the
// generation of the entry they were armed for and are ignored once it changed.
type Mempool struct {
	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64

	window    time.Duration
	now       func() time.Time
	scheduler Scheduler
	verifier  wallet.Verifier
	bus       *events.EventBus
}

type Option func(*Mempool)

func WithWindow(window time.Duration) Option {
	return func(m *Mempool) {
		if window >= time.Second {
			m.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Mempool) { m.now = now }
}

func WithScheduler(s Scheduler) Option {
	return func(m *Mempool) { m.scheduler = s }
}

func WithVerifier(v wallet.Verifier) Option {
	return func(m *Mempool) { m.verifier = v }
}

func WithEventBus(bus *events.EventBus) Option {
	return func(m *Mempool) { m.bus = bus }
}

// NewMempool creates an empty registry. Without options it uses a 300 second
// window, the system clock and the default wallet verifier.
func NewMempool(opts ...Option) *Mempool {
	m := &Mempool{
		entries:   make(map[string]*entry),
		window:    DefaultValidationWindow,
		now:       time.Now,
		scheduler: systemScheduler{},
		verifier:  wallet.DefaultVerifier(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mempool) Window() time.Duration {
	return m.window
}

// Len returns the number of addresses with live state.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// AddRequestValidation issues a challenge for address. While a challenge is live
// the same request is returned with the remaining window.
func (m *Mempool) AddRequestValidation(address string) (*ValidationRequest, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.InvalidRequestf(errors.ErrMsgFieldMissing, "address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e := m.liveEntryLocked(address, now); e != nil {
		monitoring.RecordValidation(monitoring.ValidationReused)
		return m.requestOf(address, e, now), nil
	}

	ts := now.Unix()
	e := &entry{
		state:            statePending,
		requestTimeStamp: ts,
		message:          ChallengeMessage(address, ts),
		deadline:         time.Unix(ts, 0).Add(m.window),
	}
	m.armLocked(address, e, now)
	m.entries[address] = e
	m.updatePendingGaugeLocked()

	monitoring.RecordValidation(monitoring.ValidationRequested)
	m.bus.Publish(events.NewValidationRequested(address))
	logx.Info("MEMPOOL", "Validation requested for ", address, " message ", e.message)
	return m.requestOf(address, e, now), nil
}

// ValidateRequestByWallet checks signature against the pending challenge of
// address. A bad signature leaves the challenge pending; an address that is
// already authorized has no pending challenge.
func (m *Mempool) ValidateRequestByWallet(address, signature string) (*AuthorizationResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.InvalidRequestf(errors.ErrMsgFieldMissing, "address")
	}
	if strings.TrimSpace(signature) == "" {
		return nil, errors.InvalidRequestf(errors.ErrMsgFieldMissing, "signature")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[address]
	if !ok {
		monitoring.RecordValidation(monitoring.ValidationNoPending)
		return nil, errors.ErrNoPendingRequest
	}
	if m.expiredLocked(e, now) {
		m.dropLocked(address, e)
		monitoring.RecordValidation(monitoring.ValidationExpired)
		m.bus.Publish(events.NewValidationExpired(address))
		return nil, errors.ErrValidationExpired
	}
	if e.state != statePending {
		monitoring.RecordValidation(monitoring.ValidationNoPending)
		return nil, errors.ErrNoPendingRequest
	}

	if !m.verifier.Verify(e.message, address, signature) {
		monitoring.RecordValidation(monitoring.ValidationInvalidSignature)
		logx.Warn("MEMPOOL", "Invalid signature for ", address)
		return nil, errors.ErrInvalidSignature
	}

	// the authorization keeps the deadline of its request
	if e.timer != nil {
		e.timer.Stop()
	}
	e.state = stateAuthorized
	m.armLocked(address, e, now)

	monitoring.RecordValidation(monitoring.ValidationAuthorized)
	m.bus.Publish(events.NewAddressAuthorized(address))
	logx.Info("MEMPOOL", "Address ", address, " authorized")

	req := m.requestOf(address, e, now)
	return &AuthorizationResult{
		RegisterStar: true,
		Status: ValidationStatus{
			Address:          req.WalletAddress,
			RequestTimeStamp: req.RequestTimeStamp,
			Message:          req.Message,
			ValidationWindow: req.ValidationWindow,
			MessageSignature: true,
		},
	}, nil
}

// IsAuthorized reports whether address holds an unused, unreserved authorization.
func (m *Mempool) IsAuthorized(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.liveEntryLocked(address, m.now())
	return e != nil && e.state == stateAuthorized
}

// ReserveAuthorization claims the authorization of address for one submission.
// Concurrent submissions for the same address cannot both reserve it.
func (m *Mempool) ReserveAuthorization(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.liveEntryLocked(address, m.now())
	if e == nil || e.state != stateAuthorized {
		return errors.ErrUnauthorized
	}
	e.state = stateReserved
	return nil
}

// ReleaseAuthorization returns a reserved authorization after a failed submission.
func (m *Mempool) ReleaseAuthorization(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[address]
	if !ok || e.state != stateReserved {
		return
	}
	e.state = stateAuthorized
	if m.expiredLocked(e, m.now()) {
		m.dropLocked(address, e)
		m.bus.Publish(events.NewValidationExpired(address))
	}
}

// ConsumeAuthorization clears the authorization of address after a successful
// submission. The address must validate again before its next one.
func (m *Mempool) ConsumeAuthorization(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[address]
	if !ok || (e.state != stateReserved && e.state != stateAuthorized) {
		return
	}
	m.dropLocked(address, e)
	monitoring.RecordValidation(monitoring.ValidationConsumed)
	m.bus.Publish(events.NewAuthorizationUsed(address))
	logx.Info("MEMPOOL", "Authorization of ", address, " consumed")
}

// Close stops every scheduled expiry.
func (m *Mempool) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for address, e := range m.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.entries, address)
	}
	m.updatePendingGaugeLocked()
}

func (m *Mempool) expire(address string, generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[address]
	if !ok || e.generation != generation || e.state == stateReserved {
		return
	}
	m.dropLocked(address, e)
	monitoring.RecordValidation(monitoring.ValidationExpired)
	m.bus.Publish(events.NewValidationExpired(address))
	logx.Info("MEMPOOL", "Validation of ", address, " expired")
}

// liveEntryLocked returns the entry of address, dropping it first if its deadline passed.
func (m *Mempool) liveEntryLocked(address string, now time.Time) *entry {
	e, ok := m.entries[address]
	if !ok {
		return nil
	}
	if m.expiredLocked(e, now) {
		m.dropLocked(address, e)
		monitoring.RecordValidation(monitoring.ValidationExpired)
		m.bus.Publish(events.NewValidationExpired(address))
		return nil
	}
	return e
}

// a reserved authorization outlives its deadline until the submission settles
func (m *Mempool) expiredLocked(e *entry, now time.Time) bool {
	return e.state != stateReserved && !now.Before(e.deadline)
}

func (m *Mempool) armLocked(address string, e *entry, now time.Time) {
	m.generation++
	gen := m.generation
	e.generation = gen
	e.timer = m.scheduler.AfterFunc(e.deadline.Sub(now), func() {
		m.expire(address, gen)
	})
}

func (m *Mempool) dropLocked(address string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.generation = 0
	delete(m.entries, address)
	m.updatePendingGaugeLocked()
}

func (m *Mempool) updatePendingGaugeLocked() {
	monitoring.SetPendingValidations(len(m.entries))
}

func (m *Mempool) requestOf(address string, e *entry, now time.Time) *ValidationRequest {
	remaining := int64(e.deadline.Sub(now) / time.Second)
	if e.deadline.Sub(now)%time.Second != 0 {
		remaining++
	}
	if e.state == statePending {
		remaining = e.requestTimeStamp + int64(m.window/time.Second) - now.Unix()
	}
	return &ValidationRequest{
		WalletAddress:    address,
		RequestTimeStamp: e.requestTimeStamp,
		Message:          e.message,
		ValidationWindow: remaining,
	}
}
