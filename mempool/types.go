package mempool

import (
	"fmt"
	"time"
)

const (
	DefaultValidationWindow = 300 * time.Second
	messageDomain           = "starRegistry"
)

// ValidationRequest is the challenge handed to a wallet. ValidationWindow is the
// number of seconds left before the request expires.
type ValidationRequest struct {
	WalletAddress    string `json:"walletAddress"`
	RequestTimeStamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"`
}

type ValidationStatus struct {
	Address          string `json:"address"`
	RequestTimeStamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"`
	MessageSignature bool   `json:"messageSignature"`
}

// AuthorizationResult is returned once a challenge signature verified.
type AuthorizationResult struct {
	RegisterStar bool             `json:"registerStar"`
	Status       ValidationStatus `json:"status"`
}

// ChallengeMessage binds address and timestamp under the registry domain tag.
func ChallengeMessage(address string, requestTimeStamp int64) string {
	return fmt.Sprintf("%s:%d:%s", address, requestTimeStamp, messageDomain)
}

// Timer is a cancellable scheduled action.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type entryState int

const (
	statePending entryState = iota
	stateAuthorized
	// authorization reserved by an in-flight submission
	stateReserved
)

func (s entryState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAuthorized:
		return "authorized"
	case stateReserved:
		return "reserved"
	}
	return "unknown"
}

type entry struct {
	state            entryState
	requestTimeStamp int64
	message          string
	deadline         time.Time
	generation       uint64
	timer            Timer
}
