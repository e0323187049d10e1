package events

import (
	"time"
)

// EventType is an enum-like string type for ledger events
type EventType string

const (
	EventBlockAdded          EventType = "BlockAdded"
	EventValidationRequested EventType = "ValidationRequested"
	EventAddressAuthorized   EventType = "AddressAuthorized"
	EventValidationExpired   EventType = "ValidationExpired"
	EventAuthorizationUsed   EventType = "AuthorizationUsed"
)

// LedgerEvent represents anything observable that happens on the node
type LedgerEvent interface {
	Type() EventType
	Timestamp() time.Time
	// Subject is the block hash or wallet address the event is about
	Subject() string
}

// BlockAdded event when a block is committed to the chain
type BlockAdded struct {
	hash      string
	height    uint64
	address   string
	timestamp time.Time
}

func NewBlockAdded(hash string, height uint64, address string) *BlockAdded {
	return &BlockAdded{
		hash:      hash,
		height:    height,
		address:   address,
		timestamp: time.Now(),
	}
}

func (e *BlockAdded) Type() EventType {
	return EventBlockAdded
}

func (e *BlockAdded) Timestamp() time.Time {
	return e.timestamp
}

func (e *BlockAdded) Subject() string {
	return e.hash
}

func (e *BlockAdded) Height() uint64 {
	return e.height
}

func (e *BlockAdded) Address() string {
	return e.address
}

// AddressEvent covers the validation workflow transitions of one wallet address
type AddressEvent struct {
	eventType EventType
	address   string
	timestamp time.Time
}

func NewValidationRequested(address string) *AddressEvent {
	return newAddressEvent(EventValidationRequested, address)
}

func NewAddressAuthorized(address string) *AddressEvent {
	return newAddressEvent(EventAddressAuthorized, address)
}

func NewValidationExpired(address string) *AddressEvent {
	return newAddressEvent(EventValidationExpired, address)
}

func NewAuthorizationUsed(address string) *AddressEvent {
	return newAddressEvent(EventAuthorizationUsed, address)
}

func newAddressEvent(t EventType, address string) *AddressEvent {
	return &AddressEvent{eventType: t, address: address, timestamp: time.Now()}
}

func (e *AddressEvent) Type() EventType {
	return e.eventType
}

func (e *AddressEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *AddressEvent) Subject() string {
	return e.address
}
