package db

// DatabaseProvider abstracts the low-level ordered key-value store.
// Get returns (nil, nil) when the key is absent.
type DatabaseProvider interface {
	// Get retrieves a value by key
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Delete removes a key-value pair
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// IteratePrefix visits all key-value pairs with the given prefix, in key order
	// on every backend except Redis.
	// The callback returns false to stop iteration. Slices passed to the callback
	// are only valid for the duration of the call.
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error

	// Close closes the database connection
	Close() error
}
