package port

// Store is the key-value map a cache node serves.
type Store interface {
	// Get returns a copy of the value stored under key.
	Get(key string) ([]byte, bool)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte)

	// Delete removes key and reports whether it was present.
	Delete(key string) bool

	// Len returns the number of stored keys.
	Len() int
}
