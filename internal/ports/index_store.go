package ports

// IndexStore is a durable key-value store holding the batch index counter.
// The queue reads and writes the counter under the same serialization
// discipline that protects file appends; Set after Get is not atomic here.
type IndexStore interface {
	// Get returns the value for key, or 0 if the key has never been set.
	Get(key string) (int, error)

	// Set stores value under key durably.
	Set(key string, value int) error
}
