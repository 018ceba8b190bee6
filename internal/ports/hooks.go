package ports

// BatchValidator is invoked with the final path of a freshly sealed batch
// file, before it is renamed ready. Primarily useful for test
// instrumentation; the default is a no-op.
type BatchValidator interface {
	ValidateBatch(path string)
}

// NoopValidator is the default BatchValidator.
type NoopValidator struct{}

// ValidateBatch does nothing.
func (NoopValidator) ValidateBatch(path string) {}

// ErrorReporter observes errors the queue swallows on the append path.
// It stands in for a back-reference to the owning client; implementations
// must not call back into the queue.
type ErrorReporter func(err error)

// Archiver receives terminally rejected batch files before they are dropped.
type Archiver interface {
	// Archive stores the file at path under the given name. Failure is
	// logged by the caller and does not block the drop.
	Archive(path, name string) error
}
