// Package ports defines the interfaces that connect the queue and delivery
// packages to infrastructure adapters.
//
// The core packages (internal/queue, internal/delivery, internal/app) depend
// only on these interfaces. Concrete implementations live under
// internal/adapters (net/http session, file and sqlite key-value stores,
// S3 archive).
//
// # Port Interfaces
//
//   - [Session]: issues HTTP transfers as resumable, cancellable tasks
//   - [IndexStore]: durable key-value store for the batch index counter
//   - [BatchValidator]: post-seal integrity hook for batch files
//   - [ErrorReporter]: observability hook for swallowed append-path errors
//   - [Archiver]: optional sink for terminally rejected batch files
//   - [HTTPClient]: HTTP request abstraction for dependency injection
package ports
