// Package logging provides a minimal logging interface and adapters for the
// OneAgent coordination core.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that every component uses for observability. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - OneAgentLogger with contextual helpers (session, group, component)
//     and domain-specific helpers for sends, broadcasts and consensus rounds
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
