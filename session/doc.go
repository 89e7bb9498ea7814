// Package session houses concrete implementations of core.SessionStore. The
// interface itself (and the Session struct) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages (gateway, httpapi) from depending on concrete
// storage.
//
// Two backends are provided: a process-local in-memory store with a
// background sweep, and a GORM-backed store (SQLite or Postgres) for
// deployments that need sessions to survive restarts. Only the wiring layer
// decides which implementation to instantiate.
package session
