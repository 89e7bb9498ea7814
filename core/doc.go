// Package core provides the foundational domain types and contracts used by
// the OneAgent coordination platform. It defines the core abstractions for:
//
//   - Sessions (TTL-bounded identity contexts keyed by random identifiers)
//   - Agent cards (published capability descriptors)
//   - Messages (role + closed union of typed parts with channel sequencing)
//   - Tasks (request/response correlation with an append-only history)
//   - Pluggable stores for session state and transcript archival
//   - A structured error taxonomy shared by every component
//
// The package intentionally keeps implementation concerns (persistence,
// transports, the group coordinator) out of scope, exposing small interfaces
// so backends can be swapped at wiring time without introducing dependency
// cycles.
package core
