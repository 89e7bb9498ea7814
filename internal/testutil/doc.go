// Package testutil provides small builders for constructing domain objects
// in tests without repeating boilerplate.
package testutil
