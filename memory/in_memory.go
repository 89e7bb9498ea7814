package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/ArnBdev/oneagent/core"
)

// InMemoryArchive is a process-local core.Archive keeping appended
// transcript entries per group. Concurrency: protected by RWMutex. Entries
// are returned in append order as defensive copies.
type InMemoryArchive struct {
	mu      sync.RWMutex
	entries map[string][]core.ArchiveEntry
}

// NewInMemoryArchive creates an empty in-memory archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{entries: make(map[string][]core.ArchiveEntry)}
}

// Append stores a new entry for the group, generating a simple incremental
// id scoped to the group.
func (a *InMemoryArchive) Append(groupID, content string, metadata map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	entry := core.ArchiveEntry{
		ID:       fmt.Sprintf("arc_%d", len(a.entries[groupID])),
		Content:  content,
		Metadata: md,
		Stored:   time.Now().UTC(),
	}
	a.entries[groupID] = append(a.entries[groupID], entry)
	return nil
}

// Read returns the appended entries for a group in append order.
func (a *InMemoryArchive) Read(groupID string) ([]core.ArchiveEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	stored, ok := a.entries[groupID]
	if !ok {
		return []core.ArchiveEntry{}, nil
	}
	out := make([]core.ArchiveEntry, len(stored))
	copy(out, stored)
	return out, nil
}
