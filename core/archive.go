package core

import "time"

// ArchiveEntry is one record appended to the external transcript archive.
type ArchiveEntry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Stored   time.Time      `json:"stored"`
}

// Archive is the narrow interface to the external long-term memory store.
// The coordination core only ever appends closed-group transcripts and reads
// them back; synthesis and retrieval over the archive happen elsewhere.
type Archive interface {
	Append(groupID, content string, metadata map[string]any) error
	Read(groupID string) ([]ArchiveEntry, error)
}
