package model

import "time"

type LedgerEntryType string

const (
	LedgerEntryAdd    LedgerEntryType = "add"
	LedgerEntryDeduct LedgerEntryType = "deduct"
)

// LedgerEntry is one immutable balance change. Entries are append-only;
// corrections are written as compensating entries, never as edits.
type LedgerEntry struct {
	ID        string // ULID, lexicographically sortable by creation time
	UserID    string
	Amount    int // signed: negative for deductions
	Type      LedgerEntryType
	Reason    string
	SongID    string // optional, links the entry to a generation job
	CreatedBy string // optional, set for teacher-initiated credit grants
	CreatedAt time.Time
}
