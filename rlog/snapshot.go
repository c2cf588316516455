package rlog

import "github.com/samborder/rlog/membership"

// Snapshot is an immutable checkpoint of the state machine plus the
// membership in effect at the time it was taken, covering the log up to
// and including (LastIncludedIndex, LastIncludedTerm).
type Snapshot struct {
	LastIncludedIndex LogIndex
	LastIncludedTerm  TermNo
	StateMachineState []byte
	Membership        membership.Bindings

	// CreatedAt is a monotonically increasing creation timestamp used as
	// the key under which this snapshot is stored in the snapshots map.
	// The store keeps the highest key as the "latest" snapshot.
	CreatedAt int64
}

// covers reports whether this snapshot's coverage subsumes (index, term):
// both must be at or before the snapshot's last-included position.
func (s *Snapshot) covers(index LogIndex, term TermNo) bool {
	if s == nil {
		return false
	}
	return s.LastIncludedIndex >= index && s.LastIncludedTerm >= term
}

// compactedEntry synthesizes the placeholder LogEntry representing this
// snapshot's covered position, returned by GetLastLogEntry when the real
// last index has been compacted away, and by GetPreviousLogEntry when the
// predecessor sits exactly at the snapshot boundary.
func (s *Snapshot) compactedEntry() LogEntry {
	return LogEntry{
		Term:    s.LastIncludedTerm,
		Index:   s.LastIncludedIndex,
		Command: Command{Kind: CommandCompacted},
	}
}
