package rlog

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
	"github.com/samborder/rlog/membership"
)

func encodeLogEntry(e LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, errors.Wrap(err, "rlog: encoding log entry")
	}
	return buf.Bytes(), nil
}

func decodeLogEntry(raw []byte) (LogEntry, error) {
	var e LogEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return LogEntry{}, errors.Wrap(err, "rlog: decoding log entry")
	}
	return e, nil
}

// snapshotPayload is the on-disk representation of a Snapshot. It mirrors
// Snapshot field for field; kept separate so gob registration of the
// membership type stays local to this file.
type snapshotPayload struct {
	LastIncludedIndex LogIndex
	LastIncludedTerm  TermNo
	StateMachineState []byte
	MembershipOld     []membership.ServerID
	MembershipNew     []membership.ServerID
	CreatedAt         int64
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	p := snapshotPayload{
		LastIncludedIndex: s.LastIncludedIndex,
		LastIncludedTerm:  s.LastIncludedTerm,
		StateMachineState: s.StateMachineState,
		MembershipOld:     s.Membership.Old,
		MembershipNew:     s.Membership.New,
		CreatedAt:         s.CreatedAt,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, errors.Wrap(err, "rlog: encoding snapshot")
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(raw []byte) (Snapshot, error) {
	var p snapshotPayload
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&p); err != nil {
		return Snapshot{}, errors.Wrap(err, "rlog: decoding snapshot")
	}
	return Snapshot{
		LastIncludedIndex: p.LastIncludedIndex,
		LastIncludedTerm:  p.LastIncludedTerm,
		StateMachineState: p.StateMachineState,
		Membership:        membership.Bindings{Old: p.MembershipOld, New: p.MembershipNew},
		CreatedAt:         p.CreatedAt,
	}, nil
}
