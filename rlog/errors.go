package rlog

import "errors"

// ErrMissingLogEntry indicates a commit was requested for an index whose
// entry is absent even though the prefix up to it should exist. This is a
// "hole" in the log and is treated as fatal by the caller.
var ErrMissingLogEntry = errors.New("rlog: missing log entry")

// ErrStaleTermCommit indicates a commit was requested for an entry whose
// term no longer matches the cluster's current local term. The commit is
// refused; this is logged at warn and otherwise ignored.
var ErrStaleTermCommit = errors.New("rlog: commit requested for stale term")

// ErrNoMajorityReached indicates a joint-consensus follow-up failed to
// reach a majority. Logged at warn and swallowed; the Raft layer retries
// via normal replication.
var ErrNoMajorityReached = errors.New("rlog: no majority reached for joint consensus")

// ErrDuplicateAppend indicates an append was attempted for an (index, term)
// pair that already exists in the log. This is not an error condition for
// callers of TryAppend/Append -- it is surfaced only to the internal
// logging path, which logs it at warn and treats it as an idempotent
// success.
var ErrDuplicateAppend = errors.New("rlog: duplicate append")
