// Package membership models the Cluster collaborator that the replicated
// log core calls back into: membership bindings, quorum math, and the
// joint-consensus majority check. It deliberately does not implement
// leader election, term tracking, or RPC transport -- those remain the
// concern of a real Consensus Module, of which this package's Cluster
// interface is the seam.
package membership

import (
	"context"
	"fmt"
)

// ServerID identifies a server in the cluster. Kept distinct from
// rlog.ServerID so this package has no import-time dependency on rlog;
// callers convert at the boundary.
type ServerID string

// Bindings is the set of servers that make up a configuration. During
// joint consensus, Old and New are both populated; outside of a joint
// consensus period, New is empty and Old is the effective configuration.
type Bindings struct {
	Old []ServerID
	New []ServerID
}

// effective returns the server set(s) that must be counted for quorum: both
// Old and New during joint consensus, just Old otherwise.
func (b Bindings) effective() [][]ServerID {
	if len(b.New) == 0 {
		return [][]ServerID{b.Old}
	}
	return [][]ServerID{b.Old, b.New}
}

// QuorumSizeForClusterSize returns the majority size for a cluster of the
// given size.
func QuorumSizeForClusterSize(clusterSize uint) uint {
	return (clusterSize / 2) + 1
}

// HasMajority reports whether votes (a set of server IDs reporting
// agreement) forms a majority in every server set Bindings requires --
// both the old and the new configuration during joint consensus.
func (b Bindings) HasMajority(votes map[ServerID]bool) bool {
	for _, set := range b.effective() {
		if len(set) == 0 {
			continue
		}
		count := 0
		for _, id := range set {
			if votes[id] {
				count++
			}
		}
		if uint(count) < QuorumSizeForClusterSize(uint(len(set))) {
			return false
		}
	}
	return true
}

// ForEachPeer calls f with every server ID in the effective configuration(s)
// except thisServerID. Errors from f stop iteration early.
func (b Bindings) ForEachPeer(thisServerID ServerID, f func(ServerID) error) error {
	seen := make(map[ServerID]bool)
	for _, set := range b.effective() {
		for _, id := range set {
			if id == thisServerID || seen[id] {
				continue
			}
			seen[id] = true
			if err := f(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate checks that a server set is well-formed: distinct, non-empty
// strings, at least one element.
func Validate(serverIDs []ServerID) error {
	if len(serverIDs) < 1 {
		return fmt.Errorf("membership: server set must have at least 1 element")
	}
	seen := make(map[ServerID]bool, len(serverIDs))
	for _, id := range serverIDs {
		if len(id) == 0 {
			return fmt.Errorf("membership: server set contains empty string")
		}
		if seen[id] {
			return fmt.Errorf("membership: server set contains duplicate value: %v", id)
		}
		seen[id] = true
	}
	return nil
}

// MajorityJointConsensus is the request the log core sends to the Cluster
// collaborator when it executes a committed CommandEnterJointConsensus
// entry: "reach a majority of both the old and new configurations on these
// bindings."
type MajorityJointConsensus struct {
	Bindings Bindings
}

// Cluster is the interface the replicated log core requires of its
// Cluster/Consensus Module collaborator. It is intentionally narrow: the
// log core never drives elections or term changes, only membership
// activation and majority checks for joint consensus, plus access to the
// durable store handle and the compaction threshold.
type Cluster interface {
	// LocalTerm is the cluster's current local term. Commit requests for
	// entries whose term doesn't match this are refused (StaleTermCommit).
	LocalTerm() int64

	// Apply activates a membership-changing command immediately, at
	// append time rather than commit time, per Raft joint-consensus rules.
	// Must not block.
	Apply(cmd MembershipCommand) error

	// On asks the cluster to reach majority on the given joint-consensus
	// bindings. It is async: a returned error of ErrNoMajorityReached (or
	// any error) is logged at warn by the caller and otherwise ignored.
	On(ctx context.Context, req MajorityJointConsensus) error

	// InContext scopes f under the cluster's execution context (e.g. a
	// thread-local/MDC equivalent for structured logging correlation).
	InContext(ctx context.Context, f func(context.Context) error) error

	// FixedLogSizeCompaction is the entries-count threshold configured for
	// the fixed-size compaction policy.
	FixedLogSizeCompaction() int

	// RestoreMembership replaces the cluster's bindings wholesale, as
	// opposed to Apply's incremental joint-consensus activation. Used by
	// snapshot install and by recovery, both of which receive a
	// already-settled Bindings value rather than a single command to
	// apply on top of the current state.
	RestoreMembership(Bindings) error
}

// MembershipCommandKind distinguishes the two membership-changing commands
// a Cluster.Apply call can receive.
type MembershipCommandKind uint8

const (
	// EnterJointConsensus begins a membership change.
	EnterJointConsensus MembershipCommandKind = iota
	// LeaveJointConsensus completes a membership change.
	LeaveJointConsensus
)

// MembershipCommand is the payload delivered to Cluster.Apply.
type MembershipCommand struct {
	Kind        MembershipCommandKind
	NewBindings []ServerID
}
