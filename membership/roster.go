package membership

import (
	"context"
	"errors"
	"sync"
)

// Roster is a simple in-process Cluster implementation: it tracks the
// current bindings and the local term, and resolves joint-consensus
// majority checks against a caller-supplied vote set. It is meant for
// tests and single-process demos (see cmd/rlogd); a production deployment
// would back Cluster with real RPC fan-out to peers.
//
// Allocate with NewRoster. allServerIDs must be distinct non-empty
// strings and must include thisServerID.
type Roster struct {
	mu       sync.Mutex
	thisID   ServerID
	bindings Bindings
	term     int64
	logSize  int

	// reachable is consulted by On to decide whether a
	// MajorityJointConsensus request succeeds. In a real deployment this
	// would instead poll live peers; here it models "every peer currently
	// reachable votes yes."
	reachable map[ServerID]bool
}

// NewRoster allocates a Roster for thisServerID within allServerIDs, with
// the given fixed-size compaction threshold.
func NewRoster(allServerIDs []ServerID, thisServerID ServerID, fixedLogSizeCompaction int) (*Roster, error) {
	if err := Validate(allServerIDs); err != nil {
		return nil, err
	}
	found := false
	reachable := make(map[ServerID]bool, len(allServerIDs))
	for _, id := range allServerIDs {
		if id == thisServerID {
			found = true
		}
		reachable[id] = true
	}
	if !found {
		return nil, errServerIDNotInSet(thisServerID)
	}
	return &Roster{
		thisID:    thisServerID,
		bindings:  Bindings{Old: append([]ServerID(nil), allServerIDs...)},
		logSize:   fixedLogSizeCompaction,
		reachable: reachable,
	}, nil
}

func errServerIDNotInSet(id ServerID) error {
	return &notInSetError{id}
}

type notInSetError struct{ id ServerID }

func (e *notInSetError) Error() string {
	return "membership: server set does not contain this server id: " + string(e.id)
}

// SetUnreachable marks a peer as not currently voting in majority checks,
// for tests that simulate a partition.
func (r *Roster) SetUnreachable(id ServerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reachable, id)
}

// LocalTerm implements Cluster.
func (r *Roster) LocalTerm() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.term
}

// SetLocalTerm updates the local term this Roster reports; exposed for
// tests that need to simulate a term advancing out from under a pending
// commit.
func (r *Roster) SetLocalTerm(term int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.term = term
}

// Apply implements Cluster: it activates a membership command
// immediately, updating the bindings the Roster reports.
func (r *Roster) Apply(cmd MembershipCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch cmd.Kind {
	case EnterJointConsensus:
		r.bindings.New = append([]ServerID(nil), cmd.NewBindings...)
		for _, id := range cmd.NewBindings {
			if _, ok := r.reachable[id]; !ok {
				r.reachable[id] = true
			}
		}
	case LeaveJointConsensus:
		r.bindings = Bindings{Old: r.bindings.New}
	}
	return nil
}

// On implements Cluster: it reports a no-majority error unless the
// currently-reachable set forms a majority of both the old and new
// configurations named in req.
func (r *Roster) On(ctx context.Context, req MajorityJointConsensus) error {
	r.mu.Lock()
	votes := make(map[ServerID]bool, len(r.reachable))
	for id := range r.reachable {
		votes[id] = true
	}
	r.mu.Unlock()

	if req.Bindings.HasMajority(votes) {
		return nil
	}
	return errNoMajority
}

var errNoMajority = errors.New("membership: no majority reached for joint consensus")

// InContext implements Cluster. The in-process Roster has no execution
// context of its own to scope into, so it just invokes f directly.
func (r *Roster) InContext(ctx context.Context, f func(context.Context) error) error {
	return f(ctx)
}

// FixedLogSizeCompaction implements Cluster.
func (r *Roster) FixedLogSizeCompaction() int {
	return r.logSize
}

// RestoreMembership implements Cluster.
func (r *Roster) RestoreMembership(b Bindings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = Bindings{
		Old: append([]ServerID(nil), b.Old...),
		New: append([]ServerID(nil), b.New...),
	}
	for _, set := range [][]ServerID{b.Old, b.New} {
		for _, id := range set {
			if _, ok := r.reachable[id]; !ok {
				r.reachable[id] = true
			}
		}
	}
	return nil
}

// CurrentBindings returns a copy of the bindings currently in effect.
func (r *Roster) CurrentBindings() Bindings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Bindings{
		Old: append([]ServerID(nil), r.bindings.Old...),
		New: append([]ServerID(nil), r.bindings.New...),
	}
}
