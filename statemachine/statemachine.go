// Package statemachine declares the interface the replicated log core
// requires of the user's state machine, and a simple in-memory
// implementation for tests and demos.
//
// The log core is deterministic about ordering: committed commands reach
// Apply in commit order, with at least a shared lock on the log held.
// Because a shared lock admits several holders, Apply can be called
// concurrently (for example RLog.ExecuteRead alongside a commit), so an
// implementation must be safe for concurrent use; MemKV guards its map
// with its own mutex for this reason.
package statemachine

// StateMachine is the collaborator interface the log core applies
// committed commands to.
type StateMachine interface {
	// Apply applies the given command payload and returns a result. It
	// must be deterministic: the same sequence of Apply calls must always
	// produce the same sequence of results and the same resulting state,
	// since every replica in the cluster runs the same sequence.
	Apply(payload []byte) (interface{}, error)

	// Serialize returns a snapshot of the state machine's entire state,
	// suitable for a later Deserialize call (on this process or another).
	// Called by the compactor when producing a snapshot.
	Serialize() ([]byte, error)

	// Deserialize replaces the state machine's entire state with the
	// given bytes, previously produced by Serialize. Called by snapshot
	// install and by recovery.
	Deserialize([]byte) error
}
