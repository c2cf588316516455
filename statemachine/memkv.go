package statemachine

import (
	"bytes"
	"encoding/gob"
	"sync"
)

// MemKV is a minimal in-memory key/value StateMachine, used in tests and by
// cmd/rlogd as a stand-in for a real service state machine. Both writes
// and reads are gob-encoded KVOp values (see ReadOp for building a read
// payload); only Read distinguishes the two.
type MemKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemKV returns an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

// KVOp is the payload format MemKV expects via Apply. Read selects a
// lookup of Key that leaves m.data untouched; a write payload simply
// omits Read (its gob zero value is false) and supplies Value.
type KVOp struct {
	Read  bool
	Key   string
	Value string
}

// ReadOp builds the payload for a read of key, for callers that go
// through RLog.ExecuteRead rather than the committed-write path.
func ReadOp(key string) KVOp {
	return KVOp{Read: true, Key: key}
}

// Apply decodes payload as a KVOp. A read (Read == true) looks up Key and
// returns its current value without mutating m.data, per spec.md §4.C's
// execute(readCommand) contract; otherwise Key/Value are stored.
func (m *MemKV) Apply(payload []byte) (interface{}, error) {
	var op KVOp
	dec := gob.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&op); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if op.Read {
		return m.data[op.Key], nil
	}

	m.data[op.Key] = op.Value
	return op.Value, nil
}

// Get returns the current value for key, mainly for tests to assert
// against without round-tripping through Apply.
func (m *MemKV) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Serialize gob-encodes the entire key/value map.
func (m *MemKV) Serialize() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize replaces the entire key/value map from a Serialize blob.
func (m *MemKV) Deserialize(state []byte) error {
	data := make(map[string]string)
	if len(state) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(state)).Decode(&data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}
