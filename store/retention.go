package store

import "sort"

// KeepLatestN deletes every entry in the snapshots map except the N with
// the largest keys (creation timestamps). spec.md flags unbounded growth
// of the snapshots map as an open question with no prescribed policy;
// this is the retention rule its "implementers should add a retention
// rule" note calls for. It is safe to call concurrently with reads of the
// map -- at worst a concurrent reader observes a snapshot list momentarily
// un-pruned.
func KeepLatestN(snapshots OrderedMap, n int) error {
	if n <= 0 {
		return nil
	}

	var keys []int64
	err := snapshots.ForEach(func(key int64, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) <= n {
		return nil
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	toDelete := keys[:len(keys)-n]
	for _, key := range toDelete {
		if err := snapshots.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
