package bucket

import "slices"

// RestoreReport describes what Restore applied.
type RestoreReport struct {
	// Dimension is the persisted dimension membership was read from, or
	// empty when no persisted dimension matched the taxonomy.
	Dimension string
	// Restored counts questions whose pool state came from persisted data.
	Restored int
	// Dropped counts persisted ids that no longer exist in the bank.
	Dropped int
}

// Restore reapplies persisted pool membership to a freshly built index.
//
// Membership is read from the first taxonomy dimension present in the
// persisted map and written to every dimension, so the result is
// consistent even if the persisted dimensions disagreed or questions were
// re-tagged. Each question lands in at most one mutable pool, with
// precedence flagged > incorrects > unused. Questions unknown to the
// persisted data stay unused; persisted ids missing from the bank are
// dropped.
func (x *Index) Restore(persisted map[string]map[string]Bucket) RestoreReport {
	x.mu.Lock()
	defer x.mu.Unlock()

	var report RestoreReport
	var source map[string]Bucket
	for _, name := range x.dims {
		if m, ok := persisted[name]; ok {
			source = m
			report.Dimension = name
			break
		}
	}
	if source == nil {
		return report
	}

	known := make(map[string]bool)
	state := make(map[string]Pool)
	dropped := make(map[string]bool)
	mark := func(ids []string, p Pool) {
		for _, id := range ids {
			if _, ok := x.classes[id]; !ok {
				dropped[id] = true
				continue
			}
			known[id] = true
			if p == PoolNone {
				continue
			}
			cur, seen := state[id]
			if !seen || precedence(p) < precedence(cur) {
				state[id] = p
			}
		}
	}
	for _, b := range source {
		mark(b.All, PoolNone)
		mark(b.Unused, PoolUnused)
		mark(b.Incorrects, PoolIncorrects)
		mark(b.Flagged, PoolFlagged)
	}

	for _, id := range x.order {
		if !known[id] {
			continue
		}
		// Errors are impossible here: id comes from x.order.
		_ = x.assign(id, state[id])
		report.Restored++
	}
	report.Dropped = len(dropped)
	return report
}

func precedence(p Pool) int {
	if i := slices.Index(mutablePools, p); i >= 0 {
		return i
	}
	return len(mutablePools)
}
