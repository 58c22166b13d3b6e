package service

// Change names the view whose data a mutation touched
type Change string

const (
	ChangeMedications  Change = "medications"
	ChangeAppointments Change = "appointments"
	ChangeMetrics      Change = "metrics"
)

// ChangeFunc is notified after a mutation changed local state
type ChangeFunc func(Change)

// recordTokens issues per-record sequence numbers. A write bumps its record's
// token when it is issued and again when it lands; a list load remembers the
// tokens it was issued under so records written since then keep their local
// version.
type recordTokens struct {
	seq map[string]uint64
}

func newRecordTokens() recordTokens {
	return recordTokens{seq: make(map[string]uint64)}
}

func (t recordTokens) bump(id string) uint64 {
	t.seq[id]++
	return t.seq[id]
}

func (t recordTokens) snapshot() map[string]uint64 {
	snap := make(map[string]uint64, len(t.seq))
	for id, n := range t.seq {
		snap[id] = n
	}
	return snap
}

func (t recordTokens) changedSince(snap map[string]uint64, id string) bool {
	return t.seq[id] != snap[id]
}

// mergeLoaded takes a freshly loaded list and keeps the local version of every
// record written after the load was issued. It returns the merged list and the
// number of loaded records that were stale.
func mergeLoaded[T any](local, loaded []T, key func(T) string, tokens recordTokens, snap map[string]uint64) ([]T, int) {
	byID := make(map[string]T, len(local))
	for _, item := range local {
		byID[key(item)] = item
	}

	merged := make([]T, 0, len(loaded))
	stale := 0
	for _, item := range loaded {
		id := key(item)
		if !tokens.changedSince(snap, id) {
			merged = append(merged, item)
			continue
		}
		stale++
		if mine, ok := byID[id]; ok {
			merged = append(merged, mine)
		}
	}
	return merged, stale
}
