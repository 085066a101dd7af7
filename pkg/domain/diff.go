package domain

import "sort"

// Snapshot is a point-in-time copy of store entries, keyed by full dotted key.
type Snapshot map[string]Value

// StoreDiff represents the changes between two store snapshots.
// It is designed to be serialized to JSON so hosts can mirror state changes.
type StoreDiff struct {
	// Changed contains added or modified keys with their new value.
	Changed map[string]Value `json:"changed,omitempty"`

	// Removed lists keys present before and absent now.
	Removed []string `json:"removed,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap Snapshot) *StoreDiff {
	diff := &StoreDiff{}

	for k, newVal := range newSnap {
		oldVal, exists := oldSnap[k]
		if !exists || !Equal(oldVal, newVal) {
			if diff.Changed == nil {
				diff.Changed = make(map[string]Value)
			}
			diff.Changed[k] = newVal
		}
	}

	for k := range oldSnap {
		if _, exists := newSnap[k]; !exists {
			diff.Removed = append(diff.Removed, k)
		}
	}
	sort.Strings(diff.Removed)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StoreDiff) IsEmpty() bool {
	return d == nil || (len(d.Changed) == 0 && len(d.Removed) == 0)
}

// Keys returns the changed keys in sorted order.
func (d *StoreDiff) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Changed))
	for k := range d.Changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
