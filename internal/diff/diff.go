// Package diff classifies column-level changes between two versions of a
// model's schema inventory.
package diff

import (
	"sort"

	"github.com/leapstack-labs/leapdiff/internal/schema"
)

// ChangeType classifies what happened to a column between two versions.
type ChangeType string

const (
	Added       ChangeType = "ADDED"
	Removed     ChangeType = "REMOVED"
	TypeChanged ChangeType = "TYPE_CHANGED"
	Unchanged   ChangeType = "UNCHANGED"
)

// ChangeRecord is one column's classified change. Exactly one record exists
// per column name present in either inventory.
type ChangeRecord struct {
	Model   string
	Column  string
	Change  ChangeType
	OldType string
	NewType string
}

// Changed reports whether the record represents an actual schema change.
func (r ChangeRecord) Changed() bool {
	return r.Change != Unchanged
}

// Diff compares two inventories of the same model and emits one ChangeRecord
// per column name in the union of both, using the shared normalization
// policy. The result is sorted by normalized column name, so output is
// deterministic regardless of inventory order.
//
// Diff is symmetric under inversion: swapping old and new swaps ADDED with
// REMOVED and reverses TYPE_CHANGED's old/new types, while UNCHANGED records
// are invariant.
func Diff(old, new *schema.Inventory, policy schema.NamePolicy) []ChangeRecord {
	oldIdx := old.Index(policy)
	newIdx := new.Index(policy)

	model := old.Model
	if model == "" {
		model = new.Model
	}

	keys := make([]string, 0, len(oldIdx)+len(newIdx))
	for key := range oldIdx {
		keys = append(keys, key)
	}
	for key := range newIdx {
		if _, seen := oldIdx[key]; !seen {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	records := make([]ChangeRecord, 0, len(keys))
	for _, key := range keys {
		oldCol, inOld := oldIdx[key]
		newCol, inNew := newIdx[key]

		switch {
		case inOld && !inNew:
			records = append(records, ChangeRecord{
				Model: model, Column: oldCol.Name, Change: Removed, OldType: oldCol.Type,
			})
		case !inOld && inNew:
			records = append(records, ChangeRecord{
				Model: model, Column: newCol.Name, Change: Added, NewType: newCol.Type,
			})
		case oldCol.Type != newCol.Type:
			records = append(records, ChangeRecord{
				Model: model, Column: newCol.Name, Change: TypeChanged,
				OldType: oldCol.Type, NewType: newCol.Type,
			})
		default:
			records = append(records, ChangeRecord{
				Model: model, Column: newCol.Name, Change: Unchanged,
				OldType: oldCol.Type, NewType: newCol.Type,
			})
		}
	}
	return records
}

// Changes filters a diff down to the records that represent actual changes.
func Changes(records []ChangeRecord) []ChangeRecord {
	var changed []ChangeRecord
	for _, r := range records {
		if r.Changed() {
			changed = append(changed, r)
		}
	}
	return changed
}

// CommonColumns returns the normalized names present in both inventories,
// sorted. These are the columns eligible for statistical comparison.
func CommonColumns(old, new *schema.Inventory, policy schema.NamePolicy) []string {
	oldIdx := old.Index(policy)
	newIdx := new.Index(policy)

	var common []string
	for key := range oldIdx {
		if _, ok := newIdx[key]; ok {
			common = append(common, key)
		}
	}
	sort.Strings(common)
	return common
}
