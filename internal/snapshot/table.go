// Package snapshot models the per-type tabular view of synced records and
// its CSV persistence. A snapshot holds at most one row per key; columns
// are the union of every field ever submitted for the type and only
// shrink through an explicit reset.
package snapshot

import (
	"slices"
)

// KeyColumn is the column holding each row's unique identifier.
const KeyColumn = "key"

// Row is one record's flat field values, rendered as strings.
type Row map[string]string

// Table is an ordered snapshot: rows in submission order, columns in
// first-seen order.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table seeded with the key column.
func New() *Table {
	return &Table{Columns: []string{KeyColumn}}
}

// Keys returns the key of every row, in row order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		keys = append(keys, row[KeyColumn])
	}
	return keys
}

// KeysScoped returns the keys of rows whose column value matches, or all
// keys when scopeValue is empty.
func (t *Table) KeysScoped(scopeColumn, scopeValue string) []string {
	if scopeValue == "" {
		return t.Keys()
	}
	keys := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row[scopeColumn] == scopeValue {
			keys = append(keys, row[KeyColumn])
		}
	}
	return keys
}

// Upsert removes any existing row sharing the new row's key, appends the
// new row, and grows the column set with any fields not yet seen.
// Existing rows keep their position; the new row always lands last.
func (t *Table) Upsert(row Row) {
	key := row[KeyColumn]
	t.Rows = slices.DeleteFunc(t.Rows, func(r Row) bool {
		return r[KeyColumn] == key
	})

	for _, col := range sortedNewColumns(t.Columns, row) {
		t.Columns = append(t.Columns, col)
	}
	t.Rows = append(t.Rows, row)
}

// Truncate drops every row but keeps the column headers.
func (t *Table) Truncate() {
	t.Rows = nil
}

// sortedNewColumns returns the row's fields absent from existing, sorted
// so column order is deterministic regardless of map iteration.
func sortedNewColumns(existing []string, row Row) []string {
	var added []string
	for col := range row {
		if !slices.Contains(existing, col) {
			added = append(added, col)
		}
	}
	slices.Sort(added)
	return added
}
