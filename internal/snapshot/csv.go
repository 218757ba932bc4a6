package snapshot

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Marshal renders the table as CSV: header row first, one record row per
// snapshot row, cells empty for columns a row never set.
func Marshal(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			cells[j] = row[col]
		}
		if err := w.Write(cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses CSV bytes produced by Marshal back into a table. An
// empty input yields a table with only the key column, matching a freshly
// provisioned snapshot.
func Unmarshal(data []byte) (*Table, error) {
	if len(data) == 0 {
		return New(), nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return New(), nil
	}

	t := &Table{Columns: records[0]}
	for _, cells := range records[1:] {
		row := make(Row, len(t.Columns))
		for j, col := range t.Columns {
			if j < len(cells) && cells[j] != "" {
				row[col] = cells[j]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
