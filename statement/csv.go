// csv.go - CSV stream to raw rows.
//
// The import boundary stays dynamically typed: each CSV record becomes a
// RawRow keyed by the header row, and all interpretation is left to the
// normalizer. Short records are padded rather than rejected so one truncated
// line does not abort a statement.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/warp/pricing-engine/engine"
)

// ReadCSV reads an imported statement into raw rows. The first record is the
// header row.
func ReadCSV(r io.Reader) ([]engine.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // statements occasionally carry ragged rows
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read statement header: %w", err)
	}

	var rows []engine.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read statement row %d: %w", len(rows)+2, err)
		}

		row := make(engine.RawRow, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
