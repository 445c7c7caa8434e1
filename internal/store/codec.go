package store

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/smileynet/fiche/internal/contact"
)

// utf8BOM is stripped from the head of a storage file, as spreadsheet tools
// like to add one on save.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode parses a storage file body. The header must equal the column
// schema exactly; a ragged or unparsable row is an error.
func decode(data []byte) ([]contact.Record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	var records []contact.Record
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, fmt.Errorf("mapping rows: %w", err)
	}
	return records, nil
}

// encode renders records as CSV with a header row and no index column.
// An empty collection still yields the header.
func encode(records []contact.Record) ([]byte, error) {
	if records == nil {
		records = []contact.Record{}
	}
	data, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return nil, fmt.Errorf("encoding rows: %w", err)
	}
	return data, nil
}

func checkHeader(header []string) error {
	want := contact.Columns()
	if len(header) != len(want) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrSchemaMismatch, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i+1, header[i], want[i])
		}
	}
	return nil
}
