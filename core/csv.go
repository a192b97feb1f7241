package core

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes header followed by rows and returns the number of data rows written.
func WriteCSV(w io.Writer, header []string, rows [][]string) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
