package student

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/playmate/core"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type: expected .csv or .xlsx")
	ErrNoIDColumn      = errors.New("the roster has no student id column")
)

// header aliases, keyed by the normalised column title
var columnAliases = map[string]string{
	"id":          "id",
	"studentid":   "id",
	"name":        "name",
	"studentname": "name",
	"guardian":    "guardian",
	"parent":      "guardian",
	"dob":         "dob",
	"dateofbirth": "dob",
	"birthdate":   "dob",
	"belt":        "belt",
	"address":     "address",
	"phone":       "phone",
	"mobile":      "phone",
	"phoneno":     "phone",
	"gender":      "gender",
	"sex":         "gender",
}

var dobLayouts = []string{core.DateLayout, "02-01-2006", "02/01/2006", "2/1/2006", "02.01.2006", "2006/01/02"}

type importRecord struct {
	row     int
	student NewStudent
}

// readRows reads every row of the first sheet of an Excel workbook or of a CSV file.
func readRows(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading csv"))
		}
		return rows, nil
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading workbook"))
		}
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading sheet"))
		}
		return rows, nil
	}
	return nil, core.NewValidationError(ErrUnsupportedFile)
}

// mapRows maps the data rows onto NewStudents using the header row.
// Rows without an id are counted as skipped.
func mapRows(rows [][]string) (records []importRecord, skipped int, err error) {
	if len(rows) == 0 {
		return nil, 0, core.NewValidationError(ErrNoIDColumn)
	}

	cols := make(map[string]int)
	for i, title := range rows[0] {
		if field, ok := columnAliases[normaliseTitle(title)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil, 0, core.NewValidationError(ErrNoIDColumn)
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for i, row := range rows[1:] {
		id := cell(row, "id")
		if id == "" {
			skipped++
			continue
		}
		records = append(records, importRecord{
			row: i + 2,
			student: NewStudent{
				ID:       id,
				Name:     cell(row, "name"),
				Guardian: cell(row, "guardian"),
				DOB:      normaliseDOB(cell(row, "dob")),
				Belt:     cell(row, "belt"),
				Address:  cell(row, "address"),
				Phone:    cell(row, "phone"),
				Gender:   cell(row, "gender"),
			},
		})
	}
	return records, skipped, nil
}

func normaliseTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "\ufeff", "").Replace(title)
}

// normaliseDOB converts the usual spreadsheet date renderings (and raw Excel serials) to YYYY-MM-DD.
// Unknown formats are returned as is and rejected by validation.
func normaliseDOB(dob string) string {
	if dob == "" {
		return ""
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, dob); err == nil {
			return t.Format(core.DateLayout)
		}
	}
	if serial, err := strconv.ParseFloat(dob, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(core.DateLayout)
		}
	}
	return dob
}
