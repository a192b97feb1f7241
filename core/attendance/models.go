package attendance

import "time"

const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"

	TimeLayout = "15:04"
)

// Entry is one student's attendance on one day.
type Entry struct {
	Status  string      `json:"status"`
	InTime  string      `json:"in_time"`  // HH:MM, school-local
	OutTime string      `json:"out_time"` // HH:MM, school-local
	Scans   []time.Time `json:"scans"`
}

func AbsentEntry() Entry {
	return Entry{Status: StatusAbsent, Scans: []time.Time{}}
}

// DayRecord maps student ids to their entry for Date (YYYY-MM-DD).
type DayRecord struct {
	Date    string           `json:"date"`
	Entries map[string]Entry `json:"entries"`
}

func NewDayRecord(date string) DayRecord {
	return DayRecord{Date: date, Entries: make(map[string]Entry)}
}

type DayRow struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	InTime    string `json:"in_time"`
	OutTime   string `json:"out_time"`
	Status    string `json:"status"`
}

type DayReport struct {
	Date    string   `json:"date"`
	Present int      `json:"present"`
	Absent  int      `json:"absent"`
	Rows    []DayRow `json:"rows"`
}

type SummaryRow struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Days      int    `json:"days"`
}

type Summary struct {
	Month       string       `json:"month"`
	WorkingDays int          `json:"working_days"` // day records found for the month
	Rows        []SummaryRow `json:"rows"`
}

type HistoryItem struct {
	Date    string `json:"date"`
	Status  string `json:"status"`
	InTime  string `json:"in_time"`
	OutTime string `json:"out_time"`
}

type ScanResult struct {
	StudentID string   `json:"student_id"`
	Name      string   `json:"name"`
	Kind      ScanKind `json:"kind"`
	Message   string   `json:"message"`
	Time      string   `json:"time"`
	Entry     Entry    `json:"entry"`
}

type RolloverResult struct {
	Day     string `json:"day"`
	Skipped bool   `json:"skipped"` // already ran today
	Deleted int    `json:"deleted"` // stale working copies
	Seeded  int    `json:"seeded"`  // students added to today's working copy
}
