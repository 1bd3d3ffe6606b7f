package activity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spectrax-bot/internal/store"
)

// dataRows filters a snapshot scan down to full-width activity rows,
// dropping the trailing summary block.
func dataRows(t *testing.T, path string) [][]string {
	t.Helper()
	tbl, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("scan export: %v", err)
	}
	var out [][]string
	for _, row := range rows {
		if len(row) == len(headers) {
			out = append(out, row)
		}
	}
	return out
}

func TestExportFilteredDataDateRange(t *testing.T) {
	l := newTestLogger(t)
	day1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	l.now = func() time.Time { return day1.AddDate(0, 0, 10) }

	for d := 0; d < 10; d++ {
		appendAt(t, l, day1.AddDate(0, 0, d), "111", "Ann", "message_received", "", false)
	}
	// Boundary rows: start of day 5 and last second of day 8.
	appendAt(t, l, time.Date(2025, 6, 5, 0, 0, 0, 0, time.Local), "222", "Bob", "message_received", "", false)
	appendAt(t, l, time.Date(2025, 6, 8, 23, 59, 59, 0, time.Local), "222", "Bob", "message_received", "", false)

	out := filepath.Join(t.TempDir(), "export.csv")
	ok := l.ExportFilteredData(ExportFilter{
		StartDate: time.Date(2025, 6, 5, 0, 0, 0, 0, time.Local),
		EndDate:   time.Date(2025, 6, 8, 0, 0, 0, 0, time.Local),
	}, out)
	if !ok {
		t.Fatalf("export failed")
	}

	rows := dataRows(t, out)
	// Days 5..8 from the daily run plus the two boundary rows.
	if len(rows) != 6 {
		t.Fatalf("want 6 rows in [day5, day8], got %d", len(rows))
	}
	for _, row := range rows {
		ts, err := time.ParseInLocation(store.TimeFormat, row[colTimestamp], time.Local)
		if err != nil {
			t.Fatalf("bad exported timestamp: %v", err)
		}
		if ts.Day() < 5 || ts.Day() > 8 {
			t.Errorf("row outside range exported: %s", row[colTimestamp])
		}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "rows_exported,6") {
		t.Errorf("summary block missing row count: %s", string(data))
	}
	if !strings.Contains(string(data), "start_date,2025-06-05") {
		t.Errorf("summary block missing filter params: %s", string(data))
	}
}

func TestExportFilteredDataTypeAndAdminFilters(t *testing.T) {
	l := newTestLogger(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	l.now = func() time.Time { return now }

	appendAt(t, l, now, "111", "Ann", "message_received", "", false)
	appendAt(t, l, now, "111", "Ann", "button_clicked", "", false)
	appendAt(t, l, now, "999", "Admin", "admin_command", "", true)

	out := filepath.Join(t.TempDir(), "types.csv")
	if !l.ExportFilteredData(ExportFilter{ActivityTypes: []string{"button_clicked"}}, out) {
		t.Fatalf("type export failed")
	}
	rows := dataRows(t, out)
	if len(rows) != 1 || rows[0][colActivityType] != "button_clicked" {
		t.Fatalf("type filter wrong: %v", rows)
	}

	adminOnly := true
	out2 := filepath.Join(t.TempDir(), "admin.csv")
	if !l.ExportFilteredData(ExportFilter{AdminOnly: &adminOnly}, out2) {
		t.Fatalf("admin export failed")
	}
	rows = dataRows(t, out2)
	if len(rows) != 1 || rows[0][colPhone] != "999" {
		t.Fatalf("admin filter wrong: %v", rows)
	}
}
