package activity

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/store"
)

// ExportFilter narrows which activity rows land in an export. Zero dates
// mean unbounded; EndDate covers that calendar day in full. An empty
// ActivityTypes list matches every type. AdminOnly nil means both admin and
// user rows.
type ExportFilter struct {
	StartDate     time.Time
	EndDate       time.Time
	ActivityTypes []string
	AdminOnly     *bool
}

// ExportFilteredData writes the matching rows plus a summary block to a new
// table-shaped file at outputPath. It reports success; any failure is logged
// and turns into false.
func (l *Logger) ExportFilteredData(f ExportFilter, outputPath string) bool {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("activity: export scan failed: %v", err)
		return false
	}

	loc := l.now().Location()
	var start, end time.Time
	if !f.StartDate.IsZero() {
		s := f.StartDate
		start = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	}
	if !f.EndDate.IsZero() {
		e := f.EndDate
		end = time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, loc)
	}

	var matched [][]string
	for _, row := range rows {
		ts, err := time.ParseInLocation(store.TimeFormat, field(row, colTimestamp), loc)
		if err != nil {
			logrus.Warnf("activity: export skipping row with bad timestamp %q: %v", field(row, colTimestamp), err)
			continue
		}
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		if len(f.ActivityTypes) > 0 && !containsString(f.ActivityTypes, field(row, colActivityType)) {
			continue
		}
		if f.AdminOnly != nil && parseBool(field(row, colAdminFlag)) != *f.AdminOnly {
			continue
		}
		matched = append(matched, row)
	}

	trailer := [][]string{
		{"summary", ""},
		{"start_date", formatDate(f.StartDate)},
		{"end_date", formatDate(f.EndDate)},
		{"activity_types", strings.Join(f.ActivityTypes, ",")},
		{"admin_only", formatAdminOnly(f.AdminOnly)},
		{"rows_exported", strconv.Itoa(len(matched))},
		{"generated_at", l.now().Format(store.TimeFormat)},
	}
	if err := store.WriteSnapshot(outputPath, headers, matched, trailer); err != nil {
		logrus.Errorf("activity: export write failed: %v", err)
		return false
	}
	logrus.Infof("activity: exported %d rows to %s", len(matched), outputPath)
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAdminOnly(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
