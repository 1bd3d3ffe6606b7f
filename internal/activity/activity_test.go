package activity

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(filepath.Join(t.TempDir(), "activity_log.csv"))
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return l
}

func TestLogActivityTruncation(t *testing.T) {
	l := newTestLogger(t)

	long := strings.Repeat("x", 600)
	l.LogActivity(Entry{PhoneNumber: "15551234", ActivityType: "message_received", UserInput: long, BotResponse: "ok"})

	rows, err := l.table.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	stored := rows[0][colUserInput]
	if len(stored) != 503 {
		t.Errorf("want 503 chars after truncation, got %d", len(stored))
	}
	if !strings.HasSuffix(stored, "...") {
		t.Errorf("truncated value must end with ellipsis, got %q", stored[490:])
	}
	if rows[0][colBotResponse] != "ok" {
		t.Errorf("short response must be unchanged, got %q", rows[0][colBotResponse])
	}
}

func TestLogActivityAdditionalData(t *testing.T) {
	l := newTestLogger(t)

	l.LogActivity(Entry{
		PhoneNumber:    "15551234",
		ActivityType:   "order_placed",
		AdditionalData: map[string]any{"order_id": "ORD1", "items": 3},
	})

	rows, err := l.table.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(rows[0][colAdditionalData]), &extra); err != nil {
		t.Fatalf("decode additional data: %v", err)
	}
	if extra["order_id"] != "ORD1" {
		t.Errorf("want order_id ORD1, got %v", extra["order_id"])
	}
	if extra["items"] != float64(3) {
		t.Errorf("want items 3, got %v", extra["items"])
	}
}

func TestRecentActivitiesOrdering(t *testing.T) {
	l := newTestLogger(t)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	times := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}
	i := 0
	l.now = func() time.Time { ts := times[i]; i++; return ts }

	for _, at := range []string{"A", "B", "C"} {
		l.LogActivity(Entry{PhoneNumber: "15551234", ActivityType: at})
	}

	recent := l.GetRecentActivities(2)
	if len(recent) != 2 {
		t.Fatalf("want 2 summaries, got %d", len(recent))
	}
	if recent[0].ActivityType != "C" || recent[1].ActivityType != "B" {
		t.Errorf("want [C B], got [%s %s]", recent[0].ActivityType, recent[1].ActivityType)
	}

	all := l.GetRecentActivities(10)
	if len(all) != 3 {
		t.Errorf("limit above size must return everything, got %d", len(all))
	}
}

func TestRecentActivitiesSkipsMalformedRows(t *testing.T) {
	l := newTestLogger(t)

	l.LogActivity(Entry{PhoneNumber: "111", ActivityType: "A"})
	l.LogActivity(Entry{PhoneNumber: "111", ActivityType: "B"})
	// A row without a timestamp, as a partial write would leave behind.
	if err := l.table.Append([]string{"", "111", "", "broken"}); err != nil {
		t.Fatalf("append raw row: %v", err)
	}
	l.LogActivity(Entry{PhoneNumber: "111", ActivityType: "C"})

	recent := l.GetRecentActivities(3)
	if len(recent) != 3 {
		t.Fatalf("malformed row must not shrink the result, got %d", len(recent))
	}
	if recent[0].ActivityType != "C" || recent[1].ActivityType != "B" || recent[2].ActivityType != "A" {
		t.Errorf("want [C B A], got [%s %s %s]",
			recent[0].ActivityType, recent[1].ActivityType, recent[2].ActivityType)
	}
}

func TestGetUserActivityCount(t *testing.T) {
	l := newTestLogger(t)

	l.LogActivity(Entry{PhoneNumber: "111", ActivityType: "message_received"})
	l.LogActivity(Entry{PhoneNumber: "222", ActivityType: "message_received"})
	l.LogActivity(Entry{PhoneNumber: "111", ActivityType: "button_clicked"})

	if got := l.GetUserActivityCount("111"); got != 2 {
		t.Errorf("want 2 activities for 111, got %d", got)
	}
	if got := l.GetUserActivityCount("333"); got != 0 {
		t.Errorf("want 0 activities for unknown phone, got %d", got)
	}
}
