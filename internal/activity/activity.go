package activity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/store"
)

// maxTextLen is the cap applied to free-text fields before they are stored.
// Anything longer is cut and marked with an ellipsis.
const maxTextLen = 500

// Column order of the activity table. Fixed; the file header is written in
// exactly this order.
const (
	colTimestamp = iota
	colPhone
	colUserName
	colActivityType
	colMessageType
	colUserInput
	colBotResponse
	colButtonID
	colAdminFlag
	colSessionID
	colAdditionalData
)

var headers = []string{
	"timestamp", "phone_number", "user_name", "activity_type",
	"message_type", "user_input", "bot_response", "button_id",
	"admin_flag", "session_id", "additional_data",
}

// Entry is one interaction to be logged. PhoneNumber and ActivityType are
// required; everything else is optional. AdditionalData may only hold
// primitive leaf values, it is stored as a JSON blob and accessed by key.
type Entry struct {
	PhoneNumber    string
	UserName       string
	ActivityType   string
	MessageType    string
	UserInput      string
	BotResponse    string
	ButtonID       string
	AdminFlag      bool
	SessionID      string
	AdditionalData map[string]any
}

// ActivitySummary is the 5-field projection served to admin dashboards.
type ActivitySummary struct {
	Timestamp    string `json:"timestamp"`
	PhoneNumber  string `json:"phone_number"`
	UserName     string `json:"user_name"`
	ActivityType string `json:"activity_type"`
	AdminFlag    bool   `json:"admin_flag"`
}

// Logger is the append-only activity log. All write failures are logged and
// swallowed: the bot must keep answering users even when the log is broken.
type Logger struct {
	table *store.Table
	now   func() time.Time
}

// NewLogger opens (creating if needed) the activity table at path.
func NewLogger(path string) (*Logger, error) {
	tbl, err := store.Open(path, headers)
	if err != nil {
		return nil, fmt.Errorf("open activity table: %w", err)
	}
	return &Logger{table: tbl, now: time.Now}, nil
}

// LogActivity appends one interaction record. Fire and forget: errors are
// logged, never returned.
func (l *Logger) LogActivity(e Entry) {
	ts := l.now().Format(store.TimeFormat)

	extra := ""
	if len(e.AdditionalData) > 0 {
		b, err := json.Marshal(e.AdditionalData)
		if err != nil {
			logrus.Errorf("activity: encode additional data: %v", err)
		} else {
			extra = string(b)
		}
	}

	row := []string{
		ts,
		e.PhoneNumber,
		e.UserName,
		e.ActivityType,
		e.MessageType,
		truncate(e.UserInput),
		truncate(e.BotResponse),
		e.ButtonID,
		strconv.FormatBool(e.AdminFlag),
		e.SessionID,
		extra,
	}
	if err := l.table.Append(row); err != nil {
		logrus.Errorf("activity: failed to log %s for %s: %v", e.ActivityType, e.PhoneNumber, err)
		return
	}
	logrus.Infof("activity: logged %s for %s", e.ActivityType, e.PhoneNumber)
}

// GetUserActivityCount counts the rows recorded for one phone number.
func (l *Logger) GetUserActivityCount(phone string) int {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("activity: count scan failed: %v", err)
		return 0
	}
	count := 0
	for _, row := range rows {
		if field(row, colPhone) == phone {
			count++
		}
	}
	return count
}

// GetRecentActivities returns the last limit records, most recent first.
func (l *Logger) GetRecentActivities(limit int) []ActivitySummary {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("activity: recent scan failed: %v", err)
		return nil
	}
	var out []ActivitySummary
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		row := rows[i]
		if field(row, colTimestamp) == "" {
			continue
		}
		out = append(out, ActivitySummary{
			Timestamp:    field(row, colTimestamp),
			PhoneNumber:  field(row, colPhone),
			UserName:     field(row, colUserName),
			ActivityType: field(row, colActivityType),
			AdminFlag:    parseBool(field(row, colAdminFlag)),
		})
	}
	return out
}

// truncate cuts s to maxTextLen characters plus an ellipsis marker.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxTextLen {
		return s
	}
	return string(r[:maxTextLen]) + "..."
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
