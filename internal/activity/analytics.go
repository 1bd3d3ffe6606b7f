package activity

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/store"
)

// TypeCount pairs an activity type with how often it occurred.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// HourCount pairs an hour of day (0-23) with an activity count.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// AnalyticsSummary is the time-windowed aggregate over the activity log.
type AnalyticsSummary struct {
	Days                 int            `json:"days"`
	TotalActivities      int            `json:"total_activities"`
	UniqueUsers          int            `json:"unique_users"`
	AdminActivities      int            `json:"admin_activities"`
	UserActivities       int            `json:"user_activities"`
	TopActivities        []TypeCount    `json:"top_activities"`
	HourlyHistogram      [24]int        `json:"hourly_histogram"`
	DailyHistogram       map[string]int `json:"daily_histogram"`
	SessionCount         int            `json:"session_count"`
	AvgActivitiesPerUser float64        `json:"avg_activities_per_user"`
	BusiestHours         []HourCount    `json:"busiest_hours"`
}

// SessionStats describes one reconstructed session: all records sharing a
// session id, spanning [Start, End].
type SessionStats struct {
	SessionID       string    `json:"session_id"`
	PhoneNumber     string    `json:"phone_number"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"duration_minutes"`
	Activities      int       `json:"activities"`
}

// UserStats is the per-actor engagement view.
type UserStats struct {
	PhoneNumber          string         `json:"phone_number"`
	UserName             string         `json:"user_name"`
	TotalActivities      int            `json:"total_activities"`
	SessionCount         int            `json:"session_count"`
	FirstSeen            time.Time      `json:"first_seen"`
	LastSeen             time.Time      `json:"last_seen"`
	ActivityTypes        map[string]int `json:"activity_types"`
	TopActivity          string         `json:"top_activity"`
	EngagedMinutes       float64        `json:"engaged_minutes"`
	ActivitiesPerSession float64        `json:"activities_per_session"`
}

// ConversationAnalytics aggregates sessions and per-user engagement.
type ConversationAnalytics struct {
	Sessions          map[string]*SessionStats `json:"sessions"`
	Users             map[string]*UserStats    `json:"users"`
	AvgSessionMinutes float64                  `json:"avg_session_minutes"`
	MaxSessionMinutes float64                  `json:"max_session_minutes"`
	MinSessionMinutes float64                  `json:"min_session_minutes"`
}

// GetAnalyticsSummary aggregates the rows recorded within the last days
// days. Rows with unparseable timestamps are skipped with a warning.
func (l *Logger) GetAnalyticsSummary(days int) *AnalyticsSummary {
	out := &AnalyticsSummary{
		Days:           days,
		DailyHistogram: map[string]int{},
	}
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("activity: analytics scan failed: %v", err)
		return out
	}

	now := l.now()
	cutoff := now.AddDate(0, 0, -days)

	users := map[string]int{}
	sessions := map[string]bool{}
	typeCounts := map[string]int{}
	typeOrder := map[string]int{}
	admin := 0

	for _, row := range rows {
		ts, err := time.ParseInLocation(store.TimeFormat, field(row, colTimestamp), now.Location())
		if err != nil {
			logrus.Warnf("activity: skipping row with bad timestamp %q: %v", field(row, colTimestamp), err)
			continue
		}
		if ts.Before(cutoff) {
			continue
		}

		out.TotalActivities++
		users[field(row, colPhone)]++
		if parseBool(field(row, colAdminFlag)) {
			admin++
		}
		if at := field(row, colActivityType); at != "" {
			if _, seen := typeOrder[at]; !seen {
				typeOrder[at] = len(typeOrder)
			}
			typeCounts[at]++
		}
		if sid := field(row, colSessionID); sid != "" {
			sessions[sid] = true
		}
		out.HourlyHistogram[ts.Hour()]++
		out.DailyHistogram[ts.Format("2006-01-02")]++
	}

	out.UniqueUsers = len(users)
	out.AdminActivities = admin
	out.UserActivities = out.TotalActivities - admin
	out.SessionCount = len(sessions)
	if out.UniqueUsers > 0 {
		out.AvgActivitiesPerUser = round2(float64(out.TotalActivities) / float64(out.UniqueUsers))
	}

	out.TopActivities = topTypes(typeCounts, typeOrder, 5)
	out.BusiestHours = busiestHours(out.HourlyHistogram, 3)
	return out
}

// GetConversationAnalytics reconstructs sessions and per-user engagement.
// An empty phone covers all users; otherwise only that user's rows count.
func (l *Logger) GetConversationAnalytics(phone string) *ConversationAnalytics {
	out := &ConversationAnalytics{
		Sessions: map[string]*SessionStats{},
		Users:    map[string]*UserStats{},
	}
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("activity: conversation scan failed: %v", err)
		return out
	}

	loc := l.now().Location()
	userSessions := map[string]map[string]bool{}

	for _, row := range rows {
		p := field(row, colPhone)
		if phone != "" && p != phone {
			continue
		}
		ts, err := time.ParseInLocation(store.TimeFormat, field(row, colTimestamp), loc)
		if err != nil {
			logrus.Warnf("activity: skipping row with bad timestamp %q: %v", field(row, colTimestamp), err)
			continue
		}

		if sid := field(row, colSessionID); sid != "" {
			s, ok := out.Sessions[sid]
			if !ok {
				s = &SessionStats{SessionID: sid, PhoneNumber: p, Start: ts, End: ts}
				out.Sessions[sid] = s
			}
			if ts.Before(s.Start) {
				s.Start = ts
			}
			if ts.After(s.End) {
				s.End = ts
			}
			s.Activities++

			if userSessions[p] == nil {
				userSessions[p] = map[string]bool{}
			}
			userSessions[p][sid] = true
		}

		u, ok := out.Users[p]
		if !ok {
			u = &UserStats{
				PhoneNumber:   p,
				UserName:      field(row, colUserName),
				FirstSeen:     ts,
				LastSeen:      ts,
				ActivityTypes: map[string]int{},
			}
			out.Users[p] = u
		}
		u.TotalActivities++
		if ts.Before(u.FirstSeen) {
			u.FirstSeen = ts
		}
		if ts.After(u.LastSeen) {
			u.LastSeen = ts
		}
		if u.UserName == "" {
			u.UserName = field(row, colUserName)
		}
		if at := field(row, colActivityType); at != "" {
			u.ActivityTypes[at]++
		}
	}

	var total, max, min float64
	first := true
	for _, s := range out.Sessions {
		s.DurationMinutes = round2(s.End.Sub(s.Start).Minutes())
		total += s.DurationMinutes
		if first || s.DurationMinutes > max {
			max = s.DurationMinutes
		}
		if first || s.DurationMinutes < min {
			min = s.DurationMinutes
		}
		first = false
	}
	if n := len(out.Sessions); n > 0 {
		out.AvgSessionMinutes = round2(total / float64(n))
		out.MaxSessionMinutes = max
		out.MinSessionMinutes = min
	}

	for p, u := range out.Users {
		u.SessionCount = len(userSessions[p])
		u.EngagedMinutes = round2(u.LastSeen.Sub(u.FirstSeen).Minutes())
		// Tie-break by map iteration order; this ranking is informational.
		best := 0
		for at, n := range u.ActivityTypes {
			if n > best {
				best = n
				u.TopActivity = at
			}
		}
		if u.SessionCount > 0 {
			u.ActivitiesPerSession = round2(float64(u.TotalActivities) / float64(u.SessionCount))
		}
	}
	return out
}

// topTypes ranks activity types by count descending; ties keep the order in
// which a type was first seen during the scan.
func topTypes(counts map[string]int, order map[string]int, limit int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for at, n := range counts {
		out = append(out, TypeCount{Type: at, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return order[out[i].Type] < order[out[j].Type]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func busiestHours(hist [24]int, limit int) []HourCount {
	var out []HourCount
	for h, n := range hist {
		if n > 0 {
			out = append(out, HourCount{Hour: h, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
