package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spectrax-bot/internal/activity"
	"spectrax-bot/internal/orders"
)

// Generator builds admin-facing reports over both logs.
type Generator struct {
	activity *activity.Logger
	orders   *orders.Logger
}

func NewGenerator(a *activity.Logger, o *orders.Logger) *Generator {
	return &Generator{activity: a, orders: o}
}

// Daily is the once-a-day snapshot sent to the admin.
type Daily struct {
	Date         string                     `json:"date"`
	Activity     *activity.AnalyticsSummary `json:"activity"`
	Orders       orders.Statistics          `json:"orders"`
	RecentOrders []orders.Order             `json:"recent_orders"`
}

// Daily aggregates the last day of activity and the full order book.
func (g *Generator) Daily(now time.Time) *Daily {
	return &Daily{
		Date:         now.Format("2006-01-02"),
		Activity:     g.activity.GetAnalyticsSummary(1),
		Orders:       g.orders.GetOrderStatistics(),
		RecentOrders: g.orders.GetRecentOrders(5),
	}
}

// Text renders the plain-text report body.
func (d *Daily) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SpectraX daily report for %s\n\n", d.Date)

	fmt.Fprintf(&b, "Activity (last 24h):\n")
	fmt.Fprintf(&b, "- Total activities: %d\n", d.Activity.TotalActivities)
	fmt.Fprintf(&b, "- Unique users: %d\n", d.Activity.UniqueUsers)
	fmt.Fprintf(&b, "- Admin vs user: %d / %d\n", d.Activity.AdminActivities, d.Activity.UserActivities)
	fmt.Fprintf(&b, "- Sessions: %d\n", d.Activity.SessionCount)
	if len(d.Activity.TopActivities) > 0 {
		fmt.Fprintf(&b, "- Top activities:\n")
		for _, tc := range d.Activity.TopActivities {
			fmt.Fprintf(&b, "  - %s: %d\n", tc.Type, tc.Count)
		}
	}
	if len(d.Activity.BusiestHours) > 0 {
		fmt.Fprintf(&b, "- Busiest hours:")
		for _, hc := range d.Activity.BusiestHours {
			fmt.Fprintf(&b, " %02d:00 (%d)", hc.Hour, hc.Count)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "\nOrders (all time):\n")
	fmt.Fprintf(&b, "- Total: %d (new %d, processing %d, completed %d, cancelled %d)\n",
		d.Orders.TotalOrders, d.Orders.NewOrders, d.Orders.ProcessingOrders,
		d.Orders.CompletedOrders, d.Orders.CancelledOrders)
	fmt.Fprintf(&b, "- Revenue (completed): %.2f\n", d.Orders.TotalRevenue)
	fmt.Fprintf(&b, "- Average order value: %.2f\n", d.Orders.AverageOrderValue)

	if len(d.RecentOrders) > 0 {
		fmt.Fprintf(&b, "\nRecent orders:\n")
		for _, o := range d.RecentOrders {
			fmt.Fprintf(&b, "- %s | %s | %s | %.2f %s | %s\n",
				o.OrderID, o.Timestamp, o.CustomerName, o.TotalAmount, o.Currency, o.Status)
		}
	}
	return b.String()
}

// JSON renders the report for machine consumers.
func (d *Daily) JSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
