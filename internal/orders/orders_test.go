package orders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	dir := t.TempDir()
	l, err := NewLogger(filepath.Join(dir, "orders.csv"), filepath.Join(dir, "exports"))
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return l
}

func sampleProducts() []Product {
	return []Product{
		{Title: "SpectraX Pro 15", Quantity: 1, UnitPrice: 1200, ItemTotal: 1200, RetailerID: "laptop_pro_15"},
		{Title: "Screen Repair", Quantity: 2, UnitPrice: 50, ItemTotal: 100, RetailerID: "repair_screen"},
	}
}

func TestLogOrderAndDetails(t *testing.T) {
	l := newTestLogger(t)

	id := l.LogOrder("15551234567", "Ann", TypeMixed, 1300, "cat1", "order text", sampleProducts(), "", "")
	if !strings.HasPrefix(id, "ORD") || strings.HasPrefix(id, "ORD_ERROR_") {
		t.Fatalf("unexpected order id %q", id)
	}
	if !strings.HasSuffix(id, "4567") {
		t.Errorf("order id must end with last 4 phone digits, got %q", id)
	}

	o := l.GetOrderDetails(id)
	if o == nil {
		t.Fatalf("order %s not found", id)
	}
	if o.CustomerPhone != "15551234567" || o.OrderType != TypeMixed || o.TotalAmount != 1300 {
		t.Errorf("stored order mismatch: %+v", o)
	}
	if o.Currency != "USD" || o.Status != StatusNew {
		t.Errorf("defaults not applied: currency=%s status=%s", o.Currency, o.Status)
	}
	if len(o.Products) != 2 || o.Products[1].ItemTotal != 100 {
		t.Errorf("products not round-tripped: %+v", o.Products)
	}

	if l.GetOrderDetails("ORD00000000000000000") != nil {
		t.Errorf("unknown id must yield nil")
	}
}

func TestOrderIDCollisionSuffix(t *testing.T) {
	l := newTestLogger(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	l.now = func() time.Time { return now }

	id1 := l.LogOrder("15551234567", "Ann", TypeLaptop, 100, "", "", nil, "", "")
	id2 := l.LogOrder("15551234567", "Ann", TypeLaptop, 100, "", "", nil, "", "")
	if id1 == id2 {
		t.Fatalf("same-second ids collide: %s", id1)
	}
	if id2 != id1+"-1" {
		t.Errorf("want sequence suffix, got %s then %s", id1, id2)
	}
	if l.GetOrderDetails(id2) == nil {
		t.Errorf("suffixed order not retrievable")
	}
}

func TestOrderIDInterleavedSameSecond(t *testing.T) {
	l := newTestLogger(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	l.now = func() time.Time { return now }

	id1 := l.LogOrder("15551234567", "Ann", TypeLaptop, 100, "", "", nil, "", "")
	id2 := l.LogOrder("15559999999", "Bob", TypeRepair, 50, "", "", nil, "", "")
	id3 := l.LogOrder("15551234567", "Ann", TypeLaptop, 200, "", "", nil, "", "")

	if id1 == id3 {
		t.Fatalf("interleaved same-second orders share an id: %s", id1)
	}
	if id3 != id1+"-1" {
		t.Errorf("want sequence suffix on the repeated base, got %s then %s", id1, id3)
	}
	if id2 == id1 || id2 == id3 {
		t.Errorf("unrelated customer collided: %s", id2)
	}

	o := l.GetOrderDetails(id3)
	if o == nil {
		t.Fatalf("order %s not found", id3)
	}
	if o.TotalAmount != 200 {
		t.Errorf("lookup by suffixed id hit the wrong row: %+v", o)
	}
}

func TestUpdateOrderStatusAppendsNotes(t *testing.T) {
	l := newTestLogger(t)
	id := l.LogOrder("15551234567", "Ann", TypeLaptop, 100, "", "", nil, "", "")

	if !l.UpdateOrderStatus(id, StatusProcessing, "note A", "") {
		t.Fatalf("first update failed")
	}
	if !l.UpdateOrderStatus(id, StatusCompleted, "note B", "admin") {
		t.Fatalf("second update failed")
	}

	o := l.GetOrderDetails(id)
	if o == nil {
		t.Fatalf("order lost after updates")
	}
	if o.Status != StatusCompleted {
		t.Errorf("want COMPLETED, got %s", o.Status)
	}
	lines := strings.Split(o.AdminNotes, "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 note lines, got %d: %q", len(lines), o.AdminNotes)
	}
	if !strings.Contains(lines[0], "note A") || !strings.Contains(lines[1], "note B") {
		t.Errorf("notes not appended in order: %q", o.AdminNotes)
	}
	if !strings.HasPrefix(lines[0], "[") {
		t.Errorf("notes must be timestamped: %q", lines[0])
	}
	if o.ProcessedBy != "admin" || o.ProcessingTimestamp == "" {
		t.Errorf("processor not stamped: %+v", o)
	}

	if l.UpdateOrderStatus("ORD-unknown", StatusCancelled, "", "") {
		t.Errorf("unknown id must report false")
	}
}

func TestOrderStatistics(t *testing.T) {
	l := newTestLogger(t)
	a := l.LogOrder("1111", "A", TypeLaptop, 100, "", "", nil, "", "")
	b := l.LogOrder("2222", "B", TypeLaptop, 200, "", "", nil, "", "")
	c := l.LogOrder("3333", "C", TypeRepair, 50, "", "", nil, "", "")

	l.UpdateOrderStatus(a, StatusCompleted, "", "")
	l.UpdateOrderStatus(b, StatusCompleted, "", "")
	l.UpdateOrderStatus(c, StatusCancelled, "", "")

	stats := l.GetOrderStatistics()
	if stats.TotalOrders != 3 {
		t.Errorf("want 3 orders, got %d", stats.TotalOrders)
	}
	if stats.CompletedOrders != 2 || stats.CancelledOrders != 1 {
		t.Errorf("status buckets wrong: %+v", stats)
	}
	if stats.TotalRevenue != 300 {
		t.Errorf("want revenue 300 (completed only), got %v", stats.TotalRevenue)
	}
	if stats.AverageOrderValue != 150 {
		t.Errorf("want average 150, got %v", stats.AverageOrderValue)
	}
}

func TestOrderStatisticsEmpty(t *testing.T) {
	l := newTestLogger(t)
	stats := l.GetOrderStatistics()
	if stats.TotalOrders != 0 || stats.AverageOrderValue != 0 {
		t.Errorf("empty log stats wrong: %+v", stats)
	}
}

func TestGetOrdersByStatusAndRecent(t *testing.T) {
	l := newTestLogger(t)
	a := l.LogOrder("1111", "A", TypeLaptop, 100, "", "", nil, "", "")
	b := l.LogOrder("2222", "B", TypeLaptop, 200, "", "", nil, "", "")
	l.LogOrder("3333", "C", TypeRepair, 50, "", "", nil, "", "")
	l.UpdateOrderStatus(b, StatusProcessing, "", "")

	newOnes := l.GetOrdersByStatus(StatusNew)
	if len(newOnes) != 2 {
		t.Fatalf("want 2 NEW orders, got %d", len(newOnes))
	}
	if newOnes[0].OrderID != a {
		t.Errorf("status listing must keep file order, got %s first", newOnes[0].OrderID)
	}

	all := l.GetOrdersByStatus("")
	if len(all) != 3 {
		t.Errorf("empty status must match all, got %d", len(all))
	}

	recent := l.GetRecentOrders(2)
	if len(recent) != 2 {
		t.Fatalf("want 2 recent orders, got %d", len(recent))
	}
	if recent[0].CustomerName != "C" || recent[1].CustomerName != "B" {
		t.Errorf("recent orders must be newest first: %s, %s", recent[0].CustomerName, recent[1].CustomerName)
	}
}

func TestRecentOrdersSkipsBlankRows(t *testing.T) {
	l := newTestLogger(t)
	l.LogOrder("1111", "A", TypeLaptop, 100, "", "", nil, "", "")
	if err := l.table.Append([]string{""}); err != nil {
		t.Fatalf("append raw row: %v", err)
	}
	l.LogOrder("2222", "B", TypeRepair, 50, "", "", nil, "", "")

	recent := l.GetRecentOrders(2)
	if len(recent) != 2 {
		t.Fatalf("blank row must not shrink the result, got %d", len(recent))
	}
	if recent[0].CustomerName != "B" || recent[1].CustomerName != "A" {
		t.Errorf("want [B A], got [%s %s]", recent[0].CustomerName, recent[1].CustomerName)
	}
}

func TestSearchOrders(t *testing.T) {
	l := newTestLogger(t)
	l.LogOrder("15551234567", "Ann Smith", TypeLaptop, 100, "", "gaming laptop please", nil, "", "")
	l.LogOrder("49991234567", "Bob Jones", TypeRepair, 50, "", "screen broken", nil, "", "")

	if got := l.SearchOrders("ann", "name"); len(got) != 1 || got[0].CustomerName != "Ann Smith" {
		t.Errorf("name search wrong: %+v", got)
	}
	if got := l.SearchOrders("4999", "phone"); len(got) != 1 || got[0].CustomerName != "Bob Jones" {
		t.Errorf("phone search wrong: %+v", got)
	}
	if got := l.SearchOrders("new", "status"); len(got) != 2 {
		t.Errorf("status search wrong: %d", len(got))
	}
	if got := l.SearchOrders("screen", "all"); len(got) != 1 || got[0].CustomerName != "Bob Jones" {
		t.Errorf("all-columns search wrong: %+v", got)
	}
	if got := l.SearchOrders("nothing-here", "all"); len(got) != 0 {
		t.Errorf("want no matches, got %d", len(got))
	}
}

func TestExportOrders(t *testing.T) {
	l := newTestLogger(t)
	a := l.LogOrder("1111", "Ann", TypeLaptop, 100, "", "", nil, "", "")
	l.LogOrder("2222", "Bob", TypeRepair, 50, "", "", nil, "", "")
	l.UpdateOrderStatus(a, StatusCompleted, "", "")

	path := l.ExportOrders(&ExportCriteria{Status: StatusCompleted})
	if path == "" {
		t.Fatalf("export failed")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, a) {
		t.Errorf("completed order missing from export")
	}
	if strings.Contains(s, "Bob") {
		t.Errorf("filtered-out order present in export")
	}
	if !strings.Contains(s, "rows_exported,1") {
		t.Errorf("summary block missing: %s", s)
	}

	// Unfiltered export includes everything.
	path = l.ExportOrders(nil)
	if path == "" {
		t.Fatalf("unfiltered export failed")
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "Bob") {
		t.Errorf("unfiltered export incomplete")
	}
}
