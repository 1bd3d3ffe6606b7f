package orders

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/store"
)

// Order statuses. Every stored order carries exactly one of these.
const (
	StatusNew        = "NEW"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Order types.
const (
	TypeLaptop  = "LAPTOP"
	TypeRepair  = "REPAIR"
	TypeMixed   = "MIXED"
	TypeGeneral = "GENERAL"
	TypeUnknown = "UNKNOWN"
)

// Column order of the orders table.
const (
	colOrderID = iota
	colTimestamp
	colCustomerPhone
	colCustomerName
	colOrderType
	colTotalAmount
	colCurrency
	colStatus
	colCatalogID
	colOrderText
	colProductsJSON
	colAdminNotes
	colProcessedBy
	colProcessingTimestamp
	colDeliveryAddress
	colPaymentMethod
)

var headers = []string{
	"order_id", "timestamp", "customer_phone", "customer_name",
	"order_type", "total_amount", "currency", "status",
	"catalog_id", "order_text", "products_json", "admin_notes",
	"processed_by", "processing_timestamp", "delivery_address", "payment_method",
}

// Product is one line item of an order, already normalized at the system
// boundary.
type Product struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	ItemTotal  float64 `json:"item_total"`
	RetailerID string  `json:"retailer_id"`
}

// Order is one stored order row with the products column decoded.
type Order struct {
	OrderID             string    `json:"order_id"`
	Timestamp           string    `json:"timestamp"`
	CustomerPhone       string    `json:"customer_phone"`
	CustomerName        string    `json:"customer_name"`
	OrderType           string    `json:"order_type"`
	TotalAmount         float64   `json:"total_amount"`
	Currency            string    `json:"currency"`
	Status              string    `json:"status"`
	CatalogID           string    `json:"catalog_id"`
	OrderText           string    `json:"order_text"`
	Products            []Product `json:"products"`
	AdminNotes          string    `json:"admin_notes"`
	ProcessedBy         string    `json:"processed_by"`
	ProcessingTimestamp string    `json:"processing_timestamp"`
	DeliveryAddress     string    `json:"delivery_address"`
	PaymentMethod       string    `json:"payment_method"`
}

// Statistics is the single-pass aggregate for the admin dashboard. Revenue
// counts COMPLETED orders only.
type Statistics struct {
	TotalOrders       int     `json:"total_orders"`
	NewOrders         int     `json:"new_orders"`
	ProcessingOrders  int     `json:"processing_orders"`
	CompletedOrders   int     `json:"completed_orders"`
	CancelledOrders   int     `json:"cancelled_orders"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// ExportCriteria filters an orders export. Status matches exactly, Date is a
// substring match against the timestamp column ("2025-10" selects a month),
// Customer is a case-insensitive substring of the name or phone.
type ExportCriteria struct {
	Status   string
	Date     string
	Customer string
}

// Logger is the order log. order_id is the primary lookup key.
type Logger struct {
	table     *store.Table
	exportDir string
	now       func() time.Time

	mu      sync.Mutex
	idStamp string
	idSeq   map[string]int
}

// NewLogger opens (creating if needed) the orders table at path. Export
// files are written under exportDir.
func NewLogger(path, exportDir string) (*Logger, error) {
	tbl, err := store.Open(path, headers)
	if err != nil {
		return nil, fmt.Errorf("open orders table: %w", err)
	}
	return &Logger{table: tbl, exportDir: exportDir, now: time.Now}, nil
}

// LogOrder appends a new order with status NEW (unless overridden) and
// returns the generated order id. On failure it returns an
// ORD_ERROR_<timestamp> sentinel: callers that need durability must check
// for it.
func (l *Logger) LogOrder(customerPhone, customerName, orderType string, totalAmount float64, catalogID, orderText string, products []Product, currency, status string) string {
	now := l.now()
	orderID := l.nextOrderID(now, customerPhone)

	if currency == "" {
		currency = "USD"
	}
	if status == "" {
		status = StatusNew
	}

	if products == nil {
		products = []Product{}
	}
	productsJSON := "[]"
	if b, err := json.Marshal(products); err != nil {
		logrus.Errorf("orders: encode products for %s: %v", orderID, err)
	} else {
		productsJSON = string(b)
	}

	row := []string{
		orderID,
		now.Format(store.TimeFormat),
		customerPhone,
		customerName,
		orderType,
		formatAmount(totalAmount),
		currency,
		status,
		catalogID,
		orderText,
		productsJSON,
		"", // admin_notes
		"", // processed_by
		"", // processing_timestamp
		"", // delivery_address
		"", // payment_method
	}
	if err := l.table.Append(row); err != nil {
		logrus.Errorf("orders: failed to log order for %s: %v", customerPhone, err)
		return "ORD_ERROR_" + l.now().Format("20060102150405")
	}
	logrus.Infof("orders: logged %s for %s", orderID, customerPhone)
	return orderID
}

// nextOrderID builds ORD<YYYYMMDDHHMMSS><last4(phone)>. Two orders from the
// same customer in the same second would collide, so a sequence counter is
// kept per base id for the current second and a -N suffix is added on every
// repeat, even when other customers' orders interleave.
func (l *Logger) nextOrderID(now time.Time, phone string) string {
	suffix := phone
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	stamp := now.Format("20060102150405")
	base := "ORD" + stamp + suffix

	l.mu.Lock()
	defer l.mu.Unlock()
	if stamp != l.idStamp {
		l.idStamp = stamp
		l.idSeq = make(map[string]int)
	}
	n := l.idSeq[base]
	l.idSeq[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// UpdateOrderStatus overwrites the status of the order and appends a
// timestamped note to admin_notes. When processedBy is given, the processor
// and processing time are stamped too. Returns false for an unknown id.
func (l *Logger) UpdateOrderStatus(orderID, status, adminNotes, processedBy string) bool {
	now := l.now()
	found, err := l.table.UpdateRow(colOrderID, orderID, func(row []string) []string {
		for len(row) < len(headers) {
			row = append(row, "")
		}
		row[colStatus] = status
		if adminNotes != "" {
			note := fmt.Sprintf("[%s] %s", now.Format("2006-01-02 15:04"), adminNotes)
			if row[colAdminNotes] != "" {
				row[colAdminNotes] = row[colAdminNotes] + "\n" + note
			} else {
				row[colAdminNotes] = note
			}
		}
		if processedBy != "" {
			row[colProcessedBy] = processedBy
			row[colProcessingTimestamp] = now.Format(store.TimeFormat)
		}
		return row
	})
	if err != nil {
		logrus.Errorf("orders: failed to update %s: %v", orderID, err)
		return false
	}
	if !found {
		logrus.Warnf("orders: %s not found for status update", orderID)
		return false
	}
	logrus.Infof("orders: updated %s status to %s", orderID, status)
	return true
}

// GetOrderDetails returns the order with the given id, or nil when unknown.
func (l *Logger) GetOrderDetails(orderID string) *Order {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("orders: details scan failed: %v", err)
		return nil
	}
	for _, row := range rows {
		if field(row, colOrderID) == orderID {
			o := fromRow(row)
			return &o
		}
	}
	return nil
}

// GetOrdersByStatus returns orders in file (chronological) order, optionally
// restricted to one status. An empty status matches everything.
func (l *Logger) GetOrdersByStatus(status string) []Order {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("orders: status scan failed: %v", err)
		return nil
	}
	var out []Order
	for _, row := range rows {
		if field(row, colOrderID) == "" {
			continue
		}
		if status != "" && field(row, colStatus) != status {
			continue
		}
		out = append(out, fromRow(row))
	}
	return out
}

// GetRecentOrders returns the last limit orders, most recent first.
func (l *Logger) GetRecentOrders(limit int) []Order {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("orders: recent scan failed: %v", err)
		return nil
	}
	var out []Order
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if field(rows[i], colOrderID) == "" {
			continue
		}
		out = append(out, fromRow(rows[i]))
	}
	return out
}

// GetOrderStatistics computes the dashboard aggregate in one pass.
func (l *Logger) GetOrderStatistics() Statistics {
	var stats Statistics
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("orders: statistics scan failed: %v", err)
		return stats
	}
	for _, row := range rows {
		if field(row, colOrderID) == "" {
			continue
		}
		stats.TotalOrders++
		status := field(row, colStatus)
		if status == "" {
			status = StatusNew
		}
		switch status {
		case StatusNew:
			stats.NewOrders++
		case StatusProcessing:
			stats.ProcessingOrders++
		case StatusCompleted:
			stats.CompletedOrders++
		case StatusCancelled:
			stats.CancelledOrders++
		}
		if status == StatusCompleted {
			if amount, err := strconv.ParseFloat(field(row, colTotalAmount), 64); err == nil {
				stats.TotalRevenue += amount
			}
		}
	}
	if stats.CompletedOrders > 0 {
		stats.AverageOrderValue = round2(stats.TotalRevenue / float64(stats.CompletedOrders))
	}
	stats.TotalRevenue = round2(stats.TotalRevenue)
	return stats
}

// SearchOrders does a case-insensitive substring match against one column
// ("phone", "order_id", "name", "status") or every column for "all".
func (l *Logger) SearchOrders(query, criteria string) []Order {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("orders: search scan failed: %v", err)
		return nil
	}
	q := strings.ToLower(query)
	col := -1
	switch criteria {
	case "phone":
		col = colCustomerPhone
	case "order_id":
		col = colOrderID
	case "name":
		col = colCustomerName
	case "status":
		col = colStatus
	}

	var out []Order
	for _, row := range rows {
		if field(row, colOrderID) == "" {
			continue
		}
		if col >= 0 {
			if strings.Contains(strings.ToLower(field(row, col)), q) {
				out = append(out, fromRow(row))
			}
			continue
		}
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell), q) {
				out = append(out, fromRow(row))
				break
			}
		}
	}
	return out
}

// ExportOrders writes the (optionally filtered) orders to a fresh
// timestamped file under the export dir and returns its path, or "" on
// failure.
func (l *Logger) ExportOrders(criteria *ExportCriteria) string {
	rows, err := l.table.Scan()
	if err != nil {
		logrus.Errorf("orders: export scan failed: %v", err)
		return ""
	}
	var matched [][]string
	for _, row := range rows {
		if field(row, colOrderID) == "" {
			continue
		}
		if criteria != nil {
			if criteria.Status != "" && field(row, colStatus) != criteria.Status {
				continue
			}
			if criteria.Date != "" && !strings.Contains(field(row, colTimestamp), criteria.Date) {
				continue
			}
			if criteria.Customer != "" {
				c := strings.ToLower(criteria.Customer)
				name := strings.ToLower(field(row, colCustomerName))
				phone := strings.ToLower(field(row, colCustomerPhone))
				if !strings.Contains(name, c) && !strings.Contains(phone, c) {
					continue
				}
			}
		}
		matched = append(matched, row)
	}

	path := filepath.Join(l.exportDir, fmt.Sprintf("orders_export_%s.csv", l.now().Format("20060102_150405")))
	trailer := [][]string{
		{"summary", ""},
		{"rows_exported", strconv.Itoa(len(matched))},
		{"generated_at", l.now().Format(store.TimeFormat)},
	}
	if err := store.WriteSnapshot(path, headers, matched, trailer); err != nil {
		logrus.Errorf("orders: export write failed: %v", err)
		return ""
	}
	logrus.Infof("orders: exported %d orders to %s", len(matched), path)
	return path
}

func fromRow(row []string) Order {
	o := Order{
		OrderID:             field(row, colOrderID),
		Timestamp:           field(row, colTimestamp),
		CustomerPhone:       field(row, colCustomerPhone),
		CustomerName:        field(row, colCustomerName),
		OrderType:           field(row, colOrderType),
		Currency:            field(row, colCurrency),
		Status:              field(row, colStatus),
		CatalogID:           field(row, colCatalogID),
		OrderText:           field(row, colOrderText),
		AdminNotes:          field(row, colAdminNotes),
		ProcessedBy:         field(row, colProcessedBy),
		ProcessingTimestamp: field(row, colProcessingTimestamp),
		DeliveryAddress:     field(row, colDeliveryAddress),
		PaymentMethod:       field(row, colPaymentMethod),
		Products:            []Product{},
	}
	if amount, err := strconv.ParseFloat(field(row, colTotalAmount), 64); err == nil {
		o.TotalAmount = amount
	}
	if blob := field(row, colProductsJSON); blob != "" {
		var products []Product
		if err := json.Unmarshal([]byte(blob), &products); err != nil {
			logrus.Warnf("orders: bad products blob on %s: %v", o.OrderID, err)
		} else {
			o.Products = products
		}
	}
	return o
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
