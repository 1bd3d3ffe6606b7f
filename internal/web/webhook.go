package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/activity"
	"spectrax-bot/internal/orders"
)

// Inbound message kinds accepted on /webhook.
const (
	messageText   = "text"
	messageButton = "interactive_button"
	messageOrder  = "order"
)

// webhookPayload is the external message shape. It is normalized exactly
// once, here at the boundary, into typed records; downstream code never
// guesses at fallback field names.
type webhookPayload struct {
	From     string        `json:"from"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Text     string        `json:"text"`
	ButtonID string        `json:"button_id"`
	Order    *orderPayload `json:"order"`
}

type orderPayload struct {
	CatalogID string           `json:"catalog_id"`
	Text      string           `json:"text"`
	Products  []productPayload `json:"products"`
}

type productPayload struct {
	Title      string  `json:"title"`
	Name       string  `json:"name"` // legacy alias for title
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	RetailerID string  `json:"product_retailer_id"`
}

// handleWebhook ingests one bot event. The response is always 200 for a
// well-formed payload, even when logging fails: the bot must keep answering
// its user regardless of the log's health.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var p webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request: "+err.Error())
		return
	}
	if p.From == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}

	sessionID := uuid.NewString()
	admin := s.adminPhone != "" && p.From == s.adminPhone

	switch p.Type {
	case messageText:
		activityType := "message_received"
		if admin && strings.HasPrefix(p.Text, "/") {
			activityType = "admin_command"
		}
		s.activity.LogActivity(activity.Entry{
			PhoneNumber:  p.From,
			UserName:     p.Name,
			ActivityType: activityType,
			MessageType:  messageText,
			UserInput:    p.Text,
			AdminFlag:    admin,
			SessionID:    sessionID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "processed", "session_id": sessionID})

	case messageButton:
		if p.ButtonID == "" {
			writeError(w, http.StatusBadRequest, "button_id is required for interactive_button messages")
			return
		}
		s.activity.LogActivity(activity.Entry{
			PhoneNumber:  p.From,
			UserName:     p.Name,
			ActivityType: "button_clicked",
			MessageType:  messageButton,
			ButtonID:     p.ButtonID,
			AdminFlag:    admin,
			SessionID:    sessionID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "processed", "session_id": sessionID})

	case messageOrder:
		products, total, err := normalizeProducts(p.Order)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		orderType := s.classifyOrder(products)
		orderID := s.orders.LogOrder(p.From, p.Name, orderType, total,
			p.Order.CatalogID, p.Order.Text, products, "", "")

		s.activity.LogActivity(activity.Entry{
			PhoneNumber:  p.From,
			UserName:     p.Name,
			ActivityType: "order_placed",
			MessageType:  messageOrder,
			UserInput:    p.Order.Text,
			AdminFlag:    admin,
			SessionID:    sessionID,
			AdditionalData: map[string]any{
				"order_id":   orderID,
				"order_type": orderType,
				"items":      len(products),
			},
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "processed",
			"session_id": sessionID,
			"order_id":   orderID,
			"order_type": orderType,
		})

	default:
		writeError(w, http.StatusBadRequest, "type must be one of text, interactive_button, order")
	}
}

// normalizeProducts maps the external product shape into the typed order
// line items and computes the order total. Validation problems are
// surfaced, not silently defaulted away.
func normalizeProducts(o *orderPayload) ([]orders.Product, float64, error) {
	if o == nil || len(o.Products) == 0 {
		return nil, 0, fmt.Errorf("order with at least one product is required")
	}
	out := make([]orders.Product, 0, len(o.Products))
	total := 0.0
	for i, p := range o.Products {
		title := p.Title
		if title == "" {
			title = p.Name
		}
		if title == "" {
			return nil, 0, fmt.Errorf("product %d: title is required", i)
		}
		if p.Quantity < 1 {
			return nil, 0, fmt.Errorf("product %d: quantity must be at least 1", i)
		}
		if p.UnitPrice < 0 {
			return nil, 0, fmt.Errorf("product %d: unit_price must not be negative", i)
		}
		itemTotal := p.UnitPrice * float64(p.Quantity)
		out = append(out, orders.Product{
			Title:      title,
			Quantity:   p.Quantity,
			UnitPrice:  p.UnitPrice,
			ItemTotal:  itemTotal,
			RetailerID: p.RetailerID,
		})
		total += itemTotal
	}
	return out, total, nil
}

// classifyOrder buckets an order by its retailer ids.
func (s *Server) classifyOrder(products []orders.Product) string {
	if len(products) == 0 {
		return orders.TypeUnknown
	}
	laptops, repairs := 0, 0
	for _, p := range products {
		if s.laptopIDs[p.RetailerID] {
			laptops++
		}
		if s.repairIDs[p.RetailerID] {
			repairs++
		}
	}
	switch {
	case laptops > 0 && repairs == 0:
		return orders.TypeLaptop
	case repairs > 0 && laptops == 0:
		return orders.TypeRepair
	case laptops > 0 && repairs > 0:
		return orders.TypeMixed
	default:
		logrus.Warnf("web: order with %d products matched no configured retailer ids", len(products))
		return orders.TypeGeneral
	}
}
