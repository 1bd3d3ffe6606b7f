package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/activity"
	"spectrax-bot/internal/orders"
	"spectrax-bot/internal/report"
)

// Server exposes the webhook ingest endpoint and the admin reporting API.
// Every data-loading handler degrades to an error payload instead of
// failing the admin session.
type Server struct {
	activity   *activity.Logger
	orders     *orders.Logger
	reports    *report.Generator
	adminPhone string
	laptopIDs  map[string]bool
	repairIDs  map[string]bool
	exportDir  string

	server    *http.Server
	port      int
	startTime time.Time
}

func NewServer(a *activity.Logger, o *orders.Logger, g *report.Generator, adminPhone string, laptopIDs, repairIDs []string, exportDir string, port int) *Server {
	return &Server{
		activity:   a,
		orders:     o,
		reports:    g,
		adminPhone: adminPhone,
		laptopIDs:  toSet(laptopIDs),
		repairIDs:  toSet(repairIDs),
		exportDir:  exportDir,
		port:       port,
		startTime:  time.Now(),
	}
}

// Start blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logrus.Infof("starting web server on :%d", s.port)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/activities/recent", s.handleRecentActivities)
	mux.HandleFunc("/api/activities/count", s.handleActivityCount)
	mux.HandleFunc("/api/analytics/summary", s.handleAnalyticsSummary)
	mux.HandleFunc("/api/analytics/conversations", s.handleConversations)
	mux.HandleFunc("/api/orders", s.handleListOrders)
	mux.HandleFunc("/api/orders/recent", s.handleRecentOrders)
	mux.HandleFunc("/api/orders/statistics", s.handleOrderStatistics)
	mux.HandleFunc("/api/orders/search", s.handleSearchOrders)
	mux.HandleFunc("/api/orders/", s.handleOrder) // /api/orders/{id}[/status]
	mux.HandleFunc("/api/report/daily", s.handleDailyReport)
	mux.HandleFunc("/api/export/activities", s.handleExportActivities)
	mux.HandleFunc("/api/export/orders", s.handleExportOrders)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "spectrax-bot",
		"status":  "ok",
		"uptime":  time.Since(s.startTime).String(),
	})
}

func (s *Server) handleRecentActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := queryInt(r, "limit", 10)
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": s.activity.GetRecentActivities(limit),
	})
}

func (s *Server) handleActivityCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phone_number": phone,
		"count":        s.activity.GetUserActivityCount(phone),
	})
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	days := queryInt(r, "days", 7)
	writeJSON(w, http.StatusOK, s.activity.GetAnalyticsSummary(days))
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.activity.GetConversationAnalytics(r.URL.Query().Get("phone")))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": s.orders.GetOrdersByStatus(r.URL.Query().Get("status")),
	})
}

func (s *Server) handleRecentOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := queryInt(r, "limit", 10)
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": s.orders.GetRecentOrders(limit),
	})
}

func (s *Server) handleOrderStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.orders.GetOrderStatistics())
}

func (s *Server) handleSearchOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	criteria := r.URL.Query().Get("criteria")
	if criteria == "" {
		criteria = "all"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": s.orders.SearchOrders(q, criteria),
	})
}

// handleOrder serves /api/orders/{id} (GET) and /api/orders/{id}/status
// (POST).
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if path == "" || path == r.URL.Path {
		writeError(w, http.StatusBadRequest, "order id is required in path /api/orders/{id}")
		return
	}

	if strings.HasSuffix(path, "/status") {
		s.handleOrderStatusUpdate(w, r, strings.TrimSuffix(path, "/status"))
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	order := s.orders.GetOrderDetails(path)
	if order == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleOrderStatusUpdate(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Status      string `json:"status"`
		Notes       string `json:"notes"`
		ProcessedBy string `json:"processed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request: "+err.Error())
		return
	}
	if !validStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "status must be one of NEW, PROCESSING, COMPLETED, CANCELLED")
		return
	}
	if !s.orders.UpdateOrderStatus(orderID, req.Status, req.Notes, req.ProcessedBy) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true, "order_id": orderID, "status": req.Status})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	daily := s.reports.Daily(time.Now())
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, daily)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(daily.Text())); err != nil {
		logrus.Errorf("web: write report: %v", err)
	}
}

func (s *Server) handleExportActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		StartDate     string   `json:"start_date"`
		EndDate       string   `json:"end_date"`
		ActivityTypes []string `json:"activity_types"`
		AdminOnly     *bool    `json:"admin_only"`
		OutputPath    string   `json:"output_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request: "+err.Error())
		return
	}
	f := activity.ExportFilter{ActivityTypes: req.ActivityTypes, AdminOnly: req.AdminOnly}
	var err error
	if f.StartDate, err = parseDate(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	if f.EndDate, err = parseDate(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	// The client names the file, not its location: everything lands in the
	// export dir.
	name := req.OutputPath
	if name == "" {
		name = fmt.Sprintf("activity_export_%s.csv", time.Now().Format("20060102_150405"))
	}
	out := filepath.Join(s.exportDir, filepath.Base(name))
	if !s.activity.ExportFilteredData(f, out) {
		writeError(w, http.StatusInternalServerError, "error loading data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exported": true, "path": out})
}

func (s *Server) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req orders.ExportCriteria
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request: "+err.Error())
		return
	}
	path := s.orders.ExportOrders(&req)
	if path == "" {
		writeError(w, http.StatusInternalServerError, "error loading data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exported": true, "path": path})
}

func validStatus(status string) bool {
	switch status {
	case orders.StatusNew, orders.StatusProcessing, orders.StatusCompleted, orders.StatusCancelled:
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("web: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}
