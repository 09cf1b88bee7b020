package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const pageSize = 2

// mockBackend is an in-memory stand-in for the restaurant REST backend. Each
// write endpoint accepts exactly one body shape so the storefront's shape
// fallbacks can be watched in the logs.
type mockBackend struct {
	mutex        sync.RWMutex
	tokens       map[string]string // refresh -> access
	orders       []map[string]interface{}
	reservations []map[string]interface{}
	calls        []map[string]interface{}
	password     string
	logger       *logrus.Logger
}

var (
	categories = []map[string]interface{}{
		{"id": 1, "name_ar": "مشويات", "name_en": "Grill", "image": "/media/grill.jpg"},
		{"id": 2, "name_ar": "مشروبات", "name_en": "Drinks"},
		{"id": 3, "name": map[string]string{"ar": "حلويات", "en": "Desserts"}, "is_active": true},
	}
	products = []map[string]interface{}{
		{"id": 10, "name_ar": "كفتة", "name_en": "Kofta", "price": "85.00", "category": 1, "image": "/media/kofta.jpg", "is_popular": true},
		{"id": 11, "name_ar": "شيش طاووق", "name_en": "Shish Tawook", "price": "95.50", "category": map[string]interface{}{"id": 1}},
		{"id": 12, "name_ar": "شاي", "name_en": "Tea", "price": 15, "category_id": 2,
			"extras": []map[string]interface{}{{"id": 1, "name_ar": "نعناع", "name_en": "Mint", "price": "2"}}},
		{"id": 13, "name_ar": "عصير مانجو", "name_en": "Mango Juice", "price": "40", "category": 2, "is_new": true},
		{"id": 14, "name_ar": "كنافة", "name_en": "Kunafa", "price": "60", "category": 3, "is_available": false},
	}
	offers = []map[string]interface{}{
		{"id": 1, "title_ar": "عرض العائلة", "title_en": "Family deal", "price": "250", "old_price": "300", "image": "/media/family.jpg"},
	}
	tables = []map[string]interface{}{
		{"id": 101, "number": "1", "seats": 2, "is_active": true},
		{"id": 102, "number": "2", "seats": 4, "is_active": true},
		{"id": 105, "number": "5", "seats": 6, "is_active": true},
	}
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	backend := &mockBackend{
		tokens:   make(map[string]string),
		password: getEnv("MOCK_STAFF_PASSWORD", "secret"),
		logger:   logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/token/", backend.token).Methods("POST")
	router.HandleFunc("/api/token/refresh/", backend.refresh).Methods("POST")
	router.HandleFunc("/api/categories/", list(categories)).Methods("GET")
	router.HandleFunc("/api/products/", list(products)).Methods("GET")
	router.HandleFunc("/api/offers/active/", list(offers)).Methods("GET")
	router.HandleFunc("/api/tables/", list(tables)).Methods("GET")
	router.HandleFunc("/api/orders/", backend.createOrder).Methods("POST")
	router.HandleFunc("/api/reservations/", backend.createReservation).Methods("POST")
	router.HandleFunc("/api/call-requests/", backend.createCallRequest).Methods("POST")

	port := getEnv("BACKEND_MOCK_PORT", "8000")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", port).Info("Starting restaurant backend mock")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down backend mock...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server forced to shutdown")
	}

	logger.Info("Backend mock gracefully stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "backend-mock",
	})
}

// list serves records in pages of pageSize with an absolute next link.
func list(records []map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		start := (page - 1) * pageSize
		if start > len(records) {
			start = len(records)
		}
		end := start + pageSize
		if end > len(records) {
			end = len(records)
		}

		var next interface{}
		if end < len(records) {
			next = "http://" + r.Host + r.URL.Path + "?page=" + strconv.Itoa(page+1)
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"count":   len(records),
			"next":    next,
			"results": records[start:end],
		})
	}
}

func (b *mockBackend) token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password != b.password {
		respondWithError(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, refresh := uuid.NewString(), uuid.NewString()
	b.mutex.Lock()
	b.tokens[refresh] = access
	b.mutex.Unlock()

	b.logger.WithField("user", req.Username).Info("Issued token pair")
	respondWithJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (b *mockBackend) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.tokens[req.Refresh]; !ok {
		respondWithError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	access := uuid.NewString()
	b.tokens[req.Refresh] = access
	respondWithJSON(w, http.StatusOK, map[string]string{"access": access})
}

// createOrder accepts {"products":[{"product_id","quantity"}],"order_type","table_number"}.
func (b *mockBackend) createOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	lines, ok := body["products"].([]interface{})
	if !ok || len(lines) == 0 {
		respondWithError(w, http.StatusBadRequest, "products: This field is required.")
		return
	}
	for _, raw := range lines {
		line, _ := raw.(map[string]interface{})
		if cast.ToInt64(line["product_id"]) <= 0 || cast.ToInt(line["quantity"]) <= 0 {
			respondWithError(w, http.StatusBadRequest, "products: each entry needs product_id and quantity.")
			return
		}
	}
	orderType := cast.ToString(body["order_type"])
	if orderType == "" {
		respondWithError(w, http.StatusBadRequest, "order_type: This field is required.")
		return
	}
	if orderType == "dine_in" && cast.ToString(body["table_number"]) == "" {
		respondWithError(w, http.StatusBadRequest, "table_number: required for dine-in orders.")
		return
	}

	b.mutex.Lock()
	body["id"] = len(b.orders) + 1
	body["status"] = "pending"
	b.orders = append(b.orders, body)
	b.mutex.Unlock()

	b.logger.WithFields(logrus.Fields{
		"order_id":   body["id"],
		"order_type": orderType,
		"lines":      len(lines),
	}).Info("Order accepted")
	respondWithJSON(w, http.StatusCreated, body)
}

// createReservation accepts customer_name, phone_number, party_size and
// reservation_datetime.
func (b *mockBackend) createReservation(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	for _, key := range []string{"customer_name", "phone_number", "party_size", "reservation_datetime"} {
		if _, present := body[key]; !present {
			respondWithError(w, http.StatusBadRequest, key+": This field is required.")
			return
		}
	}
	if _, err := time.Parse("2006-01-02T15:04", cast.ToString(body["reservation_datetime"])); err != nil {
		respondWithError(w, http.StatusBadRequest, "reservation_datetime: invalid format.")
		return
	}

	b.mutex.Lock()
	body["id"] = len(b.reservations) + 1
	b.reservations = append(b.reservations, body)
	b.mutex.Unlock()

	b.logger.WithField("guests", body["party_size"]).Info("Reservation accepted")
	respondWithJSON(w, http.StatusCreated, body)
}

// createCallRequest accepts {"request_type", "table"} where table is the
// backend table id, never the printed number.
func (b *mockBackend) createCallRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(cast.ToString(body["request_type"])) == "" {
		respondWithError(w, http.StatusBadRequest, "request_type: This field is required.")
		return
	}
	id := cast.ToInt64(body["table"])
	known := false
	for _, t := range tables {
		if cast.ToInt64(t["id"]) == id {
			known = true
			break
		}
	}
	if !known {
		respondWithError(w, http.StatusBadRequest, "table: Invalid pk - object does not exist.")
		return
	}

	b.mutex.Lock()
	body["id"] = len(b.calls) + 1
	b.calls = append(b.calls, body)
	b.mutex.Unlock()

	b.logger.WithField("table", id).Info("Waiter called")
	respondWithJSON(w, http.StatusCreated, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "JSON parse error")
		return nil, false
	}
	return body, true
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError answers in the backend's {"detail": ...} error format.
func respondWithError(w http.ResponseWriter, code int, detail string) {
	respondWithJSON(w, code, map[string]string{"detail": detail})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
