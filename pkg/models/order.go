package models

import "time"

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// IsValid checks if the order type is one the backend understands
func (t OrderType) IsValid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	default:
		return false
	}
}

// OrderRequest is the logical order built at checkout. The wire body is
// derived from it by the submitter.
type OrderRequest struct {
	OrderType   OrderType   `json:"order_type"`
	TableNumber string      `json:"table_number,omitempty"`
	TableID     int64       `json:"table_id,omitempty"`
	Lines       []OrderLine `json:"lines"`
	Notes       string      `json:"notes,omitempty"`
}

type OrderLine struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

type ReservationRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Guests int    `json:"guests"`
	Date   string `json:"date"` // YYYY-MM-DD
	Time   string `json:"time"` // HH:MM
	Notes  string `json:"notes,omitempty"`
}

type CallRequest struct {
	TableNumber string `json:"table_number"`
	Reason      string `json:"reason"`
}

type Table struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	Seats    int    `json:"seats"`
	IsActive bool   `json:"is_active"`
}

// SubmitResult carries whatever the backend answered once a body shape was accepted.
type SubmitResult struct {
	Endpoint  string                 `json:"endpoint"`
	Shape     string                 `json:"shape"`
	Response  map[string]interface{} `json:"response,omitempty"`
	Submitted time.Time              `json:"submitted_at"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
