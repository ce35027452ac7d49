// Package events holds the payloads published on the message broker.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/google/uuid"
)

// PurchaseCompletedEvent is emitted once per committed purchase request.
type PurchaseCompletedEvent struct {
	EventID       uuid.UUID         `json:"event_id"`
	Carrier       map[string]string `json:"carrier,omitempty"`
	StoreID       string            `json:"store_id"`
	CustomerID    int64             `json:"customer_id"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	PurchaseID    int64             `json:"purchase_id"`
	TotalAmount   string            `json:"total_amount"`
	TransactionID json.RawMessage   `json:"transaction_id,omitempty"`
	PaymentMethod json.RawMessage   `json:"payment_method,omitempty"`
	Items         []PurchasedItem   `json:"items"`
	CreatedAt     time.Time         `json:"created_at"`
}

// PurchasedItem is one line of a purchase. Amount is a decimal string.
type PurchasedItem struct {
	PurchaseID  int64  `json:"purchase_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	Amount      string `json:"amount"`
}

func (e PurchaseCompletedEvent) Subject() string {
	return messaging.PurchasesCompletedSubject
}

func (e PurchaseCompletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
