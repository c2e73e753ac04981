package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderItem snapshots the tier at purchase time so later tier edits never
// change historical orders.
type OrderItem struct {
	TierID    string  `json:"tier_id"`
	TierName  string  `json:"tier_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type Order struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	BuyerID       string        `json:"buyer_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency"`
	Items         []OrderItem   `json:"items"`
	TicketIDs     []string      `json:"ticket_ids"`
	ContactName   string        `json:"contact_name"`
	ContactEmail  string        `json:"contact_email"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
