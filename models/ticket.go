package models

import (
	"time"
)

type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusConfirmed TicketStatus = "confirmed"
	TicketStatusCheckedIn TicketStatus = "checked_in"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// Ticket is one admission for one attendee. Token is the opaque check-in
// credential; globally unique and never reused, even after cancellation.
type Ticket struct {
	ID            string       `json:"id"`
	EventID       string       `json:"event_id"`
	OrderID       string       `json:"order_id"`
	TierID        string       `json:"tier_id"`
	TierName      string       `json:"tier_name"`
	UnitPrice     float64      `json:"unit_price"`
	Token         string       `json:"token"`
	Status        TicketStatus `json:"status"`
	AttendeeName  string       `json:"attendee_name"`
	AttendeeEmail string       `json:"attendee_email"`
	CreatedAt     time.Time    `json:"created_at"`
}
