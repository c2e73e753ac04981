package models

import (
	"time"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusArchived  EventStatus = "archived"
)

type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	VenueName   string      `json:"venue_name"`
	VenueCity   string      `json:"venue_city"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	OrganizerID string      `json:"organizer_id"`
	Status      EventStatus `json:"status"`
	Visibility  string      `json:"visibility"` // public, private
}

// TicketTier is a priced ticket category owned by one event. Quantity is
// fixed at creation; Remaining moves only through ledger reserve/release.
type TicketTier struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	Quantity    int        `json:"quantity"`
	Remaining   int        `json:"remaining"`
	SalesStart  *time.Time `json:"sales_start,omitempty"`
	SalesEnd    *time.Time `json:"sales_end,omitempty"`
}
