package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tickethub/models"
)

// EventSnapshot is a point-in-time read of an event and its tiers used for
// validation only. The authoritative remaining counts live in the ledger.
type EventSnapshot struct {
	EventID string
	Status  models.EventStatus
	Tiers   []TierSnapshot
}

type TierSnapshot struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Quantity   int
	SalesStart time.Time // zero means unbounded
	SalesEnd   time.Time
}

func (s *EventSnapshot) Tier(tierID string) (*TierSnapshot, bool) {
	for i := range s.Tiers {
		if s.Tiers[i].ID == tierID {
			return &s.Tiers[i], true
		}
	}
	return nil, false
}

// OrderDraft is the validated, not-yet-durable shape of one purchase:
// the order fields plus one ticket per attendee, tokens already issued.
type OrderDraft struct {
	EventID      string
	BuyerID      string
	TierID       string
	TierName     string
	Quantity     int
	UnitPrice    decimal.Decimal
	Subtotal     decimal.Decimal
	Total        decimal.Decimal
	Currency     string
	ContactName  string
	ContactEmail string
	Tickets      []TicketDraft
}

type TicketDraft struct {
	Token         string
	AttendeeName  string
	AttendeeEmail string
}

// OrderStore is the durable side of the purchase protocol. Implementations
// must make SaveOrderWithTickets atomic: either the order and every one of
// its tickets become visible together, or nothing does.
type OrderStore interface {
	EventSnapshot(ctx context.Context, eventID string) (*EventSnapshot, error)
	SaveOrderWithTickets(ctx context.Context, draft *OrderDraft) (*models.Order, []models.Ticket, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)

	// CancelOrder flips the order and all of its tickets to cancelled in one
	// atomic write and reports the per-tier quantities to hand back to the
	// ledger. Implementations must verify inside that same write that the
	// order is still cancellable (not already cancelled, payment untouched)
	// and return ErrOrderNotCancellable otherwise, so concurrent cancels
	// release at most once. Tokens stay on the cancelled tickets and are
	// never reissued.
	CancelOrder(ctx context.Context, orderID string) (map[string]int, error)
}
