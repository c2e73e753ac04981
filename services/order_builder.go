package services

import (
	"time"

	"github.com/shopspring/decimal"

	"tickethub/models"
)

type PlaceOrderRequest struct {
	BuyerID      string            `json:"-"`
	EventID      string            `json:"event_id"`
	TierID       string            `json:"tier_id"`
	Quantity     int               `json:"quantity"`
	ContactName  string            `json:"contact_name"`
	ContactEmail string            `json:"contact_email"`
	Attendees    []models.Attendee `json:"attendees"`
}

// OrderBuilder validates a purchase request against an event snapshot and
// produces the order/ticket shape to persist. It is pure: no storage access,
// no mutation, and deliberately no availability check — that belongs to the
// ledger at reservation time, where it cannot race.
type OrderBuilder struct {
	maxQuantity int
	currency    string
	issuer      *TicketIssuer
}

func NewOrderBuilder(maxQuantity int, currency string, issuer *TicketIssuer) *OrderBuilder {
	return &OrderBuilder{
		maxQuantity: maxQuantity,
		currency:    currency,
		issuer:      issuer,
	}
}

// BuildDraft applies the validation rules in order; the first failure wins.
func (b *OrderBuilder) BuildDraft(snap *EventSnapshot, req PlaceOrderRequest) (*OrderDraft, error) {
	if snap == nil || snap.Status != models.EventStatusPublished {
		return nil, ErrEventNotAvailable
	}

	tier, ok := snap.Tier(req.TierID)
	if !ok {
		return nil, ErrTierNotFound
	}

	// The elapsed end of the window is enforced by the ledger; the not-yet
	// open start only exists in the catalog snapshot, so it is checked here.
	if !tier.SalesStart.IsZero() && time.Now().Before(tier.SalesStart) {
		return nil, ErrTierClosed
	}

	if req.Quantity < 1 || req.Quantity > b.maxQuantity {
		return nil, ErrQuantityExceedsLimit
	}

	if len(req.Attendees) != req.Quantity {
		return nil, ErrAttendeeCountMismatch
	}

	subtotal := tier.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))

	draft := &OrderDraft{
		EventID:      snap.EventID,
		BuyerID:      req.BuyerID,
		TierID:       tier.ID,
		TierName:     tier.Name,
		Quantity:     req.Quantity,
		UnitPrice:    tier.Price,
		Subtotal:     subtotal,
		Total:        subtotal,
		Currency:     b.currency,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		Tickets:      make([]TicketDraft, 0, req.Quantity),
	}

	for _, attendee := range req.Attendees {
		token, err := b.issuer.NextToken()
		if err != nil {
			return nil, err
		}
		draft.Tickets = append(draft.Tickets, TicketDraft{
			Token:         token,
			AttendeeName:  attendee.Name,
			AttendeeEmail: attendee.Email,
		})
	}

	return draft, nil
}
