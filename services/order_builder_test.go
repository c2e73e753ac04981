package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickethub/models"
)

func testSnapshot(status models.EventStatus) *EventSnapshot {
	return &EventSnapshot{
		EventID: "event-1",
		Status:  status,
		Tiers: []TierSnapshot{
			{
				ID:       "tier-1",
				Name:     "General Admission",
				Price:    decimal.NewFromFloat(25.50),
				Quantity: 100,
			},
			{
				ID:       "tier-2",
				Name:     "VIP",
				Price:    decimal.NewFromFloat(120),
				Quantity: 20,
			},
		},
	}
}

func testRequest(qty int) PlaceOrderRequest {
	attendees := make([]models.Attendee, qty)
	for i := range attendees {
		attendees[i] = models.Attendee{Name: "Guest", Email: "guest@example.com"}
	}
	return PlaceOrderRequest{
		BuyerID:      "buyer-1",
		EventID:      "event-1",
		TierID:       "tier-1",
		Quantity:     qty,
		ContactName:  "Jamie Buyer",
		ContactEmail: "jamie@example.com",
		Attendees:    attendees,
	}
}

func newTestBuilder() *OrderBuilder {
	return NewOrderBuilder(10, "usd", NewTicketIssuer())
}

func TestOrderBuilder_BuildDraft_Success(t *testing.T) {
	builder := newTestBuilder()

	draft, err := builder.BuildDraft(testSnapshot(models.EventStatusPublished), testRequest(3))
	require.NoError(t, err)

	assert.Equal(t, "event-1", draft.EventID)
	assert.Equal(t, "tier-1", draft.TierID)
	assert.Equal(t, "General Admission", draft.TierName)
	assert.Equal(t, 3, draft.Quantity)
	assert.Equal(t, "usd", draft.Currency)

	// subtotal = price * quantity, total = sum of line subtotals
	assert.True(t, draft.Subtotal.Equal(decimal.NewFromFloat(76.50)), "subtotal was %s", draft.Subtotal)
	assert.True(t, draft.Total.Equal(draft.Subtotal))

	require.Len(t, draft.Tickets, 3)
	seen := make(map[string]struct{})
	for _, ticket := range draft.Tickets {
		assert.NotEmpty(t, ticket.Token)
		_, dup := seen[ticket.Token]
		assert.False(t, dup, "duplicate token within draft")
		seen[ticket.Token] = struct{}{}
	}
}

func TestOrderBuilder_BuildDraft_EventNotPublished(t *testing.T) {
	builder := newTestBuilder()

	for _, status := range []models.EventStatus{models.EventStatusDraft, models.EventStatusArchived} {
		_, err := builder.BuildDraft(testSnapshot(status), testRequest(1))
		assert.ErrorIs(t, err, ErrEventNotAvailable)
	}
}

func TestOrderBuilder_BuildDraft_TierNotFound(t *testing.T) {
	builder := newTestBuilder()

	req := testRequest(1)
	req.TierID = "tier-unknown"

	_, err := builder.BuildDraft(testSnapshot(models.EventStatusPublished), req)
	assert.ErrorIs(t, err, ErrTierNotFound)
}

func TestOrderBuilder_BuildDraft_QuantityBounds(t *testing.T) {
	builder := newTestBuilder()
	snap := testSnapshot(models.EventStatusPublished)

	_, err := builder.BuildDraft(snap, testRequest(0))
	assert.ErrorIs(t, err, ErrQuantityExceedsLimit)

	_, err = builder.BuildDraft(snap, testRequest(11))
	assert.ErrorIs(t, err, ErrQuantityExceedsLimit)

	_, err = builder.BuildDraft(snap, testRequest(10))
	assert.NoError(t, err)
}

func TestOrderBuilder_BuildDraft_SalesWindow(t *testing.T) {
	builder := newTestBuilder()

	snap := testSnapshot(models.EventStatusPublished)
	snap.Tiers[0].SalesStart = time.Now().Add(time.Hour)

	_, err := builder.BuildDraft(snap, testRequest(1))
	assert.ErrorIs(t, err, ErrTierClosed)

	// An already-open window, or no window at all, sells normally.
	snap.Tiers[0].SalesStart = time.Now().Add(-time.Hour)
	_, err = builder.BuildDraft(snap, testRequest(1))
	assert.NoError(t, err)
}

func TestOrderBuilder_BuildDraft_AttendeeCountMismatch(t *testing.T) {
	builder := newTestBuilder()

	req := testRequest(3)
	req.Attendees = req.Attendees[:2]

	_, err := builder.BuildDraft(testSnapshot(models.EventStatusPublished), req)
	assert.ErrorIs(t, err, ErrAttendeeCountMismatch)
}

func TestOrderBuilder_BuildDraft_ValidationOrder(t *testing.T) {
	builder := newTestBuilder()

	// Several rules broken at once: the event status check wins.
	req := testRequest(11)
	req.TierID = "tier-unknown"
	req.Attendees = nil

	_, err := builder.BuildDraft(testSnapshot(models.EventStatusDraft), req)
	assert.ErrorIs(t, err, ErrEventNotAvailable)

	// Published event, bad tier beats bad quantity.
	_, err = builder.BuildDraft(testSnapshot(models.EventStatusPublished), req)
	assert.ErrorIs(t, err, ErrTierNotFound)
}

func TestOrderBuilder_BuildDraft_DoesNotCheckAvailability(t *testing.T) {
	builder := newTestBuilder()

	// The snapshot carries no remaining count at all: availability belongs
	// to the ledger at reservation time.
	draft, err := builder.BuildDraft(testSnapshot(models.EventStatusPublished), testRequest(10))
	require.NoError(t, err)
	assert.Equal(t, 10, draft.Quantity)
}
