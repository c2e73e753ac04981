package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickethub/config"
	"tickethub/models"
)

type orderFixture struct {
	service *OrderService
	store   *MemoryStore
	ledger  *MemoryLedger
}

func newOrderFixture(t *testing.T, remaining, total int) *orderFixture {
	t.Helper()

	store := NewMemoryStore()
	store.SeedEvent(&EventSnapshot{
		EventID: "event-1",
		Status:  models.EventStatusPublished,
		Tiers: []TierSnapshot{{
			ID:       "tier-1",
			Name:     "General Admission",
			Price:    decimal.NewFromFloat(25.50),
			Quantity: total,
		}},
	})

	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Seed(context.Background(), SeedEntry{
		TierID:    "tier-1",
		Remaining: remaining,
		Total:     total,
	}))

	cfg := &config.Config{
		OrderMaxQuantity:     10,
		OrderCurrency:        "usd",
		PlaceOrderAttempts:   3,
		ReleaseRetryAttempts: 3,
		ReleaseRetryDelay:    time.Millisecond,
	}
	builder := NewOrderBuilder(cfg.OrderMaxQuantity, cfg.OrderCurrency, NewTicketIssuer())

	return &orderFixture{
		service: NewOrderService(store, ledger, builder, nil, cfg),
		store:   store,
		ledger:  ledger,
	}
}

func (f *orderFixture) remaining(t *testing.T) int {
	t.Helper()
	remaining, err := f.ledger.Remaining(context.Background(), "tier-1")
	require.NoError(t, err)
	return remaining
}

func placeRequest(qty int) PlaceOrderRequest {
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

func TestOrderService_PlaceOrder_Success(t *testing.T) {
	f := newOrderFixture(t, 10, 10)

	order, tickets, err := f.service.PlaceOrder(context.Background(), placeRequest(3))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
	assert.InDelta(t, 76.50, order.Total, 0.001)
	assert.Equal(t, "usd", order.Currency)

	// One order, matching ticket set, remaining decremented by exactly qty.
	require.Len(t, tickets, 3)
	assert.Len(t, order.TicketIDs, 3)
	assert.Equal(t, 3, f.store.TicketCount(order.ID))
	assert.Equal(t, 7, f.remaining(t))

	for _, ticket := range tickets {
		assert.Equal(t, order.ID, ticket.OrderID)
		assert.Equal(t, models.TicketStatusReserved, ticket.Status)
		assert.Equal(t, "General Admission", ticket.TierName)
		assert.NotEmpty(t, ticket.Token)
	}
}

func TestOrderService_PlaceOrder_AttendeeMismatch_NoMutation(t *testing.T) {
	f := newOrderFixture(t, 10, 10)

	req := placeRequest(3)
	req.Attendees = req.Attendees[:2]

	_, _, err := f.service.PlaceOrder(context.Background(), req)
	assert.ErrorIs(t, err, ErrAttendeeCountMismatch)

	assert.Equal(t, 10, f.remaining(t))
	orders, err := f.service.ListOrders(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderService_PlaceOrder_DraftEvent_NoMutation(t *testing.T) {
	f := newOrderFixture(t, 10, 10)
	f.store.SeedEvent(&EventSnapshot{
		EventID: "event-1",
		Status:  models.EventStatusDraft,
		Tiers:   []TierSnapshot{{ID: "tier-1", Name: "GA", Price: decimal.NewFromInt(10), Quantity: 10}},
	})

	_, _, err := f.service.PlaceOrder(context.Background(), placeRequest(1))
	assert.ErrorIs(t, err, ErrEventNotAvailable)
	assert.Equal(t, 10, f.remaining(t))
}

func TestOrderService_PlaceOrder_QuantityAboveCap_NoMutation(t *testing.T) {
	f := newOrderFixture(t, 20, 20)

	_, _, err := f.service.PlaceOrder(context.Background(), placeRequest(11))
	assert.ErrorIs(t, err, ErrQuantityExceedsLimit)
	assert.Equal(t, 20, f.remaining(t))
}

func TestOrderService_PlaceOrder_InsufficientInventory(t *testing.T) {
	f := newOrderFixture(t, 2, 10)

	_, _, err := f.service.PlaceOrder(context.Background(), placeRequest(3))
	assert.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, 2, f.remaining(t))
}

func TestOrderService_PlaceOrder_PersistFailure_ReleasesReservation(t *testing.T) {
	f := newOrderFixture(t, 10, 10)
	f.store.FailSaves(3, errors.New("disk full"))

	_, _, err := f.service.PlaceOrder(context.Background(), placeRequest(4))
	assert.ErrorIs(t, err, ErrStorageConflict)

	// Every failed attempt must hand its reservation back.
	assert.Equal(t, 10, f.remaining(t))
	orders, err := f.service.ListOrders(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderService_PlaceOrder_TransientFailure_RetriesAndSucceeds(t *testing.T) {
	f := newOrderFixture(t, 10, 10)
	f.store.FailSaves(1, errors.New("token collision"))

	order, tickets, err := f.service.PlaceOrder(context.Background(), placeRequest(2))
	require.NoError(t, err)

	require.Len(t, tickets, 2)
	assert.Equal(t, 2, f.store.TicketCount(order.ID))
	// Net effect of release + fresh reservation is a single decrement.
	assert.Equal(t, 8, f.remaining(t))
}

func TestOrderService_PlaceOrder_TwoBuyersLastTicket(t *testing.T) {
	f := newOrderFixture(t, 1, 1)

	type outcome struct {
		order *models.Order
		err   error
	}
	results := make(chan outcome, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, _, err := f.service.PlaceOrder(context.Background(), placeRequest(1))
			results <- outcome{order: order, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for res := range results {
		if res.err == nil {
			wins++
			assert.Len(t, res.order.TicketIDs, 1)
		} else {
			losses++
			assert.ErrorIs(t, res.err, ErrInsufficientInventory)
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, f.remaining(t))
}

func TestOrderService_PlaceOrder_ConcurrentLoad_NoOversell(t *testing.T) {
	const total = 10
	const buyers = 50

	f := newOrderFixture(t, total, total)

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.service.PlaceOrder(context.Background(), placeRequest(1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientInventory)
		}
	}

	assert.Equal(t, total, successes)
	assert.Equal(t, 0, f.remaining(t))

	orders, err := f.service.ListOrders(context.Background(), "buyer-1")
	require.NoError(t, err)

	sold := 0
	for _, order := range orders {
		for _, item := range order.Items {
			sold += item.Quantity
		}
		assert.Equal(t, len(order.TicketIDs), order.Items[0].Quantity)
	}
	assert.Equal(t, total, sold)
}

func TestOrderService_CancelOrder_ReleasesInventory(t *testing.T) {
	f := newOrderFixture(t, 10, 10)

	order, _, err := f.service.PlaceOrder(context.Background(), placeRequest(3))
	require.NoError(t, err)
	require.Equal(t, 7, f.remaining(t))

	require.NoError(t, f.service.CancelOrder(context.Background(), "buyer-1", order.ID))
	assert.Equal(t, 10, f.remaining(t))

	cancelled, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	// Cancelling twice must not double-credit the tier.
	err = f.service.CancelOrder(context.Background(), "buyer-1", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
	assert.Equal(t, 10, f.remaining(t))
}

func TestOrderService_CancelOrder_ConcurrentDoubleCancel(t *testing.T) {
	f := newOrderFixture(t, 10, 10)

	// Another buyer's sale stays outstanding, so a double release would not
	// hit the ledger's remaining<=total guard; the store recheck must stop it.
	other := placeRequest(3)
	other.BuyerID = "buyer-2"
	_, _, err := f.service.PlaceOrder(context.Background(), other)
	require.NoError(t, err)

	order, _, err := f.service.PlaceOrder(context.Background(), placeRequest(3))
	require.NoError(t, err)
	require.Equal(t, 4, f.remaining(t))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.service.CancelOrder(context.Background(), "buyer-1", order.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var cancelled, rejected int
	for err := range errs {
		if err == nil {
			cancelled++
		} else {
			rejected++
			assert.ErrorIs(t, err, ErrOrderNotCancellable)
		}
	}

	assert.Equal(t, 1, cancelled)
	assert.Equal(t, 1, rejected)
	// Exactly one release of qty 3, never two.
	assert.Equal(t, 7, f.remaining(t))
}

type stuckLedger struct {
	*MemoryLedger
	releaseErr error
}

func (l *stuckLedger) Release(_ context.Context, _ string, _ int) error {
	return l.releaseErr
}

func TestOrderService_ReleaseRetry_StopsOnContextCancel(t *testing.T) {
	store := NewMemoryStore()
	ledger := &stuckLedger{
		MemoryLedger: NewMemoryLedger(),
		releaseErr:   errors.New("redis timeout"),
	}
	cfg := &config.Config{
		OrderMaxQuantity:     10,
		OrderCurrency:        "usd",
		PlaceOrderAttempts:   3,
		ReleaseRetryAttempts: 5,
		ReleaseRetryDelay:    time.Hour,
	}
	builder := NewOrderBuilder(cfg.OrderMaxQuantity, cfg.OrderCurrency, NewTicketIssuer())
	service := NewOrderService(store, ledger, builder, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	service.releaseWithRetry(ctx, "tier-1", 1)
	assert.Less(t, time.Since(start), time.Second,
		"a cancelled context must end the retry backoff immediately")
}

func TestOrderService_CancelOrder_WrongBuyer(t *testing.T) {
	f := newOrderFixture(t, 10, 10)

	order, _, err := f.service.PlaceOrder(context.Background(), placeRequest(1))
	require.NoError(t, err)

	err = f.service.CancelOrder(context.Background(), "someone-else", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 9, f.remaining(t))
}

func TestOrderService_ListOrders_OnlyOwnOrders(t *testing.T) {
	f := newOrderFixture(t, 10, 10)

	_, _, err := f.service.PlaceOrder(context.Background(), placeRequest(1))
	require.NoError(t, err)

	other := placeRequest(2)
	other.BuyerID = "buyer-2"
	_, _, err = f.service.PlaceOrder(context.Background(), other)
	require.NoError(t, err)

	orders, err := f.service.ListOrders(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "buyer-1", orders[0].BuyerID)
}
