package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tickethub/models"
)

// MemoryStore is an in-process OrderStore used by the memory backend and the
// tests. It enforces the same constraints as the durable store: the
// order+tickets write is all-or-nothing and ticket tokens are unique forever,
// cancelled tickets included.
type MemoryStore struct {
	mu         sync.Mutex
	snapshots  map[string]*EventSnapshot
	orders     map[string]*models.Order
	tickets    map[string]*models.Ticket
	usedTokens map[string]struct{}
	nextID     int

	// Fault injection for exercising the compensation path.
	failSaves int
	failErr   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:  make(map[string]*EventSnapshot),
		orders:     make(map[string]*models.Order),
		tickets:    make(map[string]*models.Ticket),
		usedTokens: make(map[string]struct{}),
	}
}

func (s *MemoryStore) SeedEvent(snap *EventSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.EventID] = snap
}

// FailSaves makes the next n SaveOrderWithTickets calls fail with err.
func (s *MemoryStore) FailSaves(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = n
	s.failErr = err
}

func (s *MemoryStore) EventSnapshot(_ context.Context, eventID string) (*EventSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[eventID]
	if !ok {
		return nil, ErrEventNotAvailable
	}
	// Copy so callers validate against a stable view.
	view := *snap
	view.Tiers = append([]TierSnapshot(nil), snap.Tiers...)
	return &view, nil
}

func (s *MemoryStore) SaveOrderWithTickets(_ context.Context, draft *OrderDraft) (*models.Order, []models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSaves > 0 {
		s.failSaves--
		return nil, nil, s.failErr
	}

	for _, t := range draft.Tickets {
		if _, taken := s.usedTokens[t.Token]; taken {
			return nil, nil, fmt.Errorf("ticket token already exists")
		}
	}

	s.nextID++
	order := &models.Order{
		ID:            fmt.Sprintf("order-%d", s.nextID),
		EventID:       draft.EventID,
		BuyerID:       draft.BuyerID,
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentStatusUnpaid,
		Total:         draft.Total.InexactFloat64(),
		Currency:      draft.Currency,
		Items: []models.OrderItem{{
			TierID:    draft.TierID,
			TierName:  draft.TierName,
			Quantity:  draft.Quantity,
			UnitPrice: draft.UnitPrice.InexactFloat64(),
			Subtotal:  draft.Subtotal.InexactFloat64(),
		}},
		ContactName:  draft.ContactName,
		ContactEmail: draft.ContactEmail,
		CreatedAt:    time.Now().UTC(),
	}

	tickets := make([]models.Ticket, 0, len(draft.Tickets))
	for _, t := range draft.Tickets {
		s.nextID++
		ticket := models.Ticket{
			ID:            fmt.Sprintf("ticket-%d", s.nextID),
			EventID:       draft.EventID,
			OrderID:       order.ID,
			TierID:        draft.TierID,
			TierName:      draft.TierName,
			UnitPrice:     draft.UnitPrice.InexactFloat64(),
			Token:         t.Token,
			Status:        models.TicketStatusReserved,
			AttendeeName:  t.AttendeeName,
			AttendeeEmail: t.AttendeeEmail,
			CreatedAt:     order.CreatedAt,
		}
		tickets = append(tickets, ticket)
		order.TicketIDs = append(order.TicketIDs, ticket.ID)
	}

	// Commit point: everything below must succeed together.
	s.orders[order.ID] = order
	for i := range tickets {
		s.tickets[tickets[i].ID] = &tickets[i]
		s.usedTokens[tickets[i].Token] = struct{}{}
	}

	result := *order
	return &result, tickets, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	result := *order
	return &result, nil
}

func (s *MemoryStore) ListOrdersByBuyer(_ context.Context, buyerID string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Order
	for _, order := range s.orders {
		if order.BuyerID == buyerID {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (s *MemoryStore) CancelOrder(_ context.Context, orderID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	// Recheck under the lock so two racing cancels cannot both release.
	if order.Status == models.OrderStatusCancelled || order.PaymentStatus != models.PaymentStatusUnpaid {
		return nil, ErrOrderNotCancellable
	}

	order.Status = models.OrderStatusCancelled
	for _, ticketID := range order.TicketIDs {
		if ticket, ok := s.tickets[ticketID]; ok {
			ticket.Status = models.TicketStatusCancelled
		}
	}

	released := make(map[string]int)
	for _, item := range order.Items {
		released[item.TierID] += item.Quantity
	}
	return released, nil
}

// TicketCount reports how many persisted tickets reference the order.
func (s *MemoryStore) TicketCount(orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ticket := range s.tickets {
		if ticket.OrderID == orderID {
			n++
		}
	}
	return n
}
