package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tickethub/config"
	"tickethub/models"
	"tickethub/monitoring"
)

// OrderService coordinates the purchase protocol: snapshot read, validation,
// ledger reservation, then the atomic order+tickets write. The ledger call is
// the only contention point; once a reservation is held, a failed persist is
// always compensated by releasing it, so inventory is never silently lost.
type OrderService struct {
	store    OrderStore
	ledger   InventoryLedger
	builder  *OrderBuilder
	notifier *OrderNotifier

	placeAttempts   int
	releaseAttempts int
	releaseDelay    time.Duration
}

func NewOrderService(store OrderStore, ledger InventoryLedger, builder *OrderBuilder, notifier *OrderNotifier, cfg *config.Config) *OrderService {
	return &OrderService{
		store:           store,
		ledger:          ledger,
		builder:         builder,
		notifier:        notifier,
		placeAttempts:   cfg.PlaceOrderAttempts,
		releaseAttempts: cfg.ReleaseRetryAttempts,
		releaseDelay:    cfg.ReleaseRetryDelay,
	}
}

// PlaceOrder runs the full sequence and retries it from a fresh snapshot on
// transient storage failures (including ticket-token collisions, which get
// new tokens on the next pass). Validation and business rejections are final
// on the first attempt.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, []models.Ticket, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= s.placeAttempts; attempt++ {
		order, tickets, err := s.placeOnce(ctx, req)
		if err == nil {
			monitoring.TrackOrderPlaced(req.EventID, "success")
			monitoring.ObservePlacementDuration(req.EventID, time.Since(start))

			if s.notifier != nil {
				go s.notifier.OrderConfirmed(context.WithoutCancel(ctx), order)
			}
			return order, tickets, nil
		}

		if !isTransient(err) {
			monitoring.TrackOrderPlaced(req.EventID, "rejected")
			return nil, nil, err
		}

		lastErr = err
		slog.Warn("order persist failed, restarting from fresh snapshot",
			"event_id", req.EventID,
			"tier_id", req.TierID,
			"attempt", attempt,
			"error", err,
		)
	}

	monitoring.TrackOrderPlaced(req.EventID, "conflict")
	return nil, nil, fmt.Errorf("%w: %d attempts exhausted: %v", ErrStorageConflict, s.placeAttempts, lastErr)
}

func (s *OrderService) placeOnce(ctx context.Context, req PlaceOrderRequest) (*models.Order, []models.Ticket, error) {
	snap, err := s.store.EventSnapshot(ctx, req.EventID)
	if err != nil {
		return nil, nil, err
	}

	draft, err := s.builder.BuildDraft(snap, req)
	if err != nil {
		return nil, nil, err
	}

	if err := s.ledger.Reserve(ctx, draft.TierID, draft.Quantity, time.Now()); err != nil {
		monitoring.TrackReservation(draft.TierID, "rejected")
		return nil, nil, err
	}
	monitoring.TrackReservation(draft.TierID, "reserved")

	order, tickets, err := s.store.SaveOrderWithTickets(ctx, draft)
	if err != nil {
		// Holding a reservation without a matching order is the one state
		// this system must never end up in.
		s.releaseWithRetry(ctx, draft.TierID, draft.Quantity)
		return nil, nil, fmt.Errorf("persist order: %w", err)
	}

	return order, tickets, nil
}

// releaseWithRetry hands a reservation back to the ledger, retrying through
// transient failures. Exhausting the budget, or the ledger reporting that the
// release would overflow the tier, is escalated as an invariant violation.
func (s *OrderService) releaseWithRetry(ctx context.Context, tierID string, qty int) {
	var lastErr error
	for attempt := 1; attempt <= s.releaseAttempts; attempt++ {
		err := s.ledger.Release(ctx, tierID, qty)
		if err == nil {
			monitoring.TrackReservation(tierID, "released")
			return
		}
		lastErr = err
		if errors.Is(err, ErrInvariantViolation) || errors.Is(err, ErrTierNotFound) {
			break
		}

		select {
		case <-time.After(s.releaseDelay):
			continue
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		break
	}

	monitoring.TrackInvariantViolation("inventory_release")
	slog.Error("INVARIANT VIOLATION: could not release reserved inventory",
		"tier_id", tierID,
		"quantity", qty,
		"error", lastErr,
	)
}

func (s *OrderService) ListOrders(ctx context.Context, buyerID string) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels an unpaid order and hands its reserved quantity back to
// the ledger. The status flip on the order and its tickets is one atomic
// write, and the store rechecks cancellability inside that write, so two
// racing cancels release at most once. The release follows the write; a crash
// in between leaves the inventory under-credited (sold out too early) rather
// than oversold.
func (s *OrderService) CancelOrder(ctx context.Context, buyerID, orderID string) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != buyerID {
		return ErrOrderNotFound
	}
	if order.Status == models.OrderStatusCancelled || order.PaymentStatus != models.PaymentStatusUnpaid {
		return ErrOrderNotCancellable
	}

	released, err := s.store.CancelOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	for tierID, qty := range released {
		s.releaseWithRetry(ctx, tierID, qty)
	}

	slog.Info("order cancelled",
		"order_id", orderID,
		"buyer_id", buyerID,
	)
	return nil
}

// isTransient reports whether the whole sequence is worth restarting.
// Client-input and business-rule rejections are final; so are invariant
// violations, which need an operator rather than a retry.
func isTransient(err error) bool {
	for _, terminal := range []error{
		ErrEventNotAvailable,
		ErrTierNotFound,
		ErrTierClosed,
		ErrQuantityExceedsLimit,
		ErrAttendeeCountMismatch,
		ErrInsufficientInventory,
		ErrInvariantViolation,
	} {
		if errors.Is(err, terminal) {
			return false
		}
	}
	return true
}
