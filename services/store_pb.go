package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"tickethub/models"
)

// PBStore persists orders and tickets in PocketBase collections. The
// order+tickets write runs inside a single storage transaction, and the
// unique index on tickets.token turns a token collision into a failed
// transaction the coordinator can retry.
type PBStore struct {
	app core.App
}

func NewPBStore(app core.App) *PBStore {
	return &PBStore{app: app}
}

func (s *PBStore) EventSnapshot(ctx context.Context, eventID string) (*EventSnapshot, error) {
	event, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		return nil, ErrEventNotAvailable
	}

	tiers, err := s.app.FindRecordsByFilter(
		"tiers",
		"event = {:eventId}",
		"+created",
		-1,
		0,
		map[string]any{"eventId": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}

	snap := &EventSnapshot{
		EventID: event.Id,
		Status:  models.EventStatus(event.GetString("status")),
		Tiers:   make([]TierSnapshot, 0, len(tiers)),
	}
	for _, tier := range tiers {
		snap.Tiers = append(snap.Tiers, TierSnapshot{
			ID:         tier.Id,
			Name:       tier.GetString("name"),
			Price:      decimal.NewFromFloat(tier.GetFloat("price")),
			Quantity:   tier.GetInt("quantity"),
			SalesStart: tier.GetDateTime("sales_start").Time(),
			SalesEnd:   tier.GetDateTime("sales_end").Time(),
		})
	}
	return snap, nil
}

func (s *PBStore) SaveOrderWithTickets(ctx context.Context, draft *OrderDraft) (*models.Order, []models.Ticket, error) {
	var order *models.Order
	var tickets []models.Ticket

	err := s.app.RunInTransaction(func(txApp core.App) error {
		ordersCol, err := txApp.FindCollectionByNameOrId("orders")
		if err != nil {
			return err
		}
		ticketsCol, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		items := []models.OrderItem{{
			TierID:    draft.TierID,
			TierName:  draft.TierName,
			Quantity:  draft.Quantity,
			UnitPrice: draft.UnitPrice.InexactFloat64(),
			Subtotal:  draft.Subtotal.InexactFloat64(),
		}}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("marshal items: %w", err)
		}

		orderRec := core.NewRecord(ordersCol)
		orderRec.Set("event", draft.EventID)
		orderRec.Set("buyer", draft.BuyerID)
		orderRec.Set("status", string(models.OrderStatusConfirmed))
		orderRec.Set("payment_status", string(models.PaymentStatusUnpaid))
		orderRec.Set("total", draft.Total.InexactFloat64())
		orderRec.Set("currency", draft.Currency)
		orderRec.Set("items", string(itemsJSON))
		orderRec.Set("contact_name", draft.ContactName)
		orderRec.Set("contact_email", draft.ContactEmail)
		if err := txApp.Save(orderRec); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		for _, t := range draft.Tickets {
			ticketRec := core.NewRecord(ticketsCol)
			ticketRec.Set("event", draft.EventID)
			ticketRec.Set("order", orderRec.Id)
			ticketRec.Set("tier", draft.TierID)
			ticketRec.Set("tier_name", draft.TierName)
			ticketRec.Set("unit_price", draft.UnitPrice.InexactFloat64())
			ticketRec.Set("token", t.Token)
			ticketRec.Set("status", string(models.TicketStatusReserved))
			ticketRec.Set("attendee_name", t.AttendeeName)
			ticketRec.Set("attendee_email", t.AttendeeEmail)
			if err := txApp.Save(ticketRec); err != nil {
				return fmt.Errorf("save ticket: %w", err)
			}
		}

		// Keep the catalog's display copy of remaining in step with the
		// ledger; the ledger stays the authority.
		tierRec, err := txApp.FindRecordById("tiers", draft.TierID)
		if err != nil {
			return fmt.Errorf("load tier: %w", err)
		}
		tierRec.Set("remaining", tierRec.GetInt("remaining")-draft.Quantity)
		if err := txApp.Save(tierRec); err != nil {
			return fmt.Errorf("save tier: %w", err)
		}

		order, tickets, err = s.loadOrderTx(txApp, orderRec.Id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return order, tickets, nil
}

func (s *PBStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, _, err := s.loadOrderTx(s.app, orderID)
	return order, err
}

func (s *PBStore) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	records, err := s.app.FindRecordsByFilter(
		"orders",
		"buyer = {:buyerId}",
		"-created",
		100,
		0,
		map[string]any{"buyerId": buyerID},
	)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}

	orders := make([]models.Order, 0, len(records))
	for _, rec := range records {
		order := recordToOrder(rec)

		var ticketIDs []string
		err := s.app.DB().
			NewQuery("SELECT id FROM tickets WHERE [[order]] = {:orderId}").
			Bind(dbx.Params{"orderId": rec.Id}).
			Column(&ticketIDs)
		if err != nil {
			return nil, fmt.Errorf("load ticket ids: %w", err)
		}
		order.TicketIDs = ticketIDs

		orders = append(orders, *order)
	}
	return orders, nil
}

func (s *PBStore) CancelOrder(ctx context.Context, orderID string) (map[string]int, error) {
	released := make(map[string]int)

	err := s.app.RunInTransaction(func(txApp core.App) error {
		orderRec, err := txApp.FindRecordById("orders", orderID)
		if err != nil {
			return ErrOrderNotFound
		}

		// Recheck inside the transaction so two racing cancels cannot both
		// flip the order and double-credit the tier.
		if models.OrderStatus(orderRec.GetString("status")) == models.OrderStatusCancelled ||
			models.PaymentStatus(orderRec.GetString("payment_status")) != models.PaymentStatusUnpaid {
			return ErrOrderNotCancellable
		}

		orderRec.Set("status", string(models.OrderStatusCancelled))
		if err := txApp.Save(orderRec); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		tickets, err := txApp.FindRecordsByFilter(
			"tickets",
			"order = {:orderId}",
			"",
			-1,
			0,
			map[string]any{"orderId": orderID},
		)
		if err != nil {
			return fmt.Errorf("load tickets: %w", err)
		}
		for _, ticketRec := range tickets {
			ticketRec.Set("status", string(models.TicketStatusCancelled))
			if err := txApp.Save(ticketRec); err != nil {
				return fmt.Errorf("save ticket: %w", err)
			}
		}

		items, err := parseItems(orderRec.GetString("items"))
		if err != nil {
			return err
		}
		for _, item := range items {
			released[item.TierID] += item.Quantity

			tierRec, err := txApp.FindRecordById("tiers", item.TierID)
			if err != nil {
				return fmt.Errorf("load tier: %w", err)
			}
			tierRec.Set("remaining", tierRec.GetInt("remaining")+item.Quantity)
			if err := txApp.Save(tierRec); err != nil {
				return fmt.Errorf("save tier: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (s *PBStore) loadOrderTx(app core.App, orderID string) (*models.Order, []models.Ticket, error) {
	orderRec, err := app.FindRecordById("orders", orderID)
	if err != nil {
		return nil, nil, ErrOrderNotFound
	}
	order := recordToOrder(orderRec)

	ticketRecs, err := app.FindRecordsByFilter(
		"tickets",
		"order = {:orderId}",
		"+created",
		-1,
		0,
		map[string]any{"orderId": orderID},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load tickets: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(ticketRecs))
	for _, rec := range ticketRecs {
		tickets = append(tickets, models.Ticket{
			ID:            rec.Id,
			EventID:       rec.GetString("event"),
			OrderID:       rec.GetString("order"),
			TierID:        rec.GetString("tier"),
			TierName:      rec.GetString("tier_name"),
			UnitPrice:     rec.GetFloat("unit_price"),
			Token:         rec.GetString("token"),
			Status:        models.TicketStatus(rec.GetString("status")),
			AttendeeName:  rec.GetString("attendee_name"),
			AttendeeEmail: rec.GetString("attendee_email"),
			CreatedAt:     rec.GetDateTime("created").Time(),
		})
		order.TicketIDs = append(order.TicketIDs, rec.Id)
	}
	return order, tickets, nil
}

func recordToOrder(rec *core.Record) *models.Order {
	items, _ := parseItems(rec.GetString("items"))
	return &models.Order{
		ID:            rec.Id,
		EventID:       rec.GetString("event"),
		BuyerID:       rec.GetString("buyer"),
		Status:        models.OrderStatus(rec.GetString("status")),
		PaymentStatus: models.PaymentStatus(rec.GetString("payment_status")),
		Total:         rec.GetFloat("total"),
		Currency:      rec.GetString("currency"),
		Items:         items,
		ContactName:   rec.GetString("contact_name"),
		ContactEmail:  rec.GetString("contact_email"),
		CreatedAt:     rec.GetDateTime("created").Time(),
	}
}

func parseItems(raw string) ([]models.OrderItem, error) {
	if raw == "" {
		return nil, nil
	}
	var items []models.OrderItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse order items: %w", err)
	}
	return items, nil
}
