package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"tickethub/models"
	"tickethub/utils"
)

// OrderNotifier pushes an order-confirmed message to the buyer's private
// channel. Delivery is best effort and never affects the order outcome;
// PubNub sits behind a circuit breaker since it is an external service.
type OrderNotifier struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewOrderNotifier(pn *pubnub.PubNub) *OrderNotifier {
	return &OrderNotifier{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (n *OrderNotifier) OrderConfirmed(ctx context.Context, order *models.Order) {
	if n == nil || n.pubnub == nil {
		return
	}

	channel := fmt.Sprintf("user-%s", order.BuyerID)
	_, err := n.breaker.Execute(ctx, func() (any, error) {
		_, status, err := n.pubnub.Publish().
			Channel(channel).
			Message(map[string]any{
				"type":     "order_confirmed",
				"order_id": order.ID,
				"event_id": order.EventID,
				"total":    order.Total,
				"currency": order.Currency,
				"tickets":  len(order.TicketIDs),
			}).
			Execute()
		if err != nil {
			return nil, err
		}
		if status.Error != nil {
			return nil, fmt.Errorf("pubnub publish status %d: %w", status.StatusCode, status.Error)
		}
		return nil, nil
	})
	if err != nil {
		slog.Warn("order confirmation push failed",
			"order_id", order.ID,
			"buyer_id", order.BuyerID,
			"error", err,
		)
	}
}
