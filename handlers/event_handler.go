package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"tickethub/services"
)

type EventHandler struct {
	app    *pocketbase.PocketBase
	ledger services.InventoryLedger
}

func NewEventHandler(app *pocketbase.PocketBase, ledger services.InventoryLedger) *EventHandler {
	return &EventHandler{
		app:    app,
		ledger: ledger,
	}
}

// GetAvailability - Per-tier live availability for an event. Remaining comes
// from the ledger, not the catalog's display copy.
func (h *EventHandler) GetAvailability(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	event, err := h.app.FindRecordById("events", eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", err)
	}

	tiers, err := h.app.FindRecordsByFilter(
		"tiers",
		"event = {:eventId}",
		"+created",
		-1,
		0,
		map[string]any{"eventId": eventID},
	)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load tiers", err)
	}

	ctx := e.Request.Context()
	result := make([]map[string]any, 0, len(tiers))
	for _, tier := range tiers {
		remaining, err := h.ledger.Remaining(ctx, tier.Id)
		if err != nil {
			// Fall back to the catalog copy if the tier is not seeded yet.
			remaining = tier.GetInt("remaining")
		}

		result = append(result, map[string]any{
			"id":        tier.Id,
			"name":      tier.GetString("name"),
			"price":     tier.GetFloat("price"),
			"quantity":  tier.GetInt("quantity"),
			"remaining": remaining,
			"sold_out":  remaining == 0,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": event.Id,
		"status":   event.GetString("status"),
		"tiers":    result,
	})
}
