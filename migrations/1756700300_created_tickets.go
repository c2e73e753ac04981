package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		orders, err := app.FindCollectionByNameOrId("orders")
		if err != nil {
			return err
		}
		tiers, err := app.FindCollectionByNameOrId("tiers")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "event",
				Required:     true,
				CollectionId: events.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "order",
				Required:     true,
				CollectionId: orders.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "tier",
				Required:     true,
				CollectionId: tiers.Id,
				MaxSelect:    1,
			},
			// Denormalized so later tier edits never touch sold tickets.
			&core.TextField{Name: "tier_name", Required: true},
			&core.NumberField{Name: "unit_price", Required: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "token", Required: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"reserved", "confirmed", "checked_in", "cancelled"},
			},
			&core.TextField{Name: "attendee_name", Required: true},
			&core.EmailField{Name: "attendee_email", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// Token uniqueness is global and permanent; a colliding insert fails
		// the whole order transaction.
		collection.AddIndex("idx_tickets_token", true, "token", "")
		collection.AddIndex("idx_tickets_order", false, "`order`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
