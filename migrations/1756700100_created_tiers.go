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

		collection := core.NewBaseCollection("tiers")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "event",
				Required:     true,
				CollectionId: events.Id,
				MaxSelect:    1,
			},
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "description"},
			&core.NumberField{Name: "price", Required: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "quantity", Required: true, Min: types.Pointer(1.0), OnlyInt: true},
			// Catalog display copy; the ledger owns the authoritative count.
			&core.NumberField{Name: "remaining", Min: types.Pointer(0.0), OnlyInt: true},
			&core.DateField{Name: "sales_start"},
			&core.DateField{Name: "sales_end"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tiers_event", false, "event", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tiers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
