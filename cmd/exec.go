package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"tickethub/config"
	"tickethub/handlers"
	_ "tickethub/migrations"
	"tickethub/monitoring"
	"tickethub/security"
	"tickethub/services"
	"tickethub/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis (not needed for the memory inventory backend)
	var redisClient *redis.Client
	if cfg.InventoryBackend == "redis" {
		redisClient = utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
	}

	// Initialize the inventory ledger
	var ledger services.InventoryLedger
	switch cfg.InventoryBackend {
	case "memory":
		slog.Warn("using in-memory inventory ledger; counters do not survive restarts")
		ledger = services.NewMemoryLedger()
	default:
		ledger = services.NewRedisLedger(redisClient)
	}

	// Initialize PubNub (optional)
	var notifier *services.OrderNotifier
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		notifier = services.NewOrderNotifier(pubnub.NewPubNub(pnConfig))
	}

	// Initialize services
	issuer := services.NewTicketIssuer()
	builder := services.NewOrderBuilder(cfg.OrderMaxQuantity, cfg.OrderCurrency, issuer)
	store := services.NewPBStore(app)
	orderService := services.NewOrderService(store, ledger, builder, notifier, cfg)

	// Initialize handlers
	orderHandler := handlers.NewOrderHandler(app, orderService)
	eventHandler := handlers.NewEventHandler(app, ledger)

	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := seedInventory(ctx, app, ledger); err != nil {
			log.Printf("Error seeding inventory ledger: %v", err)
		}

		if cfg.EnableMetrics && redisClient != nil {
			monitoring.NewMonitor(redisClient)
		}

		// Order endpoints
		e.Router.POST("/api/v1/orders", orderHandler.PlaceOrder).BindFunc(limiter.Limit)
		e.Router.GET("/api/v1/orders", orderHandler.ListOrders)
		e.Router.POST("/api/v1/orders/{orderId}/cancel", orderHandler.CancelOrder)

		// Event endpoints
		e.Router.GET("/api/v1/events/{eventId}/availability", eventHandler.GetAvailability)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", func(e *core.RequestEvent) error {
				promhttp.Handler().ServeHTTP(e.Response, e.Request)
				return nil
			})
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(redisClient); err != nil {
					return e.JSON(http.StatusServiceUnavailable, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupInventoryHooks(app, ledger)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		return err
	}
	return nil
}

// seedInventory rebuilds the ledger's counters from the durable tier records
// on startup. A tier is closed for sales unless its event is published.
func seedInventory(ctx context.Context, app *pocketbase.PocketBase, ledger services.InventoryLedger) error {
	var rows []dbx.NullStringMap
	err := app.DB().NewQuery(`
		SELECT t.id AS id, t.remaining AS remaining, t.quantity AS quantity,
		       t.sales_end AS sales_end, e.status AS status
		FROM tiers t
		JOIN events e ON e.id = t.event
	`).All(&rows)
	if err != nil {
		return err
	}

	seeded := 0
	for _, row := range rows {
		remaining, _ := strconv.Atoi(row["remaining"].String)
		total, _ := strconv.Atoi(row["quantity"].String)

		var salesEnd time.Time
		if raw := row["sales_end"].String; raw != "" {
			if dt, err := types.ParseDateTime(raw); err == nil {
				salesEnd = dt.Time()
			}
		}

		entry := services.SeedEntry{
			TierID:    row["id"].String,
			Remaining: remaining,
			Total:     total,
			Closed:    row["status"].String != "published",
			SalesEnd:  salesEnd,
		}
		if err := ledger.Seed(ctx, entry); err != nil {
			log.Printf("Error seeding tier %s: %v", entry.TierID, err)
			continue
		}
		seeded++
	}

	log.Printf("Seeded %d tiers into the inventory ledger", seeded)
	return nil
}

// setupInventoryHooks keeps the ledger in step with catalog changes: new
// tiers get seeded, and publishing or unpublishing an event opens or closes
// sales for all of its tiers.
func setupInventoryHooks(app *pocketbase.PocketBase, ledger services.InventoryLedger) {
	app.OnRecordCreateRequest("tiers").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		ctx := e.Request.Context()
		quantity := e.Record.GetInt("quantity")

		event, err := e.App.FindRecordById("events", e.Record.GetString("event"))
		closed := true
		if err == nil {
			closed = event.GetString("status") != "published"
		}

		entry := services.SeedEntry{
			TierID:    e.Record.Id,
			Remaining: quantity,
			Total:     quantity,
			Closed:    closed,
			SalesEnd:  e.Record.GetDateTime("sales_end").Time(),
		}
		if err := ledger.Seed(ctx, entry); err != nil {
			slog.Error("Failed to seed new tier into ledger",
				"tier_id", e.Record.Id,
				"error", err,
			)
		}
		return nil
	})

	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		ctx := e.Request.Context()
		closed := e.Record.GetString("status") != "published"

		tiers, err := e.App.FindRecordsByFilter(
			"tiers",
			"event = {:eventId}",
			"",
			-1,
			0,
			map[string]any{"eventId": e.Record.Id},
		)
		if err != nil {
			slog.Error("Failed to load tiers for ledger sync",
				"event_id", e.Record.Id,
				"error", err,
			)
			return nil
		}

		for _, tier := range tiers {
			if err := ledger.SetClosed(ctx, tier.Id, closed); err != nil {
				slog.Error("Failed to sync tier sales state",
					"tier_id", tier.Id,
					"closed", closed,
					"error", err,
				)
			}
		}
		return nil
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
