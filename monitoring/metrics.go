package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Order placement outcomes per event",
		},
		[]string{"event_id", "status"},
	)

	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservations_total",
			Help: "Ledger reserve/release outcomes per tier",
		},
		[]string{"tier_id", "outcome"},
	)

	placementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_placement_duration_seconds",
			Help:    "End-to-end duration of order placement",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"event_id"},
	)

	inventoryRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_remaining",
			Help: "Remaining quantity per tier as seen by the ledger",
		},
		[]string{"tier_id"},
	)

	invariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invariant_violations_total",
			Help: "Detected inventory or compensation invariant violations",
		},
		[]string{"component"},
	)
)

func TrackOrderPlaced(eventID, status string) {
	ordersPlaced.WithLabelValues(eventID, status).Inc()
}

func TrackReservation(tierID, outcome string) {
	reservations.WithLabelValues(tierID, outcome).Inc()
}

func ObservePlacementDuration(eventID string, d time.Duration) {
	placementDuration.WithLabelValues(eventID).Observe(d.Seconds())
}

func TrackInvariantViolation(component string) {
	invariantViolations.WithLabelValues(component).Inc()
}

// Monitor periodically mirrors the Redis ledger's remaining counts into the
// inventory gauge.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectInventoryMetrics(context.Background())
	}
}

func (m *Monitor) collectInventoryMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "inventory:*").Result()
	if err != nil {
		return
	}

	for _, key := range keys {
		tierID := key[len("inventory:"):]
		val, err := m.redis.HGet(ctx, key, "remaining").Result()
		if err != nil {
			continue
		}
		remaining, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		inventoryRemaining.WithLabelValues(tierID).Set(float64(remaining))
	}
}
