// Package metrics defines and registers the custom Prometheus metrics of the
// sweet shop API. It is the single source of truth for metric names, labels
// and help strings.
//
// All metrics are registered with the default Prometheus registry on package
// initialisation via promauto; /metrics exposes them together with the HTTP
// metrics collected by the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sweetshop"

// ── Inventory metrics ─────────────────────────────────────────────────────────

// UnitsPurchasedTotal counts units taken out of stock by successful purchases.
var UnitsPurchasedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_purchased_total",
		Help:      "Total number of sweet units sold through successful purchases.",
	},
)

// UnitsRestockedTotal counts units added by restocks.
var UnitsRestockedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_restocked_total",
		Help:      "Total number of sweet units added through restocks.",
	},
)

// PurchasesRejectedTotal counts purchases refused for insufficient stock.
var PurchasesRejectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchases_rejected_total",
		Help:      "Total number of purchases rejected because stock was insufficient.",
	},
)

// CatalogCacheTotal counts catalog cache lookups.
// Label:
//   - result: "hit" or "miss"
var CatalogCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_cache_total",
		Help:      "Total number of catalog cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success" or "failure"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, labelled by result.",
	},
	[]string{"result"},
)
