package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts applied transaction status changes
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepost_transaction_transitions_total",
			Help: "Transaction status transitions applied",
		},
		[]string{"type", "to"},
	)

	// Conflicts counts writes rejected by the version check
	Conflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepost_write_conflicts_total",
			Help: "Optimistic concurrency conflicts",
		},
		[]string{"entity"},
	)

	// Bids counts bid attempts by outcome
	Bids = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepost_bids_total",
			Help: "Bid attempts by outcome",
		},
		[]string{"outcome"},
	)

	AuctionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepost_auctions_closed_total",
			Help: "Auctions closed, by whether they had a winner",
		},
		[]string{"result"},
	)

	Offers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepost_offers_total",
			Help: "Offer state changes",
		},
		[]string{"status"},
	)

	// WSClients tracks connected websocket clients
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradepost_ws_clients",
			Help: "Connected websocket clients",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradepost_sweep_duration_seconds",
			Help:    "Duration of one sweeper pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	Archived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepost_archived_transactions_total",
			Help: "Transaction records written to the archive",
		},
		[]string{"result"},
	)
)
