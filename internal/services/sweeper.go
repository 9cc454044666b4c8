package services

import (
	"context"
	"time"

	applog "tradepost/internal/log"
	"tradepost/internal/metrics"
)

// Sweeper is the periodic catch-all: auctions the scheduler missed, offers
// past their deadline and trades nobody finished reviewing.
type Sweeper struct {
	Auctions     *AuctionService
	Offers       *OfferService
	Transactions *TransactionService
	Interval     time.Duration
	ReviewWindow time.Duration
}

type SweepResult struct {
	AuctionsClosed int `json:"auctionsClosed"`
	OffersExpired  int `json:"offersExpired"`
	AutoCompleted  int `json:"autoCompleted"`
}

// Sweep runs one pass. Failures of one stage are logged and do not stop
// the others.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	var res SweepResult
	var err error
	if res.AuctionsClosed, err = s.Auctions.CloseDue(ctx); err != nil {
		applog.Fail("sweep.auctions.fail", err, nil)
	}
	if res.OffersExpired, err = s.Offers.ExpireStale(ctx); err != nil {
		applog.Fail("sweep.offers.fail", err, nil)
	}
	if s.ReviewWindow > 0 {
		if res.AutoCompleted, err = s.Transactions.AutoComplete(ctx, s.ReviewWindow); err != nil {
			applog.Fail("sweep.reviews.fail", err, nil)
		}
	}
	if res != (SweepResult{}) {
		applog.Event("sweep.done", map[string]any{
			"auctions_closed": res.AuctionsClosed,
			"offers_expired":  res.OffersExpired,
			"auto_completed":  res.AutoCompleted,
		})
	}
	return res
}

// Run sweeps every Interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}
