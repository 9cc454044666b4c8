package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradepost/internal/countdown"
	"tradepost/internal/domain"
	"tradepost/internal/format"
	"tradepost/internal/lifecycle"
	"tradepost/internal/live"
	applog "tradepost/internal/log"
	"tradepost/internal/metrics"
	"tradepost/internal/repos"
)

const (
	minAuctionLength = time.Minute
	maxAuctionLength = 30 * 24 * time.Hour
	maxSoftClose     = 3600
	bidRetries       = 3
)

// Watcher tracks auction deadlines (the countdown scheduler).
type Watcher interface {
	Watch(id string, end time.Time)
	Forget(id string)
}

type AuctionService struct {
	Store    *repos.Store
	Notes    *NotificationService
	bus      live.Bus
	watcher  Watcher
	currency string
	now      Clock
}

func NewAuctionService(store *repos.Store, notes *NotificationService, bus live.Bus, currency string) *AuctionService {
	return &AuctionService{Store: store, Notes: notes, bus: bus, currency: currency, now: utcNow}
}

// SetWatcher attaches the deadline scheduler once it exists.
func (s *AuctionService) SetWatcher(w Watcher) { s.watcher = w }

func (s *AuctionService) watch(id string, end time.Time) {
	if s.watcher != nil {
		s.watcher.Watch(id, end)
	}
}

func (s *AuctionService) forget(id string) {
	if s.watcher != nil {
		s.watcher.Forget(id)
	}
}

type NewAuction struct {
	ItemID           string        `json:"itemId"`
	StartPrice       int64         `json:"startPrice"`
	MinIncrement     int64         `json:"minIncrement"`
	Duration         time.Duration `json:"-"`
	DurationMinutes  int           `json:"durationMinutes"`
	SoftCloseSeconds int           `json:"softCloseSeconds"`
}

func (s *AuctionService) Create(ctx context.Context, sellerID string, in NewAuction) (domain.Auction, error) {
	if in.Duration == 0 {
		in.Duration = time.Duration(in.DurationMinutes) * time.Minute
	}
	switch {
	case in.StartPrice <= 0:
		return domain.Auction{}, invalid("start price must be positive")
	case in.MinIncrement <= 0:
		return domain.Auction{}, invalid("minimum increment must be positive")
	case in.Duration < minAuctionLength || in.Duration > maxAuctionLength:
		return domain.Auction{}, invalid("duration must be between 1 minute and 30 days")
	case in.SoftCloseSeconds < 0 || in.SoftCloseSeconds > maxSoftClose:
		return domain.Auction{}, invalid("soft close must be 0-3600 seconds")
	}

	var a domain.Auction
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		it, err := st.Items.Get(ctx, in.ItemID)
		if err != nil {
			return notFound(err, "item")
		}
		if it.SellerID != sellerID {
			return fmt.Errorf("item is not yours: %w", ErrForbidden)
		}
		if it.Status != domain.ItemActive {
			return invalid("item is not available")
		}
		if _, err := st.Auctions.ActiveForItem(ctx, it.ID); err == nil {
			return fmt.Errorf("item already has a live auction: %w", ErrConflict)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		now := s.now()
		a = domain.Auction{
			ID:           newID(),
			ItemID:       it.ID,
			SellerID:     sellerID,
			StartPrice:   in.StartPrice,
			MinIncrement: in.MinIncrement,
			SoftClose:    in.SoftCloseSeconds,
			StartsAt:     now,
			EndsAt:       now.Add(in.Duration),
			Status:       domain.AuctionActive,
			CreatedAt:    now,
		}
		return st.Auctions.Create(ctx, a)
	})
	if err != nil {
		return domain.Auction{}, err
	}
	s.watch(a.ID, a.EndsAt)
	return a, nil
}

// AuctionView is an auction with its countdown and the next valid bid.
type AuctionView struct {
	domain.Auction
	Remaining  countdown.Remaining `json:"remaining"`
	MinNextBid int64               `json:"minNextBid"`
	Display    string              `json:"currentBidDisplay"`
}

func (s *AuctionService) view(a domain.Auction) AuctionView {
	shown := a.CurrentBid
	if a.BidCount == 0 {
		shown = a.StartPrice
	}
	return AuctionView{
		Auction:    a,
		Remaining:  countdown.Until(a.EndsAt, s.now()),
		MinNextBid: a.MinNextBid(),
		Display:    format.Money(shown, s.currency),
	}
}

func (s *AuctionService) Get(ctx context.Context, id string) (AuctionView, error) {
	a, err := s.Store.Auctions.Get(ctx, id)
	if err != nil {
		return AuctionView{}, notFound(err, "auction")
	}
	return s.view(a), nil
}

func (s *AuctionService) List(ctx context.Context, status string) ([]AuctionView, error) {
	switch status {
	case "", domain.AuctionActive, domain.AuctionEnded, domain.AuctionCancelled:
	default:
		return nil, invalid("unknown auction status %q", status)
	}
	list, err := s.Store.Auctions.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]AuctionView, 0, len(list))
	for _, a := range list {
		out = append(out, s.view(a))
	}
	return out, nil
}

// PlaceBid records a bid with a compare-and-set on the auction's current
// price. A bid landing inside the soft-close window pushes the end back.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (AuctionView, error) {
	for attempt := 0; ; attempt++ {
		v, err := s.tryBid(ctx, auctionID, bidderID, amount)
		if !errors.Is(err, ErrConflict) || attempt+1 >= bidRetries {
			if err != nil {
				metrics.Bids.WithLabelValues(bidOutcome(err)).Inc()
			}
			return v, err
		}
	}
}

func bidOutcome(err error) string {
	switch {
	case errors.Is(err, ErrBidTooLow):
		return "too_low"
	case errors.Is(err, ErrAuctionClosed):
		return "closed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "rejected"
}

func (s *AuctionService) tryBid(ctx context.Context, auctionID, bidderID string, amount int64) (AuctionView, error) {
	var (
		ob       outbox
		a        domain.Auction
		extended bool
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		var err error
		if a, err = st.Auctions.Get(ctx, auctionID); err != nil {
			return notFound(err, "auction")
		}
		now := s.now()
		switch {
		case a.Status != domain.AuctionActive || !now.Before(a.EndsAt):
			return ErrAuctionClosed
		case a.SellerID == bidderID:
			return fmt.Errorf("cannot bid on your own auction: %w", ErrForbidden)
		case amount < a.MinNextBid():
			return fmt.Errorf("%w: minimum is %s", ErrBidTooLow, format.Money(a.MinNextBid(), s.currency))
		}

		endsAt := a.EndsAt
		window := time.Duration(a.SoftClose) * time.Second
		if window > 0 && a.EndsAt.Sub(now) <= window {
			endsAt = a.EndsAt.Add(window)
			extended = true
		}
		bid := domain.Bid{ID: newID(), AuctionID: a.ID, BidderID: bidderID, Amount: amount, CreatedAt: now}
		if err := st.Auctions.RecordBid(ctx, a, bid, endsAt); err != nil {
			if errors.Is(err, repos.ErrNotUpdated) {
				metrics.Conflicts.WithLabelValues("auction").Inc()
				return ErrConflict
			}
			return err
		}

		prev := a.LeaderID
		a.CurrentBid, a.LeaderID, a.EndsAt = amount, bidderID, endsAt
		a.BidCount++
		ob.add(live.AuctionChannel(a.ID), "auction.bid", map[string]any{
			"auctionId":  a.ID,
			"currentBid": a.CurrentBid,
			"bidCount":   a.BidCount,
			"leaderId":   a.LeaderID,
			"endsAt":     a.EndsAt,
			"minNextBid": a.MinNextBid(),
		})
		if prev != "" && prev != bidderID {
			return s.Notes.push(ctx, st, &ob, prev, NoteOutbid, "You were outbid",
				"New high bid "+format.Money(amount, s.currency), a.ID)
		}
		return nil
	})
	if err != nil {
		return AuctionView{}, err
	}
	metrics.Bids.WithLabelValues("accepted").Inc()
	ob.flush(ctx, s.bus)
	if extended {
		s.watch(a.ID, a.EndsAt)
	}
	return s.view(a), nil
}

// Bids ranks an auction's bids for the viewer.
func (s *AuctionService) Bids(ctx context.Context, auctionID, viewerID string) ([]domain.BidView, error) {
	if _, err := s.Store.Auctions.Get(ctx, auctionID); err != nil {
		return nil, notFound(err, "auction")
	}
	bids, err := s.Store.Auctions.Bids(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	for i := range bids {
		bids[i].Position = i + 1
		bids[i].IsWinning = i == 0
		bids[i].IsMine = viewerID != "" && bids[i].BidderID == viewerID
	}
	if bids == nil {
		bids = []domain.BidView{}
	}
	return bids, nil
}

func (s *AuctionService) MyBids(ctx context.Context, viewerID string) ([]repos.MyBidRow, error) {
	rows, err := s.Store.Auctions.MyBids(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].IsWinning = rows[i].LeaderID == viewerID
	}
	if rows == nil {
		rows = []repos.MyBidRow{}
	}
	return rows, nil
}

// Close satisfies countdown.Closer.
func (s *AuctionService) Close(ctx context.Context, id string) error {
	_, err := s.End(ctx, id)
	return err
}

// End closes an auction whose time is up. Calling it again, or before the
// (possibly extended) end, changes nothing.
func (s *AuctionService) End(ctx context.Context, id string) (domain.Auction, error) {
	var (
		ob     outbox
		a      domain.Auction
		closed bool
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		var err error
		if a, err = st.Auctions.Get(ctx, id); err != nil {
			return notFound(err, "auction")
		}
		if a.Status != domain.AuctionActive || s.now().Before(a.EndsAt) {
			return nil
		}
		if err := st.Auctions.End(ctx, id); err != nil {
			if errors.Is(err, repos.ErrNotUpdated) {
				return nil
			}
			return err
		}
		closed = true
		a.Status, a.WinnerID = domain.AuctionEnded, a.LeaderID

		it, err := st.Items.Get(ctx, a.ItemID)
		if err != nil {
			return err
		}
		if a.WinnerID == "" {
			ob.onCommit(func() { metrics.AuctionsClosed.WithLabelValues("no_bids").Inc() })
			ob.add(live.AuctionChannel(a.ID), "auction.closed", map[string]any{"auctionId": a.ID})
			return s.Notes.push(ctx, st, &ob, a.SellerID, NoteAuctionEnded, "Auction ended without bids", it.Title, a.ID)
		}

		if err := st.Items.SetStatus(ctx, a.ItemID, domain.ItemReserved, domain.ItemActive); err != nil {
			if !errors.Is(err, repos.ErrNotUpdated) {
				return err
			}
			applog.Event("auction.item.unavailable", map[string]any{"auction_id": a.ID, "item_id": a.ItemID})
		}
		auctionID := a.ID
		tx, err := openTransaction(ctx, st, &ob, domain.Transaction{
			Type:         string(lifecycle.AuctionWin),
			SellerID:     a.SellerID,
			BuyerID:      a.WinnerID,
			SellerItemID: a.ItemID,
			CashAmount:   a.CurrentBid,
			AuctionID:    &auctionID,
		}, "", s.now())
		if err != nil {
			return err
		}
		ob.onCommit(func() { metrics.AuctionsClosed.WithLabelValues("sold").Inc() })
		ob.add(live.AuctionChannel(a.ID), "auction.closed", map[string]any{
			"auctionId":     a.ID,
			"winnerId":      a.WinnerID,
			"amount":        a.CurrentBid,
			"transactionId": tx.ID,
		})
		price := format.Money(a.CurrentBid, s.currency)
		if err := s.Notes.push(ctx, st, &ob, a.WinnerID, NoteAuctionWon, "You won "+it.Title, price, tx.ID); err != nil {
			return err
		}
		return s.Notes.push(ctx, st, &ob, a.SellerID, NoteAuctionEnded, "Auction sold", it.Title+" for "+price, tx.ID)
	})
	if err != nil {
		return domain.Auction{}, err
	}
	ob.flush(ctx, s.bus)
	switch {
	case closed:
		s.forget(a.ID)
		applog.Event("auction.closed", map[string]any{"auction_id": a.ID, "winner_id": a.WinnerID, "amount": a.CurrentBid})
	case a.Status == domain.AuctionActive:
		// extended by a late bid; keep counting
		s.watch(a.ID, a.EndsAt)
	}
	return a, nil
}

// Cancel withdraws an auction nobody has bid on.
func (s *AuctionService) Cancel(ctx context.Context, id, sellerID string) (domain.Auction, error) {
	a, err := s.Store.Auctions.Get(ctx, id)
	if err != nil {
		return a, notFound(err, "auction")
	}
	if a.SellerID != sellerID {
		return a, ErrForbidden
	}
	if err := s.Store.Auctions.Cancel(ctx, id); err != nil {
		if errors.Is(err, repos.ErrNotUpdated) {
			if a.Status != domain.AuctionActive {
				return a, ErrAuctionClosed
			}
			return a, fmt.Errorf("auction has bids: %w", ErrConflict)
		}
		return a, err
	}
	a.Status = domain.AuctionCancelled
	s.forget(id)
	if err := live.Emit(ctx, s.bus, live.AuctionChannel(id), "auction.cancelled", map[string]any{"auctionId": id}); err != nil {
		applog.Fail("live.publish.fail", err, map[string]any{"auction_id": id})
	}
	return a, nil
}

// Deadlines lists live auctions for the scheduler at startup.
func (s *AuctionService) Deadlines(ctx context.Context) ([]countdown.Deadline, error) {
	list, err := s.Store.Auctions.List(ctx, domain.AuctionActive)
	if err != nil {
		return nil, err
	}
	out := make([]countdown.Deadline, 0, len(list))
	for _, a := range list {
		out = append(out, countdown.Deadline{ID: a.ID, End: a.EndsAt})
	}
	return out, nil
}

// CloseDue ends every auction past its deadline the scheduler missed.
func (s *AuctionService) CloseDue(ctx context.Context) (int, error) {
	due, err := s.Store.Auctions.DueBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range due {
		got, err := s.End(ctx, a.ID)
		if err != nil {
			applog.Fail("auction.close.fail", err, map[string]any{"auction_id": a.ID})
			continue
		}
		if got.Status == domain.AuctionEnded {
			n++
		}
	}
	return n, nil
}
