package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/lifecycle"
	"tradepost/internal/live"
	"tradepost/internal/metrics"
	"tradepost/internal/repos"
	"tradepost/internal/validate"
)

type OfferService struct {
	Store *repos.Store
	Notes *NotificationService
	bus   live.Bus
	ttl   time.Duration
	now   Clock
}

func NewOfferService(store *repos.Store, notes *NotificationService, bus live.Bus, ttl time.Duration) *OfferService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &OfferService{Store: store, Notes: notes, bus: bus, ttl: ttl, now: utcNow}
}

// Terms is what one side proposes.
type Terms struct {
	Type          string `json:"type"`
	CashAmount    int64  `json:"cashAmount"`
	OfferedItemID string `json:"offeredItemId"`
	Message       string `json:"message"`
}

// checkTerms validates terms against the listing; the offered item, when
// any, must belong to the buyer and still be for sale.
func checkTerms(ctx context.Context, st *repos.Store, listing domain.Item, buyerID string, in Terms) (Terms, *string, error) {
	tt, ok := lifecycle.ParseType(in.Type)
	if !ok || tt == lifecycle.AuctionWin {
		return in, nil, invalid("type must be CASH_ONLY, ITEM_EXCHANGE or ITEM_PLUS_CASH")
	}
	msg, ok := validate.Text(in.Message, 500, false)
	if !ok {
		return in, nil, invalid("message too long")
	}
	in.Message = msg

	switch {
	case lifecycle.HasPayment(tt) && in.CashAmount <= 0:
		return in, nil, invalid("cash amount must be positive")
	case !lifecycle.HasPayment(tt) && in.CashAmount != 0:
		return in, nil, invalid("an item exchange carries no cash")
	}
	if !lifecycle.BuyerShips(tt) {
		if in.OfferedItemID != "" {
			return in, nil, invalid("a cash offer carries no item")
		}
		return in, nil, nil
	}

	if !listing.Tradeable {
		return in, nil, invalid("this listing does not accept exchanges")
	}
	offered, err := st.Items.Get(ctx, in.OfferedItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return in, nil, invalid("offered item not found")
		}
		return in, nil, err
	}
	if offered.SellerID != buyerID {
		return in, nil, fmt.Errorf("offered item is not yours: %w", ErrForbidden)
	}
	if offered.Status != domain.ItemActive {
		return in, nil, invalid("offered item is not available")
	}
	id := offered.ID
	return in, &id, nil
}

// listing loads an item that can still take offers.
func (s *OfferService) listing(ctx context.Context, st *repos.Store, itemID string) (domain.Item, error) {
	it, err := st.Items.Get(ctx, itemID)
	if err != nil {
		return it, notFound(err, "item")
	}
	if it.Status != domain.ItemActive {
		return it, invalid("item is not available")
	}
	if _, err := st.Auctions.ActiveForItem(ctx, itemID); err == nil {
		return it, invalid("item is up for auction, place a bid instead")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return it, err
	}
	return it, nil
}

func (s *OfferService) Make(ctx context.Context, buyerID, itemID string, in Terms) (domain.Offer, error) {
	var (
		ob  outbox
		off domain.Offer
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		it, err := s.listing(ctx, st, itemID)
		if err != nil {
			return err
		}
		if it.SellerID == buyerID {
			return invalid("cannot make an offer on your own item")
		}
		terms, offered, err := checkTerms(ctx, st, it, buyerID, in)
		if err != nil {
			return err
		}
		now := s.now()
		off = domain.Offer{
			ID:            newID(),
			ItemID:        it.ID,
			BuyerID:       buyerID,
			SellerID:      it.SellerID,
			ProposedBy:    buyerID,
			Type:          terms.Type,
			CashAmount:    terms.CashAmount,
			OfferedItemID: offered,
			Message:       terms.Message,
			Status:        domain.OfferPending,
			ExpiresAt:     now.Add(s.ttl),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := st.Offers.Create(ctx, off); err != nil {
			return err
		}
		return s.Notes.push(ctx, st, &ob, it.SellerID, NoteOfferReceived, "New offer", it.Title, off.ID)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	metrics.Offers.WithLabelValues(domain.OfferPending).Inc()
	ob.flush(ctx, s.bus)
	return off, nil
}

// pendingFor loads a PENDING offer and checks who may answer it. respond
// is true for accept/reject/counter (the other party), false for withdraw.
func (s *OfferService) pendingFor(ctx context.Context, st *repos.Store, id, actor string, respond bool) (domain.Offer, error) {
	o, err := st.Offers.Get(ctx, id)
	if err != nil {
		return o, notFound(err, "offer")
	}
	if actor != o.BuyerID && actor != o.SellerID {
		return o, ErrForbidden
	}
	if respond == (actor == o.ProposedBy) {
		return o, fmt.Errorf("offer %s: %w", id, ErrForbidden)
	}
	if o.Status != domain.OfferPending {
		return o, fmt.Errorf("offer is %s: %w", o.Status, ErrConflict)
	}
	if !s.now().Before(o.ExpiresAt) {
		return o, invalid("offer expired")
	}
	return o, nil
}

func (s *OfferService) other(o domain.Offer, actor string) string {
	if actor == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// settle moves a pending offer to a final state.
func (s *OfferService) settle(ctx context.Context, st *repos.Store, ob *outbox, o *domain.Offer, status string) error {
	now := s.now()
	if err := st.Offers.Transition(ctx, o.ID, status, now); err != nil {
		if errors.Is(err, repos.ErrNotUpdated) {
			metrics.Conflicts.WithLabelValues("offer").Inc()
			return ErrConflict
		}
		return err
	}
	o.Status, o.UpdatedAt = status, now
	ob.onCommit(func() { metrics.Offers.WithLabelValues(status).Inc() })
	return nil
}

func (s *OfferService) Counter(ctx context.Context, id, actor string, in Terms) (domain.Offer, error) {
	var (
		ob      outbox
		counter domain.Offer
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		o, err := s.pendingFor(ctx, st, id, actor, true)
		if err != nil {
			return err
		}
		it, err := s.listing(ctx, st, o.ItemID)
		if err != nil {
			return err
		}
		terms, offered, err := checkTerms(ctx, st, it, o.BuyerID, in)
		if err != nil {
			return err
		}
		if err := s.settle(ctx, st, &ob, &o, domain.OfferCountered); err != nil {
			return err
		}
		now := s.now()
		parent := o.ID
		counter = domain.Offer{
			ID:            newID(),
			ItemID:        o.ItemID,
			BuyerID:       o.BuyerID,
			SellerID:      o.SellerID,
			ProposedBy:    actor,
			Type:          terms.Type,
			CashAmount:    terms.CashAmount,
			OfferedItemID: offered,
			Message:       terms.Message,
			Status:        domain.OfferPending,
			ParentID:      &parent,
			ExpiresAt:     now.Add(s.ttl),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := st.Offers.Create(ctx, counter); err != nil {
			return err
		}
		ob.onCommit(func() { metrics.Offers.WithLabelValues(domain.OfferPending).Inc() })
		return s.Notes.push(ctx, st, &ob, s.other(o, actor), NoteOfferCountered, "Counter offer", it.Title, counter.ID)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	ob.flush(ctx, s.bus)
	return counter, nil
}

// Accept turns the offer into a transaction, reserves the listings and
// rejects every other pending offer on the item.
func (s *OfferService) Accept(ctx context.Context, id, actor string) (domain.Transaction, error) {
	var (
		ob outbox
		tx domain.Transaction
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		o, err := s.pendingFor(ctx, st, id, actor, true)
		if err != nil {
			return err
		}
		it, err := s.listing(ctx, st, o.ItemID)
		if err != nil {
			return err
		}
		if err := s.settle(ctx, st, &ob, &o, domain.OfferAccepted); err != nil {
			return err
		}
		for _, itemID := range []*string{&o.ItemID, o.OfferedItemID} {
			if itemID == nil {
				continue
			}
			if err := st.Items.SetStatus(ctx, *itemID, domain.ItemReserved, domain.ItemActive); err != nil {
				if errors.Is(err, repos.ErrNotUpdated) {
					return invalid("an item in this offer is no longer available")
				}
				return err
			}
		}
		others, err := st.Offers.RejectOthers(ctx, o.ItemID, o.ID, s.now())
		if err != nil {
			return err
		}
		if n := len(others); n > 0 {
			ob.onCommit(func() { metrics.Offers.WithLabelValues(domain.OfferRejected).Add(float64(n)) })
		}
		for _, r := range others {
			if err := s.Notes.push(ctx, st, &ob, s.other(r, it.SellerID), NoteOfferRejected, "Offer declined", it.Title, r.ID); err != nil {
				return err
			}
		}

		offerID := o.ID
		tx, err = openTransaction(ctx, st, &ob, domain.Transaction{
			Type:         o.Type,
			SellerID:     o.SellerID,
			BuyerID:      o.BuyerID,
			SellerItemID: o.ItemID,
			BuyerItemID:  o.OfferedItemID,
			CashAmount:   o.CashAmount,
			OfferID:      &offerID,
		}, actor, s.now())
		if err != nil {
			return err
		}
		return s.Notes.push(ctx, st, &ob, o.ProposedBy, NoteOfferAccepted, "Offer accepted", it.Title, tx.ID)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	ob.flush(ctx, s.bus)
	return tx, nil
}

func (s *OfferService) Reject(ctx context.Context, id, actor string) (domain.Offer, error) {
	return s.close(ctx, id, actor, true, domain.OfferRejected, NoteOfferRejected, "Offer declined")
}

func (s *OfferService) Withdraw(ctx context.Context, id, actor string) (domain.Offer, error) {
	return s.close(ctx, id, actor, false, domain.OfferWithdrawn, NoteOfferWithdrawn, "Offer withdrawn")
}

func (s *OfferService) close(ctx context.Context, id, actor string, respond bool, status, kind, title string) (domain.Offer, error) {
	var (
		ob outbox
		o  domain.Offer
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		var err error
		if o, err = s.pendingFor(ctx, st, id, actor, respond); err != nil {
			return err
		}
		if err := s.settle(ctx, st, &ob, &o, status); err != nil {
			return err
		}
		return s.Notes.push(ctx, st, &ob, s.other(o, actor), kind, title, "", o.ID)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	ob.flush(ctx, s.bus)
	return o, nil
}

func (s *OfferService) List(ctx context.Context, userID, role string) ([]domain.Offer, error) {
	switch role {
	case "", "buyer", "seller":
	default:
		return nil, invalid("role must be buyer or seller")
	}
	out, err := s.Store.Offers.ListFor(ctx, userID, role)
	if out == nil && err == nil {
		out = []domain.Offer{}
	}
	return out, err
}

// ExpireStale marks overdue pending offers EXPIRED and tells both parties.
func (s *OfferService) ExpireStale(ctx context.Context) (int, error) {
	var (
		ob  outbox
		due []domain.Offer
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		var err error
		if due, err = st.Offers.ExpireBefore(ctx, s.now()); err != nil {
			return err
		}
		for _, o := range due {
			for _, uid := range []string{o.BuyerID, o.SellerID} {
				if err := s.Notes.push(ctx, st, &ob, uid, NoteOfferExpired, "Offer expired", "", o.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.Offers.WithLabelValues(domain.OfferExpired).Add(float64(len(due)))
	ob.flush(ctx, s.bus)
	return len(due), nil
}
