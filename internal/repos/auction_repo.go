package repos

import (
	"context"
	"time"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type AuctionRepo struct{ db sqlx.ExtContext }

func NewAuctionRepo(db sqlx.ExtContext) *AuctionRepo { return &AuctionRepo{db: db} }

const auctionCols = `id, item_id, seller_id, start_price, min_increment, current_bid, bid_count,
	leader_id, soft_close_seconds, starts_at, ends_at, status, winner_id, created_at`

// MyBidRow is a bidder's best bid on one auction and where it ranks.
type MyBidRow struct {
	AuctionID  string    `db:"auction_id" json:"auctionId"`
	ItemID     string    `db:"item_id" json:"itemId"`
	Title      string    `db:"title" json:"title"`
	MyAmount   int64     `db:"my_amount" json:"myAmount"`
	CurrentBid int64     `db:"current_bid" json:"currentBid"`
	EndsAt     time.Time `db:"ends_at" json:"endsAt"`
	Status     string    `db:"status" json:"status"`
	LeaderID   string    `db:"leader_id" json:"-"`
	Position   int       `db:"position" json:"bidPosition"`
	IsWinning  bool      `db:"-" json:"isWinning"`
}

func (r *AuctionRepo) Create(ctx context.Context, a domain.Auction) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO auctions(id,item_id,seller_id,start_price,min_increment,current_bid,bid_count,
		  leader_id,soft_close_seconds,starts_at,ends_at,status,winner_id,created_at)
		VALUES(?,?,?,?,?,0,0,'',?,?,?,?,'',?)
	`), a.ID, a.ItemID, a.SellerID, a.StartPrice, a.MinIncrement, a.SoftClose,
		a.StartsAt, a.EndsAt, a.Status, a.CreatedAt)
	return err
}

func (r *AuctionRepo) Get(ctx context.Context, id string) (domain.Auction, error) {
	var a domain.Auction
	err := sqlx.GetContext(ctx, r.db, &a, r.db.Rebind(`SELECT `+auctionCols+` FROM auctions WHERE id = ?`), id)
	return a, err
}

// List returns auctions with the given status (all when empty), soonest end first.
func (r *AuctionRepo) List(ctx context.Context, status string) ([]domain.Auction, error) {
	q := `SELECT ` + auctionCols + ` FROM auctions`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY ends_at ASC, id`
	var out []domain.Auction
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...)
	return out, err
}

// DueBefore lists ACTIVE auctions whose end time is not after now.
func (r *AuctionRepo) DueBefore(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	var out []domain.Auction
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+auctionCols+` FROM auctions WHERE status = 'ACTIVE' AND ends_at <= ? ORDER BY ends_at
	`), now.UTC())
	return out, err
}

// RecordBid is a compare-and-set on (current_bid, bid_count): it only lands
// when nobody else bid since the caller read the auction.
func (r *AuctionRepo) RecordBid(ctx context.Context, seen domain.Auction, b domain.Bid, endsAt time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE auctions
		SET current_bid = ?, bid_count = bid_count + 1, leader_id = ?, ends_at = ?
		WHERE id = ? AND status = 'ACTIVE' AND current_bid = ? AND bid_count = ?
	`), b.Amount, b.BidderID, endsAt.UTC(), seen.ID, seen.CurrentBid, seen.BidCount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO bids(id,auction_id,bidder_id,amount,created_at) VALUES(?,?,?,?,?)
	`), b.ID, b.AuctionID, b.BidderID, b.Amount, b.CreatedAt)
	return err
}

// Bids ranks every bid on an auction, highest first.
func (r *AuctionRepo) Bids(ctx context.Context, auctionID string) ([]domain.BidView, error) {
	var out []domain.BidView
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT b.id, b.auction_id, b.bidder_id, b.amount, b.created_at, u.name AS bidder_name
		FROM bids b JOIN users u ON u.id = b.bidder_id
		WHERE b.auction_id = ?
		ORDER BY b.amount DESC, b.created_at ASC
	`), auctionID)
	return out, err
}

// MyBids returns the bidder's best bid per auction with its rank among
// bidders: one rival raising three times still counts as one place ahead.
func (r *AuctionRepo) MyBids(ctx context.Context, bidderID string) ([]MyBidRow, error) {
	var out []MyBidRow
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT m.auction_id, a.item_id, i.title, m.my_amount, a.current_bid, a.ends_at, a.status, a.leader_id,
		  (SELECT COUNT(DISTINCT b2.bidder_id) FROM bids b2 WHERE b2.auction_id = m.auction_id AND b2.amount > m.my_amount) + 1 AS position
		FROM (SELECT auction_id, MAX(amount) AS my_amount FROM bids WHERE bidder_id = ? GROUP BY auction_id) m
		JOIN auctions a ON a.id = m.auction_id
		JOIN items i ON i.id = a.item_id
		ORDER BY a.ends_at ASC
	`), bidderID)
	return out, err
}

// End marks an ACTIVE auction ENDED and fixes the winner. ErrNotUpdated
// means it was already closed.
func (r *AuctionRepo) End(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE auctions SET status = 'ENDED', winner_id = leader_id WHERE id = ? AND status = 'ACTIVE'
	`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// Cancel only succeeds on an ACTIVE auction nobody has bid on.
func (r *AuctionRepo) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE auctions SET status = 'CANCELLED' WHERE id = ? AND status = 'ACTIVE' AND bid_count = 0
	`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// ActiveForItem returns the live auction on an item, sql.ErrNoRows if none.
func (r *AuctionRepo) ActiveForItem(ctx context.Context, itemID string) (domain.Auction, error) {
	var a domain.Auction
	err := sqlx.GetContext(ctx, r.db, &a, r.db.Rebind(`
		SELECT `+auctionCols+` FROM auctions WHERE item_id = ? AND status = 'ACTIVE'
	`), itemID)
	return a, err
}
