package repos

import (
	"context"
	"time"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type OfferRepo struct{ db sqlx.ExtContext }

func NewOfferRepo(db sqlx.ExtContext) *OfferRepo { return &OfferRepo{db: db} }

const offerCols = `id, item_id, buyer_id, seller_id, proposed_by, type, cash_amount, offered_item_id,
	message, status, parent_id, expires_at, created_at, updated_at`

func (r *OfferRepo) Create(ctx context.Context, o domain.Offer) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO offers(`+offerCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), o.ID, o.ItemID, o.BuyerID, o.SellerID, o.ProposedBy, o.Type, o.CashAmount, o.OfferedItemID,
		o.Message, o.Status, o.ParentID, o.ExpiresAt, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *OfferRepo) Get(ctx context.Context, id string) (domain.Offer, error) {
	var o domain.Offer
	err := sqlx.GetContext(ctx, r.db, &o, r.db.Rebind(`SELECT `+offerCols+` FROM offers WHERE id = ?`), id)
	return o, err
}

// ListFor returns offers where the user is buyer, seller or either (role "").
func (r *OfferRepo) ListFor(ctx context.Context, userID, role string) ([]domain.Offer, error) {
	where := `buyer_id = ? OR seller_id = ?`
	args := []any{userID, userID}
	switch role {
	case "buyer":
		where, args = `buyer_id = ?`, []any{userID}
	case "seller":
		where, args = `seller_id = ?`, []any{userID}
	}
	var out []domain.Offer
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+offerCols+` FROM offers WHERE `+where+` ORDER BY created_at DESC, id
	`), args...)
	return out, err
}

// Transition moves a PENDING offer to status. ErrNotUpdated if it was no
// longer pending.
func (r *OfferRepo) Transition(ctx context.Context, id, status string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE offers SET status = ?, updated_at = ? WHERE id = ? AND status = 'PENDING'
	`), status, now.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// RejectOthers rejects every other pending offer on the item and returns them.
func (r *OfferRepo) RejectOthers(ctx context.Context, itemID, keepID string, now time.Time) ([]domain.Offer, error) {
	var others []domain.Offer
	if err := sqlx.SelectContext(ctx, r.db, &others, r.db.Rebind(`
		SELECT `+offerCols+` FROM offers WHERE item_id = ? AND id <> ? AND status = 'PENDING'
	`), itemID, keepID); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE offers SET status = 'REJECTED', updated_at = ? WHERE item_id = ? AND id <> ? AND status = 'PENDING'
	`), now.UTC(), itemID, keepID)
	return others, err
}

// ExpireBefore marks pending offers past their deadline EXPIRED and returns them.
func (r *OfferRepo) ExpireBefore(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	var due []domain.Offer
	if err := sqlx.SelectContext(ctx, r.db, &due, r.db.Rebind(`
		SELECT `+offerCols+` FROM offers WHERE status = 'PENDING' AND expires_at <= ?
	`), now.UTC()); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE offers SET status = 'EXPIRED', updated_at = ? WHERE status = 'PENDING' AND expires_at <= ?
	`), now.UTC(), now.UTC())
	return due, err
}
