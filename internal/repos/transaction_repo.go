package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type TransactionRepo struct{ db sqlx.ExtContext }

func NewTransactionRepo(db sqlx.ExtContext) *TransactionRepo { return &TransactionRepo{db: db} }

const txCols = `id, type, status, seller_id, buyer_id, seller_item_id, buyer_item_id, cash_amount,
	offer_id, auction_id, prev_status, version, created_at, updated_at`

// TxFilter narrows a participant's transaction list.
type TxFilter struct {
	Role   string // buyer | seller | "" for both
	Status string
}

func (r *TransactionRepo) Create(ctx context.Context, t domain.Transaction) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO transactions(`+txCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), t.ID, t.Type, t.Status, t.SellerID, t.BuyerID, t.SellerItemID, t.BuyerItemID, t.CashAmount,
		t.OfferID, t.AuctionID, t.PrevStatus, t.Version, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (domain.Transaction, error) {
	var t domain.Transaction
	err := sqlx.GetContext(ctx, r.db, &t, r.db.Rebind(`SELECT `+txCols+` FROM transactions WHERE id = ?`), id)
	return t, err
}

func (r *TransactionRepo) ListFor(ctx context.Context, userID string, f TxFilter) ([]domain.Transaction, error) {
	where := `(seller_id = ? OR buyer_id = ?)`
	args := []any{userID, userID}
	switch f.Role {
	case "buyer":
		where, args = `buyer_id = ?`, []any{userID}
	case "seller":
		where, args = `seller_id = ?`, []any{userID}
	}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, f.Status)
	}
	var out []domain.Transaction
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+txCols+` FROM transactions WHERE `+where+` ORDER BY updated_at DESC, id
	`), args...)
	return out, err
}

// ListAll is the admin view across every participant, newest first.
func (r *TransactionRepo) ListAll(ctx context.Context, status string, limit int) ([]domain.Transaction, error) {
	q := `SELECT ` + txCols + ` FROM transactions`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY updated_at DESC, id LIMIT ?`
	args = append(args, limit)
	var out []domain.Transaction
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...)
	return out, err
}

// UpdateStatus writes a new status if the row still has the version the
// caller read; the version is bumped. ErrNotUpdated signals a lost race.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, t domain.Transaction, next string, prev *string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE transactions
		SET status = ?, prev_status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`), next, prev, now.UTC(), t.ID, t.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// Touch bumps the version without a status change (a shipment recorded
// ahead of its step), so concurrent writers still conflict.
func (r *TransactionRepo) Touch(ctx context.Context, t domain.Transaction, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE transactions SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?
	`), now.UTC(), t.ID, t.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// StaleInStatus lists transactions sitting in status since before cutoff.
func (r *TransactionRepo) StaleInStatus(ctx context.Context, status string, cutoff time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+txCols+` FROM transactions WHERE status = ? AND updated_at <= ? ORDER BY updated_at
	`), status, cutoff.UTC())
	return out, err
}

// Payment returns nil when nothing was paid yet.
func (r *TransactionRepo) Payment(ctx context.Context, txID string) (*domain.Payment, error) {
	var p domain.Payment
	err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(`
		SELECT transaction_id, amount, method, escrow, paid_at, settled_at FROM payments WHERE transaction_id = ?
	`), txID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *TransactionRepo) InsertPayment(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO payments(transaction_id, amount, method, escrow, paid_at) VALUES(?,?,?,?,?)
	`), p.TransactionID, p.Amount, p.Method, p.Escrow, p.PaidAt)
	return err
}

// SettleEscrow moves HELD funds to RELEASED or REFUNDED. A refund also
// claws back funds already RELEASED (a dispute raised after delivery). No-op
// when nothing matches; the returned bool reports whether anything changed.
func (r *TransactionRepo) SettleEscrow(ctx context.Context, txID, state string, now time.Time) (bool, error) {
	guard := `escrow = 'HELD'`
	if state == domain.EscrowRefunded {
		guard = `escrow IN ('HELD', 'RELEASED')`
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE payments SET escrow = ?, settled_at = ? WHERE transaction_id = ? AND `+guard), state, now.UTC(), txID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *TransactionRepo) Shipments(ctx context.Context, txID string) ([]domain.Shipment, error) {
	var out []domain.Shipment
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT id, transaction_id, side, carrier, tracking_number, state, shipped_at, confirmed_at
		FROM shipments WHERE transaction_id = ? ORDER BY shipped_at, side
	`), txID)
	return out, err
}

func (r *TransactionRepo) InsertShipment(ctx context.Context, s domain.Shipment) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO shipments(id, transaction_id, side, carrier, tracking_number, state, shipped_at)
		VALUES(?,?,?,?,?,?,?)
	`), s.ID, s.TransactionID, s.Side, s.Carrier, s.TrackingNumber, s.State, s.ShippedAt)
	return err
}

// SetShipmentState updates one side's shipment; confirmedAt is stamped on DELIVERED.
func (r *TransactionRepo) SetShipmentState(ctx context.Context, txID, side, state string, now time.Time) error {
	var confirmed *time.Time
	if state == domain.ShipDelivered {
		t := now.UTC()
		confirmed = &t
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE shipments SET state = ?, confirmed_at = COALESCE(?, confirmed_at)
		WHERE transaction_id = ? AND side = ?
	`), state, confirmed, txID, side)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// AppendEvent adds the next timeline entry; seq is assigned here.
func (r *TransactionRepo) AppendEvent(ctx context.Context, e domain.TimelineEvent) (domain.TimelineEvent, error) {
	if err := sqlx.GetContext(ctx, r.db, &e.Seq, r.db.Rebind(`
		SELECT COALESCE(MAX(seq), 0) + 1 FROM timeline_events WHERE transaction_id = ?
	`), e.TransactionID); err != nil {
		return e, err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO timeline_events(transaction_id, seq, kind, from_status, to_status, actor_id, note, created_at)
		VALUES(?,?,?,?,?,?,?,?)
	`), e.TransactionID, e.Seq, e.Kind, e.FromStatus, e.ToStatus, e.ActorID, e.Note, e.CreatedAt)
	return e, err
}

func (r *TransactionRepo) Timeline(ctx context.Context, txID string) ([]domain.TimelineEvent, error) {
	var out []domain.TimelineEvent
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT transaction_id, seq, kind, from_status, to_status, actor_id, note, created_at
		FROM timeline_events WHERE transaction_id = ? ORDER BY seq
	`), txID)
	return out, err
}
