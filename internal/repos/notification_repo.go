package repos

import (
	"context"
	"time"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type NotificationRepo struct{ db sqlx.ExtContext }

func NewNotificationRepo(db sqlx.ExtContext) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n domain.Notification) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO notifications(id, user_id, kind, title, body, ref_id, created_at)
		VALUES(?,?,?,?,?,?,?)
	`), n.ID, n.UserID, n.Kind, n.Title, n.Body, n.RefID, n.CreatedAt)
	return err
}

func (r *NotificationRepo) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, user_id, kind, title, body, ref_id, read_at, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, id LIMIT ?`
	var out []domain.Notification
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), userID, limit)
	return out, err
}

// MarkRead is scoped to the owner so one user cannot touch another's inbox.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?
	`), now.UTC(), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL
	`), now.UTC(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(`
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL
	`), userID)
	return n, err
}
