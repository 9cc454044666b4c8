package repos

import (
	"context"
	"time"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type MessageRepo struct{ db sqlx.ExtContext }

func NewMessageRepo(db sqlx.ExtContext) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) Create(ctx context.Context, m domain.Message) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO messages(id, thread_id, sender_id, body, created_at) VALUES(?,?,?,?,?)
	`), m.ID, m.ThreadID, m.SenderID, m.Body, m.CreatedAt)
	return err
}

// List returns a thread oldest first, optionally only messages after since.
func (r *MessageRepo) List(ctx context.Context, threadID string, since time.Time) ([]domain.Message, error) {
	q := `SELECT id, thread_id, sender_id, body, created_at FROM messages WHERE thread_id = ?`
	args := []any{threadID}
	if !since.IsZero() {
		q += ` AND created_at > ?`
		args = append(args, since.UTC())
	}
	q += ` ORDER BY created_at, id`
	var out []domain.Message
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...)
	return out, err
}
