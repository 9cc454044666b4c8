package repos

import (
	"context"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type ReviewRepo struct{ db sqlx.ExtContext }

func NewReviewRepo(db sqlx.ExtContext) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewCols = `id, transaction_id, reviewer_id, reviewee_id, rating, comment, created_at`

// Create fails on the (transaction_id, reviewer_id) unique key for a second review.
func (r *ReviewRepo) Create(ctx context.Context, rv domain.Review) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO reviews(`+reviewCols+`) VALUES(?,?,?,?,?,?,?)
	`), rv.ID, rv.TransactionID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment, rv.CreatedAt)
	return err
}

func (r *ReviewRepo) ForTransaction(ctx context.Context, txID string) ([]domain.Review, error) {
	var out []domain.Review
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+reviewCols+` FROM reviews WHERE transaction_id = ? ORDER BY created_at
	`), txID)
	return out, err
}

func (r *ReviewRepo) ForUser(ctx context.Context, userID string) ([]domain.Review, error) {
	var out []domain.Review
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+reviewCols+` FROM reviews WHERE reviewee_id = ? ORDER BY created_at DESC
	`), userID)
	return out, err
}
