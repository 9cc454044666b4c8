package repos

import (
	"context"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type UserRepo struct{ db sqlx.ExtContext }

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

const userCols = `id,email,name,password_hash,role,created_at`

func (r *UserRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users(id,email,name,password_hash,role,created_at)
		VALUES(?,?,?,?,?,?)
	`), u.ID, u.Email, u.Name, u.Hash, u.Role, u.CreatedAt)
	return err
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userCols+` FROM users WHERE LOWER(email)=LOWER(?)`), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userCols+` FROM users WHERE id=?`), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Party returns the public profile with average rating and completed trades.
func (r *UserRepo) Party(ctx context.Context, id string) (domain.Party, error) {
	var p domain.Party
	err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(`
		SELECT u.id, u.name,
		  COALESCE((SELECT CAST(AVG(rating) AS DOUBLE PRECISION) FROM reviews WHERE reviewee_id = u.id), 0) AS rating,
		  (SELECT COUNT(*) FROM transactions t
		     WHERE t.status = 'COMPLETED' AND (t.seller_id = u.id OR t.buyer_id = u.id)) AS trades
		FROM users u WHERE u.id = ?
	`), id)
	return p, err
}
