package repos

import (
	"context"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type CategoryRepo struct{ db sqlx.ExtContext }

func NewCategoryRepo(db sqlx.ExtContext) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := sqlx.SelectContext(ctx, r.db, &out, `SELECT id, name FROM categories ORDER BY name`)
	return out, err
}

// Resolve accepts a category id or display name ("Electronics").
func (r *CategoryRepo) Resolve(ctx context.Context, idOrName string) (domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(`
		SELECT id, name FROM categories WHERE id = ? OR LOWER(name) = LOWER(?)
	`), idOrName, idOrName)
	return c, err
}
