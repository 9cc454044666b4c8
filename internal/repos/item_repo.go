package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/search"

	"github.com/jmoiron/sqlx"
)

// ErrNotUpdated is returned by conditional updates whose guard did not match
// (stale version, wrong status, outbid).
var ErrNotUpdated = errors.New("repos: conditional update matched no rows")

type ItemRepo struct{ db sqlx.ExtContext }

func NewItemRepo(db sqlx.ExtContext) *ItemRepo { return &ItemRepo{db: db} }

// ItemRow is a listing as shown in search results, with its live auction if any.
type ItemRow struct {
	domain.Item
	CategoryName string     `db:"category_name" json:"categoryName"`
	AuctionID    *string    `db:"auction_id" json:"auctionId,omitempty"`
	EndsAt       *time.Time `db:"ends_at" json:"endsAt,omitempty"`
}

const itemCols = `i.id, i.seller_id, i.title, i.description, i.category, i.location, i.price,
	i.condition, i.tradeable, i.status, i.created_at`

func (r *ItemRepo) Create(ctx context.Context, it domain.Item) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO items(id,seller_id,title,description,category,location,price,condition,tradeable,status,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
	`), it.ID, it.SellerID, it.Title, it.Description, it.Category, it.Location, it.Price,
		it.Condition, it.Tradeable, it.Status, it.CreatedAt)
	return err
}

func (r *ItemRepo) Get(ctx context.Context, id string) (domain.Item, error) {
	var it domain.Item
	err := sqlx.GetContext(ctx, r.db, &it, r.db.Rebind(`SELECT `+itemCols+` FROM items i WHERE i.id = ?`), id)
	return it, err
}

func (r *ItemRepo) ListBySeller(ctx context.Context, sellerID string) ([]domain.Item, error) {
	var out []domain.Item
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+itemCols+` FROM items i
		WHERE i.seller_id = ? AND i.status <> 'HIDDEN'
		ORDER BY i.created_at DESC
	`), sellerID)
	return out, err
}

// SetStatus moves an item from one of the given statuses to next.
func (r *ItemRepo) SetStatus(ctx context.Context, id, next string, from ...string) error {
	q := `UPDATE items SET status = ? WHERE id = ?`
	args := []any{next, id}
	if len(from) > 0 {
		q += ` AND status IN (?` + strings.Repeat(",?", len(from)-1) + `)`
		for _, s := range from {
			args = append(args, s)
		}
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotUpdated
	}
	return nil
}

// Search lists ACTIVE items matching p and the total match count.
func (r *ItemRepo) Search(ctx context.Context, p search.Params) ([]ItemRow, int, error) {
	where := `i.status = 'ACTIVE'`
	args := []any{}
	if p.Query != "" {
		like := "%" + strings.ToLower(p.Query) + "%"
		where += ` AND (LOWER(i.title) LIKE ? OR LOWER(i.description) LIKE ?)`
		args = append(args, like, like)
	}
	cats := p.Categories
	if p.Category != "" {
		cats = append([]string{p.Category}, cats...)
	}
	if len(cats) > 0 {
		where += ` AND (i.category IN (?` + strings.Repeat(",?", len(cats)-1) + `)` +
			` OR LOWER(c.name) IN (?` + strings.Repeat(",?", len(cats)-1) + `))`
		for _, c := range cats {
			args = append(args, c)
		}
		for _, c := range cats {
			args = append(args, strings.ToLower(c))
		}
	}
	if p.Location != "" {
		where += ` AND LOWER(i.location) LIKE ?`
		args = append(args, "%"+strings.ToLower(p.Location)+"%")
	}
	if p.MinAmount != nil {
		where += ` AND i.price >= ?`
		args = append(args, *p.MinAmount)
	}
	if p.MaxAmount != nil {
		where += ` AND i.price <= ?`
		args = append(args, *p.MaxAmount)
	}

	from := `
		FROM items i
		JOIN categories c ON c.id = i.category
		LEFT JOIN auctions a ON a.item_id = i.id AND a.status = 'ACTIVE'
		WHERE ` + where

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) `+from), args...); err != nil {
		return nil, 0, err
	}

	order := `i.created_at DESC, i.id`
	switch p.Sort {
	case search.SortPriceAsc:
		order = `i.price ASC, i.id`
	case search.SortPriceDesc:
		order = `i.price DESC, i.id`
	case search.SortEndingSoon:
		order = `CASE WHEN a.ends_at IS NULL THEN 1 ELSE 0 END, a.ends_at ASC, i.created_at DESC, i.id`
	}

	var out []ItemRow
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+itemCols+`, c.name AS category_name, a.id AS auction_id, a.ends_at `+from+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?`), append(args, p.Limit(), p.Offset())...)
	return out, total, err
}
