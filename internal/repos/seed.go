package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	applog "tradepost/internal/log"
)

// SeedPassword is the password of every seeded demo account.
const SeedPassword = "Passw0rd!"

// Seed inserts demo users, categories, listings and one live auction.
// Safe to run on every startup (idempotent).
func Seed(ctx context.Context, db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role string
	}
	users := []u{
		{"u-alice", "alice@tradepost.test", "Alice", "USER"},
		{"u-bob", "bob@tradepost.test", "Bob", "USER"},
		{"u-carol", "carol@tradepost.test", "Carol", "USER"},
		{"u-dave", "dave@tradepost.test", "Dave", "USER"},
		{"u-admin", "admin@tradepost.test", "Admin", "ADMIN"},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return InTx(ctx, db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
			return err
		}
		if n == 0 {
			applog.Event("seed.demo", map[string]any{"users": len(users)})
		}

		for _, x := range users {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO users(id,email,name,password_hash,role,created_at)
				VALUES(?,?,?,?,?,?)
				ON CONFLICT(email) DO NOTHING
			`), x.ID, x.Email, x.Name, string(hash), x.Role, now); err != nil {
				return err
			}
		}

		cats := [][2]string{
			{"electronics", "Electronics"},
			{"fashion", "Fashion"},
			{"home", "Home & Living"},
			{"sports", "Sports"},
			{"books", "Books"},
			{"collectibles", "Collectibles"},
		}
		for _, c := range cats {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO categories(id,name) VALUES(?,?)
				ON CONFLICT(id) DO NOTHING
			`), c[0], c[1]); err != nil {
				return err
			}
		}

		type it struct {
			ID, Seller, Title, Desc, Cat, Loc, Cond string
			Price                                   int64
			Tradeable                               bool
		}
		items := []it{
			{"i-switch", "u-alice", "Nintendo Switch OLED", "Barely used, with dock and two joy-cons.", "electronics", "Seoul", "LIKE_NEW", 320000, true},
			{"i-camera", "u-alice", "Fujifilm X100V", "Silver body, shutter count under 2k.", "electronics", "Seoul", "USED", 1450000, false},
			{"i-jacket", "u-bob", "Vintage denim jacket", "Size M, 90s wash.", "fashion", "Busan", "USED", 45000, true},
			{"i-lamp", "u-bob", "Mid-century desk lamp", "Brass, rewired.", "home", "Busan", "USED", 80000, true},
			{"i-racket", "u-carol", "Yonex tennis racket", "Strung last month.", "sports", "Incheon", "LIKE_NEW", 120000, true},
			{"i-cards", "u-carol", "Pokemon base set binder", "Complete base set, a few holos.", "collectibles", "Incheon", "USED", 600000, false},
			{"i-novel", "u-dave", "Signed first edition novel", "Dust jacket intact.", "books", "Daegu", "USED", 95000, false},
		}
		for _, x := range items {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO items(id,seller_id,title,description,category,location,price,condition,tradeable,status,created_at)
				VALUES(?,?,?,?,?,?,?,?,?,'ACTIVE',?)
				ON CONFLICT(id) DO NOTHING
			`), x.ID, x.Seller, x.Title, x.Desc, x.Cat, x.Loc, x.Price, x.Cond, x.Tradeable, now); err != nil {
				return err
			}
		}

		// the binder is listed through a two hour auction
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO auctions(id,item_id,seller_id,start_price,min_increment,soft_close_seconds,starts_at,ends_at,status,created_at)
			VALUES('a-cards','i-cards','u-carol',500000,10000,120,?,?,'ACTIVE',?)
			ON CONFLICT(id) DO NOTHING
		`), now, now.Add(2*time.Hour), now)
		return err
	})
}
