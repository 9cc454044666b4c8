package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Store bundles the repos over one handle so a service can run several of
// them inside a single database transaction.
type Store struct {
	db *sqlx.DB

	Users         *UserRepo
	Categories    *CategoryRepo
	Items         *ItemRepo
	Auctions      *AuctionRepo
	Offers        *OfferRepo
	Transactions  *TransactionRepo
	Reviews       *ReviewRepo
	Notifications *NotificationRepo
	Messages      *MessageRepo
}

func NewStore(db *sqlx.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(q sqlx.ExtContext) *Store {
	return &Store{
		Users:         NewUserRepo(q),
		Categories:    NewCategoryRepo(q),
		Items:         NewItemRepo(q),
		Auctions:      NewAuctionRepo(q),
		Offers:        NewOfferRepo(q),
		Transactions:  NewTransactionRepo(q),
		Reviews:       NewReviewRepo(q),
		Notifications: NewNotificationRepo(q),
		Messages:      NewMessageRepo(q),
	}
}

// DB exposes the underlying handle (health checks, seeding).
func (s *Store) DB() *sqlx.DB { return s.db }

// Tx runs fn with a Store whose repos all share one database transaction.
// Calling Tx on a Store that is already transactional runs fn directly.
func (s *Store) Tx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	return InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(bind(tx))
	})
}
