package handlers

import (
	"time"

	"tradepost/internal/config"
	"tradepost/internal/services"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth          *services.AuthService
	Items         *services.ItemService
	Offers        *services.OfferService
	Auctions      *services.AuctionService
	Transactions  *services.TransactionService
	Shipping      *services.ShippingService
	Messages      *services.MessageService
	Reviews       *services.ReviewService
	Notifications *services.NotificationService
	Sweeper       *services.Sweeper
}

type Deps struct {
	Auth *services.AuthService

	AuthHandler         *AuthHandler
	CategoryHandler     *CategoryHandler
	SearchHandler       *SearchHandler
	ItemHandler         *ItemHandler
	OfferHandler        *OfferHandler
	AuctionHandler      *AuctionHandler
	TransactionHandler  *TransactionHandler
	MessageHandler      *MessageHandler
	ReviewHandler       *ReviewHandler
	NotificationHandler *NotificationHandler
	AdminHandler        *AdminHandler
}

func NewDeps(cfg config.Config, svc Services) *Deps {
	return &Deps{
		Auth: svc.Auth,

		AuthHandler:     &AuthHandler{Auth: svc.Auth},
		CategoryHandler: &CategoryHandler{Items: svc.Items},
		SearchHandler:   &SearchHandler{Items: svc.Items},
		ItemHandler:     &ItemHandler{Items: svc.Items},
		OfferHandler:    &OfferHandler{Offers: svc.Offers},
		AuctionHandler:  &AuctionHandler{Auctions: svc.Auctions},
		TransactionHandler: &TransactionHandler{
			Tx:       svc.Transactions,
			Shipping: svc.Shipping,
			Currency: cfg.Market.Currency,
			Now:      time.Now,
		},
		MessageHandler:      &MessageHandler{Messages: svc.Messages},
		ReviewHandler:       &ReviewHandler{Reviews: svc.Reviews},
		NotificationHandler: &NotificationHandler{Notes: svc.Notifications},
		AdminHandler:        &AdminHandler{Tx: svc.Transactions, Sweeper: svc.Sweeper},
	}
}
