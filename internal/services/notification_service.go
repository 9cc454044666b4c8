package services

import (
	"context"
	"errors"

	"tradepost/internal/domain"
	"tradepost/internal/live"
	"tradepost/internal/repos"
)

// Notification kinds
const (
	NoteOutbid          = "OUTBID"
	NoteAuctionWon      = "AUCTION_WON"
	NoteAuctionEnded    = "AUCTION_ENDED"
	NoteOfferReceived   = "OFFER_RECEIVED"
	NoteOfferAccepted   = "OFFER_ACCEPTED"
	NoteOfferRejected   = "OFFER_REJECTED"
	NoteOfferCountered  = "OFFER_COUNTERED"
	NoteOfferWithdrawn  = "OFFER_WITHDRAWN"
	NoteOfferExpired    = "OFFER_EXPIRED"
	NoteTransaction     = "TRANSACTION_UPDATED"
	NoteMessage         = "MESSAGE"
	NoteReviewReceived  = "REVIEW_RECEIVED"
	notificationPageCap = 100
)

type NotificationService struct {
	Store *repos.Store
	bus   live.Bus
	now   Clock
}

func NewNotificationService(store *repos.Store, bus live.Bus) *NotificationService {
	return &NotificationService{Store: store, bus: bus, now: utcNow}
}

// push stores a notification with the caller's transaction and queues the
// live event for after commit.
func (s *NotificationService) push(ctx context.Context, st *repos.Store, ob *outbox, userID, kind, title, body, ref string) error {
	if userID == "" {
		return nil
	}
	n := domain.Notification{
		ID:        newID(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		RefID:     ref,
		CreatedAt: s.now(),
	}
	if err := st.Notifications.Create(ctx, n); err != nil {
		return err
	}
	ob.add(live.UserChannel(userID), "notification", n)
	return nil
}

type Inbox struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) (Inbox, error) {
	items, err := s.Store.Notifications.List(ctx, userID, unreadOnly, notificationPageCap)
	if err != nil {
		return Inbox{}, err
	}
	unread, err := s.Store.Notifications.UnreadCount(ctx, userID)
	if err != nil {
		return Inbox{}, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return Inbox{Items: items, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := s.Store.Notifications.MarkRead(ctx, userID, id, s.now())
	if errors.Is(err, repos.ErrNotUpdated) {
		return notFoundErr("notification")
	}
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.Store.Notifications.MarkAllRead(ctx, userID, s.now())
}
