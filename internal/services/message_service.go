package services

import (
	"context"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/live"
	"tradepost/internal/repos"
	"tradepost/internal/validate"
)

// MessageService is the chat between the two parties of a transaction;
// the thread id is the transaction id.
type MessageService struct {
	Store *repos.Store
	Notes *NotificationService
	bus   live.Bus
	now   Clock
}

func NewMessageService(store *repos.Store, notes *NotificationService, bus live.Bus) *MessageService {
	return &MessageService{Store: store, Notes: notes, bus: bus, now: utcNow}
}

// counterparty returns the other participant, or ErrForbidden for outsiders.
func (s *MessageService) counterparty(ctx context.Context, st *repos.Store, threadID, userID string) (string, error) {
	t, err := st.Transactions.Get(ctx, threadID)
	if err != nil {
		return "", notFound(err, "chat")
	}
	switch userID {
	case t.BuyerID:
		return t.SellerID, nil
	case t.SellerID:
		return t.BuyerID, nil
	}
	return "", ErrForbidden
}

func (s *MessageService) Send(ctx context.Context, threadID, senderID, body string) (domain.Message, error) {
	body, ok := validate.Text(body, 1000, true)
	if !ok {
		return domain.Message{}, invalid("message must be 1-1000 characters")
	}
	m := domain.Message{ID: newID(), ThreadID: threadID, SenderID: senderID, Body: body, CreatedAt: s.now()}
	var ob outbox
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		other, err := s.counterparty(ctx, st, threadID, senderID)
		if err != nil {
			return err
		}
		if err := st.Messages.Create(ctx, m); err != nil {
			return err
		}
		ob.add(live.TxChannel(threadID), "message", m)
		return s.Notes.push(ctx, st, &ob, other, NoteMessage, "New message", preview(body), threadID)
	})
	if err != nil {
		return domain.Message{}, err
	}
	ob.flush(ctx, s.bus)
	return m, nil
}

func (s *MessageService) List(ctx context.Context, threadID, userID string, since time.Time) ([]domain.Message, error) {
	if _, err := s.counterparty(ctx, s.Store, threadID, userID); err != nil {
		return nil, err
	}
	out, err := s.Store.Messages.List(ctx, threadID, since)
	if out == nil && err == nil {
		out = []domain.Message{}
	}
	return out, err
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 60 {
		return s
	}
	return string(r[:57]) + "..."
}
