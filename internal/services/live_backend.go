package services

import (
	"context"
	"strings"
)

// LiveBackend answers the websocket hub's questions about tokens, channel
// access and type-ahead search.
type LiveBackend struct {
	Auth         *AuthService
	Items        *ItemService
	Transactions *TransactionService
}

func (b *LiveBackend) Authenticate(token string) (string, error) {
	return b.Auth.Authenticate(token)
}

// CanWatch: any auction, your own inbox, trades you are part of (admins
// see every trade).
func (b *LiveBackend) CanWatch(ctx context.Context, userID, channel string) bool {
	kind, id, ok := strings.Cut(channel, ":")
	if !ok || id == "" || strings.ContainsAny(id, "*?[") {
		return false
	}
	switch kind {
	case "auction":
		return true
	case "user":
		return id == userID
	case "tx":
		u, err := b.Auth.Me(ctx, userID)
		if err != nil {
			return false
		}
		_, err = b.Transactions.Get(ctx, id, Viewer{ID: u.ID, Role: u.Role})
		return err == nil
	}
	return false
}

func (b *LiveBackend) Suggest(ctx context.Context, q string) (any, error) {
	return b.Items.Suggest(ctx, q)
}
