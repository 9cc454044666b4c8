package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type txResp struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int    `json:"version"`
	Payment *struct {
		Escrow string `json:"escrow"`
	} `json:"payment"`
	View struct {
		NextAction string   `json:"nextAction"`
		Actions    []string `json:"actions"`
	} `json:"view"`
}

// openCashTrade has the buyer offer on alice's switch and alice accept it.
func openCashTrade(t *testing.T, app *fiber.App, buyer, seller string) string {
	t.Helper()
	resp, body := do(t, app, "POST", "/api/v1/items/i-switch/offers", buyer, map[string]any{
		"type": "CASH_ONLY", "cashAmount": 300000, "message": "can pick up",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("offer: %d %s", resp.StatusCode, body)
	}
	var off struct {
		ID string `json:"id"`
	}
	decode(t, body, &off)

	resp, body = do(t, app, "POST", "/api/v1/offers/"+off.ID+"/accept", seller, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("accept: %d %s", resp.StatusCode, body)
	}
	var tx struct {
		ID string `json:"id"`
	}
	decode(t, body, &tx)
	return tx.ID
}

func act(t *testing.T, app *fiber.App, token, id, action string, in map[string]any) txResp {
	t.Helper()
	resp, body := do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/"+action, token, in)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: %d %s", action, resp.StatusCode, body)
	}
	var d txResp
	decode(t, body, &d)
	return d
}

func TestCashTradeOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	bob := login(t, app, "bob@tradepost.test")
	alice := login(t, app, "alice@tradepost.test")
	id := openCashTrade(t, app, bob, alice)

	d := act(t, app, bob, id, "request-payment", nil)
	if d.Status != "PAYMENT_PENDING" {
		t.Fatalf("after request-payment: %s", d.Status)
	}

	// the seller cannot pay
	resp, _ := do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/pay", alice, map[string]any{"method": "card"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("seller pay: expected 403, got %d", resp.StatusCode)
	}
	// stale version
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/pay", bob, map[string]any{"method": "card", "version": d.Version - 1})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale version: expected 409, got %d", resp.StatusCode)
	}
	d = act(t, app, bob, id, "pay", map[string]any{"method": "card", "version": d.Version})
	if d.Payment == nil || d.Payment.Escrow != "HELD" {
		t.Fatalf("payment: %+v", d.Payment)
	}

	act(t, app, alice, id, "prepare-shipping", nil)
	resp, body := do(t, app, "POST", "/api/v1/transactions/"+id+"/shipments", alice, map[string]any{
		"carrier": "CJ Logistics", "trackingNumber": "cj 1234 5678",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ship: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, app, "POST", "/api/v1/transactions/"+id+"/shipments/seller", bob, map[string]any{"state": "in_transit"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tracking: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, app, "POST", "/api/v1/transactions/"+id+"/confirm-delivery", bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: %d %s", resp.StatusCode, body)
	}
	decode(t, body, &d)
	if d.Status != "DELIVERED" || d.Payment.Escrow != "RELEASED" {
		t.Fatalf("after delivery: %s %+v", d.Status, d.Payment)
	}

	act(t, app, bob, id, "review", map[string]any{"rating": 5, "comment": "smooth"})
	d = act(t, app, alice, id, "review", map[string]any{"rating": 4})
	if d.Status != "COMPLETED" {
		t.Fatalf("after reviews: %s", d.Status)
	}

	// completed trades accept nothing further
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/cancel", bob, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel after completion: expected 409, got %d", resp.StatusCode)
	}

	resp, body = do(t, app, "GET", "/api/v1/transactions/"+id+"/timeline", alice, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "COMPLETED") {
		t.Fatalf("timeline: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, app, "GET", "/api/v1/transactions/"+id+"/receipt", bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("receipt: %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("receipt content type %q", ct)
	}
	if !strings.Contains(string(body), "Nintendo Switch OLED") {
		t.Fatalf("receipt missing item title: %s", body)
	}

	resp, body = do(t, app, "GET", "/api/v1/users/u-alice/reviews", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "smooth") {
		t.Fatalf("reviews: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, app, "GET", "/api/v1/transactions?role=buyer&status=completed", bob, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), id) {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
}

func TestMessagesAndNotifications(t *testing.T) {
	app, _ := newTestApp(t)
	bob := login(t, app, "bob@tradepost.test")
	alice := login(t, app, "alice@tradepost.test")
	id := openCashTrade(t, app, bob, alice)

	resp, body := do(t, app, "POST", "/api/v1/transactions/"+id+"/messages", bob, map[string]string{"body": "when can you ship?"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send: %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/messages", bob, map[string]string{"body": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank message: expected 400, got %d", resp.StatusCode)
	}
	resp, body = do(t, app, "GET", "/api/v1/transactions/"+id+"/messages", alice, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "when can you ship?") {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, app, "GET", "/api/v1/transactions/"+id+"/messages?since=yesterday", alice, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad since: expected 400, got %d", resp.StatusCode)
	}

	var inbox struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Unread int `json:"unread"`
	}
	resp, body = do(t, app, "GET", "/api/v1/notifications?unread=true", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inbox: %d %s", resp.StatusCode, body)
	}
	decode(t, body, &inbox)
	if inbox.Unread == 0 || len(inbox.Items) == 0 {
		t.Fatalf("alice should have unread notifications: %s", body)
	}

	resp, _ = do(t, app, "POST", "/api/v1/notifications/"+inbox.Items[0].ID+"/read", bob, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("marking someone else's notification: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/notifications/"+inbox.Items[0].ID+"/read", alice, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("mark read: %d", resp.StatusCode)
	}
	resp, body = do(t, app, "POST", "/api/v1/notifications/read-all", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read all: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, app, "GET", "/api/v1/notifications?unread=true", alice, nil)
	decode(t, body, &inbox)
	if inbox.Unread != 0 {
		t.Fatalf("unread after read-all: %d", inbox.Unread)
	}
}

func TestAuctionBiddingOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	bob := login(t, app, "bob@tradepost.test")
	dave := login(t, app, "dave@tradepost.test")

	resp, body := do(t, app, "GET", "/api/v1/auctions/a-cards", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auction: %d %s", resp.StatusCode, body)
	}
	var a struct {
		MinNextBid int64  `json:"minNextBid"`
		Display    string `json:"currentBidDisplay"`
	}
	decode(t, body, &a)
	if a.MinNextBid != 500000 {
		t.Fatalf("opening bid should be the start price, got %d", a.MinNextBid)
	}

	resp, _ = do(t, app, "POST", "/api/v1/auctions/a-cards/bids", bob, map[string]any{"amount": 400000})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("low bid: expected 422, got %d", resp.StatusCode)
	}
	resp, body = do(t, app, "POST", "/api/v1/auctions/a-cards/bids", bob, map[string]any{"amount": 500000})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bid: %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, app, "POST", "/api/v1/auctions/a-cards/bids", dave, map[string]any{"amount": 505000})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("below increment: expected 422, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/auctions/a-cards/bids", dave, map[string]any{"amount": 510000})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("outbid: %d", resp.StatusCode)
	}

	resp, body = do(t, app, "GET", "/api/v1/auctions/a-cards/bids", bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bids: %d %s", resp.StatusCode, body)
	}
	var bids []struct {
		Amount    int64 `json:"amount"`
		IsWinning bool  `json:"isWinning"`
		IsMine    bool  `json:"isMine"`
	}
	decode(t, body, &bids)
	if len(bids) != 2 || bids[0].Amount != 510000 || !bids[0].IsWinning || bids[0].IsMine || !bids[1].IsMine {
		t.Fatalf("bid ranking for bob: %+v", bids)
	}

	resp, body = do(t, app, "GET", "/api/v1/me/bids", bob, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "a-cards") {
		t.Fatalf("my bids: %d %s", resp.StatusCode, body)
	}

	// carol owns the auction; it has bids so it can no longer be cancelled
	carol := login(t, app, "carol@tradepost.test")
	resp, _ = do(t, app, "POST", "/api/v1/auctions/a-cards/cancel", carol, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel with bids: expected 409, got %d", resp.StatusCode)
	}
}
