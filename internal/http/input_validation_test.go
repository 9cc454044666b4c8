package handlers_test

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func TestSearchFilterValidation(t *testing.T) {
	app, _ := newTestApp(t)

	bad := []string{
		"/api/v1/items?q=%3Cscript%3E",
		"/api/v1/items?q=" + strings.Repeat("a", 101),
		"/api/v1/items?sort=cheapest",
		"/api/v1/items?priceMin=-5",
		"/api/v1/items?priceMin=500&priceMax=100",
		"/api/v1/items?page=0",
	}
	for _, path := range bad {
		resp, body := do(t, app, "GET", path, "", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %s", path, resp.StatusCode, body)
		}
	}

	resp, body := do(t, app, "GET", "/api/v1/items?q=switch&priceMax=1,000,000&sort=price_asc", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid search: %d %s", resp.StatusCode, body)
	}
	var res struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Total int `json:"total"`
	}
	decode(t, body, &res)
	if res.Total != 1 || len(res.Items) != 1 || res.Items[0].ID != "i-switch" {
		t.Fatalf("search result: %s", body)
	}

	resp, body = do(t, app, "GET", "/api/v1/items?categories=books,sports&sort=price_desc", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("category search: %d %s", resp.StatusCode, body)
	}
	decode(t, body, &res)
	if res.Total != 2 || res.Items[0].ID != "i-racket" {
		t.Fatalf("categories books,sports by price desc: %s", body)
	}
}

func TestItemInputValidation(t *testing.T) {
	app, _ := newTestApp(t)
	tok := login(t, app, "dave@tradepost.test")

	resp, _ := do(t, app, "GET", "/api/v1/items/..%2Fetc", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bad id: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "GET", "/api/v1/items/i-missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing item: expected 404, got %d", resp.StatusCode)
	}

	resp, _ = do(t, app, "POST", "/api/v1/items", tok, map[string]any{
		"title": "", "category": "books", "price": 1000, "condition": "USED",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty title: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/items", tok, map[string]any{
		"title": "Old atlas", "category": "books", "price": 1000, "condition": "BROKEN",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad condition: expected 400, got %d", resp.StatusCode)
	}
	resp, body := do(t, app, "POST", "/api/v1/items", tok, map[string]any{
		"title": "Old atlas", "category": "books", "location": "Daegu", "price": 15000, "condition": "used",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, app, "GET", "/api/v1/me/items", tok, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Old atlas") {
		t.Fatalf("my items: %d %s", resp.StatusCode, body)
	}
}

func TestOfferAndActionValidation(t *testing.T) {
	app, _ := newTestApp(t)
	bob := login(t, app, "bob@tradepost.test")
	alice := login(t, app, "alice@tradepost.test")

	// cash offers need an amount
	resp, _ := do(t, app, "POST", "/api/v1/items/i-switch/offers", bob, map[string]any{"type": "CASH_ONLY"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cash offer without amount: expected 400, got %d", resp.StatusCode)
	}
	// no offers on your own listing
	resp, _ = do(t, app, "POST", "/api/v1/items/i-switch/offers", alice, map[string]any{"type": "CASH_ONLY", "cashAmount": 1000})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self offer: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "GET", "/api/v1/offers?role=owner", bob, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role: expected 400, got %d", resp.StatusCode)
	}

	id := openCashTrade(t, app, bob, alice)
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/teleport", bob, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/pay", bob, map[string]any{"method": "card"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pay before requesting payment: expected 409, got %d", resp.StatusCode)
	}
	act(t, app, bob, id, "request-payment", nil)
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/actions/pay", bob, map[string]any{"method": "cheque"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported method: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/transactions/"+id+"/shipments/sideways", bob, map[string]any{"state": "IN_TRANSIT"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad side: expected 400, got %d", resp.StatusCode)
	}
}

// the params echoed back by a search can be replayed as a query string
func TestSearchAcceptsAPIParamNames(t *testing.T) {
	app, _ := newTestApp(t)

	type result struct {
		Total  int `json:"total"`
		Params struct {
			MinAmount *int64 `json:"minAmount"`
		} `json:"params"`
	}
	get := func(path string) result {
		resp, body := do(t, app, "GET", path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d %s", path, resp.StatusCode, body)
		}
		var r result
		decode(t, body, &r)
		return r
	}

	all := get("/api/v1/items")
	client := get("/api/v1/items?priceMin=1000000")
	if client.Params.MinAmount == nil || *client.Params.MinAmount != 1000000 {
		t.Fatalf("priceMin should echo as minAmount: %+v", client.Params)
	}
	if client.Total >= all.Total {
		t.Fatalf("priceMin did not filter: %d of %d", client.Total, all.Total)
	}
	api := get("/api/v1/items?minAmount=" + strconv.FormatInt(*client.Params.MinAmount, 10))
	if api.Total != client.Total {
		t.Fatalf("minAmount ignored: %d vs %d", api.Total, client.Total)
	}

	resp, _ := do(t, app, "GET", "/api/v1/items?minAmount=500&maxAmount=100", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("minAmount > maxAmount: expected 400, got %d", resp.StatusCode)
	}
}
