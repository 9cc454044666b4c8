package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"tradepost/internal/repos"
)

// seeded passwords are stored as bcrypt hashes, never plaintext
func TestPasswordsSeededAreHashed(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := repos.Seed(context.Background(), db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var hashes []string
	if err := db.Select(&hashes, `SELECT password_hash FROM users`); err != nil {
		t.Fatalf("select hashes: %v", err)
	}
	if len(hashes) == 0 {
		t.Fatal("no users seeded")
	}
	for _, h := range hashes {
		if strings.Contains(h, repos.SeedPassword) {
			t.Fatalf("hash contains plaintext password")
		}
		if !strings.HasPrefix(h, "$2") {
			t.Fatalf("unexpected hash format: %s", h)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h), []byte(repos.SeedPassword)); err != nil {
			t.Fatalf("seed hash does not validate known password: %v", err)
		}
	}
}

func TestLoginSuccessFailAndThrottle(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "alice@tradepost.test", "password": "wrongpass!",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad creds, got %d", resp.StatusCode)
	}

	resp, _ = do(t, app, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "not-an-email", "password": "whatever",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed email, got %d", resp.StatusCode)
	}

	tok := login(t, app, "alice@tradepost.test")
	resp, body := do(t, app, "GET", "/api/v1/me", tok, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "u-alice") {
		t.Fatalf("me: %d %s", resp.StatusCode, body)
	}

	// five attempts per window; three used above
	for i := 0; i < 2; i++ {
		do(t, app, "POST", "/api/v1/auth/login", "", map[string]string{"email": "bob@tradepost.test", "password": "x"})
	}
	resp, _ = do(t, app, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "alice@tradepost.test", "password": repos.SeedPassword,
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after throttle, got %d", resp.StatusCode)
	}
}

func TestRegister(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "erin@tradepost.test", "name": "Erin", "password": "weak",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, app, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "erin@tradepost.test", "name": "Erin", "password": "Sup3r$ecret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	decode(t, body, &out)
	if out.Token == "" || out.User.Role != "USER" {
		t.Fatalf("register response: %s", body)
	}
	if strings.Contains(string(body), "password") {
		t.Fatalf("password hash leaked: %s", body)
	}

	resp, _ = do(t, app, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "ERIN@tradepost.test", "name": "Erin again", "password": "Sup3r$ecret",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{"/api/v1/me", "/api/v1/transactions", "/api/v1/notifications", "/api/v1/offers"} {
		resp, _ := do(t, app, "GET", path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token: %d", path, resp.StatusCode)
		}
		resp, _ = do(t, app, "GET", path, "not.a.jwt", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s with garbage token: %d", path, resp.StatusCode)
		}
	}
}
