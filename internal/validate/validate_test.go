package validate_test

import (
	"testing"

	"tradepost/internal/validate"
)

func TestTrackingNormalises(t *testing.T) {
	got, ok := validate.Tracking(" cj 1234 5678 ")
	if !ok || got != "CJ12345678" {
		t.Fatalf("got %q %v", got, ok)
	}
	if _, ok := validate.Tracking("<script>"); ok {
		t.Fatal("markup accepted as tracking number")
	}
}

func TestPassword(t *testing.T) {
	cases := map[string]bool{
		"Passw0rd!": true,
		"password":  false,
		"Sh0rt!":    false,
		"NoDigits!": false,
	}
	for pw, want := range cases {
		if validate.Password(pw) != want {
			t.Fatalf("Password(%q) != %v", pw, want)
		}
	}
}

func TestQueryAndText(t *testing.T) {
	if _, ok := validate.Q("닌텐도 switch"); !ok {
		t.Fatal("non-latin letters are valid queries")
	}
	if _, ok := validate.Q("drop table;--"); ok {
		t.Fatal("semicolon accepted")
	}
	if _, ok := validate.Text("", 10, true); ok {
		t.Fatal("required text accepted blank")
	}
	if _, ok := validate.Text("12345678901", 10, false); ok {
		t.Fatal("over-long text accepted")
	}
}
