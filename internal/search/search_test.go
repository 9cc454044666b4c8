package search_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"tradepost/internal/search"
)

func TestBuildParamsCategoryAndMin(t *testing.T) {
	p, err := search.BuildParams(search.Filter{Category: "Electronics", PriceMin: "1000"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Category != "Electronics" || p.MinAmount == nil || *p.MinAmount != 1000 {
		t.Fatalf("unexpected params: %+v", p)
	}
	if p.MaxAmount != nil || p.Query != "" || p.Location != "" || len(p.Categories) != 0 {
		t.Fatalf("blank fields must be omitted: %+v", p)
	}
	got := p.Values()
	want := map[string]string{"category": "Electronics", "minAmount": "1000"}
	if len(got) != len(want) {
		t.Fatalf("values: %v", got)
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Fatalf("values[%s] = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestFilterRoundTrip(t *testing.T) {
	filters := []search.Filter{
		{Category: "Electronics", PriceMin: "1000"},
		{Q: "switch", Categories: "electronics, home,electronics", Location: "Seoul", PriceMin: "1,000", PriceMax: "500000", Sort: "price_desc", Page: "3"},
		{Sort: "ending_soon"},
		{},
	}
	for _, f := range filters {
		p, err := search.BuildParams(f)
		if err != nil {
			t.Fatalf("%+v: %v", f, err)
		}
		again, err := search.BuildParams(search.ParseFilter(p.Values()))
		if err != nil {
			t.Fatalf("reparse %+v: %v", p, err)
		}
		if !reflect.DeepEqual(p, again) {
			t.Fatalf("round trip changed params:\n got %+v\nwant %+v", again, p)
		}
	}
}

func TestBuildParamsRejects(t *testing.T) {
	bad := []search.Filter{
		{PriceMin: "abc"},
		{PriceMax: "-5"},
		{PriceMin: "10", PriceMax: "5"},
		{Sort: "cheapest"},
		{Page: "0"},
	}
	for _, f := range bad {
		if _, err := search.BuildParams(f); !errors.Is(err, search.ErrInvalidFilter) {
			t.Fatalf("%+v: want ErrInvalidFilter, got %v", f, err)
		}
	}
}

func TestPaging(t *testing.T) {
	cases := []struct {
		p             search.Params
		limit, offset int
	}{
		{search.Params{}, search.DefaultPageSize, 0},
		{search.Params{Page: 1, PageSize: 10}, 10, 0},
		{search.Params{Page: 3, PageSize: 10}, 10, 20},
		{search.Params{Page: 2}, search.DefaultPageSize, search.DefaultPageSize},
	}
	for _, c := range cases {
		if c.p.Limit() != c.limit || c.p.Offset() != c.offset {
			t.Fatalf("%+v: limit %d offset %d, want %d %d", c.p, c.p.Limit(), c.p.Offset(), c.limit, c.offset)
		}
	}
}

type recorder struct {
	mu  sync.Mutex
	got []string
	ch  chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 8)} }

func (r *recorder) fire(q string) {
	r.mu.Lock()
	r.got = append(r.got, q)
	r.mu.Unlock()
	r.ch <- q
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDebouncerFiresAfterQuietWindow(t *testing.T) {
	rec := newRecorder()
	d := search.NewDebouncer(50*time.Millisecond, rec.fire)
	defer d.Stop()

	for _, q := range []string{"s", "sw", "swi", "switch"} {
		d.Submit(q)
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 0 {
		t.Fatal("fired before the quiet window elapsed")
	}
	select {
	case q := <-rec.ch:
		if q != "switch" {
			t.Fatalf("fired %q, want latest query", q)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("want exactly one fire, got %v", rec.got)
	}
}

func TestDebouncerSuppressesDuplicate(t *testing.T) {
	rec := newRecorder()
	d := search.NewDebouncer(20*time.Millisecond, rec.fire)
	defer d.Stop()

	d.Submit("lamp")
	<-rec.ch
	d.Submit(" lamp ")
	time.Sleep(80 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("identical query fired again: %v", rec.got)
	}
	d.Submit("lamps")
	select {
	case q := <-rec.ch:
		if q != "lamps" {
			t.Fatalf("got %q", q)
		}
	case <-time.After(time.Second):
		t.Fatal("changed query did not fire")
	}
}

func TestDebouncerStop(t *testing.T) {
	rec := newRecorder()
	d := search.NewDebouncer(20*time.Millisecond, rec.fire)
	d.Submit("jacket")
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatal("stopped debouncer fired")
	}
}
