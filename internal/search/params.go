// Package search turns list filters (form or URL state, all strings) into
// typed query parameters for the items API, and back.
package search

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidFilter = errors.New("search: invalid filter")

const (
	SortNewest     = "newest"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortEndingSoon = "ending_soon"

	DefaultPageSize = 20
	maxQueryLen     = 100
)

var sorts = map[string]bool{SortNewest: true, SortPriceAsc: true, SortPriceDesc: true, SortEndingSoon: true}

// Filter mirrors what a client holds in its form or URL.
type Filter struct {
	Q          string `json:"q"`
	Category   string `json:"category"`
	Categories string `json:"categories"` // comma separated
	Location   string `json:"location"`
	PriceMin   string `json:"priceMin"`
	PriceMax   string `json:"priceMax"`
	Sort       string `json:"sort"`
	Page       string `json:"page"`
}

// Params are the typed API query parameters. Unset fields are zero/nil.
type Params struct {
	Query      string   `json:"query,omitempty"`
	Category   string   `json:"category,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Location   string   `json:"location,omitempty"`
	MinAmount  *int64   `json:"minAmount,omitempty"`
	MaxAmount  *int64   `json:"maxAmount,omitempty"`
	Sort       string   `json:"sort"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
}

// Limit is the page size, DefaultPageSize when unset.
func (p Params) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

// Offset is the number of rows before the page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// BuildParams validates a Filter and converts it. Blank fields are omitted,
// amounts accept thousands separators ("1,000").
func BuildParams(f Filter) (Params, error) {
	p := Params{Sort: SortNewest, Page: 1, PageSize: DefaultPageSize}

	p.Query = strings.TrimSpace(f.Q)
	if len(p.Query) > maxQueryLen {
		return Params{}, fmt.Errorf("%w: query longer than %d", ErrInvalidFilter, maxQueryLen)
	}
	p.Category = strings.TrimSpace(f.Category)
	p.Categories = splitList(f.Categories)
	p.Location = strings.TrimSpace(f.Location)

	var err error
	if p.MinAmount, err = parseAmount("priceMin", f.PriceMin); err != nil {
		return Params{}, err
	}
	if p.MaxAmount, err = parseAmount("priceMax", f.PriceMax); err != nil {
		return Params{}, err
	}
	if p.MinAmount != nil && p.MaxAmount != nil && *p.MinAmount > *p.MaxAmount {
		return Params{}, fmt.Errorf("%w: priceMin above priceMax", ErrInvalidFilter)
	}

	if s := strings.ToLower(strings.TrimSpace(f.Sort)); s != "" {
		if !sorts[s] {
			return Params{}, fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
		}
		p.Sort = s
	}
	if s := strings.TrimSpace(f.Page); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("%w: page %q", ErrInvalidFilter, f.Page)
		}
		p.Page = n
	}
	return p, nil
}

func parseAmount(field, s string) (*int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidFilter, field, s)
	}
	return &n, nil
}

func splitList(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// Values renders the API query string. Defaults (newest, page 1) are left out.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if p.Category != "" {
		v.Set("category", p.Category)
	}
	if len(p.Categories) > 0 {
		v.Set("categories", strings.Join(p.Categories, ","))
	}
	if p.Location != "" {
		v.Set("location", p.Location)
	}
	if p.MinAmount != nil {
		v.Set("minAmount", strconv.FormatInt(*p.MinAmount, 10))
	}
	if p.MaxAmount != nil {
		v.Set("maxAmount", strconv.FormatInt(*p.MaxAmount, 10))
	}
	if p.Sort != "" && p.Sort != SortNewest {
		v.Set("sort", p.Sort)
	}
	if p.Page > 1 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	return v
}

// ParseFilter reads a Filter from query parameters. Both the client names
// (priceMin/priceMax) and the API names (minAmount/maxAmount) are accepted.
func ParseFilter(v url.Values) Filter {
	first := func(keys ...string) string {
		for _, k := range keys {
			if s := v.Get(k); s != "" {
				return s
			}
		}
		return ""
	}
	return Filter{
		Q:          v.Get("q"),
		Category:   v.Get("category"),
		Categories: v.Get("categories"),
		Location:   v.Get("location"),
		PriceMin:   first("priceMin", "minAmount"),
		PriceMax:   first("priceMax", "maxAmount"),
		Sort:       v.Get("sort"),
		Page:       v.Get("page"),
	}
}
