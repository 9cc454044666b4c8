package services

import (
	"context"
	"database/sql"
	"errors"

	"tradepost/internal/domain"
	"tradepost/internal/repos"
	"tradepost/internal/search"
	"tradepost/internal/validate"
)

type ItemService struct {
	Store *repos.Store
	now   Clock
}

func NewItemService(store *repos.Store) *ItemService {
	return &ItemService{Store: store, now: utcNow}
}

func (s *ItemService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.Store.Categories.List(ctx)
}

// SearchResult is one page of listings plus the normalised params, so a
// client can echo them back into its form and URL.
type SearchResult struct {
	Items    []repos.ItemRow `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Params   search.Params   `json:"params"`
}

func (s *ItemService) Search(ctx context.Context, f search.Filter) (SearchResult, error) {
	q, ok := validate.Q(f.Q)
	if !ok {
		return SearchResult{}, invalid("query contains unsupported characters")
	}
	f.Q = q
	p, err := search.BuildParams(f)
	if err != nil {
		return SearchResult{}, invalid("%v", err)
	}
	rows, total, err := s.Store.Items.Search(ctx, p)
	if err != nil {
		return SearchResult{}, err
	}
	if rows == nil {
		rows = []repos.ItemRow{}
	}
	return SearchResult{Items: rows, Total: total, Page: p.Page, PageSize: p.PageSize, Params: p}, nil
}

// Suggestion is a compact type-ahead hit.
type Suggestion struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// Suggest answers websocket type-ahead queries with the first few matches.
func (s *ItemService) Suggest(ctx context.Context, q string) (any, error) {
	res, err := s.Search(ctx, search.Filter{Q: q})
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, 5)
	for i, r := range res.Items {
		if i == 5 {
			break
		}
		out = append(out, Suggestion{ID: r.ID, Title: r.Title, Price: r.Price})
	}
	return out, nil
}

type ItemDetail struct {
	domain.Item
	Seller  domain.Party    `json:"seller"`
	Auction *domain.Auction `json:"auction,omitempty"`
}

func (s *ItemService) Get(ctx context.Context, id string) (ItemDetail, error) {
	it, err := s.Store.Items.Get(ctx, id)
	if err != nil {
		return ItemDetail{}, notFound(err, "item")
	}
	if it.Status == domain.ItemHidden {
		return ItemDetail{}, notFoundErr("item")
	}
	seller, err := s.Store.Users.Party(ctx, it.SellerID)
	if err != nil {
		return ItemDetail{}, err
	}
	d := ItemDetail{Item: it, Seller: seller}
	a, err := s.Store.Auctions.ActiveForItem(ctx, id)
	switch {
	case err == nil:
		d.Auction = &a
	case !errors.Is(err, sql.ErrNoRows):
		return ItemDetail{}, err
	}
	return d, nil
}

type NewItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Price       int64  `json:"price"`
	Condition   string `json:"condition"`
	Tradeable   bool   `json:"tradeable"`
}

func (s *ItemService) Create(ctx context.Context, sellerID string, in NewItem) (domain.Item, error) {
	title, ok := validate.Text(in.Title, 80, true)
	if !ok {
		return domain.Item{}, invalid("title must be 1-80 characters")
	}
	desc, ok := validate.Text(in.Description, 2000, false)
	if !ok {
		return domain.Item{}, invalid("description too long")
	}
	loc, ok := validate.Text(in.Location, 60, true)
	if !ok {
		return domain.Item{}, invalid("location must be 1-60 characters")
	}
	cond, ok := validate.Condition(in.Condition)
	if !ok {
		return domain.Item{}, invalid("condition must be NEW, LIKE_NEW or USED")
	}
	if in.Price < 0 {
		return domain.Item{}, invalid("price must not be negative")
	}
	cat, err := s.Store.Categories.Resolve(ctx, in.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, invalid("unknown category %q", in.Category)
		}
		return domain.Item{}, err
	}

	it := domain.Item{
		ID:          newID(),
		SellerID:    sellerID,
		Title:       title,
		Description: desc,
		Category:    cat.ID,
		Location:    loc,
		Price:       in.Price,
		Condition:   cond,
		Tradeable:   in.Tradeable,
		Status:      domain.ItemActive,
		CreatedAt:   s.now(),
	}
	if err := s.Store.Items.Create(ctx, it); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

func (s *ItemService) ListBySeller(ctx context.Context, sellerID string) ([]domain.Item, error) {
	items, err := s.Store.Items.ListBySeller(ctx, sellerID)
	if items == nil && err == nil {
		items = []domain.Item{}
	}
	return items, err
}
