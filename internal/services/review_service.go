package services

import (
	"context"

	"tradepost/internal/domain"
	"tradepost/internal/lifecycle"
	"tradepost/internal/repos"
	"tradepost/internal/validate"
)

type ReviewService struct {
	Store *repos.Store
}

func NewReviewService(store *repos.Store) *ReviewService {
	return &ReviewService{Store: store}
}

// UserReviews is a public profile with the reviews received.
type UserReviews struct {
	User    domain.Party    `json:"user"`
	Average float64         `json:"averageRating"`
	Count   int             `json:"count"`
	Reviews []domain.Review `json:"reviews"`
}

func (s *ReviewService) ForUser(ctx context.Context, userID string) (UserReviews, error) {
	p, err := s.Store.Users.Party(ctx, userID)
	if err != nil {
		return UserReviews{}, notFound(err, "user")
	}
	list, err := s.Store.Reviews.ForUser(ctx, userID)
	if err != nil {
		return UserReviews{}, err
	}
	if list == nil {
		list = []domain.Review{}
	}
	return UserReviews{User: p, Average: p.Rating, Count: len(list), Reviews: list}, nil
}

// review stores the caller's rating of the other party. The first review
// opens REVIEW_PENDING; the second completes the trade.
func (x *step) review(ctx context.Context, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return invalid("rating must be between 1 and 5")
	}
	comment, ok := validate.Text(comment, 1000, false)
	if !ok {
		return invalid("comment too long")
	}
	existing, err := x.st.Reviews.ForTransaction(ctx, x.t.ID)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.ReviewerID == x.actor {
			return invalid("already reviewed")
		}
	}
	reviewee := x.t.SellerID
	if x.actor == x.t.SellerID {
		reviewee = x.t.BuyerID
	}
	if err := x.st.Reviews.Create(ctx, domain.Review{
		ID:            newID(),
		TransactionID: x.t.ID,
		ReviewerID:    x.actor,
		RevieweeID:    reviewee,
		Rating:        rating,
		Comment:       comment,
		CreatedAt:     x.now,
	}); err != nil {
		return err
	}
	if err := x.event(ctx, domain.EventReview, "", "", ""); err != nil {
		return err
	}
	if err := x.svc.Notes.push(ctx, x.st, x.ob, reviewee, NoteReviewReceived, "You received a review", "", x.t.ID); err != nil {
		return err
	}

	if x.t.Status == string(lifecycle.Delivered) {
		if err := x.advance(ctx, lifecycle.ReviewPending, ""); err != nil {
			return err
		}
	}
	if len(existing)+1 >= 2 {
		return x.complete(ctx, "")
	}
	return nil
}
