// Package lifecycle is the transaction status model: the ordered status path
// of each transaction type, which transitions are legal, and what each party
// can do at every step.
package lifecycle

import (
	"errors"
	"fmt"
)

type Status string

const (
	OfferAccepted   Status = "OFFER_ACCEPTED"
	PaymentPending  Status = "PAYMENT_PENDING"
	PaymentReceived Status = "PAYMENT_RECEIVED"
	ShippingPending Status = "SHIPPING_PENDING"
	SellerShipped   Status = "SELLER_SHIPPED"
	BuyerShipped    Status = "BUYER_SHIPPED"
	InTransit       Status = "IN_TRANSIT"
	Delivered       Status = "DELIVERED"
	ReviewPending   Status = "REVIEW_PENDING"
	Completed       Status = "COMPLETED"
	Cancelled       Status = "CANCELLED"
	Disputed        Status = "DISPUTED"
)

type Type string

const (
	CashOnly     Type = "CASH_ONLY"
	ItemExchange Type = "ITEM_EXCHANGE"
	ItemPlusCash Type = "ITEM_PLUS_CASH"
	AuctionWin   Type = "AUCTION_WIN"
)

var (
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	ErrUnknownType       = errors.New("lifecycle: unknown transaction type")
)

var paths = map[Type][]Status{
	CashOnly: {
		OfferAccepted, PaymentPending, PaymentReceived, ShippingPending,
		SellerShipped, InTransit, Delivered, ReviewPending, Completed,
	},
	AuctionWin: {
		OfferAccepted, PaymentPending, PaymentReceived, ShippingPending,
		SellerShipped, InTransit, Delivered, ReviewPending, Completed,
	},
	ItemExchange: {
		OfferAccepted, ShippingPending, SellerShipped, BuyerShipped,
		InTransit, Delivered, ReviewPending, Completed,
	},
	ItemPlusCash: {
		OfferAccepted, PaymentPending, PaymentReceived, ShippingPending,
		SellerShipped, BuyerShipped, InTransit, Delivered, ReviewPending, Completed,
	},
}

var allStatuses = []Status{
	OfferAccepted, PaymentPending, PaymentReceived, ShippingPending, SellerShipped,
	BuyerShipped, InTransit, Delivered, ReviewPending, Completed, Cancelled, Disputed,
}

// Types lists every transaction type.
func Types() []Type { return []Type{CashOnly, ItemExchange, ItemPlusCash, AuctionWin} }

// Statuses lists every status, path statuses first.
func Statuses() []Status { return append([]Status(nil), allStatuses...) }

func ParseType(s string) (Type, bool) {
	t := Type(s)
	_, ok := paths[t]
	return t, ok
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Path returns a copy of the ordered status path for t, or nil for an unknown type.
func Path(t Type) []Status {
	p, ok := paths[t]
	if !ok {
		return nil
	}
	return append([]Status(nil), p...)
}

// StepIndex is the position of s on the path of t, -1 when s is off the path
// (CANCELLED, DISPUTED) or t is unknown.
func StepIndex(t Type, s Status) int {
	for i, st := range paths[t] {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the status following s on the path of t.
func Next(t Type, s Status) (Status, bool) {
	i := StepIndex(t, s)
	p := paths[t]
	if i < 0 || i+1 >= len(p) {
		return "", false
	}
	return p[i+1], true
}

func IsTerminal(s Status) bool { return s == Completed || s == Cancelled }

// HasPayment reports whether money changes hands (and is held in escrow).
func HasPayment(t Type) bool { return t == CashOnly || t == ItemPlusCash || t == AuctionWin }

// BuyerShips reports whether the buyer also sends an item.
func BuyerShips(t Type) bool { return t == ItemExchange || t == ItemPlusCash }

// Cancellable: nothing has been shipped yet.
func Cancellable(t Type, s Status) bool {
	switch s {
	case OfferAccepted, PaymentPending, PaymentReceived, ShippingPending:
		return StepIndex(t, s) >= 0
	}
	return false
}

// Disputable: after the offer step, up to and including DELIVERED.
func Disputable(t Type, s Status) bool {
	i := StepIndex(t, s)
	return i > 0 && i <= StepIndex(t, Delivered)
}

// CanTransition validates a single status change. Path moves are one step
// forward only; CANCELLED and DISPUTED are side exits. Leaving DISPUTED goes
// through Resume.
func CanTransition(t Type, from, to Status) error {
	if _, ok := paths[t]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	switch {
	case IsTerminal(from):
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, from)
	case to == Cancelled:
		if from == Disputed || Cancellable(t, from) {
			return nil
		}
	case to == Disputed:
		if Disputable(t, from) {
			return nil
		}
	case from == Disputed:
		return fmt.Errorf("%w: %s -> %s requires dispute resolution", ErrInvalidTransition, from, to)
	default:
		if next, ok := Next(t, from); ok && next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Resume validates returning from DISPUTED to the status held before it.
func Resume(t Type, prior Status) error {
	if !Disputable(t, prior) {
		return fmt.Errorf("%w: cannot resume to %s", ErrInvalidTransition, prior)
	}
	return nil
}
