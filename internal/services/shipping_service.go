package services

import (
	"context"
	"fmt"
	"slices"

	"tradepost/internal/domain"
	"tradepost/internal/lifecycle"
	"tradepost/internal/validate"
)

// ShippingService is the carrier-facing side of a transaction. Every call
// goes through the same step machinery as TransactionService.Apply.
type ShippingService struct {
	Tx *TransactionService
}

func NewShippingService(tx *TransactionService) *ShippingService {
	return &ShippingService{Tx: tx}
}

// RecordShipment stores the caller's tracking number.
func (s *ShippingService) RecordShipment(ctx context.Context, txID string, v Viewer, carrier, tracking string) (TxDetail, error) {
	return s.Tx.Apply(ctx, txID, v, lifecycle.Ship, ActionInput{Carrier: carrier, TrackingNumber: tracking})
}

// UpdateTracking applies a carrier status for one side's parcel. Carrier
// scans work for admins too; a DELIVERED scan confirms that side's parcel
// whoever reports it.
func (s *ShippingService) UpdateTracking(ctx context.Context, txID string, v Viewer, side, state string) (TxDetail, error) {
	switch state {
	case domain.ShipInTransit:
		return s.Tx.run(ctx, txID, v, func(x *step) error {
			return x.tracking(ctx, side)
		}, nil)
	case domain.ShipDelivered:
		return s.Tx.run(ctx, txID, v, func(x *step) error {
			if err := checkSide(side); err != nil {
				return err
			}
			if x.t.Status != string(lifecycle.InTransit) {
				return fmt.Errorf("%w: delivery scan at %s", ErrInvalidTransition, x.t.Status)
			}
			return x.deliver(ctx, side)
		}, nil)
	}
	return TxDetail{}, invalid("state must be IN_TRANSIT or DELIVERED")
}

// ConfirmDelivery is the recipient acknowledging their parcel.
func (s *ShippingService) ConfirmDelivery(ctx context.Context, txID string, v Viewer) (TxDetail, error) {
	return s.Tx.Apply(ctx, txID, v, lifecycle.ConfirmDelivery, ActionInput{})
}

func (x *step) shipments(ctx context.Context) (map[string]domain.Shipment, error) {
	list, err := x.st.Transactions.Shipments(ctx, x.t.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Shipment, len(list))
	for _, sh := range list {
		out[sh.Side] = sh
	}
	return out, nil
}

// requiredSides are the parcels a trade needs before delivery.
func (x *step) requiredSides() []string {
	if lifecycle.BuyerShips(lifecycle.Type(x.t.Type)) {
		return []string{domain.SideSeller, domain.SideBuyer}
	}
	return []string{domain.SideSeller}
}

func (x *step) ship(ctx context.Context, carrier, tracking string) error {
	carrier, ok := validate.Name(carrier)
	if !ok {
		return invalid("carrier is required")
	}
	tracking, ok = validate.Tracking(tracking)
	if !ok {
		return invalid("tracking number must be 6-40 letters, digits or dashes")
	}
	side := domain.SideSeller
	if x.role == lifecycle.Buyer {
		side = domain.SideBuyer
	}
	have, err := x.shipments(ctx)
	if err != nil {
		return err
	}
	if _, dup := have[side]; dup {
		return invalid("shipment already recorded")
	}
	if err := x.st.Transactions.InsertShipment(ctx, domain.Shipment{
		ID:             newID(),
		TransactionID:  x.t.ID,
		Side:           side,
		Carrier:        carrier,
		TrackingNumber: tracking,
		State:          domain.ShipShipped,
		ShippedAt:      x.now,
	}); err != nil {
		return err
	}
	if err := x.event(ctx, domain.EventShipment, "", "", fmt.Sprintf("%s %s %s", side, carrier, tracking)); err != nil {
		return err
	}

	tt, s := x.kind()
	switch {
	case side == domain.SideSeller:
		if err := x.advance(ctx, lifecycle.SellerShipped, ""); err != nil {
			return err
		}
		// the buyer's parcel may already be on its way
		if _, ok := have[domain.SideBuyer]; ok && lifecycle.BuyerShips(tt) {
			return x.advance(ctx, lifecycle.BuyerShipped, "")
		}
		return nil
	case s == lifecycle.SellerShipped:
		return x.advance(ctx, lifecycle.BuyerShipped, "")
	default:
		return x.touch(ctx, "Buyer shipped")
	}
}

// inTransit is the carrier picking up every parcel.
func (x *step) inTransit(ctx context.Context, note string) error {
	have, err := x.shipments(ctx)
	if err != nil {
		return err
	}
	for side, sh := range have {
		if sh.State == domain.ShipShipped {
			if err := x.st.Transactions.SetShipmentState(ctx, x.t.ID, side, domain.ShipInTransit, x.now); err != nil {
				return err
			}
		}
	}
	return x.advance(ctx, lifecycle.InTransit, note)
}

func checkSide(side string) error {
	if side != domain.SideSeller && side != domain.SideBuyer {
		return invalid("side must be SELLER or BUYER")
	}
	return nil
}

// parcelsMoving: carrier updates only make sense while parcels are out and
// the trade is not frozen by a dispute.
func parcelsMoving(s lifecycle.Status) bool {
	switch s {
	case lifecycle.ShippingPending, lifecycle.SellerShipped, lifecycle.BuyerShipped, lifecycle.InTransit:
		return true
	}
	return false
}

// tracking records an IN_TRANSIT scan for one parcel; the trade moves to
// IN_TRANSIT once every required parcel is shipped.
func (x *step) tracking(ctx context.Context, side string) error {
	if err := checkSide(side); err != nil {
		return err
	}
	tt, s := x.kind()
	if !parcelsMoving(s) {
		return fmt.Errorf("%w: tracking update at %s", ErrInvalidTransition, s)
	}
	have, err := x.shipments(ctx)
	if err != nil {
		return err
	}
	sh, ok := have[side]
	if !ok {
		return invalid("no %s shipment recorded", side)
	}
	if sh.State != domain.ShipShipped {
		return nil
	}
	if slices.Contains(lifecycle.Allowed(tt, s, lifecycle.System), lifecycle.MarkInTransit) {
		return x.inTransit(ctx, "carrier scan "+side)
	}
	if err := x.st.Transactions.SetShipmentState(ctx, x.t.ID, side, domain.ShipInTransit, x.now); err != nil {
		return err
	}
	return x.touch(ctx, "Parcel in transit")
}

// confirmDelivery marks the caller's incoming parcel delivered.
func (x *step) confirmDelivery(ctx context.Context) error {
	incoming := domain.SideSeller
	if x.role == lifecycle.Seller {
		incoming = domain.SideBuyer
	}
	return x.deliver(ctx, incoming)
}

// deliver marks one side's parcel delivered. The trade is DELIVERED and
// escrow released once every required parcel arrived.
func (x *step) deliver(ctx context.Context, side string) error {
	have, err := x.shipments(ctx)
	if err != nil {
		return err
	}
	sh, ok := have[side]
	if !ok {
		return invalid("no %s shipment recorded", side)
	}
	if sh.State == domain.ShipDelivered {
		return invalid("delivery already confirmed")
	}
	if err := x.st.Transactions.SetShipmentState(ctx, x.t.ID, side, domain.ShipDelivered, x.now); err != nil {
		return err
	}
	if err := x.event(ctx, domain.EventDelivery, "", "", side); err != nil {
		return err
	}
	have[side] = domain.Shipment{State: domain.ShipDelivered}

	for _, required := range x.requiredSides() {
		if have[required].State != domain.ShipDelivered {
			return x.touch(ctx, "Parcel received")
		}
	}
	if err := x.advance(ctx, lifecycle.Delivered, ""); err != nil {
		return err
	}
	return x.settle(ctx, domain.EscrowReleased)
}
