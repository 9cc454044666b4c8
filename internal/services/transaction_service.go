package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"tradepost/internal/archive"
	"tradepost/internal/domain"
	"tradepost/internal/lifecycle"
	"tradepost/internal/live"
	applog "tradepost/internal/log"
	"tradepost/internal/metrics"
	"tradepost/internal/repos"
	"tradepost/internal/validate"
)

type TransactionService struct {
	Store     *repos.Store
	Notes     *NotificationService
	bus       live.Bus
	archive   archive.Archiver
	pollAfter time.Duration
	now       Clock
}

func NewTransactionService(store *repos.Store, notes *NotificationService, bus live.Bus, arch archive.Archiver, pollAfter time.Duration) *TransactionService {
	if arch == nil {
		arch = archive.Nop{}
	}
	if pollAfter <= 0 {
		pollAfter = 30 * time.Second
	}
	return &TransactionService{Store: store, Notes: notes, bus: bus, archive: arch, pollAfter: pollAfter, now: utcNow}
}

// Viewer is the authenticated caller.
type Viewer struct {
	ID   string
	Role string
}

func (v Viewer) Admin() bool { return v.Role == domain.RoleAdmin }

func roleIn(t domain.Transaction, v Viewer) (lifecycle.Role, error) {
	switch {
	case v.ID != "" && v.ID == t.BuyerID:
		return lifecycle.Buyer, nil
	case v.ID != "" && v.ID == t.SellerID:
		return lifecycle.Seller, nil
	case v.Admin():
		return lifecycle.Admin, nil
	}
	return "", fmt.Errorf("transaction %s: %w", t.ID, ErrForbidden)
}

// TxDetail is a transaction as one party sees it.
type TxDetail struct {
	domain.Transaction
	Seller              domain.Party           `json:"seller"`
	Buyer               domain.Party           `json:"buyer"`
	SellerItem          domain.Item            `json:"sellerItem"`
	BuyerItem           *domain.Item           `json:"buyerItem,omitempty"`
	Payment             *domain.Payment        `json:"payment,omitempty"`
	SellerShipping      *domain.Shipment       `json:"sellerShipping,omitempty"`
	BuyerShipping       *domain.Shipment       `json:"buyerShipping,omitempty"`
	Reviews             []domain.Review        `json:"reviews"`
	Timeline            []domain.TimelineEvent `json:"timeline"`
	StatusBeforeDispute string                 `json:"statusBeforeDispute,omitempty"`
	ViewerRole          lifecycle.Role         `json:"viewerRole"`
	View                lifecycle.View         `json:"view"`
	PollAfterSeconds    int                    `json:"pollAfterSeconds"`
}

func (d TxDetail) shipment(side string) *domain.Shipment {
	if side == domain.SideBuyer {
		return d.BuyerShipping
	}
	return d.SellerShipping
}

func (d TxDetail) reviewedBy(userID string) bool {
	for _, r := range d.Reviews {
		if r.ReviewerID == userID {
			return true
		}
	}
	return false
}

func (s *TransactionService) detail(ctx context.Context, st *repos.Store, t domain.Transaction, role lifecycle.Role, viewerID string) (TxDetail, error) {
	d := TxDetail{Transaction: t, ViewerRole: role, PollAfterSeconds: int(s.pollAfter / time.Second)}
	var err error
	if d.Seller, err = st.Users.Party(ctx, t.SellerID); err != nil {
		return d, err
	}
	if d.Buyer, err = st.Users.Party(ctx, t.BuyerID); err != nil {
		return d, err
	}
	if d.SellerItem, err = st.Items.Get(ctx, t.SellerItemID); err != nil {
		return d, err
	}
	if t.BuyerItemID != nil {
		it, err := st.Items.Get(ctx, *t.BuyerItemID)
		if err != nil {
			return d, err
		}
		d.BuyerItem = &it
	}
	if d.Payment, err = st.Transactions.Payment(ctx, t.ID); err != nil {
		return d, err
	}
	ships, err := st.Transactions.Shipments(ctx, t.ID)
	if err != nil {
		return d, err
	}
	for i := range ships {
		if ships[i].Side == domain.SideBuyer {
			d.BuyerShipping = &ships[i]
		} else {
			d.SellerShipping = &ships[i]
		}
	}
	if d.Reviews, err = st.Reviews.ForTransaction(ctx, t.ID); err != nil {
		return d, err
	}
	if d.Timeline, err = st.Transactions.Timeline(ctx, t.ID); err != nil {
		return d, err
	}
	if d.Reviews == nil {
		d.Reviews = []domain.Review{}
	}
	if t.PrevStatus != nil {
		d.StatusBeforeDispute = *t.PrevStatus
	}
	d.View = personalize(lifecycle.Describe(lifecycle.Type(t.Type), lifecycle.Status(t.Status), role), d, role, viewerID)
	return d, nil
}

// personalize drops steps this party already took while the other side
// still has to act (an exchange where only one side shipped, confirmed or
// reviewed).
func personalize(v lifecycle.View, d TxDetail, role lifecycle.Role, viewerID string) lifecycle.View {
	own, incoming := domain.SideSeller, domain.SideBuyer
	if role == lifecycle.Buyer {
		own, incoming = domain.SideBuyer, domain.SideSeller
	}
	done := func(a lifecycle.Action) bool {
		switch a {
		case lifecycle.Ship:
			return d.shipment(own) != nil
		case lifecycle.ConfirmDelivery:
			sh := d.shipment(incoming)
			return sh == nil || sh.State == domain.ShipDelivered
		case lifecycle.Review:
			return d.reviewedBy(viewerID)
		case lifecycle.Cancel:
			return d.SellerShipping != nil || d.BuyerShipping != nil
		}
		return false
	}
	kept := make([]lifecycle.Action, 0, len(v.Actions))
	for _, a := range v.Actions {
		if !done(a) {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(v.Actions) {
		return v
	}
	v.Actions = kept
	v.NextAction = lifecycle.WaitingLabel(lifecycle.Status(d.Status))
	for _, a := range kept {
		if a != lifecycle.Cancel && a != lifecycle.Dispute {
			v.NextAction = lifecycle.ActionLabel(a)
			break
		}
	}
	return v
}

func (s *TransactionService) Get(ctx context.Context, id string, v Viewer) (TxDetail, error) {
	t, err := s.Store.Transactions.Get(ctx, id)
	if err != nil {
		return TxDetail{}, notFound(err, "transaction")
	}
	role, err := roleIn(t, v)
	if err != nil {
		return TxDetail{}, err
	}
	return s.detail(ctx, s.Store, t, role, v.ID)
}

// TxSummary is a list row with the viewer's call to action.
type TxSummary struct {
	domain.Transaction
	StepLabel  string         `json:"stepLabel"`
	NextAction string         `json:"nextAction"`
	ViewerRole lifecycle.Role `json:"viewerRole"`
}

func (s *TransactionService) List(ctx context.Context, v Viewer, f repos.TxFilter) ([]TxSummary, error) {
	switch f.Role {
	case "", "buyer", "seller":
	default:
		return nil, invalid("role must be buyer or seller")
	}
	if f.Status != "" {
		if _, ok := lifecycle.ParseStatus(f.Status); !ok {
			return nil, invalid("unknown status %q", f.Status)
		}
	}
	rows, err := s.Store.Transactions.ListFor(ctx, v.ID, f)
	if err != nil {
		return nil, err
	}
	out := make([]TxSummary, 0, len(rows))
	for _, t := range rows {
		role, _ := roleIn(t, v)
		tt, st := lifecycle.Type(t.Type), lifecycle.Status(t.Status)
		out = append(out, TxSummary{
			Transaction: t,
			StepLabel:   lifecycle.StepLabel(st),
			NextAction:  lifecycle.NextAction(tt, st, role),
			ViewerRole:  role,
		})
	}
	return out, nil
}

// ListAll is the admin queue, typically filtered to DISPUTED.
func (s *TransactionService) ListAll(ctx context.Context, v Viewer, status string) ([]TxSummary, error) {
	if !v.Admin() {
		return nil, ErrForbidden
	}
	if status != "" {
		if _, ok := lifecycle.ParseStatus(status); !ok {
			return nil, invalid("unknown status %q", status)
		}
	}
	rows, err := s.Store.Transactions.ListAll(ctx, status, 200)
	if err != nil {
		return nil, err
	}
	out := make([]TxSummary, 0, len(rows))
	for _, t := range rows {
		tt, st := lifecycle.Type(t.Type), lifecycle.Status(t.Status)
		out = append(out, TxSummary{
			Transaction: t,
			StepLabel:   lifecycle.StepLabel(st),
			NextAction:  lifecycle.NextAction(tt, st, lifecycle.Admin),
			ViewerRole:  lifecycle.Admin,
		})
	}
	return out, nil
}

func (s *TransactionService) Timeline(ctx context.Context, id string, v Viewer) ([]domain.TimelineEvent, error) {
	t, err := s.Store.Transactions.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	if _, err := roleIn(t, v); err != nil {
		return nil, err
	}
	evs, err := s.Store.Transactions.Timeline(ctx, id)
	if evs == nil && err == nil {
		evs = []domain.TimelineEvent{}
	}
	return evs, err
}

// ActionInput carries the optional fields an action may need.
type ActionInput struct {
	Version        *int   `json:"version,omitempty"`
	Method         string `json:"method,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Side           string `json:"side,omitempty"`
	State          string `json:"state,omitempty"`
	Rating         int    `json:"rating,omitempty"`
	Comment        string `json:"comment,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
}

// Dispute outcomes
const (
	OutcomeRefund = "REFUND"
	OutcomeResume = "RESUME"
)

// Apply runs one lifecycle action for the viewer.
func (s *TransactionService) Apply(ctx context.Context, id string, v Viewer, a lifecycle.Action, in ActionInput) (TxDetail, error) {
	return s.run(ctx, id, v, func(x *step) error {
		if err := x.permit(a); err != nil {
			return err
		}
		return x.dispatch(ctx, a, in)
	}, in.Version)
}

// run loads the transaction, hands a step to fn inside one database
// transaction, then publishes and archives once committed.
func (s *TransactionService) run(ctx context.Context, id string, v Viewer, fn func(x *step) error, version *int) (TxDetail, error) {
	var (
		ob       outbox
		out      TxDetail
		finished bool
	)
	err := s.Store.Tx(ctx, func(st *repos.Store) error {
		t, err := st.Transactions.Get(ctx, id)
		if err != nil {
			return notFound(err, "transaction")
		}
		role := lifecycle.System
		if v.ID != "" || v.Role != "" {
			if role, err = roleIn(t, v); err != nil {
				return err
			}
		}
		if version != nil && *version != t.Version {
			metrics.Conflicts.WithLabelValues("transaction").Inc()
			return ErrConflict
		}
		x := &step{svc: s, st: st, ob: &ob, t: &t, actor: v.ID, role: role, now: s.now()}
		if err := fn(x); err != nil {
			return err
		}
		if err := x.announce(ctx); err != nil {
			return err
		}
		finished = lifecycle.IsTerminal(lifecycle.Status(t.Status)) && x.changed
		out, err = s.detail(ctx, st, t, role, v.ID)
		return err
	})
	if err != nil {
		return TxDetail{}, err
	}
	ob.flush(ctx, s.bus)
	if finished {
		s.archiveRecord(ctx, out)
	}
	return out, nil
}

func (s *TransactionService) archiveRecord(ctx context.Context, d TxDetail) {
	rec := archive.Record{
		Transaction: d.Transaction,
		Payment:     d.Payment,
		Timeline:    d.Timeline,
		Reviews:     d.Reviews,
		ArchivedAt:  s.now(),
	}
	for _, sh := range []*domain.Shipment{d.SellerShipping, d.BuyerShipping} {
		if sh != nil {
			rec.Shipments = append(rec.Shipments, *sh)
		}
	}
	if err := s.archive.Archive(ctx, rec); err != nil {
		metrics.Archived.WithLabelValues("error").Inc()
		applog.Fail("tx.archive.fail", err, map[string]any{"tx_id": d.ID})
		return
	}
	metrics.Archived.WithLabelValues("ok").Inc()
}

// AutoComplete closes REVIEW_PENDING transactions nobody finished reviewing
// within window.
func (s *TransactionService) AutoComplete(ctx context.Context, window time.Duration) (int, error) {
	stale, err := s.Store.Transactions.StaleInStatus(ctx, string(lifecycle.ReviewPending), s.now().Add(-window))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range stale {
		_, err := s.run(ctx, t.ID, Viewer{}, func(x *step) error {
			if x.t.Status != string(lifecycle.ReviewPending) {
				return nil
			}
			return x.complete(ctx, "review window elapsed")
		}, nil)
		if err != nil {
			applog.Fail("tx.autocomplete.fail", err, map[string]any{"tx_id": t.ID})
			continue
		}
		n++
	}
	return n, nil
}

// openTransaction starts a trade at OFFER_ACCEPTED inside the caller's
// database transaction.
func openTransaction(ctx context.Context, st *repos.Store, ob *outbox, t domain.Transaction, actor string, now time.Time) (domain.Transaction, error) {
	t.ID = newID()
	t.Status = string(lifecycle.OfferAccepted)
	t.Version = 1
	t.CreatedAt, t.UpdatedAt = now, now
	if err := st.Transactions.Create(ctx, t); err != nil {
		return t, err
	}
	_, err := st.Transactions.AppendEvent(ctx, domain.TimelineEvent{
		TransactionID: t.ID,
		Kind:          domain.EventStatusChanged,
		ToStatus:      t.Status,
		ActorID:       actor,
		CreatedAt:     now,
	})
	ob.onCommit(func() { metrics.Transitions.WithLabelValues(t.Type, t.Status).Inc() })
	return t, err
}

// step is one action being applied to a loaded transaction.
type step struct {
	svc     *TransactionService
	st      *repos.Store
	ob      *outbox
	t       *domain.Transaction
	actor   string
	role    lifecycle.Role
	now     time.Time
	changed bool
	title   string
}

func (x *step) kind() (lifecycle.Type, lifecycle.Status) {
	return lifecycle.Type(x.t.Type), lifecycle.Status(x.t.Status)
}

// permit checks the action against the status map for the caller's role.
func (x *step) permit(a lifecycle.Action) error {
	tt, s := x.kind()
	if slices.Contains(lifecycle.Allowed(tt, s, x.role), a) {
		return nil
	}
	for _, r := range []lifecycle.Role{lifecycle.Buyer, lifecycle.Seller, lifecycle.Admin} {
		if r != x.role && slices.Contains(lifecycle.Allowed(tt, s, r), a) {
			return fmt.Errorf("%s is for the %s: %w", a, r, ErrForbidden)
		}
	}
	return fmt.Errorf("%w: %s not possible at %s", ErrInvalidTransition, a, s)
}

func (x *step) dispatch(ctx context.Context, a lifecycle.Action, in ActionInput) error {
	switch a {
	case lifecycle.RequestPayment, lifecycle.PrepareShipping:
		tt, s := x.kind()
		to, _ := lifecycle.Target(tt, s, a)
		return x.advance(ctx, to, "")
	case lifecycle.Pay:
		return x.pay(ctx, in.Method)
	case lifecycle.Ship:
		return x.ship(ctx, in.Carrier, in.TrackingNumber)
	case lifecycle.MarkInTransit:
		return x.inTransit(ctx, "")
	case lifecycle.ConfirmDelivery:
		return x.confirmDelivery(ctx)
	case lifecycle.Review:
		return x.review(ctx, in.Rating, in.Comment)
	case lifecycle.Cancel:
		reason, ok := validate.Text(in.Reason, 500, false)
		if !ok {
			return invalid("reason too long")
		}
		return x.cancel(ctx, reason)
	case lifecycle.Dispute:
		reason, ok := validate.Text(in.Reason, 500, true)
		if !ok {
			return invalid("a dispute needs a reason of at most 500 characters")
		}
		return x.dispute(ctx, reason)
	case lifecycle.ResolveDispute:
		return x.resolve(ctx, in.Outcome, in.Reason)
	}
	return fmt.Errorf("%w: unknown action %q", ErrValidation, a)
}

func (x *step) event(ctx context.Context, kind, from, to, note string) error {
	_, err := x.st.Transactions.AppendEvent(ctx, domain.TimelineEvent{
		TransactionID: x.t.ID,
		Kind:          kind,
		FromStatus:    from,
		ToStatus:      to,
		ActorID:       x.actor,
		Note:          note,
		CreatedAt:     x.now,
	})
	return err
}

func (x *step) conflict(err error) error {
	if errors.Is(err, repos.ErrNotUpdated) {
		metrics.Conflicts.WithLabelValues("transaction").Inc()
		return ErrConflict
	}
	return err
}

// advance moves one step along the path.
func (x *step) advance(ctx context.Context, to lifecycle.Status, note string) error {
	tt, from := x.kind()
	if err := lifecycle.CanTransition(tt, from, to); err != nil {
		return err
	}
	return x.write(ctx, to, nil, note)
}

// write stores a validated status change with a compare-and-set on version.
func (x *step) write(ctx context.Context, to lifecycle.Status, prev *string, note string) error {
	from := x.t.Status
	if err := x.st.Transactions.UpdateStatus(ctx, *x.t, string(to), prev, x.now); err != nil {
		return x.conflict(err)
	}
	x.t.Status, x.t.PrevStatus = string(to), prev
	x.t.Version++
	x.t.UpdatedAt = x.now
	x.changed = true
	x.title = lifecycle.StepLabel(to)
	typ := x.t.Type
	x.ob.onCommit(func() { metrics.Transitions.WithLabelValues(typ, string(to)).Inc() })
	return x.event(ctx, domain.EventStatusChanged, from, string(to), note)
}

// touch records progress that does not change the status.
func (x *step) touch(ctx context.Context, title string) error {
	if err := x.st.Transactions.Touch(ctx, *x.t, x.now); err != nil {
		return x.conflict(err)
	}
	x.t.Version++
	x.t.UpdatedAt = x.now
	x.changed = true
	if x.title == "" {
		x.title = title
	}
	return nil
}

// announce notifies the other party and publishes the new state.
func (x *step) announce(ctx context.Context) error {
	if !x.changed {
		return nil
	}
	x.ob.add(live.TxChannel(x.t.ID), "tx.updated", map[string]any{
		"id":      x.t.ID,
		"status":  x.t.Status,
		"version": x.t.Version,
	})
	var to []string
	switch x.actor {
	case x.t.BuyerID:
		to = []string{x.t.SellerID}
	case x.t.SellerID:
		to = []string{x.t.BuyerID}
	default:
		to = []string{x.t.SellerID, x.t.BuyerID}
	}
	body := lifecycle.StepLabel(lifecycle.Status(x.t.Status))
	for _, uid := range to {
		if err := x.svc.Notes.push(ctx, x.st, x.ob, uid, NoteTransaction, x.title, body, x.t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (x *step) pay(ctx context.Context, method string) error {
	method, ok := validate.PaymentMethod(method)
	if !ok {
		return invalid("payment method must be CARD, BANK_TRANSFER or WALLET")
	}
	if err := x.st.Transactions.InsertPayment(ctx, domain.Payment{
		TransactionID: x.t.ID,
		Amount:        x.t.CashAmount,
		Method:        method,
		Escrow:        domain.EscrowHeld,
		PaidAt:        x.now,
	}); err != nil {
		return err
	}
	if err := x.event(ctx, domain.EventPayment, "", "", method); err != nil {
		return err
	}
	if err := x.event(ctx, domain.EventEscrow, "", "", domain.EscrowHeld); err != nil {
		return err
	}
	return x.advance(ctx, lifecycle.PaymentReceived, "")
}

// settle moves held escrow and logs it on the timeline.
func (x *step) settle(ctx context.Context, state string) error {
	moved, err := x.st.Transactions.SettleEscrow(ctx, x.t.ID, state, x.now)
	if err != nil || !moved {
		return err
	}
	return x.event(ctx, domain.EventEscrow, "", "", state)
}

// items returns the listing ids tied up in the trade.
func (x *step) items() []string {
	ids := []string{x.t.SellerItemID}
	if x.t.BuyerItemID != nil {
		ids = append(ids, *x.t.BuyerItemID)
	}
	return ids
}

func (x *step) setItems(ctx context.Context, next string) error {
	for _, id := range x.items() {
		err := x.st.Items.SetStatus(ctx, id, next, domain.ItemReserved)
		if err != nil && !errors.Is(err, repos.ErrNotUpdated) {
			return err
		}
	}
	return nil
}

func (x *step) cancel(ctx context.Context, reason string) error {
	have, err := x.shipments(ctx)
	if err != nil {
		return err
	}
	if len(have) > 0 {
		return fmt.Errorf("%w: a parcel is already on its way, open a dispute instead", ErrInvalidTransition)
	}
	if err := x.advance(ctx, lifecycle.Cancelled, reason); err != nil {
		return err
	}
	return x.unwind(ctx)
}

// unwind refunds the buyer and puts listings that never left their owner
// back on sale. Shipped listings are hidden instead.
func (x *step) unwind(ctx context.Context) error {
	if err := x.settle(ctx, domain.EscrowRefunded); err != nil {
		return err
	}
	have, err := x.shipments(ctx)
	if err != nil {
		return err
	}
	owned := map[string]string{domain.SideSeller: x.t.SellerItemID}
	if x.t.BuyerItemID != nil {
		owned[domain.SideBuyer] = *x.t.BuyerItemID
	}
	for side, id := range owned {
		next := domain.ItemActive
		if _, shipped := have[side]; shipped {
			next = domain.ItemHidden
		}
		err := x.st.Items.SetStatus(ctx, id, next, domain.ItemReserved)
		if err != nil && !errors.Is(err, repos.ErrNotUpdated) {
			return err
		}
	}
	return nil
}

func (x *step) dispute(ctx context.Context, reason string) error {
	tt, from := x.kind()
	if err := lifecycle.CanTransition(tt, from, lifecycle.Disputed); err != nil {
		return err
	}
	prior := string(from)
	return x.write(ctx, lifecycle.Disputed, &prior, reason)
}

func (x *step) resolve(ctx context.Context, outcome, note string) error {
	note, ok := validate.Text(note, 500, false)
	if !ok {
		return invalid("note too long")
	}
	switch outcome {
	case OutcomeRefund:
		if err := x.advance(ctx, lifecycle.Cancelled, "refund: "+note); err != nil {
			return err
		}
		return x.unwind(ctx)
	case OutcomeResume:
		if x.t.PrevStatus == nil {
			return fmt.Errorf("%w: no status to resume", ErrInvalidTransition)
		}
		prior := lifecycle.Status(*x.t.PrevStatus)
		if err := lifecycle.Resume(lifecycle.Type(x.t.Type), prior); err != nil {
			return err
		}
		return x.write(ctx, prior, nil, "resume: "+note)
	}
	return invalid("outcome must be REFUND or RESUME")
}

// complete finishes the trade: listings are sold and the record archived
// after commit.
func (x *step) complete(ctx context.Context, note string) error {
	if err := x.advance(ctx, lifecycle.Completed, note); err != nil {
		return err
	}
	return x.setItems(ctx, domain.ItemSold)
}
