package lifecycle

type Role string

const (
	Buyer  Role = "BUYER"
	Seller Role = "SELLER"
	Admin  Role = "ADMIN"
	System Role = "SYSTEM"
)

type Action string

const (
	RequestPayment  Action = "REQUEST_PAYMENT"
	Pay             Action = "PAY"
	PrepareShipping Action = "PREPARE_SHIPPING"
	Ship            Action = "SHIP"
	MarkInTransit   Action = "MARK_IN_TRANSIT"
	ConfirmDelivery Action = "CONFIRM_DELIVERY"
	Review          Action = "REVIEW"
	Cancel          Action = "CANCEL"
	Dispute         Action = "DISPUTE"
	ResolveDispute  Action = "RESOLVE_DISPUTE"
)

var allActions = []Action{
	RequestPayment, Pay, PrepareShipping, Ship, MarkInTransit,
	ConfirmDelivery, Review, Cancel, Dispute, ResolveDispute,
}

func ParseAction(s string) (Action, bool) {
	for _, a := range allActions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

var actionLabels = map[Action]string{
	RequestPayment:  "Proceed to payment",
	Pay:             "Pay now",
	PrepareShipping: "Prepare shipment",
	Ship:            "Enter tracking number",
	MarkInTransit:   "Track shipment",
	ConfirmDelivery: "Confirm receipt",
	Review:          "Leave a review",
	Cancel:          "Cancel trade",
	Dispute:         "Open a dispute",
	ResolveDispute:  "Resolve dispute",
}

var waitingLabels = map[Status]string{
	OfferAccepted:   "Waiting for buyer to start payment",
	PaymentPending:  "Waiting for payment",
	PaymentReceived: "Waiting for seller to prepare shipment",
	ShippingPending: "Waiting for seller to ship",
	SellerShipped:   "Waiting for buyer to ship",
	BuyerShipped:    "Waiting for tracking update",
	InTransit:       "Waiting for delivery",
	Delivered:       "Waiting for review",
	ReviewPending:   "Waiting for review",
	Completed:       "Trade completed",
	Cancelled:       "Trade cancelled",
	Disputed:        "Dispute under review",
}

var stepLabels = map[Status]string{
	OfferAccepted:   "Offer accepted",
	PaymentPending:  "Awaiting payment",
	PaymentReceived: "Payment received",
	ShippingPending: "Preparing shipment",
	SellerShipped:   "Seller shipped",
	BuyerShipped:    "Buyer shipped",
	InTransit:       "In transit",
	Delivered:       "Delivered",
	ReviewPending:   "Awaiting reviews",
	Completed:       "Completed",
	Cancelled:       "Cancelled",
	Disputed:        "In dispute",
}

func ActionLabel(a Action) string { return actionLabels[a] }
func StepLabel(s Status) string   { return stepLabels[s] }

// WaitingLabel is shown when a party has nothing to do at s.
func WaitingLabel(s Status) string { return waitingLabels[s] }

type Step struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
}

func Steps(t Type) []Step {
	p := paths[t]
	out := make([]Step, 0, len(p))
	for _, s := range p {
		out = append(out, Step{Status: s, Label: stepLabels[s]})
	}
	return out
}

// Allowed returns the actions role may take at status s of a type-t
// transaction, primary action first.
func Allowed(t Type, s Status, role Role) []Action {
	if _, ok := paths[t]; !ok {
		return nil
	}
	if s == Disputed {
		if role == Admin {
			return []Action{ResolveDispute}
		}
		return nil
	}
	if IsTerminal(s) || StepIndex(t, s) < 0 {
		return nil
	}

	var out []Action
	switch role {
	case Buyer, Seller:
		out = append(out, primary(t, s, role)...)
		if Cancellable(t, s) {
			out = append(out, Cancel)
		}
		if Disputable(t, s) {
			out = append(out, Dispute)
		}
	case System:
		if s == beforeTransit(t) {
			out = append(out, MarkInTransit)
		}
	}
	return out
}

func primary(t Type, s Status, role Role) []Action {
	switch s {
	case OfferAccepted:
		if !HasPayment(t) {
			return []Action{PrepareShipping}
		}
		if role == Buyer {
			return []Action{RequestPayment}
		}
	case PaymentPending:
		if role == Buyer {
			return []Action{Pay}
		}
	case PaymentReceived:
		if role == Seller {
			return []Action{PrepareShipping}
		}
	case ShippingPending:
		if role == Seller || BuyerShips(t) {
			return []Action{Ship}
		}
	case SellerShipped:
		if BuyerShips(t) {
			if role == Buyer {
				return []Action{Ship}
			}
			return nil
		}
		return []Action{MarkInTransit}
	case BuyerShipped:
		return []Action{MarkInTransit}
	case InTransit:
		if role == Buyer || BuyerShips(t) {
			return []Action{ConfirmDelivery}
		}
	case Delivered, ReviewPending:
		return []Action{Review}
	}
	return nil
}

// beforeTransit is the last shipping step before a carrier can report movement.
func beforeTransit(t Type) Status {
	if BuyerShips(t) {
		return BuyerShipped
	}
	return SellerShipped
}

// NextAction is the call-to-action label for role at status s.
func NextAction(t Type, s Status, role Role) string {
	for _, a := range Allowed(t, s, role) {
		if a != Cancel && a != Dispute {
			return actionLabels[a]
		}
	}
	return waitingLabels[s]
}

// View is what a client needs to draw the progress bar and buttons.
type View struct {
	StepIndex  int      `json:"stepIndex"`
	TotalSteps int      `json:"totalSteps"`
	StepLabel  string   `json:"stepLabel"`
	NextAction string   `json:"nextAction"`
	Actions    []Action `json:"actions"`
	Steps      []Step   `json:"steps"`
	Terminal   bool     `json:"terminal"`
}

func Describe(t Type, s Status, role Role) View {
	actions := Allowed(t, s, role)
	if actions == nil {
		actions = []Action{}
	}
	return View{
		StepIndex:  StepIndex(t, s),
		TotalSteps: len(paths[t]),
		StepLabel:  stepLabels[s],
		NextAction: NextAction(t, s, role),
		Actions:    actions,
		Steps:      Steps(t),
		Terminal:   IsTerminal(s),
	}
}

// Target is the status an action moves a transaction to when it completes a
// step on its own. Actions whose effect depends on other parties (shipping,
// delivery confirmation, reviews) are resolved by the caller.
func Target(t Type, s Status, a Action) (Status, bool) {
	switch a {
	case Cancel:
		return Cancelled, true
	case Dispute:
		return Disputed, true
	case RequestPayment, Pay, PrepareShipping, MarkInTransit:
		return Next(t, s)
	}
	return "", false
}
