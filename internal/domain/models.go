package domain

import "time"

// Item statuses
const (
	ItemActive   = "ACTIVE"
	ItemReserved = "RESERVED"
	ItemSold     = "SOLD"
	ItemHidden   = "HIDDEN"
)

type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Item struct {
	ID          string    `db:"id" json:"id"`
	SellerID    string    `db:"seller_id" json:"sellerId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Location    string    `db:"location" json:"location"`
	Price       int64     `db:"price" json:"price"`
	Condition   string    `db:"condition" json:"condition"` // NEW | LIKE_NEW | USED
	Tradeable   bool      `db:"tradeable" json:"tradeable"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Auction statuses
const (
	AuctionActive    = "ACTIVE"
	AuctionEnded     = "ENDED"
	AuctionCancelled = "CANCELLED"
)

type Auction struct {
	ID           string    `db:"id" json:"id"`
	ItemID       string    `db:"item_id" json:"itemId"`
	SellerID     string    `db:"seller_id" json:"sellerId"`
	StartPrice   int64     `db:"start_price" json:"startPrice"`
	MinIncrement int64     `db:"min_increment" json:"minIncrement"`
	CurrentBid   int64     `db:"current_bid" json:"currentBid"`
	BidCount     int       `db:"bid_count" json:"bidCount"`
	LeaderID     string    `db:"leader_id" json:"leaderId,omitempty"`
	SoftClose    int       `db:"soft_close_seconds" json:"softCloseSeconds"`
	StartsAt     time.Time `db:"starts_at" json:"startsAt"`
	EndsAt       time.Time `db:"ends_at" json:"endsAt"`
	Status       string    `db:"status" json:"status"`
	WinnerID     string    `db:"winner_id" json:"winnerId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// MinNextBid is the smallest amount the next bid must reach.
func (a Auction) MinNextBid() int64 {
	if a.BidCount == 0 {
		return a.StartPrice
	}
	return a.CurrentBid + a.MinIncrement
}

type Bid struct {
	ID        string    `db:"id" json:"id"`
	AuctionID string    `db:"auction_id" json:"auctionId"`
	BidderID  string    `db:"bidder_id" json:"bidderId"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// BidView is a bid as shown in a ranking: position 1 is the leader.
type BidView struct {
	Bid
	BidderName string `db:"bidder_name" json:"bidderName"`
	Position   int    `db:"-" json:"position"`
	IsWinning  bool   `db:"-" json:"isWinning"`
	IsMine     bool   `db:"-" json:"isMine"`
}

// Offer statuses
const (
	OfferPending   = "PENDING"
	OfferAccepted  = "ACCEPTED"
	OfferRejected  = "REJECTED"
	OfferCountered = "COUNTERED"
	OfferWithdrawn = "WITHDRAWN"
	OfferExpired   = "EXPIRED"
)

type Offer struct {
	ID            string    `db:"id" json:"id"`
	ItemID        string    `db:"item_id" json:"itemId"`
	BuyerID       string    `db:"buyer_id" json:"buyerId"`
	SellerID      string    `db:"seller_id" json:"sellerId"`
	ProposedBy    string    `db:"proposed_by" json:"proposedBy"`
	Type          string    `db:"type" json:"type"`
	CashAmount    int64     `db:"cash_amount" json:"cashAmount,omitempty"`
	OfferedItemID *string   `db:"offered_item_id" json:"offeredItemId,omitempty"`
	Message       string    `db:"message" json:"message,omitempty"`
	Status        string    `db:"status" json:"status"`
	ParentID      *string   `db:"parent_id" json:"parentId,omitempty"`
	ExpiresAt     time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

type Transaction struct {
	ID           string    `db:"id" json:"id"`
	Type         string    `db:"type" json:"transactionType"`
	Status       string    `db:"status" json:"status"`
	SellerID     string    `db:"seller_id" json:"sellerId"`
	BuyerID      string    `db:"buyer_id" json:"buyerId"`
	SellerItemID string    `db:"seller_item_id" json:"sellerItemId"`
	BuyerItemID  *string   `db:"buyer_item_id" json:"buyerItemId,omitempty"`
	CashAmount   int64     `db:"cash_amount" json:"cashAmount,omitempty"`
	OfferID      *string   `db:"offer_id" json:"offerId,omitempty"`
	AuctionID    *string   `db:"auction_id" json:"auctionId,omitempty"`
	PrevStatus   *string   `db:"prev_status" json:"-"`
	Version      int       `db:"version" json:"version"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Escrow states
const (
	EscrowHeld     = "HELD"
	EscrowReleased = "RELEASED"
	EscrowRefunded = "REFUNDED"
)

type Payment struct {
	TransactionID string     `db:"transaction_id" json:"-"`
	Amount        int64      `db:"amount" json:"amount"`
	Method        string     `db:"method" json:"method"`
	Escrow        string     `db:"escrow" json:"escrow"`
	PaidAt        time.Time  `db:"paid_at" json:"paidAt"`
	SettledAt     *time.Time `db:"settled_at" json:"settledAt,omitempty"`
}

// Shipment sides and states
const (
	SideSeller = "SELLER"
	SideBuyer  = "BUYER"

	ShipShipped   = "SHIPPED"
	ShipInTransit = "IN_TRANSIT"
	ShipDelivered = "DELIVERED"
)

type Shipment struct {
	ID             string     `db:"id" json:"id"`
	TransactionID  string     `db:"transaction_id" json:"-"`
	Side           string     `db:"side" json:"side"`
	Carrier        string     `db:"carrier" json:"carrier"`
	TrackingNumber string     `db:"tracking_number" json:"trackingNumber"`
	State          string     `db:"state" json:"state"`
	ShippedAt      time.Time  `db:"shipped_at" json:"shippedAt"`
	ConfirmedAt    *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`
}

// Timeline event kinds
const (
	EventStatusChanged = "STATUS_CHANGED"
	EventPayment       = "PAYMENT"
	EventShipment      = "SHIPMENT"
	EventDelivery      = "DELIVERY"
	EventReview        = "REVIEW"
	EventEscrow        = "ESCROW"
)

type TimelineEvent struct {
	TransactionID string    `db:"transaction_id" json:"-"`
	Seq           int       `db:"seq" json:"seq"`
	Kind          string    `db:"kind" json:"kind"`
	FromStatus    string    `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus      string    `db:"to_status" json:"toStatus,omitempty"`
	ActorID       string    `db:"actor_id" json:"actorId,omitempty"`
	Note          string    `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type Review struct {
	ID            string    `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transactionId"`
	ReviewerID    string    `db:"reviewer_id" json:"reviewerId"`
	RevieweeID    string    `db:"reviewee_id" json:"revieweeId"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       string    `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type Notification struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"-"`
	Kind      string     `db:"kind" json:"kind"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	RefID     string     `db:"ref_id" json:"refId,omitempty"`
	ReadAt    *time.Time `db:"read_at" json:"readAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

type Message struct {
	ID        string    `db:"id" json:"id"`
	ThreadID  string    `db:"thread_id" json:"chatId"`
	SenderID  string    `db:"sender_id" json:"senderId"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
