package domain

import (
	"time"
)

// Auction is the aggregate root of the bidding engine. All mutation goes
// through AuctionStore.Mutate so that concurrent bidders cannot produce a
// torn highest-bid state.
type Auction struct {
	ID                string
	Name              string
	Description       string
	Prize             string
	InitialPrice      int64
	CurrentHighestBid int64
	HighestBidderID   string
	WinnerID          string
	Status            AuctionStatus
	Settlement        SettlementStatus
	StartTime         time.Time
	EndTime           time.Time
	CreatorID         string
	MinIncrement      int64
	MaxParticipants   int
	AutoExtendWindow  time.Duration
	CreatedAt         time.Time
	UpdatedAt         time.Time
	EndedAt           *time.Time
}

// MinNextBid returns the smallest amount the next bid must reach.
func (a *Auction) MinNextBid() int64 {
	next := a.CurrentHighestBid + a.MinIncrement
	if next < a.InitialPrice {
		return a.InitialPrice
	}
	return next
}

// Expired reports whether the auction is past its deadline at the given time.
func (a *Auction) Expired(now time.Time) bool {
	return now.After(a.EndTime)
}

type AuctionStatus int

const (
	AuctionPending AuctionStatus = iota
	AuctionActive
	AuctionEnded
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SettlementStatus tracks whether the winner's debit went through. Funds are
// never reserved at bid time, so a settlement can legitimately fail; the
// failed state is what reconciliation tooling queries for.
type SettlementStatus int

const (
	SettlementNone SettlementStatus = iota
	SettlementPending
	SettlementConfirmed
	SettlementFailed
)

func (s SettlementStatus) String() string {
	switch s {
	case SettlementNone:
		return "none"
	case SettlementPending:
		return "pending"
	case SettlementConfirmed:
		return "confirmed"
	case SettlementFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    int64
	PlacedAt  time.Time
	IsWinning bool
}

// Participant is created the first time a user bids on an auction and is
// never deleted while the auction exists.
type Participant struct {
	AuctionID            string
	UserID               string
	JoinedAt             time.Time
	NotificationsEnabled bool
	LastNotifiedAt       *time.Time
}

type Event struct {
	Type          EventType `json:"type"`
	AuctionID     string    `json:"auction_id"`
	AuctionName   string    `json:"auction_name"`
	Prize         string    `json:"prize,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	BidderID      string    `json:"bidder_id,omitempty"`
	WinnerID      string    `json:"winner_id,omitempty"`
	TimeRemaining int64     `json:"time_remaining_seconds,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type EventType string

const (
	EventBidPlaced        EventType = "bid_placed"
	EventAuctionExtended  EventType = "auction_extended"
	EventAuctionWon       EventType = "auction_won"
	EventAuctionEnded     EventType = "auction_ended"
	EventAuctionCancelled EventType = "auction_cancelled"
)
