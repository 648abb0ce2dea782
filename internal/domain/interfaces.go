package domain

import (
	"context"
	"time"
)

// AuctionTx is the view handed to AuctionStore.Mutate. Everything read or
// staged through it belongs to one auction and commits atomically; if the
// mutation callback returns an error nothing is written.
type AuctionTx interface {
	Auction() *Auction
	WinningBid() *Bid
	InsertBid(bid *Bid)
	ClearWinningBid(bidID string)
	ParticipantCount() int
	Participant(userID string) (*Participant, bool)
	UpsertParticipant(p *Participant)
}

// AuctionStore is the persistent repository for auctions, bids and
// participants. Mutate is the single write path for existing auctions: a
// read-modify-write executed under a per-auction transactional boundary so
// that two concurrent bids cannot both pass validation against the same
// snapshot.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	ListByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Auction, error)
	ListUnsettled(ctx context.Context) ([]*Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]*Bid, error)
	ListParticipants(ctx context.Context, auctionID string) ([]*Participant, error)
	MarkParticipantNotified(ctx context.Context, auctionID, userID string, at time.Time) error
	Mutate(ctx context.Context, auctionID string, fn func(tx AuctionTx) error) error
}

// PointsLedger is the external balance service. The engine only ever checks
// and debits; balances are owned and serialized by the ledger itself.
type PointsLedger interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64) error
}

// NotificationSink delivers events to users. Fire-and-forget: failures are
// logged by callers and never affect auction state.
type NotificationSink interface {
	Notify(ctx context.Context, userID string, event *Event) error
}

// LeaderElection gates background sweeping when several service instances
// run against the same store.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
