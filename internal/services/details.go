package services

import (
	"context"
	"time"

	"points-auction/internal/domain"
)

// AuctionDetails is the viewer-specific snapshot returned to the
// presentation layer. The current leader's identity is masked unless the
// viewer is the leader or the auction's creator.
type AuctionDetails struct {
	Auction          *domain.Auction
	MinNextBid       int64
	TimeRemaining    time.Duration
	ParticipantCount int
	HighestBidder    string
	ViewerHighestBid int64
	ViewerIsLeading  bool
}

func (e *Engine) GetAuctionDetails(ctx context.Context, auctionID, viewerID string) (*AuctionDetails, error) {
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	participants, err := e.store.ListParticipants(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	bids, err := e.store.ListBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	var viewerHighest int64
	for _, bid := range bids {
		if bid.BidderID == viewerID && bid.Amount > viewerHighest {
			viewerHighest = bid.Amount
		}
	}

	details := &AuctionDetails{
		Auction:          auction,
		MinNextBid:       auction.MinNextBid(),
		ParticipantCount: len(participants),
		ViewerHighestBid: viewerHighest,
		ViewerIsLeading:  auction.HighestBidderID != "" && auction.HighestBidderID == viewerID,
	}

	if remaining := auction.EndTime.Sub(e.now()); remaining > 0 && auction.Status == domain.AuctionActive {
		details.TimeRemaining = remaining
	}

	if auction.HighestBidderID != "" {
		if viewerID == auction.HighestBidderID || viewerID == auction.CreatorID {
			details.HighestBidder = auction.HighestBidderID
		} else {
			details.HighestBidder = maskUserID(auction.HighestBidderID)
		}
	}

	return details, nil
}

// maskUserID hides a bidder's identity from non-privileged viewers while
// keeping a stable suffix so repeated bids remain attributable.
func maskUserID(userID string) string {
	const visible = 4
	if len(userID) <= visible {
		return "***"
	}
	return "***" + userID[len(userID)-visible:]
}
