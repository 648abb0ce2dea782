package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"points-auction/internal/domain"
)

func TestEngine_GetAuctionDetails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.ledger.setBalance("alice-1234", 1000)
	env.ledger.setBalance("bob-5678", 1000)

	auction := env.startedAuction(t, validInput())

	_, err := env.engine.PlaceBid(ctx, auction.ID, "alice-1234", 100)
	require.NoError(t, err)
	_, err = env.engine.PlaceBid(ctx, auction.ID, "bob-5678", 110)
	require.NoError(t, err)

	t.Run("leader_sees_own_identity", func(t *testing.T) {
		details, err := env.engine.GetAuctionDetails(ctx, auction.ID, "bob-5678")
		require.NoError(t, err)
		require.Equal(t, "bob-5678", details.HighestBidder)
		require.True(t, details.ViewerIsLeading)
		require.Equal(t, int64(110), details.ViewerHighestBid)
		require.Equal(t, int64(120), details.MinNextBid)
		require.Equal(t, 2, details.ParticipantCount)
		require.Greater(t, details.TimeRemaining, time.Duration(0))
	})

	t.Run("creator_sees_identity", func(t *testing.T) {
		details, err := env.engine.GetAuctionDetails(ctx, auction.ID, "admin-1")
		require.NoError(t, err)
		require.Equal(t, "bob-5678", details.HighestBidder)
		require.False(t, details.ViewerIsLeading)
		require.Zero(t, details.ViewerHighestBid)
	})

	t.Run("other_viewers_see_masked_identity", func(t *testing.T) {
		details, err := env.engine.GetAuctionDetails(ctx, auction.ID, "alice-1234")
		require.NoError(t, err)
		require.Equal(t, "***5678", details.HighestBidder)
		require.False(t, details.ViewerIsLeading)
		require.Equal(t, int64(100), details.ViewerHighestBid, "outbid amounts stay visible to their owner")
	})

	t.Run("unknown_auction", func(t *testing.T) {
		_, err := env.engine.GetAuctionDetails(ctx, "auction-missing", "alice-1234")
		require.ErrorIs(t, err, domain.ErrAuctionNotFound)
	})
}

func TestEngine_GetAuctionDetails_Ended(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.ledger.setBalance("alice-1234", 1000)

	auction := env.startedAuction(t, validInput())
	_, err := env.engine.PlaceBid(ctx, auction.ID, "alice-1234", 100)
	require.NoError(t, err)
	_, err = env.engine.EndAuction(ctx, auction.ID)
	require.NoError(t, err)

	details, err := env.engine.GetAuctionDetails(ctx, auction.ID, "stranger-9")
	require.NoError(t, err)
	require.Zero(t, details.TimeRemaining, "no countdown on a settled auction")
	require.Equal(t, "***1234", details.HighestBidder)
	require.Equal(t, "alice-1234", details.Auction.WinnerID)
}

func TestMaskUserID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "user-424242", want: "***4242"},
		{in: "abcd", want: "***"},
		{in: "ab", want: "***"},
		{in: "", want: "***"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, maskUserID(tc.in), "input %q", tc.in)
	}
}
