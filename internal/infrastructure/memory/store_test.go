package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"points-auction/internal/domain"
)

func seedAuction(t *testing.T, store *Store, id string, status domain.AuctionStatus, endTime time.Time) *domain.Auction {
	t.Helper()

	auction := &domain.Auction{
		ID:           id,
		Name:         "Seed Auction",
		Prize:        "Seed prize item",
		InitialPrice: 100,
		Status:       status,
		StartTime:    endTime.Add(-time.Hour),
		EndTime:      endTime,
		CreatorID:    "admin-1",
		MinIncrement: 10,
	}
	require.NoError(t, store.CreateAuction(context.Background(), auction))
	return auction
}

func TestStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedAuction(t, store, "auction-1", domain.AuctionPending, time.Now().Add(time.Hour))

	got, err := store.GetAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Equal(t, "auction-1", got.ID)

	// Duplicate ids are rejected.
	err = store.CreateAuction(ctx, &domain.Auction{ID: "auction-1"})
	require.Error(t, err)

	_, err = store.GetAuction(ctx, "auction-2")
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedAuction(t, store, "auction-1", domain.AuctionActive, time.Now().Add(time.Hour))

	got, err := store.GetAuction(ctx, "auction-1")
	require.NoError(t, err)
	got.CurrentHighestBid = 9999

	again, err := store.GetAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Zero(t, again.CurrentHighestBid, "callers must not reach the stored state")
}

func TestStore_ListByStatus(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	future := time.Now().Add(time.Hour)
	seedAuction(t, store, "auction-1", domain.AuctionPending, future)
	seedAuction(t, store, "auction-2", domain.AuctionActive, future)
	seedAuction(t, store, "auction-3", domain.AuctionActive, future)

	active, err := store.ListByStatus(ctx, domain.AuctionActive)
	require.NoError(t, err)
	require.Len(t, active, 2)

	pending, err := store.ListByStatus(ctx, domain.AuctionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "auction-1", pending[0].ID)

	cancelled, err := store.ListByStatus(ctx, domain.AuctionCancelled)
	require.NoError(t, err)
	require.Empty(t, cancelled)
}

func TestStore_ListExpired(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	now := time.Now()

	seedAuction(t, store, "auction-past", domain.AuctionActive, now.Add(-time.Minute))
	seedAuction(t, store, "auction-boundary", domain.AuctionActive, now)
	seedAuction(t, store, "auction-future", domain.AuctionActive, now.Add(time.Minute))
	seedAuction(t, store, "auction-pending-past", domain.AuctionPending, now.Add(-time.Minute))

	expired, err := store.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 2, "deadline exactly at now counts as expired")

	ids := map[string]bool{}
	for _, a := range expired {
		ids[a.ID] = true
	}
	require.True(t, ids["auction-past"])
	require.True(t, ids["auction-boundary"])
}

func TestStore_ListUnsettled(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	pending := seedAuction(t, store, "auction-1", domain.AuctionEnded, future)
	failed := seedAuction(t, store, "auction-2", domain.AuctionEnded, future)
	seedAuction(t, store, "auction-3", domain.AuctionEnded, future)

	for id, settlement := range map[string]domain.SettlementStatus{
		pending.ID: domain.SettlementPending,
		failed.ID:  domain.SettlementFailed,
		"auction-3": domain.SettlementConfirmed,
	} {
		require.NoError(t, store.Mutate(ctx, id, func(tx domain.AuctionTx) error {
			tx.Auction().Settlement = settlement
			return nil
		}))
	}

	unsettled, err := store.ListUnsettled(ctx)
	require.NoError(t, err)
	require.Len(t, unsettled, 2)
}

func TestStore_MutateRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedAuction(t, store, "auction-1", domain.AuctionActive, time.Now().Add(time.Hour))

	boom := errors.New("boom")
	err := store.Mutate(ctx, "auction-1", func(tx domain.AuctionTx) error {
		tx.Auction().CurrentHighestBid = 500
		tx.Auction().HighestBidderID = "user-x"
		tx.InsertBid(&domain.Bid{ID: "bid-1", AuctionID: "auction-1", BidderID: "user-x", Amount: 500, IsWinning: true})
		tx.UpsertParticipant(&domain.Participant{AuctionID: "auction-1", UserID: "user-x"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := store.GetAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Zero(t, after.CurrentHighestBid)
	require.Empty(t, after.HighestBidderID)

	bids, err := store.ListBids(ctx, "auction-1")
	require.NoError(t, err)
	require.Empty(t, bids)

	participants, err := store.ListParticipants(ctx, "auction-1")
	require.NoError(t, err)
	require.Empty(t, participants)
}

func TestStore_MutateNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore()
	err := store.Mutate(context.Background(), "auction-missing", func(tx domain.AuctionTx) error {
		t.Fatal("fn must not run for an unknown auction")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestStore_MutateSerializesPerAuction(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedAuction(t, store, "auction-1", domain.AuctionActive, time.Now().Add(time.Hour))

	const workers = 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Mutate(ctx, "auction-1", func(tx domain.AuctionTx) error {
				tx.Auction().CurrentHighestBid++
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	after, err := store.GetAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Equal(t, int64(workers), after.CurrentHighestBid, "increments must not be lost")
}

func TestStore_WinningBidBookkeeping(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedAuction(t, store, "auction-1", domain.AuctionActive, time.Now().Add(time.Hour))

	placeBid := func(id, bidder string, amount int64) {
		require.NoError(t, store.Mutate(ctx, "auction-1", func(tx domain.AuctionTx) error {
			if winning := tx.WinningBid(); winning != nil {
				tx.ClearWinningBid(winning.ID)
			}
			tx.InsertBid(&domain.Bid{
				ID: id, AuctionID: "auction-1", BidderID: bidder,
				Amount: amount, IsWinning: true,
			})
			return nil
		}))
	}

	placeBid("bid-1", "user-a", 100)
	placeBid("bid-2", "user-b", 110)
	placeBid("bid-3", "user-c", 120)

	bids, err := store.ListBids(ctx, "auction-1")
	require.NoError(t, err)
	require.Len(t, bids, 3)

	var winning int
	for _, bid := range bids {
		if bid.IsWinning {
			winning++
			require.Equal(t, "bid-3", bid.ID)
		}
	}
	require.Equal(t, 1, winning)
}

func TestStore_Participants(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedAuction(t, store, "auction-1", domain.AuctionActive, time.Now().Add(time.Hour))

	joined := time.Now()
	require.NoError(t, store.Mutate(ctx, "auction-1", func(tx domain.AuctionTx) error {
		require.Zero(t, tx.ParticipantCount())

		_, ok := tx.Participant("user-a")
		require.False(t, ok)

		tx.UpsertParticipant(&domain.Participant{
			AuctionID: "auction-1", UserID: "user-a",
			JoinedAt: joined, NotificationsEnabled: true,
		})
		require.Equal(t, 1, tx.ParticipantCount())
		return nil
	}))

	notifiedAt := joined.Add(time.Minute)
	require.NoError(t, store.MarkParticipantNotified(ctx, "auction-1", "user-a", notifiedAt))
	require.Error(t, store.MarkParticipantNotified(ctx, "auction-1", "user-z", notifiedAt))

	participants, err := store.ListParticipants(ctx, "auction-1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	require.NotNil(t, participants[0].LastNotifiedAt)
	require.True(t, participants[0].LastNotifiedAt.Equal(notifiedAt))
}

func TestStore_ParallelAuctionsIndependent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	const auctions = 10
	for i := 0; i < auctions; i++ {
		seedAuction(t, store, fmt.Sprintf("auction-%d", i), domain.AuctionActive, future)
	}

	var wg sync.WaitGroup
	for i := 0; i < auctions; i++ {
		id := fmt.Sprintf("auction-%d", i)
		amount := int64(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Mutate(ctx, id, func(tx domain.AuctionTx) error {
				tx.Auction().CurrentHighestBid = amount
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < auctions; i++ {
		got, err := store.GetAuction(ctx, fmt.Sprintf("auction-%d", i))
		require.NoError(t, err)
		require.Equal(t, int64(100+i), got.CurrentHighestBid)
	}
}
