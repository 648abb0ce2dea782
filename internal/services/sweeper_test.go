package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"points-auction/internal/domain"
	"points-auction/pkg/logger"
)

type fakeElection struct {
	leader bool
	err    error
}

func (f *fakeElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return f.leader, f.err
}

func (f *fakeElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return f.leader, f.err
}

func (f *fakeElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}

func expiredAuction(t *testing.T, env *testEnv, clock *testClock) *domain.Auction {
	t.Helper()

	auction := env.startedAuction(t, validInput())
	clock.Set(auction.EndTime.Add(time.Second))
	return auction
}

func TestSweeper_EndsExpiredAuctions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	clock := newTestClock()
	env.engine.now = clock.Now

	auction := expiredAuction(t, env, clock)

	sweeper := NewSweeper(env.engine, nil, "instance-1", time.Minute, logger.NewNop())
	sweeper.sweep(context.Background())

	after, err := env.store.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionEnded, after.Status)
}

func TestSweeper_NonLeaderSkips(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	clock := newTestClock()
	env.engine.now = clock.Now

	auction := expiredAuction(t, env, clock)

	sweeper := NewSweeper(env.engine, &fakeElection{leader: false}, "instance-2", time.Minute, logger.NewNop())
	sweeper.sweep(context.Background())

	after, err := env.store.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionActive, after.Status, "only the leader sweeps")
}

func TestSweeper_LeaderSweeps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	clock := newTestClock()
	env.engine.now = clock.Now

	auction := expiredAuction(t, env, clock)

	sweeper := NewSweeper(env.engine, &fakeElection{leader: true}, "instance-3", time.Minute, logger.NewNop())
	sweeper.sweep(context.Background())

	after, err := env.store.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionEnded, after.Status)
}

func TestSweeper_ScheduledSweep(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	clock := newTestClock()
	env.engine.now = clock.Now

	auction := expiredAuction(t, env, clock)

	sweeper := NewSweeper(env.engine, nil, "instance-4", time.Second, logger.NewNop())
	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		after, err := env.store.GetAuction(context.Background(), auction.ID)
		require.NoError(t, err)
		return after.Status == domain.AuctionEnded
	}, 5*time.Second, 50*time.Millisecond)
}
