package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"points-auction/internal/domain"
	"points-auction/pkg/logger"
)

// Sweeper periodically forces settlement of active auctions whose end time
// has passed. It drives the same EndAuction path an admin call would, just
// on a timer. With a leader election configured only the elected instance
// sweeps; a nil election means always sweep.
type Sweeper struct {
	engine     *Engine
	cron       *cron.Cron
	election   domain.LeaderElection
	instanceID string
	interval   time.Duration
	log        logger.Logger
}

func NewSweeper(engine *Engine, election domain.LeaderElection, instanceID string,
	interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Sweeper{
		engine:     engine,
		cron:       cron.New(cron.WithSeconds()),
		election:   election,
		instanceID: instanceID,
		interval:   interval,
		log:        log,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("Starting expiration sweeper", "interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	s.log.Info("Stopping expiration sweeper")
	s.cron.Stop()
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	if s.election != nil {
		isLeader, err := s.election.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Leader check failed, skipping sweep", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	ended, err := s.engine.CheckExpiredAuctions(ctx)
	if err != nil {
		s.log.Error("Sweep failed", "error", err)
		return
	}

	if len(ended) > 0 {
		s.log.Info("Swept expired auctions", "count", len(ended))
	}
}
