package services

import (
	"context"
	"fmt"
	"time"

	"points-auction/internal/domain"
	"points-auction/pkg/logger"
	"points-auction/pkg/utils"
)

// Defaults are engine-level tunables applied when an auction is created
// without explicit overrides.
type Defaults struct {
	MinIncrement     int64
	AutoExtendWindow time.Duration
}

// Engine owns the auction lifecycle: creation, activation, bid acceptance,
// auto-extension, settlement and cancellation. It is the sole writer of
// auction state; every mutation of an existing auction goes through the
// store's atomic Mutate so concurrent bidders serialize per auction.
type Engine struct {
	store    domain.AuctionStore
	ledger   domain.PointsLedger
	notifier domain.NotificationSink
	defaults Defaults
	log      logger.Logger
	now      func() time.Time
}

func NewEngine(
	store domain.AuctionStore,
	ledger domain.PointsLedger,
	notifier domain.NotificationSink,
	defaults Defaults,
	log logger.Logger,
) *Engine {
	if defaults.MinIncrement <= 0 {
		defaults.MinIncrement = 10
	}
	if defaults.AutoExtendWindow <= 0 {
		defaults.AutoExtendWindow = 5 * time.Minute
	}

	return &Engine{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		defaults: defaults,
		log:      log,
		now:      time.Now,
	}
}

type CreateAuctionInput struct {
	Name          string
	Description   string
	Prize         string
	InitialPrice  int64
	DurationHours int
	CreatorID     string

	// Optional overrides; zero values fall back to engine defaults.
	MinIncrement     int64
	MaxParticipants  int
	AutoExtendWindow time.Duration
}

func (in *CreateAuctionInput) validate() error {
	if len(in.Name) < 3 {
		return fmt.Errorf("name must be at least 3 characters: %w", domain.ErrValidation)
	}
	if len(in.Prize) < 5 {
		return fmt.Errorf("prize description must be at least 5 characters: %w", domain.ErrValidation)
	}
	if in.InitialPrice <= 0 {
		return fmt.Errorf("initial price must be positive: %w", domain.ErrValidation)
	}
	if in.DurationHours <= 0 {
		return fmt.Errorf("duration must be positive: %w", domain.ErrValidation)
	}
	if in.CreatorID == "" {
		return fmt.Errorf("creator is required: %w", domain.ErrValidation)
	}
	return nil
}

// CreateAuction persists a new auction in pending state. The end time is
// fixed here; StartAuction never moves it.
func (e *Engine) CreateAuction(ctx context.Context, in CreateAuctionInput) (*domain.Auction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	minIncrement := in.MinIncrement
	if minIncrement <= 0 {
		minIncrement = e.defaults.MinIncrement
	}
	autoExtend := in.AutoExtendWindow
	if autoExtend <= 0 {
		autoExtend = e.defaults.AutoExtendWindow
	}

	now := e.now()
	auction := &domain.Auction{
		ID:               utils.GenerateID("auction"),
		Name:             in.Name,
		Description:      in.Description,
		Prize:            in.Prize,
		InitialPrice:     in.InitialPrice,
		Status:           domain.AuctionPending,
		StartTime:        now,
		EndTime:          now.Add(time.Duration(in.DurationHours) * time.Hour),
		CreatorID:        in.CreatorID,
		MinIncrement:     minIncrement,
		MaxParticipants:  in.MaxParticipants,
		AutoExtendWindow: autoExtend,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.store.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	e.log.Info("Auction created", "auction_id", auction.ID, "name", auction.Name,
		"initial_price", auction.InitialPrice, "end_time", auction.EndTime)
	return auction, nil
}

// StartAuction moves a pending auction to active. The start time is reset to
// now for informational purposes only; the end time fixed at creation stands.
func (e *Engine) StartAuction(ctx context.Context, auctionID string) error {
	err := e.store.Mutate(ctx, auctionID, func(tx domain.AuctionTx) error {
		auction := tx.Auction()
		if auction.Status != domain.AuctionPending {
			return fmt.Errorf("start %s auction %s: %w", auction.Status, auctionID, domain.ErrInvalidState)
		}

		now := e.now()
		auction.Status = domain.AuctionActive
		auction.StartTime = now
		auction.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info("Auction started", "auction_id", auctionID)
	return nil
}

// PlaceBid validates and records a bid. Preconditions are checked in a fixed
// order with the first failure winning; the balance check against the ledger
// is advisory only, no points are escrowed until settlement. The
// read-validate-write sequence runs inside one store mutation.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.Auction, error) {
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := e.biddable(auction); err != nil {
		return nil, err
	}

	balance, err := e.ledger.GetBalance(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("check balance for %s: %w", bidderID, err)
	}
	if balance < amount {
		return nil, fmt.Errorf("balance %d below bid %d: %w", balance, amount, domain.ErrInsufficientFunds)
	}

	var (
		updated  domain.Auction
		extended bool
	)
	err = e.store.Mutate(ctx, auctionID, func(tx domain.AuctionTx) error {
		auction := tx.Auction()
		if err := e.biddable(auction); err != nil {
			return err
		}

		minNext := auction.MinNextBid()
		if amount < minNext {
			return fmt.Errorf("bid %d below minimum %d: %w", amount, minNext, domain.ErrBidTooLow)
		}
		if auction.HighestBidderID == bidderID {
			return fmt.Errorf("user %s: %w", bidderID, domain.ErrAlreadyHighestBidder)
		}

		_, isParticipant := tx.Participant(bidderID)
		if auction.MaxParticipants > 0 && !isParticipant &&
			tx.ParticipantCount() >= auction.MaxParticipants {
			return fmt.Errorf("auction %s limited to %d participants: %w",
				auctionID, auction.MaxParticipants, domain.ErrCapacityExceeded)
		}

		now := e.now()
		if winning := tx.WinningBid(); winning != nil {
			tx.ClearWinningBid(winning.ID)
		}
		tx.InsertBid(&domain.Bid{
			ID:        utils.GenerateID("bid"),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			PlacedAt:  now,
			IsWinning: true,
		})

		auction.CurrentHighestBid = amount
		auction.HighestBidderID = bidderID
		auction.UpdatedAt = now

		// Anti-snipe: a bid landing inside the extension window pushes the
		// deadline to exactly now + window, as often as it happens.
		if auction.EndTime.Sub(now) < auction.AutoExtendWindow {
			auction.EndTime = now.Add(auction.AutoExtendWindow)
			extended = true
		}

		if !isParticipant {
			tx.UpsertParticipant(&domain.Participant{
				AuctionID:            auctionID,
				UserID:               bidderID,
				JoinedAt:             now,
				NotificationsEnabled: true,
			})
		}

		updated = *auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Bid placed", "auction_id", auctionID, "bidder_id", bidderID,
		"amount", amount, "extended", extended)

	go e.notifyBidPlaced(&updated, bidderID, extended)

	return &updated, nil
}

func (e *Engine) biddable(auction *domain.Auction) error {
	if auction.Status != domain.AuctionActive {
		return fmt.Errorf("bid on %s auction %s: %w", auction.Status, auction.ID, domain.ErrInvalidState)
	}
	if e.now().After(auction.EndTime) {
		return fmt.Errorf("auction %s past its end time: %w", auction.ID, domain.ErrInvalidState)
	}
	return nil
}

// EndAuction settles an active auction. The status transition always goes
// through; a failed debit is recorded on the auction for reconciliation
// instead of blocking the state machine.
func (e *Engine) EndAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	var updated domain.Auction
	err := e.store.Mutate(ctx, auctionID, func(tx domain.AuctionTx) error {
		auction := tx.Auction()
		if auction.Status != domain.AuctionActive {
			return fmt.Errorf("end %s auction %s: %w", auction.Status, auctionID, domain.ErrInvalidState)
		}

		now := e.now()
		auction.Status = domain.AuctionEnded
		auction.EndedAt = &now
		auction.UpdatedAt = now
		if auction.HighestBidderID != "" && auction.CurrentHighestBid > 0 {
			auction.WinnerID = auction.HighestBidderID
			auction.Settlement = domain.SettlementPending
		}

		updated = *auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Auction ended", "auction_id", auctionID, "winner_id", updated.WinnerID,
		"winning_bid", updated.CurrentHighestBid)

	if updated.WinnerID != "" {
		e.settle(ctx, &updated)
		go e.notifyEnded(&updated)
	}

	return &updated, nil
}

// settle attempts the winner's debit and records the outcome. Funds were
// never reserved, so the debit can fail here; the auction stays ended and
// the failed settlement is queryable via UnsettledAuctions.
func (e *Engine) settle(ctx context.Context, auction *domain.Auction) {
	outcome := domain.SettlementConfirmed
	if err := e.ledger.Debit(ctx, auction.WinnerID, auction.CurrentHighestBid); err != nil {
		e.log.Error("Settlement debit failed", "auction_id", auction.ID,
			"winner_id", auction.WinnerID, "amount", auction.CurrentHighestBid, "error", err)
		outcome = domain.SettlementFailed
	}

	err := e.store.Mutate(ctx, auction.ID, func(tx domain.AuctionTx) error {
		tx.Auction().Settlement = outcome
		return nil
	})
	if err != nil {
		e.log.Error("Failed to record settlement outcome", "auction_id", auction.ID, "error", err)
		return
	}
	auction.Settlement = outcome
}

// CancelAuction moves a pending or active auction to cancelled. No
// settlement happens; participants are told the auction is off.
func (e *Engine) CancelAuction(ctx context.Context, auctionID string) error {
	var updated domain.Auction
	err := e.store.Mutate(ctx, auctionID, func(tx domain.AuctionTx) error {
		auction := tx.Auction()
		if auction.Status != domain.AuctionPending && auction.Status != domain.AuctionActive {
			return fmt.Errorf("cancel %s auction %s: %w", auction.Status, auctionID, domain.ErrInvalidState)
		}

		now := e.now()
		auction.Status = domain.AuctionCancelled
		auction.EndedAt = &now
		auction.UpdatedAt = now

		updated = *auction
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info("Auction cancelled", "auction_id", auctionID)

	go e.notifyAll(&updated, &domain.Event{
		Type:        domain.EventAuctionCancelled,
		AuctionID:   updated.ID,
		AuctionName: updated.Name,
		Timestamp:   e.now(),
	})

	return nil
}

func (e *Engine) GetActiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return e.store.ListByStatus(ctx, domain.AuctionActive)
}

func (e *Engine) GetPendingAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return e.store.ListByStatus(ctx, domain.AuctionPending)
}

// UnsettledAuctions is the reconciliation hook: ended auctions whose debit
// is still pending or has failed.
func (e *Engine) UnsettledAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return e.store.ListUnsettled(ctx)
}

// CheckExpiredAuctions ends every active auction whose deadline has passed.
// A failure on one auction is logged and does not stop the rest; the next
// sweep retries it.
func (e *Engine) CheckExpiredAuctions(ctx context.Context) ([]*domain.Auction, error) {
	expired, err := e.store.ListExpired(ctx, e.now())
	if err != nil {
		return nil, err
	}

	var ended []*domain.Auction
	for _, auction := range expired {
		settled, err := e.EndAuction(ctx, auction.ID)
		if err != nil {
			e.log.Error("Failed to end expired auction", "auction_id", auction.ID, "error", err)
			continue
		}
		ended = append(ended, settled)
	}
	return ended, nil
}

// Notification fan-out. Runs detached from the request that triggered it:
// delivery failure must never roll back a committed bid or settlement.

func (e *Engine) notifyBidPlaced(auction *domain.Auction, bidderID string, extended bool) {
	eventType := domain.EventBidPlaced
	if extended {
		eventType = domain.EventAuctionExtended
	}
	e.notifyOthers(auction, bidderID, &domain.Event{
		Type:          eventType,
		AuctionID:     auction.ID,
		AuctionName:   auction.Name,
		Amount:        auction.CurrentHighestBid,
		BidderID:      bidderID,
		TimeRemaining: remainingSeconds(auction, e.now()),
		Timestamp:     e.now(),
	})
}

func (e *Engine) notifyEnded(auction *domain.Auction) {
	ctx := context.Background()

	winnerEvent := &domain.Event{
		Type:        domain.EventAuctionWon,
		AuctionID:   auction.ID,
		AuctionName: auction.Name,
		Prize:       auction.Prize,
		Amount:      auction.CurrentHighestBid,
		Timestamp:   e.now(),
	}
	if err := e.notifier.Notify(ctx, auction.WinnerID, winnerEvent); err != nil {
		e.log.Warn("Failed to notify winner", "auction_id", auction.ID,
			"winner_id", auction.WinnerID, "error", err)
	}

	e.notifyOthers(auction, auction.WinnerID, &domain.Event{
		Type:        domain.EventAuctionEnded,
		AuctionID:   auction.ID,
		AuctionName: auction.Name,
		WinnerID:    auction.WinnerID,
		Amount:      auction.CurrentHighestBid,
		Timestamp:   e.now(),
	})
}

func (e *Engine) notifyAll(auction *domain.Auction, event *domain.Event) {
	e.notifyOthers(auction, "", event)
}

func (e *Engine) notifyOthers(auction *domain.Auction, excludeUserID string, event *domain.Event) {
	ctx := context.Background()

	participants, err := e.store.ListParticipants(ctx, auction.ID)
	if err != nil {
		e.log.Warn("Failed to list participants for notification",
			"auction_id", auction.ID, "error", err)
		return
	}

	for _, p := range participants {
		if p.UserID == excludeUserID || !p.NotificationsEnabled {
			continue
		}
		if err := e.notifier.Notify(ctx, p.UserID, event); err != nil {
			e.log.Warn("Failed to notify participant", "auction_id", auction.ID,
				"user_id", p.UserID, "event", event.Type, "error", err)
			continue
		}
		if err := e.store.MarkParticipantNotified(ctx, auction.ID, p.UserID, e.now()); err != nil {
			e.log.Warn("Failed to record notification time", "auction_id", auction.ID,
				"user_id", p.UserID, "error", err)
		}
	}
}

func remainingSeconds(auction *domain.Auction, now time.Time) int64 {
	remaining := auction.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}
