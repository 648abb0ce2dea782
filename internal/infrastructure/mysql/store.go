package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"points-auction/internal/domain"
)

// Store is the MySQL implementation of domain.AuctionStore.
//
// Expected schema:
//
//	auctions(id PK, name, description, prize, initial_price, current_highest_bid,
//	         highest_bidder_id, winner_id, status, settlement, start_time, end_time,
//	         creator_id, min_increment, max_participants, auto_extend_seconds,
//	         created_at, updated_at, ended_at NULL)
//	bids(id PK, auction_id, bidder_id, amount, placed_at, is_winning)
//	participants(auction_id, user_id, joined_at, notifications_enabled,
//	             last_notified_at NULL, PRIMARY KEY (auction_id, user_id))
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const auctionColumns = `id, name, description, prize, initial_price, current_highest_bid,
        highest_bidder_id, winner_id, status, settlement, start_time, end_time,
        creator_id, min_increment, max_participants, auto_extend_seconds,
        created_at, updated_at, ended_at`

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.Name, auction.Description, auction.Prize,
		auction.InitialPrice, auction.CurrentHighestBid,
		auction.HighestBidderID, auction.WinnerID,
		int(auction.Status), int(auction.Settlement),
		auction.StartTime, auction.EndTime, auction.CreatorID,
		auction.MinIncrement, auction.MaxParticipants,
		int64(auction.AutoExtendWindow.Seconds()),
		auction.CreatedAt, auction.UpdatedAt, nullTime(auction.EndedAt))
	return err
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrAuctionNotFound)
		}
		return nil, err
	}
	return auction, nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? ORDER BY end_time ASC`
	return s.queryAuctions(ctx, query, int(status))
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? AND end_time <= ? ORDER BY end_time ASC`
	return s.queryAuctions(ctx, query, int(domain.AuctionActive), now)
}

func (s *Store) ListUnsettled(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE settlement IN (?, ?) ORDER BY ended_at ASC`
	return s.queryAuctions(ctx, query, int(domain.SettlementPending), int(domain.SettlementFailed))
}

func (s *Store) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (s *Store) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, placed_at, is_winning
        FROM bids WHERE auction_id = ? ORDER BY placed_at ASC
    `
	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID,
			&bid.Amount, &bid.PlacedAt, &bid.IsWinning); err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}

func (s *Store) ListParticipants(ctx context.Context, auctionID string) ([]*domain.Participant, error) {
	query := `
        SELECT auction_id, user_id, joined_at, notifications_enabled, last_notified_at
        FROM participants WHERE auction_id = ?
    `
	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Store) MarkParticipantNotified(ctx context.Context, auctionID, userID string, at time.Time) error {
	query := `UPDATE participants SET last_notified_at = ? WHERE auction_id = ? AND user_id = ?`
	_, err := s.db.ExecContext(ctx, query, at, auctionID, userID)
	return err
}

// Mutate runs fn inside a transaction holding a row lock on the auction.
// Concurrent mutations of the same auction queue on the lock, so fn always
// validates against the latest committed state.
func (s *Store) Mutate(ctx context.Context, auctionID string, fn func(tx domain.AuctionTx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	view, err := loadTx(ctx, dbTx, auctionID)
	if err != nil {
		return err
	}

	if err := fn(view); err != nil {
		return err
	}

	if err := view.apply(ctx, dbTx); err != nil {
		return err
	}
	return dbTx.Commit()
}

// sqlTx stages changes against state loaded under the row lock.
type sqlTx struct {
	auctionID    string
	auction      *domain.Auction
	winningBid   *domain.Bid
	participants map[string]*domain.Participant

	insertedBids []*domain.Bid
	clearedBids  []string
	upserted     []*domain.Participant
}

func loadTx(ctx context.Context, dbTx *sql.Tx, auctionID string) (*sqlTx, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? FOR UPDATE`
	auction, err := scanAuction(dbTx.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrAuctionNotFound)
		}
		return nil, err
	}

	view := &sqlTx{
		auctionID:    auctionID,
		auction:      auction,
		participants: make(map[string]*domain.Participant),
	}

	bidQuery := `
        SELECT id, auction_id, bidder_id, amount, placed_at, is_winning
        FROM bids WHERE auction_id = ? AND is_winning = 1 FOR UPDATE
    `
	var bid domain.Bid
	err = dbTx.QueryRowContext(ctx, bidQuery, auctionID).Scan(&bid.ID, &bid.AuctionID,
		&bid.BidderID, &bid.Amount, &bid.PlacedAt, &bid.IsWinning)
	switch err {
	case nil:
		view.winningBid = &bid
	case sql.ErrNoRows:
	default:
		return nil, err
	}

	partQuery := `
        SELECT auction_id, user_id, joined_at, notifications_enabled, last_notified_at
        FROM participants WHERE auction_id = ? FOR UPDATE
    `
	rows, err := dbTx.QueryContext(ctx, partQuery, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		view.participants[p.UserID] = p
	}
	return view, rows.Err()
}

func (tx *sqlTx) apply(ctx context.Context, dbTx *sql.Tx) error {
	for _, bidID := range tx.clearedBids {
		if _, err := dbTx.ExecContext(ctx,
			`UPDATE bids SET is_winning = 0 WHERE id = ?`, bidID); err != nil {
			return err
		}
	}

	for _, bid := range tx.insertedBids {
		if _, err := dbTx.ExecContext(ctx, `
            INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, is_winning)
            VALUES (?, ?, ?, ?, ?, ?)
        `, bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.PlacedAt, bid.IsWinning); err != nil {
			return err
		}
	}

	for _, p := range tx.upserted {
		if _, err := dbTx.ExecContext(ctx, `
            INSERT INTO participants (auction_id, user_id, joined_at, notifications_enabled, last_notified_at)
            VALUES (?, ?, ?, ?, ?)
            ON DUPLICATE KEY UPDATE
                notifications_enabled = VALUES(notifications_enabled),
                last_notified_at = VALUES(last_notified_at)
        `, p.AuctionID, p.UserID, p.JoinedAt, p.NotificationsEnabled,
			nullTime(p.LastNotifiedAt)); err != nil {
			return err
		}
	}

	a := tx.auction
	_, err := dbTx.ExecContext(ctx, `
        UPDATE auctions SET
            name = ?, description = ?, prize = ?, initial_price = ?,
            current_highest_bid = ?, highest_bidder_id = ?, winner_id = ?,
            status = ?, settlement = ?, start_time = ?, end_time = ?,
            min_increment = ?, max_participants = ?, auto_extend_seconds = ?,
            updated_at = ?, ended_at = ?
        WHERE id = ?
    `, a.Name, a.Description, a.Prize, a.InitialPrice,
		a.CurrentHighestBid, a.HighestBidderID, a.WinnerID,
		int(a.Status), int(a.Settlement), a.StartTime, a.EndTime,
		a.MinIncrement, a.MaxParticipants, int64(a.AutoExtendWindow.Seconds()),
		a.UpdatedAt, nullTime(a.EndedAt), a.ID)
	return err
}

func (tx *sqlTx) Auction() *domain.Auction {
	return tx.auction
}

func (tx *sqlTx) WinningBid() *domain.Bid {
	return tx.winningBid
}

func (tx *sqlTx) InsertBid(bid *domain.Bid) {
	staged := *bid
	tx.insertedBids = append(tx.insertedBids, &staged)
}

func (tx *sqlTx) ClearWinningBid(bidID string) {
	tx.clearedBids = append(tx.clearedBids, bidID)
	if tx.winningBid != nil && tx.winningBid.ID == bidID {
		tx.winningBid.IsWinning = false
	}
}

func (tx *sqlTx) ParticipantCount() int {
	return len(tx.participants)
}

func (tx *sqlTx) Participant(userID string) (*domain.Participant, bool) {
	p, ok := tx.participants[userID]
	return p, ok
}

func (tx *sqlTx) UpsertParticipant(p *domain.Participant) {
	staged := *p
	tx.participants[p.UserID] = &staged
	tx.upserted = append(tx.upserted, &staged)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction           domain.Auction
		status            int
		settlement        int
		autoExtendSeconds int64
		endedAt           sql.NullTime
	)

	err := row.Scan(&auction.ID, &auction.Name, &auction.Description, &auction.Prize,
		&auction.InitialPrice, &auction.CurrentHighestBid,
		&auction.HighestBidderID, &auction.WinnerID,
		&status, &settlement, &auction.StartTime, &auction.EndTime,
		&auction.CreatorID, &auction.MinIncrement, &auction.MaxParticipants,
		&autoExtendSeconds, &auction.CreatedAt, &auction.UpdatedAt, &endedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	auction.Settlement = domain.SettlementStatus(settlement)
	auction.AutoExtendWindow = time.Duration(autoExtendSeconds) * time.Second
	if endedAt.Valid {
		auction.EndedAt = &endedAt.Time
	}
	return &auction, nil
}

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	var (
		p              domain.Participant
		lastNotifiedAt sql.NullTime
	)
	err := row.Scan(&p.AuctionID, &p.UserID, &p.JoinedAt,
		&p.NotificationsEnabled, &lastNotifiedAt)
	if err != nil {
		return nil, err
	}
	if lastNotifiedAt.Valid {
		p.LastNotifiedAt = &lastNotifiedAt.Time
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
