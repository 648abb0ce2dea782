package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"points-auction/internal/domain"
)

// Store is a concurrency-safe in-memory implementation of domain.AuctionStore.
// Each auction carries its own lock, so mutations on distinct auctions
// proceed in parallel while Mutate on one auction is fully serialized.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*record
}

type record struct {
	mu           sync.Mutex
	auction      domain.Auction
	bids         []domain.Bid
	participants map[string]domain.Participant
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[string]*record),
	}
}

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.ID]; exists {
		return fmt.Errorf("create auction %s: id already exists", auction.ID)
	}

	s.auctions[auction.ID] = &record{
		auction:      *auction,
		participants: make(map[string]domain.Participant),
	}
	return nil
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return copyAuction(&rec.auction), nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	return s.list(func(a *domain.Auction) bool {
		return a.Status == status
	}), nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	return s.list(func(a *domain.Auction) bool {
		return a.Status == domain.AuctionActive && !a.EndTime.After(now)
	}), nil
}

func (s *Store) ListUnsettled(ctx context.Context) ([]*domain.Auction, error) {
	return s.list(func(a *domain.Auction) bool {
		return a.Settlement == domain.SettlementPending || a.Settlement == domain.SettlementFailed
	}), nil
}

func (s *Store) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	bids := make([]*domain.Bid, 0, len(rec.bids))
	for i := range rec.bids {
		bid := rec.bids[i]
		bids = append(bids, &bid)
	}
	return bids, nil
}

func (s *Store) ListParticipants(ctx context.Context, auctionID string) ([]*domain.Participant, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	participants := make([]*domain.Participant, 0, len(rec.participants))
	for _, p := range rec.participants {
		p := p
		participants = append(participants, &p)
	}
	return participants, nil
}

func (s *Store) MarkParticipantNotified(ctx context.Context, auctionID, userID string, at time.Time) error {
	rec, err := s.record(auctionID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	p, ok := rec.participants[userID]
	if !ok {
		return fmt.Errorf("mark notified: user %s is not a participant of auction %s", userID, auctionID)
	}
	p.LastNotifiedAt = &at
	rec.participants[userID] = p
	return nil
}

// Mutate runs fn against a private copy of the auction state under the
// per-auction lock and swaps the copy in only if fn succeeds. An error from
// fn discards every staged change.
func (s *Store) Mutate(ctx context.Context, auctionID string, fn func(tx domain.AuctionTx) error) error {
	rec, err := s.record(auctionID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	tx := newTx(rec)
	if err := fn(tx); err != nil {
		return err
	}

	tx.commit(rec)
	return nil
}

func (s *Store) record(auctionID string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	return rec, nil
}

func (s *Store) list(keep func(*domain.Auction) bool) []*domain.Auction {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.auctions))
	for _, rec := range s.auctions {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	var out []*domain.Auction
	for _, rec := range recs {
		rec.mu.Lock()
		if keep(&rec.auction) {
			out = append(out, copyAuction(&rec.auction))
		}
		rec.mu.Unlock()
	}
	return out
}

// memTx stages changes against copies of the record's state.
type memTx struct {
	auction      *domain.Auction
	bids         []domain.Bid
	participants map[string]domain.Participant
}

func newTx(rec *record) *memTx {
	bids := make([]domain.Bid, len(rec.bids))
	copy(bids, rec.bids)

	participants := make(map[string]domain.Participant, len(rec.participants))
	for id, p := range rec.participants {
		participants[id] = p
	}

	return &memTx{
		auction:      copyAuction(&rec.auction),
		bids:         bids,
		participants: participants,
	}
}

func (tx *memTx) commit(rec *record) {
	rec.auction = *tx.auction
	rec.bids = tx.bids
	rec.participants = tx.participants
}

func (tx *memTx) Auction() *domain.Auction {
	return tx.auction
}

func (tx *memTx) WinningBid() *domain.Bid {
	for i := range tx.bids {
		if tx.bids[i].IsWinning {
			return &tx.bids[i]
		}
	}
	return nil
}

func (tx *memTx) InsertBid(bid *domain.Bid) {
	tx.bids = append(tx.bids, *bid)
}

func (tx *memTx) ClearWinningBid(bidID string) {
	for i := range tx.bids {
		if tx.bids[i].ID == bidID {
			tx.bids[i].IsWinning = false
		}
	}
}

func (tx *memTx) ParticipantCount() int {
	return len(tx.participants)
}

func (tx *memTx) Participant(userID string) (*domain.Participant, bool) {
	p, ok := tx.participants[userID]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (tx *memTx) UpsertParticipant(p *domain.Participant) {
	tx.participants[p.UserID] = *p
}

func copyAuction(a *domain.Auction) *domain.Auction {
	b := *a
	if a.EndedAt != nil {
		endedAt := *a.EndedAt
		b.EndedAt = &endedAt
	}
	return &b
}
