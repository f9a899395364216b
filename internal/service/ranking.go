package service

import (
	"context"

	"voice-room/internal/model"
)

// RankingService handles ranking and leaderboard operations.
type RankingService struct {
	wallets WalletStore
	ledger  Ledger
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(wallets WalletStore, ledger Ledger) *RankingService {
	return &RankingService{
		wallets: wallets,
		ledger:  ledger,
	}
}

// TopSenders retrieves the users who have spent the most on gifts.
func (s *RankingService) TopSenders(ctx context.Context, limit int) ([]*model.Wallet, error) {
	return s.wallets.TopByWealth(ctx, limit)
}

// TopReceivers retrieves the users who have received the most gift value.
func (s *RankingService) TopReceivers(ctx context.Context, limit int) ([]*model.Wallet, error) {
	return s.wallets.TopByCharm(ctx, limit)
}

// TopContributors retrieves a room's biggest senders.
func (s *RankingService) TopContributors(ctx context.Context, roomID string, limit int) ([]*model.Contribution, error) {
	return s.ledger.TopContributors(ctx, roomID, limit)
}
