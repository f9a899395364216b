package service

import (
	"context"
	"time"

	"voice-room/internal/model"
)

// WalletStore is the durable wallet store. *repository.WalletRepository
// implements it.
type WalletStore interface {
	GetByID(ctx context.Context, id int64) (*model.Wallet, error)
	GetOrCreate(ctx context.Context, id int64, name string, initialCoins int64) (*model.Wallet, bool, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*model.Wallet, error)
	UpdateName(ctx context.Context, id int64, name string) error
	Recharge(ctx context.Context, id int64, amount int64) (*model.Wallet, error)
	SetHost(ctx context.Context, id int64, isHost bool, agencyID *string) (*model.Wallet, error)
	TopByWealth(ctx context.Context, limit int) ([]*model.Wallet, error)
	TopByCharm(ctx context.Context, limit int) ([]*model.Wallet, error)
}

// AgencyStore persists host agencies. *repository.AgencyRepository
// implements it.
type AgencyStore interface {
	Create(ctx context.Context, id string, agentID int64) (*model.HostAgency, error)
	GetByID(ctx context.Context, id string) (*model.HostAgency, error)
}

// Ledger persists gift commits and the room's append-only logs.
// *repository.LedgerRepository implements it.
type Ledger interface {
	CommitGift(ctx context.Context, c *model.GiftCommit) error
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	RecentMessages(ctx context.Context, roomID string, limit int) ([]*model.ChatMessage, error)
	RecentAnnouncements(ctx context.Context, limit int) ([]*model.Announcement, error)
	TopContributors(ctx context.Context, roomID string, limit int) ([]*model.Contribution, error)
}

// BagStore persists lucky bags. *repository.BagRepository implements it.
type BagStore interface {
	CreateBag(ctx context.Context, bag *model.LuckyBag, ann *model.Announcement) error
	ClaimBag(ctx context.Context, bagID string, userID int64, now time.Time) (int64, *model.LuckyBag, error)
	GetBag(ctx context.Context, bagID string) (*model.LuckyBag, error)
	ActiveBags(ctx context.Context, roomID string, now time.Time) ([]*model.LuckyBag, error)
}
