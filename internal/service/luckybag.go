package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voice-room/internal/model"
	"voice-room/internal/repository"
)

// DefaultBagTTL is how long a lucky bag stays claimable.
const DefaultBagTTL = 5 * time.Minute

// bagLockTimeout bounds the wait for a sender busy with another bag.
const bagLockTimeout = 5 * time.Second

// LuckyBagService creates and distributes lucky bags.
type LuckyBagService struct {
	bags      BagStore
	wallets   WalletStore
	sessions  *SessionManager
	presenter Presenter
	ttl       time.Duration
	now       func() time.Time
}

// NewLuckyBagService creates a new LuckyBagService instance.
func NewLuckyBagService(bags BagStore, wallets WalletStore, sessions *SessionManager, presenter Presenter, ttl time.Duration) *LuckyBagService {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if ttl <= 0 {
		ttl = DefaultBagTTL
	}
	return &LuckyBagService{
		bags:      bags,
		wallets:   wallets,
		sessions:  sessions,
		presenter: presenter,
		ttl:       ttl,
		now:       time.Now,
	}
}

// CreateBag funds a bag from the client's coins. Each of limit claimants
// will receive total/limit.
func (s *LuckyBagService) CreateBag(ctx context.Context, c *Client, total int64, limit int) (*model.LuckyBag, error) {
	if total <= 0 || limit <= 0 || int64(limit) > total {
		return nil, ErrInvalidBag
	}

	var bag *model.LuckyBag
	err := s.sessions.spendLocks.WithLockContext(ctx, c.UserID(), bagLockTimeout, func() error {
		// The bag debit is checked against the stored balance, which must
		// already hold every earlier gift of this sender.
		if err := s.sessions.settle(ctx, c.UserID()); err != nil {
			return err
		}
		sender := c.Wallet()
		if sender.Coins < total {
			return ErrInsufficientFunds
		}

		now := s.now()
		bag = &model.LuckyBag{
			ID:              uuid.NewString(),
			SenderID:        sender.ID,
			SenderName:      sender.DisplayName(),
			RoomID:          c.RoomID,
			TotalAmount:     total,
			RemainingAmount: total,
			RecipientsLimit: limit,
			ClaimedBy:       []int64{},
			CreatedAt:       now,
			ExpiresAt:       now.Add(s.ttl),
		}
		ann := &model.Announcement{
			ID:         uuid.NewString(),
			Type:       model.AnnouncementLuckyBag,
			SenderName: sender.DisplayName(),
			RoomID:     c.RoomID,
			RoomTitle:  c.Projection.Snapshot().Title,
			Amount:     total,
			CreatedAt:  now,
		}

		if err := s.bags.CreateBag(ctx, bag, ann); err != nil {
			if errors.Is(err, repository.ErrInsufficientCoins) {
				reloadWallet(ctx, s.wallets, s.sessions, c.UserID())
				return ErrInsufficientFunds
			}
			return fmt.Errorf("failed to create lucky bag: %w", err)
		}
		c.wallet.addCoins(-total)
		s.presenter.Announcement(ann)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", c.UserID()).
		Str("room_id", c.RoomID).
		Str("bag_id", bag.ID).
		Int64("total", total).
		Int("limit", limit).
		Msg("Lucky bag created")
	return bag, nil
}

// ClaimBag takes one share of a bag for the client and returns it.
func (s *LuckyBagService) ClaimBag(ctx context.Context, c *Client, bagID string) (int64, error) {
	share, _, err := s.bags.ClaimBag(ctx, bagID, c.UserID(), s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBagNotFound):
			return 0, ErrBagNotFound
		case errors.Is(err, repository.ErrBagExhausted):
			return 0, ErrBagExhausted
		case errors.Is(err, repository.ErrAlreadyClaimed):
			return 0, ErrAlreadyClaimed
		}
		return 0, fmt.Errorf("failed to claim lucky bag: %w", err)
	}

	c.wallet.addCoins(share)
	log.Info().
		Int64("user_id", c.UserID()).
		Str("bag_id", bagID).
		Int64("share", share).
		Msg("Lucky bag claimed")
	return share, nil
}

// ActiveBags lists the room's bags that have not expired.
func (s *LuckyBagService) ActiveBags(ctx context.Context, roomID string) ([]*model.LuckyBag, error) {
	bags, err := s.bags.ActiveBags(ctx, roomID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list lucky bags: %w", err)
	}
	return bags, nil
}
