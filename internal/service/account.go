package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"voice-room/internal/model"
	"voice-room/internal/roomstate"
)

// ErrInvalidAmount is returned for non-positive recharges.
var ErrInvalidAmount = errors.New("invalid amount: must be positive")

// AccountService handles wallets and room clients.
type AccountService struct {
	wallets      WalletStore
	agencies     AgencyStore
	sessions     *SessionManager
	initialCoins int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(wallets WalletStore, agencies AgencyStore, sessions *SessionManager, initialCoins int64) *AccountService {
	return &AccountService{
		wallets:      wallets,
		agencies:     agencies,
		sessions:     sessions,
		initialCoins: initialCoins,
	}
}

// EnsureWallet ensures a wallet exists, creating one if necessary.
// Returns the wallet and whether it was newly created.
func (s *AccountService) EnsureWallet(ctx context.Context, userID int64, name string) (*model.Wallet, bool, error) {
	w, created, err := s.wallets.GetOrCreate(ctx, userID, name, s.initialCoins)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	if !created && name != "" && w.Name != name {
		if err := s.wallets.UpdateName(ctx, userID, name); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to update wallet name")
		}
		w.Name = name
	}
	return w, created, nil
}

// EnsureClient returns the actor's client in a room, joining it on first use.
func (s *AccountService) EnsureClient(ctx context.Context, roomID string, actor roomstate.Actor) (*Client, error) {
	if c, ok := s.sessions.Client(roomID, actor.UserID); ok {
		return c, nil
	}

	w, _, err := s.EnsureWallet(ctx, actor.UserID, actor.Name)
	if err != nil {
		return nil, err
	}
	if actor.Avatar == "" {
		actor.Avatar = w.Avatar
	}
	if actor.Frame == "" {
		actor.Frame = w.Frame
	}
	return s.sessions.Join(ctx, roomID, actor, w)
}

// LeaveRoom drops the user's client in a room.
func (s *AccountService) LeaveRoom(roomID string, userID int64) {
	s.sessions.Leave(roomID, userID)
}

// GetWallet retrieves a wallet by user ID.
func (s *AccountService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.wallets.GetByID(ctx, userID)
}

// Recharge adds coins and recharge points to a wallet.
func (s *AccountService) Recharge(ctx context.Context, userID, amount int64) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := s.wallets.Recharge(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to recharge: %w", err)
	}
	s.sessions.RefreshWallet(*w)
	return w, nil
}

// SetHost marks a wallet as a host, optionally affiliated with an agency.
func (s *AccountService) SetHost(ctx context.Context, userID int64, isHost bool, agencyID *string) (*model.Wallet, error) {
	w, err := s.wallets.SetHost(ctx, userID, isHost, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to set host: %w", err)
	}
	s.sessions.RefreshWallet(*w)
	return w, nil
}

// CreateAgency registers a host agency run by agentID.
func (s *AccountService) CreateAgency(ctx context.Context, agencyID string, agentID int64) (*model.HostAgency, error) {
	if _, _, err := s.EnsureWallet(ctx, agentID, ""); err != nil {
		return nil, err
	}
	a, err := s.agencies.Create(ctx, agencyID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create agency: %w", err)
	}
	return a, nil
}
