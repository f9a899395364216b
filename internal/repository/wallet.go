// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"voice-room/internal/model"
)

// Common errors for repository operations.
var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrAgencyNotFound    = errors.New("agency not found")
)

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const walletColumns = `id, name, avatar, frame, coins, diamonds, wealth, charm,
	host_production, recharge_points, is_host, is_vip, host_agency_id, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Avatar,
		&w.Frame,
		&w.Coins,
		&w.Diamonds,
		&w.Wealth,
		&w.Charm,
		&w.HostProduction,
		&w.RechargePoints,
		&w.IsHost,
		&w.IsVip,
		&w.HostAgencyID,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// WalletRepository handles wallet persistence.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Create creates a wallet with the given starting coins.
func (r *WalletRepository) Create(ctx context.Context, id int64, name string, initialCoins int64) (*model.Wallet, error) {
	query := `
		INSERT INTO wallets (id, name, coins, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id, name, initialCoins))
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// GetByID retrieves a wallet. Returns ErrWalletNotFound if it does not exist.
func (r *WalletRepository) GetByID(ctx context.Context, id int64) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// GetOrCreate retrieves a wallet, creating it on first sight.
func (r *WalletRepository) GetOrCreate(ctx context.Context, id int64, name string, initialCoins int64) (*model.Wallet, bool, error) {
	w, err := r.GetByID(ctx, id)
	if err == nil {
		return w, false, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, false, err
	}

	w, err = r.Create(ctx, id, name, initialCoins)
	if err != nil {
		// Another request may have created it first.
		w, err = r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return w, false, nil
	}
	return w, true, nil
}

// GetMany retrieves the wallets that exist among ids.
func (r *WalletRepository) GetMany(ctx context.Context, ids []int64) (map[int64]*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*model.Wallet, len(ids))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		out[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}
	return out, nil
}

// Adjust applies field increments. A negative coin delta that would take
// the balance below zero fails with ErrInsufficientCoins.
func (r *WalletRepository) Adjust(ctx context.Context, d model.WalletDelta) (*model.Wallet, error) {
	return adjustWallet(ctx, r.pool, d)
}

// Recharge credits purchased coins and the matching recharge points.
func (r *WalletRepository) Recharge(ctx context.Context, id int64, amount int64) (*model.Wallet, error) {
	query := `
		UPDATE wallets
		SET coins = coins + $2, recharge_points = recharge_points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to recharge wallet: %w", err)
	}
	return w, nil
}

// SetHost marks a wallet as a host, optionally affiliated with an agency.
func (r *WalletRepository) SetHost(ctx context.Context, id int64, isHost bool, agencyID *string) (*model.Wallet, error) {
	query := `
		UPDATE wallets
		SET is_host = $2, host_agency_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id, isHost, agencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrAgencyNotFound
		}
		return nil, fmt.Errorf("failed to set host: %w", err)
	}
	return w, nil
}

// UpdateName keeps the display name in sync with the chat profile.
func (r *WalletRepository) UpdateName(ctx context.Context, id int64, name string) error {
	const query = `UPDATE wallets SET name = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, name)
	if err != nil {
		return fmt.Errorf("failed to update name: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// TopByWealth returns the biggest spenders.
func (r *WalletRepository) TopByWealth(ctx context.Context, limit int) ([]*model.Wallet, error) {
	return r.top(ctx, `SELECT `+walletColumns+` FROM wallets WHERE wealth > 0 ORDER BY wealth DESC, id LIMIT $1`, limit)
}

// TopByCharm returns the most gifted users.
func (r *WalletRepository) TopByCharm(ctx context.Context, limit int) ([]*model.Wallet, error) {
	return r.top(ctx, `SELECT `+walletColumns+` FROM wallets WHERE charm > 0 ORDER BY charm DESC, id LIMIT $1`, limit)
}

func (r *WalletRepository) top(ctx context.Context, query string, limit int) ([]*model.Wallet, error) {
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*model.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}
	return wallets, nil
}

func adjustWallet(ctx context.Context, q dbtx, d model.WalletDelta) (*model.Wallet, error) {
	query := `
		UPDATE wallets
		SET coins = coins + $2,
		    diamonds = diamonds + $3,
		    wealth = wealth + $4,
		    charm = charm + $5,
		    host_production = host_production + $6,
		    updated_at = NOW()
		WHERE id = $1 AND coins + $2 >= 0
		RETURNING ` + walletColumns

	w, err := scanWallet(q.QueryRow(ctx, query, d.UserID, d.Coins, d.Diamonds, d.Wealth, d.Charm, d.HostProduction))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust wallet: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, d.UserID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check wallet existence: %w", err)
	}
	if !exists {
		return nil, ErrWalletNotFound
	}
	return nil, ErrInsufficientCoins
}
