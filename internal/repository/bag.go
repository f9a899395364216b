package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"voice-room/internal/model"
)

// Lucky bag errors.
var (
	ErrBagNotFound    = errors.New("lucky bag not found")
	ErrBagExhausted   = errors.New("lucky bag exhausted")
	ErrAlreadyClaimed = errors.New("lucky bag already claimed")
)

const bagColumns = `id, sender_id, sender_name, room_id, total_amount, remaining_amount,
	recipients_limit, claimed_by, created_at, expires_at`

func scanBag(row pgx.Row) (*model.LuckyBag, error) {
	var b model.LuckyBag
	err := row.Scan(
		&b.ID,
		&b.SenderID,
		&b.SenderName,
		&b.RoomID,
		&b.TotalAmount,
		&b.RemainingAmount,
		&b.RecipientsLimit,
		&b.ClaimedBy,
		&b.CreatedAt,
		&b.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BagRepository handles lucky bag persistence.
type BagRepository struct {
	pool *pgxpool.Pool
}

// NewBagRepository creates a new BagRepository instance.
func NewBagRepository(pool *pgxpool.Pool) *BagRepository {
	return &BagRepository{pool: pool}
}

// CreateBag debits the sender, stores the bag and its announcement in one
// transaction. An unaffordable bag fails with ErrInsufficientCoins.
func (r *BagRepository) CreateBag(ctx context.Context, bag *model.LuckyBag, ann *model.Announcement) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := adjustWallet(ctx, tx, model.WalletDelta{UserID: bag.SenderID, Coins: -bag.TotalAmount}); err != nil {
			return fmt.Errorf("sender %d: %w", bag.SenderID, err)
		}

		fillIdentity(&bag.ID, &bag.CreatedAt)
		if bag.ClaimedBy == nil {
			bag.ClaimedBy = []int64{}
		}

		const insert = `
			INSERT INTO lucky_bags (id, sender_id, sender_name, room_id, total_amount,
			                        remaining_amount, recipients_limit, claimed_by, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.Exec(ctx, insert, bag.ID, bag.SenderID, bag.SenderName, bag.RoomID, bag.TotalAmount,
			bag.RemainingAmount, bag.RecipientsLimit, bag.ClaimedBy, bag.CreatedAt, bag.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to insert lucky bag: %w", err)
		}

		if ann != nil {
			return insertAnnouncement(ctx, tx, ann)
		}
		return nil
	})
}

// ClaimBag takes one fixed share for userID. The check and the decrement are
// one conditional statement, so concurrent claimants can never overdraw the
// bag or exceed its recipient limit. The claimant is credited in the same
// transaction.
func (r *BagRepository) ClaimBag(ctx context.Context, bagID string, userID int64, now time.Time) (int64, *model.LuckyBag, error) {
	var (
		share int64
		bag   *model.LuckyBag
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE lucky_bags
			SET remaining_amount = remaining_amount - total_amount / recipients_limit,
			    claimed_by = array_append(claimed_by, $2::BIGINT)
			WHERE id = $1
			  AND expires_at > $3
			  AND total_amount / recipients_limit > 0
			  AND remaining_amount >= total_amount / recipients_limit
			  AND cardinality(claimed_by) < recipients_limit
			  AND NOT ($2::BIGINT = ANY(claimed_by))
			RETURNING ` + bagColumns

		var err error
		bag, err = scanBag(tx.QueryRow(ctx, query, bagID, userID, now))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return r.claimFailure(ctx, tx, bagID, userID)
			}
			return fmt.Errorf("failed to claim lucky bag: %w", err)
		}

		share = bag.Share()
		if _, err := adjustWallet(ctx, tx, model.WalletDelta{UserID: userID, Coins: share}); err != nil {
			return fmt.Errorf("claimant %d: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return share, bag, nil
}

// claimFailure explains why the conditional claim matched no row.
func (r *BagRepository) claimFailure(ctx context.Context, q dbtx, bagID string, userID int64) error {
	bag, err := getBag(ctx, q, bagID)
	if err != nil {
		return err
	}
	if bag.HasClaimed(userID) {
		return ErrAlreadyClaimed
	}
	return ErrBagExhausted
}

// GetBag retrieves a lucky bag.
func (r *BagRepository) GetBag(ctx context.Context, bagID string) (*model.LuckyBag, error) {
	return getBag(ctx, r.pool, bagID)
}

// ActiveBags returns the bags of a room that have not expired, newest first.
func (r *BagRepository) ActiveBags(ctx context.Context, roomID string, now time.Time) ([]*model.LuckyBag, error) {
	query := `SELECT ` + bagColumns + `
		FROM lucky_bags
		WHERE room_id = $1 AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, roomID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bags: %w", err)
	}
	defer rows.Close()

	var bags []*model.LuckyBag
	for rows.Next() {
		b, err := scanBag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lucky bag: %w", err)
		}
		bags = append(bags, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lucky bags: %w", err)
	}
	return bags, nil
}

func getBag(ctx context.Context, q dbtx, bagID string) (*model.LuckyBag, error) {
	query := `SELECT ` + bagColumns + ` FROM lucky_bags WHERE id = $1`

	b, err := scanBag(q.QueryRow(ctx, query, bagID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBagNotFound
		}
		return nil, fmt.Errorf("failed to get lucky bag: %w", err)
	}
	return b, nil
}
