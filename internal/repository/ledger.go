package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"voice-room/internal/model"
)

// LedgerRepository persists gift commits and the room's append-only logs.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// CommitGift writes a whole gift commit in one transaction. If the sender
// cannot cover the coin delta nothing is written and ErrInsufficientCoins
// is returned.
func (r *LedgerRepository) CommitGift(ctx context.Context, c *model.GiftCommit) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := adjustWallet(ctx, tx, c.Sender); err != nil {
			return fmt.Errorf("sender %d: %w", c.Sender.UserID, err)
		}

		for _, d := range c.Recipients {
			if _, err := adjustWallet(ctx, tx, d); err != nil {
				return fmt.Errorf("recipient %d: %w", d.UserID, err)
			}
		}

		for _, credit := range c.AgencyCredits {
			if err := creditAgency(ctx, tx, credit); err != nil {
				return err
			}
		}

		if err := insertGiftEvent(ctx, tx, &c.Event); err != nil {
			return err
		}
		if err := insertMessage(ctx, tx, &c.Message); err != nil {
			return err
		}
		if c.Announcement != nil {
			if err := insertAnnouncement(ctx, tx, c.Announcement); err != nil {
				return err
			}
		}
		return addContribution(ctx, tx, c.Contribution)
	})
}

// AppendMessage stores a chat line.
func (r *LedgerRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	return insertMessage(ctx, r.pool, msg)
}

// RecentMessages returns the last limit messages of a room, oldest first.
func (r *LedgerRepository) RecentMessages(ctx context.Context, roomID string, limit int) ([]*model.ChatMessage, error) {
	const query = `
		SELECT id, room_id, user_id, user_name, wealth_level, recharge_level,
		       is_vip, content, type, is_lucky_win, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.UserID,
			&m.UserName,
			&m.WealthLevel,
			&m.RechargeLevel,
			&m.IsVip,
			&m.Content,
			&m.Type,
			&m.IsLuckyWin,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// RecentGiftEvents returns the newest gift events of a room.
func (r *LedgerRepository) RecentGiftEvents(ctx context.Context, roomID string, limit int) ([]*model.GiftEvent, error) {
	const query = `
		SELECT id, room_id, gift_id, icon, animation, sender_id, sender_name,
		       recipient_ids, quantity, created_at
		FROM gift_events
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get gift events: %w", err)
	}
	defer rows.Close()

	var events []*model.GiftEvent
	for rows.Next() {
		var e model.GiftEvent
		err := rows.Scan(
			&e.ID,
			&e.RoomID,
			&e.GiftID,
			&e.Icon,
			&e.Animation,
			&e.SenderID,
			&e.SenderName,
			&e.RecipientIDs,
			&e.Quantity,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gift event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gift events: %w", err)
	}
	return events, nil
}

// RecentAnnouncements returns the newest global announcements.
func (r *LedgerRepository) RecentAnnouncements(ctx context.Context, limit int) ([]*model.Announcement, error) {
	const query = `
		SELECT id, type, sender_name, recipient_names, gift_name, gift_icon,
		       room_id, room_title, amount, created_at
		FROM announcements
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get announcements: %w", err)
	}
	defer rows.Close()

	var out []*model.Announcement
	for rows.Next() {
		var a model.Announcement
		err := rows.Scan(
			&a.ID,
			&a.Type,
			&a.SenderName,
			&a.RecipientNames,
			&a.GiftName,
			&a.GiftIcon,
			&a.RoomID,
			&a.RoomTitle,
			&a.Amount,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating announcements: %w", err)
	}
	return out, nil
}

// TopContributors returns the biggest givers of a room.
func (r *LedgerRepository) TopContributors(ctx context.Context, roomID string, limit int) ([]*model.Contribution, error) {
	const query = `
		SELECT room_id, user_id, name, amount
		FROM contributions
		WHERE room_id = $1
		ORDER BY amount DESC, user_id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get contributors: %w", err)
	}
	defer rows.Close()

	var out []*model.Contribution
	for rows.Next() {
		var c model.Contribution
		if err := rows.Scan(&c.RoomID, &c.UserID, &c.Name, &c.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}
	return out, nil
}

func insertGiftEvent(ctx context.Context, q dbtx, e *model.GiftEvent) error {
	const query = `
		INSERT INTO gift_events (id, room_id, gift_id, icon, animation, sender_id,
		                         sender_name, recipient_ids, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	fillIdentity(&e.ID, &e.CreatedAt)
	_, err := q.Exec(ctx, query, e.ID, e.RoomID, e.GiftID, e.Icon, e.Animation, e.SenderID,
		e.SenderName, e.RecipientIDs, e.Quantity, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert gift event: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, q dbtx, m *model.ChatMessage) error {
	const query = `
		INSERT INTO chat_messages (id, room_id, user_id, user_name, wealth_level, recharge_level,
		                           is_vip, content, type, is_lucky_win, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	fillIdentity(&m.ID, &m.CreatedAt)
	_, err := q.Exec(ctx, query, m.ID, m.RoomID, m.UserID, m.UserName, m.WealthLevel, m.RechargeLevel,
		m.IsVip, m.Content, m.Type, m.IsLuckyWin, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func insertAnnouncement(ctx context.Context, q dbtx, a *model.Announcement) error {
	const query = `
		INSERT INTO announcements (id, type, sender_name, recipient_names, gift_name, gift_icon,
		                           room_id, room_title, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	fillIdentity(&a.ID, &a.CreatedAt)
	_, err := q.Exec(ctx, query, a.ID, a.Type, a.SenderName, a.RecipientNames, a.GiftName, a.GiftIcon,
		a.RoomID, a.RoomTitle, a.Amount, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func addContribution(ctx context.Context, q dbtx, c model.Contribution) error {
	const query = `
		INSERT INTO contributions (room_id, user_id, name, amount, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET amount = contributions.amount + EXCLUDED.amount,
		              name = EXCLUDED.name,
		              updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, c.RoomID, c.UserID, c.Name, c.Amount); err != nil {
		return fmt.Errorf("failed to add contribution: %w", err)
	}
	return nil
}

func fillIdentity(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
}
