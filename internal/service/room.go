package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voice-room/internal/economy"
	"voice-room/internal/model"
	"voice-room/internal/roomstate"
)

// DefaultChatHistory is how many messages RecentMessages returns by default.
const DefaultChatHistory = 20

// RoomService manages room documents and chat.
type RoomService struct {
	store           roomstate.Store
	ledger          Ledger
	defaultMicCount int
	chatHistory     int
}

// NewRoomService creates a new RoomService instance.
func NewRoomService(store roomstate.Store, ledger Ledger, defaultMicCount, chatHistory int) *RoomService {
	if !model.ValidMicCount(defaultMicCount) {
		defaultMicCount = model.DefaultMicCount
	}
	if chatHistory <= 0 {
		chatHistory = DefaultChatHistory
	}
	return &RoomService{
		store:           store,
		ledger:          ledger,
		defaultMicCount: defaultMicCount,
		chatHistory:     chatHistory,
	}
}

// OpenRoom returns a room, creating it with hostID as host if it does not
// exist yet.
func (s *RoomService) OpenRoom(ctx context.Context, roomID string, hostID int64, title string) (model.Room, error) {
	room, err := s.store.Get(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, roomstate.ErrRoomNotFound) {
		return model.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	room = model.Room{
		ID:       roomID,
		HostID:   hostID,
		Title:    title,
		MicCount: s.defaultMicCount,
	}
	if err := s.store.Create(ctx, room); err != nil && !errors.Is(err, roomstate.ErrRoomExists) {
		return model.Room{}, fmt.Errorf("failed to create room: %w", err)
	}

	log.Info().Str("room_id", roomID).Int64("host_id", hostID).Msg("Room opened")
	return s.store.Get(ctx, roomID)
}

// SendMessage posts a text line to the room chat with the sender's badges.
func (s *RoomService) SendMessage(ctx context.Context, c *Client, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	w := c.Wallet()
	msg := &model.ChatMessage{
		ID:            uuid.NewString(),
		RoomID:        c.RoomID,
		UserID:        c.UserID(),
		UserName:      w.DisplayName(),
		WealthLevel:   economy.Level(w.Wealth),
		RechargeLevel: economy.Level(w.RechargePoints),
		IsVip:         w.IsVip,
		Content:       content,
		Type:          model.MessageTypeText,
		CreatedAt:     time.Now(),
	}
	if err := s.ledger.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns the latest chat lines of a room, oldest first.
func (s *RoomService) RecentMessages(ctx context.Context, roomID string) ([]*model.ChatMessage, error) {
	return s.ledger.RecentMessages(ctx, roomID, s.chatHistory)
}

// RecentAnnouncements returns the latest global announcements.
func (s *RoomService) RecentAnnouncements(ctx context.Context, limit int) ([]*model.Announcement, error) {
	return s.ledger.RecentAnnouncements(ctx, limit)
}

// AddModerator lets the room host or an admin promote a user.
func (s *RoomService) AddModerator(ctx context.Context, c *Client, userID int64) error {
	room := c.Projection.Snapshot()
	if room.HostID != c.UserID() && !c.Actor().Admin {
		return ErrPermissionDenied
	}
	if err := s.store.AddModerator(ctx, c.RoomID, userID); err != nil {
		return fmt.Errorf("failed to add moderator: %w", err)
	}
	return nil
}
