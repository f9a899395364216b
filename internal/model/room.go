package model

import (
	"slices"
	"time"
)

// MicLayouts are the supported seat counts, in the order the layout cycles.
var MicLayouts = []int{8, 10, 15, 20}

// DefaultMicCount is the seat count of a freshly opened room.
const DefaultMicCount = 8

// Speaker is a seated user in a room.
type Speaker struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	SeatIndex   int    `json:"seatIndex"`
	IsMuted     bool   `json:"isMuted"`
	Charm       int64  `json:"charm"`
	ActiveEmoji string `json:"activeEmoji,omitempty"`
	Frame       string `json:"frame,omitempty"`
}

// Room is the shared room document.
type Room struct {
	ID          string    `json:"id"`
	HostID      int64     `json:"hostId"`
	Title       string    `json:"title"`
	Moderators  []int64   `json:"moderators"`
	Speakers    []Speaker `json:"speakers"`
	LockedSeats []int     `json:"lockedSeats"`
	MicsLocked  bool      `json:"micsLocked"`
	MicCount    int       `json:"micCount"`
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	r.Moderators = slices.Clone(r.Moderators)
	r.Speakers = slices.Clone(r.Speakers)
	r.LockedSeats = slices.Clone(r.LockedSeats)
	return r
}

// SpeakerAt returns the speaker occupying a seat, if any.
func (r *Room) SpeakerAt(seat int) (Speaker, bool) {
	for _, s := range r.Speakers {
		if s.SeatIndex == seat {
			return s, true
		}
	}
	return Speaker{}, false
}

// SpeakerByUser returns the seat record of a user, if seated.
func (r *Room) SpeakerByUser(userID int64) (Speaker, bool) {
	for _, s := range r.Speakers {
		if s.UserID == userID {
			return s, true
		}
	}
	return Speaker{}, false
}

// IsSeatLocked reports whether a seat is locked individually or by the global mic lock.
func (r *Room) IsSeatLocked(seat int) bool {
	return r.MicsLocked || slices.Contains(r.LockedSeats, seat)
}

// IsElevated reports whether a user is the host or a moderator of the room.
func (r *Room) IsElevated(userID int64) bool {
	return r.HostID == userID || slices.Contains(r.Moderators, userID)
}

// NextMicCount returns the layout following the current one.
func NextMicCount(current int) int {
	i := slices.Index(MicLayouts, current)
	return MicLayouts[(i+1)%len(MicLayouts)]
}

// ValidMicCount reports whether n is a supported layout.
func ValidMicCount(n int) bool {
	return slices.Contains(MicLayouts, n)
}

// Message types.
const (
	MessageTypeText = "text"
	MessageTypeGift = "gift"
)

// Announcement types.
const (
	AnnouncementGift     = "gift"
	AnnouncementLuckyWin = "lucky_win"
	AnnouncementLuckyBag = "lucky_bag"
)

// GiftEvent is an append-only record used for animation fan-out and history.
type GiftEvent struct {
	ID           string    `db:"id"`
	RoomID       string    `db:"room_id"`
	GiftID       string    `db:"gift_id"`
	Icon         string    `db:"icon"`
	Animation    string    `db:"animation"`
	SenderID     int64     `db:"sender_id"`
	SenderName   string    `db:"sender_name"`
	RecipientIDs []int64   `db:"recipient_ids"`
	Quantity     int64     `db:"quantity"`
	CreatedAt    time.Time `db:"created_at"`
}

// ChatMessage is an append-only room chat line.
type ChatMessage struct {
	ID            string    `db:"id"`
	RoomID        string    `db:"room_id"`
	UserID        int64     `db:"user_id"`
	UserName      string    `db:"user_name"`
	WealthLevel   int       `db:"wealth_level"`
	RechargeLevel int       `db:"recharge_level"`
	IsVip         bool      `db:"is_vip"`
	Content       string    `db:"content"`
	Type          string    `db:"type"`
	IsLuckyWin    bool      `db:"is_lucky_win"`
	CreatedAt     time.Time `db:"created_at"`
}

// Announcement is a global, append-only broadcast.
type Announcement struct {
	ID             string    `db:"id"`
	Type           string    `db:"type"`
	SenderName     string    `db:"sender_name"`
	RecipientNames string    `db:"recipient_names"`
	GiftName       string    `db:"gift_name"`
	GiftIcon       string    `db:"gift_icon"`
	RoomID         string    `db:"room_id"`
	RoomTitle      string    `db:"room_title"`
	Amount         int64     `db:"amount"`
	CreatedAt      time.Time `db:"created_at"`
}
