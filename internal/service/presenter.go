package service

import "voice-room/internal/model"

// GiftHit is the feedback for a single send, shown before the durable
// commit lands.
type GiftHit struct {
	Gift         model.Gift
	Quantity     int64
	RecipientIDs []int64
	TotalCost    int64
	Win          int64
}

// ComboState describes a live combo session.
type ComboState struct {
	Key          ComboKey
	Gift         model.Gift
	RecipientIDs []int64
	Hits         int
}

// Presenter receives everything the UI renders. Calls happen on the
// goroutine that caused them and must not block.
type Presenter interface {
	GiftHit(c *Client, hit GiftHit)
	ComboChanged(c *Client, combo ComboState)
	ComboEnded(c *Client, combo ComboState)
	LuckyWin(c *Client, gift model.Gift, amount int64)
	Notice(c *Client, text string)
	Announcement(a *model.Announcement)
	RoomChanged(room model.Room)
}

// NopPresenter discards every call.
type NopPresenter struct{}

func (NopPresenter) GiftHit(*Client, GiftHit) {}
func (NopPresenter) ComboChanged(*Client, ComboState) {}
func (NopPresenter) ComboEnded(*Client, ComboState) {}
func (NopPresenter) LuckyWin(*Client, model.Gift, int64) {}
func (NopPresenter) Notice(*Client, string) {}
func (NopPresenter) Announcement(*model.Announcement) {}
func (NopPresenter) RoomChanged(model.Room) {}
