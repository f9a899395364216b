// Package model defines the data models for the voice room economy.
package model

import "time"

// Wallet represents a user's balances in the room economy.
type Wallet struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	Avatar         string    `db:"avatar"`
	Frame          string    `db:"frame"`
	Coins          int64     `db:"coins"`           // Spendable balance
	Diamonds       int64     `db:"diamonds"`        // Earned currency
	Wealth         int64     `db:"wealth"`          // Cumulative spend
	Charm          int64     `db:"charm"`           // Cumulative gift value received
	HostProduction int64     `db:"host_production"` // Value received while acting as a host
	RechargePoints int64     `db:"recharge_points"`
	IsHost         bool      `db:"is_host"`
	IsVip          bool      `db:"is_vip"`
	HostAgencyID   *string   `db:"host_agency_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// HasAgency reports whether the wallet belongs to a host affiliated with an agency.
func (w *Wallet) HasAgency() bool {
	return w.IsHost && w.HostAgencyID != nil && *w.HostAgencyID != ""
}

// DisplayName returns the name shown in chat and announcements.
func (w *Wallet) DisplayName() string {
	if w.Name == "" {
		return "user"
	}
	return w.Name
}

// HostAgency is an organizational affiliation for host accounts.
type HostAgency struct {
	ID              string    `db:"id"`
	AgentID         int64     `db:"agent_id"`
	TotalProduction int64     `db:"total_production"`
	CreatedAt       time.Time `db:"created_at"`
}

// WalletDelta is a set of field-level increments applied to one wallet.
type WalletDelta struct {
	UserID         int64
	Coins          int64
	Diamonds       int64
	Wealth         int64
	Charm          int64
	HostProduction int64
}

// AgencyCredit credits an agency's production and its agent's commission.
type AgencyCredit struct {
	AgencyID   string
	Production int64
	Commission int64
}

// Contribution is the cumulative amount a sender has given inside a room.
type Contribution struct {
	RoomID string `db:"room_id"`
	UserID int64  `db:"user_id"`
	Name   string `db:"name"`
	Amount int64  `db:"amount"`
}

// GiftCommit is one durable gift write: a single send or an aggregated combo.
type GiftCommit struct {
	RoomID        string
	Sender        WalletDelta
	Recipients    []WalletDelta
	AgencyCredits []AgencyCredit
	Event         GiftEvent
	Message       ChatMessage
	Announcement  *Announcement
	Contribution  Contribution
}
