package handler

import (
	"fmt"
	"strings"

	"voice-room/internal/economy"
	"voice-room/internal/model"
)

// FormatRoom renders the seat board of a room.
func FormatRoom(room model.Room) string {
	var sb strings.Builder
	title := room.Title
	if title == "" {
		title = "Voice room"
	}
	fmt.Fprintf(&sb, "🎤 %s\n", title)
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	for seat := 0; seat < room.MicCount; seat++ {
		sp, ok := room.SpeakerAt(seat)
		switch {
		case ok:
			mic := "🎙"
			if sp.IsMuted {
				mic = "🔇"
			}
			fmt.Fprintf(&sb, "%d. %s %s  ❤️ %d", seat+1, mic, sp.Name, sp.Charm)
			if sp.ActiveEmoji != "" {
				sb.WriteString(" " + sp.ActiveEmoji)
			}
		case room.IsSeatLocked(seat):
			fmt.Fprintf(&sb, "%d. 🔒", seat+1)
		default:
			fmt.Fprintf(&sb, "%d. ➖", seat+1)
		}
		sb.WriteString("\n")
	}
	if room.MicsLocked {
		sb.WriteString("🔒 All mics locked\n")
	}
	return sb.String()
}

// FormatWallet renders a wallet summary.
func FormatWallet(w model.Wallet) string {
	text := fmt.Sprintf(
		"👛 %s\n"+
			"━━━━━━━━━━━━━━━\n"+
			"💰 Coins: %d\n"+
			"💎 Diamonds: %d\n"+
			"👑 Wealth: %d (Lv.%d)\n"+
			"❤️ Charm: %d\n"+
			"⚡ Recharge: %d (Lv.%d)",
		w.DisplayName(), w.Coins, w.Diamonds,
		w.Wealth, economy.Level(w.Wealth),
		w.Charm,
		w.RechargePoints, economy.Level(w.RechargePoints),
	)
	if w.IsHost {
		text += fmt.Sprintf("\n🎙 Host production: %d", w.HostProduction)
		if w.HasAgency() {
			text += fmt.Sprintf(" (agency %s)", *w.HostAgencyID)
		}
	}
	return text
}

// FormatMessage renders one chat line with its level badges.
func FormatMessage(m *model.ChatMessage) string {
	badge := fmt.Sprintf("[Lv.%d]", m.WealthLevel)
	if m.IsVip {
		badge = "[VIP]" + badge
	}
	if m.Type == model.MessageTypeGift {
		return fmt.Sprintf("🎁 %s %s %s", badge, m.UserName, m.Content)
	}
	return fmt.Sprintf("💬 %s %s: %s", badge, m.UserName, m.Content)
}

// FormatAnnouncement renders a global broadcast.
func FormatAnnouncement(a *model.Announcement) string {
	switch a.Type {
	case model.AnnouncementLuckyWin:
		return fmt.Sprintf("📢 🍀 %s won %d coins with %s %s in %s!", a.SenderName, a.Amount, a.GiftIcon, a.GiftName, a.RoomTitle)
	case model.AnnouncementLuckyBag:
		return fmt.Sprintf("📢 🧧 %s dropped a %d coin lucky bag in %s!", a.SenderName, a.Amount, a.RoomTitle)
	default:
		return fmt.Sprintf("📢 🎁 %s sent %s %s to %s in %s (%d coins)", a.SenderName, a.GiftIcon, a.GiftName, a.RecipientNames, a.RoomTitle, a.Amount)
	}
}
