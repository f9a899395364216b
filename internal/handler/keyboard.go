package handler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"voice-room/internal/model"
)

// Callback data prefixes
const (
	CallbackGiftPick  = "gift_pick:" // gift_pick:rose
	CallbackCombo     = "combo:"     // combo:rose:20,21
	CallbackClaimBag  = "bag_claim:" // bag_claim:<bag id>
	CallbackSeat      = "seat:"      // seat:3
	CallbackSeatLeave = "seat_leave" // seat_leave
)

// BuildGiftPanel lists the catalog, two gifts per row. Picking one sends it
// to every other seated speaker.
func BuildGiftPanel(gifts []model.Gift) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var currentRow []tele.Btn
	for i, g := range gifts {
		label := fmt.Sprintf("%s %s (%d💰)", g.Icon, g.Name, g.Cost)
		if g.IsLucky {
			label += " 🍀"
		}
		currentRow = append(currentRow, markup.Data(label, CallbackGiftPick+g.ID))

		if len(currentRow) == 2 || i == len(gifts)-1 {
			rows = append(rows, markup.Row(currentRow...))
			currentRow = nil
		}
	}

	markup.Inline(rows...)
	return markup
}

// maxCallbackData is Telegram's limit on inline button data, in bytes.
const maxCallbackData = 64

// BuildComboButton is the "send again" button under a gift hit. It returns
// nil when the recipient set does not fit in a button.
func BuildComboButton(gift model.Gift, recipientIDs []int64, hits int) *tele.ReplyMarkup {
	data := CallbackCombo + gift.ID + ":" + joinIDs(recipientIDs)
	// telebot prefixes the data with one marker byte.
	if len(data)+1 > maxCallbackData {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	label := fmt.Sprintf("%s Combo x%d", gift.Icon, hits)
	markup.Inline(markup.Row(markup.Data(label, data)))
	return markup
}

// BuildBagButton is the claim button under a lucky bag announcement.
func BuildBagButton(bagID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🧧 Claim", CallbackClaimBag+bagID)))
	return markup
}

// BuildSeatPanel shows one button per seat plus a leave button.
func BuildSeatPanel(room model.Room) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var currentRow []tele.Btn
	for seat := 0; seat < room.MicCount; seat++ {
		label := strconv.Itoa(seat + 1)
		if sp, ok := room.SpeakerAt(seat); ok {
			label = "🎙 " + sp.Name
		} else if room.IsSeatLocked(seat) {
			label = "🔒"
		}
		currentRow = append(currentRow, markup.Data(label, CallbackSeat+strconv.Itoa(seat)))

		if len(currentRow) == 4 || seat == room.MicCount-1 {
			rows = append(rows, markup.Row(currentRow...))
			currentRow = nil
		}
	}
	rows = append(rows, markup.Row(markup.Data("⬇️ Leave seat", CallbackSeatLeave)))

	markup.Inline(rows...)
	return markup
}

// CallbackData strips the marker telebot puts in front of inline button data.
func CallbackData(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	return strings.TrimPrefix(cb.Data, "\f")
}

// ParseComboData splits combo callback data into a gift id and recipients.
func ParseComboData(data string) (string, []int64, error) {
	rest, ok := strings.CutPrefix(data, CallbackCombo)
	if !ok {
		return "", nil, fmt.Errorf("not combo data: %q", data)
	}
	giftID, ids, ok := strings.Cut(rest, ":")
	if !ok || giftID == "" {
		return "", nil, fmt.Errorf("malformed combo data: %q", data)
	}
	recipients, err := splitIDs(ids)
	if err != nil {
		return "", nil, err
	}
	return giftID, recipients, nil
}

// joinIDs packs user ids in base 36 to save button space.
func joinIDs(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 36)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 36, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
