package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voice-room/internal/catalog"
	"voice-room/internal/config"
	"voice-room/internal/economy"
	"voice-room/internal/model"
	"voice-room/internal/pkg/async"
	"voice-room/internal/roomstate"
)

// Default announcement thresholds, in coins.
const (
	DefaultLuckyWinAnnounceThreshold int64 = 100000
	DefaultGiftAnnounceThreshold     int64 = 5000
)

// dispatch is a gift that has been checked and applied locally but not yet
// committed. Combo sessions merge several dispatches into one.
type dispatch struct {
	client     *Client
	gift       model.Gift
	recipients []int64
	quantity   int64
	totalCost  int64
	win        int64
}

func (d *dispatch) merge(o dispatch) {
	d.quantity += o.quantity
	d.totalCost += o.totalCost
	d.win += o.win
}

// GiftService checks, applies and commits gift sends.
type GiftService struct {
	wallets   WalletStore
	ledger    Ledger
	store     roomstate.Store
	catalog   *catalog.Catalog
	sessions  *SessionManager
	writer    *async.Writer
	presenter Presenter
	splitter  *economy.Splitter
	rng       economy.RandSource

	luckyWinThreshold int64
	giftThreshold     int64
}

// NewGiftService creates a new GiftService instance.
func NewGiftService(
	wallets WalletStore,
	ledger Ledger,
	store roomstate.Store,
	cat *catalog.Catalog,
	sessions *SessionManager,
	writer *async.Writer,
	presenter Presenter,
	cfg *config.EconomyConfig,
) *GiftService {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	s := &GiftService{
		wallets:           wallets,
		ledger:            ledger,
		store:             store,
		catalog:           cat,
		sessions:          sessions,
		writer:            writer,
		presenter:         presenter,
		splitter:          economy.NewSplitter(cfg.HostDiamondPercent, cfg.AgentCommissionPercent),
		rng:               economy.GlobalRand,
		luckyWinThreshold: cfg.LuckyWinAnnounceThreshold,
		giftThreshold:     cfg.GiftAnnounceThreshold,
	}
	if s.luckyWinThreshold <= 0 {
		s.luckyWinThreshold = DefaultLuckyWinAnnounceThreshold
	}
	if s.giftThreshold <= 0 {
		s.giftThreshold = DefaultGiftAnnounceThreshold
	}
	return s
}

// SetRandSource replaces the lucky draw source.
func (s *GiftService) SetRandSource(rng economy.RandSource) {
	s.rng = rng
}

// SendGift applies a single send locally and commits it in the background.
// Only validation and affordability errors are returned; a failed commit
// is logged and the sender's wallet is reloaded.
func (s *GiftService) SendGift(ctx context.Context, c *Client, giftID string, quantity int64, recipientIDs []int64) (GiftHit, error) {
	d, err := s.prepare(c, giftID, quantity, recipientIDs, s.enqueue)
	if err != nil {
		return GiftHit{}, err
	}
	return d.hit(), nil
}

// CheckRecipients rejects explicitly chosen recipients that include the
// sender or a user the bot has never created a wallet for.
func (s *GiftService) CheckRecipients(ctx context.Context, c *Client, recipientIDs []int64) error {
	ids := uniqueIDs(recipientIDs)
	for _, id := range ids {
		if id == c.UserID() {
			return ErrSelfGift
		}
	}
	if len(ids) == 0 {
		return ErrNoRecipients
	}

	wallets, err := s.wallets.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}
	for _, id := range ids {
		if _, ok := wallets[id]; !ok {
			log.Debug().Int64("user_id", c.UserID()).Int64("recipient_id", id).Msg("Gift recipient has no wallet")
			return ErrUnknownRecipient
		}
	}
	return nil
}

// prepare validates a send, debits the sender's local wallet, applies the
// charm to the local projection and fires the hit feedback. queue runs under
// the sender's spend lock right after the debit, so whatever it queues keeps
// spend order.
func (s *GiftService) prepare(c *Client, giftID string, quantity int64, recipientIDs []int64, queue func(dispatch)) (dispatch, error) {
	gift, ok := s.catalog.Gift(giftID)
	if !ok {
		return dispatch{}, ErrUnknownGift
	}
	if quantity <= 0 {
		return dispatch{}, ErrInvalidQuantity
	}
	recipients := uniqueIDs(recipientIDs)
	if len(recipients) == 0 {
		return dispatch{}, ErrNoRecipients
	}

	d := dispatch{
		client:     c,
		gift:       gift,
		recipients: recipients,
		quantity:   quantity,
		totalCost:  gift.Cost * quantity * int64(len(recipients)),
	}

	err := s.sessions.spendLocks.WithLock(c.UserID(), func() error {
		if c.Wallet().Coins < d.totalCost {
			return ErrInsufficientFunds
		}
		settings := s.catalog.Settings()
		d.win = economy.ResolveLucky(gift, quantity, settings.LuckyGiftWinRate, settings.LuckyMultipliers, s.rng)
		if err := c.wallet.spend(d.totalCost, d.win); err != nil {
			return err
		}
		queue(d)
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Int64("user_id", c.UserID()).Str("gift_id", giftID).Msg("Gift rejected")
		return dispatch{}, err
	}

	c.Projection.ApplyCharm(recipients, gift.Cost*quantity)
	s.presenter.GiftHit(c, d.hit())
	if d.win > 0 {
		s.presenter.LuckyWin(c, gift, d.win)
	}
	return d, nil
}

// enqueue queues a single send behind the sender's held combo hits.
func (s *GiftService) enqueue(d dispatch) {
	s.sessions.releaseHeld(d.client.UserID(), nil)
	s.commit(d)
}

// hold parks a combo hit until its combo pauses.
func (s *GiftService) hold(key ComboKey, d dispatch) {
	s.sessions.hold(d.client.UserID(), key, d, s.commit)
}

// release queues a combo's held hits.
func (s *GiftService) release(key ComboKey) {
	s.sessions.spendLocks.Lock(key.SenderID)
	defer s.sessions.spendLocks.Unlock(key.SenderID)
	s.sessions.releaseHeld(key.SenderID, &key)
}

// releaseAll queues every held combo hit and returns how many senders had some.
func (s *GiftService) releaseAll() int {
	n := 0
	for _, id := range s.sessions.heldUsers() {
		s.sessions.spendLocks.Lock(id)
		if s.sessions.releaseHeld(id, nil) {
			n++
		}
		s.sessions.spendLocks.Unlock(id)
	}
	return n
}

// commit writes a dispatch durably: the ledger transaction first, then the
// charm increments on the room document. Commits of one sender run in the
// order they were queued.
func (s *GiftService) commit(d dispatch) {
	c := d.client
	s.writer.GoOrdered(spendLane(c.UserID()), "commit_gift", func(ctx context.Context) error {
		defer c.wallet.settle(d.totalCost, d.win)

		commit, err := s.buildCommit(ctx, d)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailure, err)
		}
		if err := s.ledger.CommitGift(ctx, commit); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailure, err)
		}

		charm := make(map[int64]int64, len(d.recipients))
		for _, id := range d.recipients {
			charm[id] = d.gift.Cost * d.quantity
		}
		if err := s.store.AddCharm(ctx, c.RoomID, charm); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailure, err)
		}

		if commit.Announcement != nil {
			s.presenter.Announcement(commit.Announcement)
		}
		log.Info().
			Int64("user_id", c.UserID()).
			Str("room_id", c.RoomID).
			Str("gift_id", d.gift.ID).
			Int64("quantity", d.quantity).
			Int64("total_cost", d.totalCost).
			Int64("win", d.win).
			Msg("Gift committed")
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reloadWallet(ctx, s.wallets, s.sessions, c.UserID())
		s.presenter.Notice(c, "Your gift could not be delivered; your balance was reloaded.")
	})
}

// buildCommit resolves every wallet effect of a dispatch.
func (s *GiftService) buildCommit(ctx context.Context, d dispatch) (*model.GiftCommit, error) {
	recipients, err := s.wallets.GetMany(ctx, d.recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}

	sender := d.client.Wallet()
	room := d.client.Projection.Snapshot()
	now := time.Now()

	commit := &model.GiftCommit{
		RoomID: d.client.RoomID,
		Sender: model.WalletDelta{
			UserID: d.client.UserID(),
			Coins:  d.win - d.totalCost,
			Wealth: d.totalCost,
		},
		Contribution: model.Contribution{
			RoomID: d.client.RoomID,
			UserID: d.client.UserID(),
			Name:   sender.DisplayName(),
			Amount: d.totalCost,
		},
	}

	names := make([]string, 0, len(d.recipients))
	for _, id := range d.recipients {
		var affiliation economy.Affiliation
		w := recipients[id]
		if w != nil {
			affiliation = w
			names = append(names, w.DisplayName())
		} else if sp, ok := room.SpeakerByUser(id); ok {
			names = append(names, sp.Name)
		}

		share := s.splitter.Split(d.totalCost, len(d.recipients), affiliation)
		commit.Recipients = append(commit.Recipients, model.WalletDelta{
			UserID:         id,
			Diamonds:       share.Diamonds(),
			Charm:          share.Charm(),
			HostProduction: share.HostProduction,
		})
		if share.Affiliated {
			commit.AgencyCredits = append(commit.AgencyCredits, model.AgencyCredit{
				AgencyID:   *w.HostAgencyID,
				Production: share.HostProduction,
				Commission: share.AgentCommission,
			})
		}
	}
	recipientNames := strings.Join(names, ", ")

	commit.Event = model.GiftEvent{
		ID:           uuid.NewString(),
		RoomID:       d.client.RoomID,
		GiftID:       d.gift.ID,
		Icon:         d.gift.Icon,
		Animation:    d.gift.Animation,
		SenderID:     d.client.UserID(),
		SenderName:   sender.DisplayName(),
		RecipientIDs: d.recipients,
		Quantity:     d.quantity,
		CreatedAt:    now,
	}

	content := fmt.Sprintf("sent %s %s x%d to %s", d.gift.Icon, d.gift.Name, d.quantity, recipientNames)
	if d.win > 0 {
		content += fmt.Sprintf(" and won %d coins!", d.win)
	}
	commit.Message = model.ChatMessage{
		ID:            uuid.NewString(),
		RoomID:        d.client.RoomID,
		UserID:        d.client.UserID(),
		UserName:      sender.DisplayName(),
		WealthLevel:   economy.Level(sender.Wealth),
		RechargeLevel: economy.Level(sender.RechargePoints),
		IsVip:         sender.IsVip,
		Content:       content,
		Type:          model.MessageTypeGift,
		IsLuckyWin:    d.win > 0,
		CreatedAt:     now,
	}

	commit.Announcement = s.announcement(d, sender.DisplayName(), recipientNames, room.Title, now)
	return commit, nil
}

// announcement returns the global broadcast for a dispatch, if it earns one.
func (s *GiftService) announcement(d dispatch, senderName, recipientNames, roomTitle string, now time.Time) *model.Announcement {
	a := &model.Announcement{
		ID:             uuid.NewString(),
		SenderName:     senderName,
		RecipientNames: recipientNames,
		GiftName:       d.gift.Name,
		GiftIcon:       d.gift.Icon,
		RoomID:         d.client.RoomID,
		RoomTitle:      roomTitle,
		CreatedAt:      now,
	}
	switch {
	case d.win >= s.luckyWinThreshold:
		a.Type, a.Amount = model.AnnouncementLuckyWin, d.win
	case !d.gift.IsLucky && d.totalCost >= s.giftThreshold:
		a.Type, a.Amount = model.AnnouncementGift, d.totalCost
	default:
		return nil
	}
	return a
}

func (d *dispatch) hit() GiftHit {
	return GiftHit{
		Gift:         d.gift,
		Quantity:     d.quantity,
		RecipientIDs: d.recipients,
		TotalCost:    d.totalCost,
		Win:          d.win,
	}
}

// uniqueIDs sorts ids and drops duplicates and non-positive values.
func uniqueIDs(ids []int64) []int64 {
	out := slices.DeleteFunc(slices.Clone(ids), func(id int64) bool { return id <= 0 })
	slices.Sort(out)
	return slices.Compact(out)
}
