package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voice-room/internal/catalog"
	"voice-room/internal/config"
	"voice-room/internal/economy"
	"voice-room/internal/model"
	"voice-room/internal/pkg/async"
	"voice-room/internal/repository"
	"voice-room/internal/roomstate"
)

// memWallets mirrors WalletRepository semantics in memory.
type memWallets struct {
	mu      sync.Mutex
	wallets map[int64]*model.Wallet
}

func newMemWallets() *memWallets {
	return &memWallets{wallets: make(map[int64]*model.Wallet)}
}

func (m *memWallets) put(w model.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.ID] = &w
}

func (m *memWallets) get(id int64) model.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.wallets[id]
}

func (m *memWallets) GetByID(_ context.Context, id int64) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWallets) GetOrCreate(_ context.Context, id int64, name string, initialCoins int64) (*model.Wallet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[id]; ok {
		cp := *w
		return &cp, false, nil
	}
	w := &model.Wallet{ID: id, Name: name, Coins: initialCoins}
	m.wallets[id] = w
	cp := *w
	return &cp, true, nil
}

func (m *memWallets) GetMany(_ context.Context, ids []int64) (map[int64]*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*model.Wallet)
	for _, id := range ids {
		if w, ok := m.wallets[id]; ok {
			cp := *w
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memWallets) UpdateName(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[id]; ok {
		w.Name = name
	}
	return nil
}

func (m *memWallets) Recharge(_ context.Context, id int64, amount int64) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	w.Coins += amount
	w.RechargePoints += amount
	cp := *w
	return &cp, nil
}

func (m *memWallets) SetHost(_ context.Context, id int64, isHost bool, agencyID *string) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	w.IsHost, w.HostAgencyID = isHost, agencyID
	cp := *w
	return &cp, nil
}

func (m *memWallets) TopByWealth(_ context.Context, limit int) ([]*model.Wallet, error) {
	return m.top(limit, func(w *model.Wallet) int64 { return w.Wealth }), nil
}

func (m *memWallets) TopByCharm(_ context.Context, limit int) ([]*model.Wallet, error) {
	return m.top(limit, func(w *model.Wallet) int64 { return w.Charm }), nil
}

func (m *memWallets) top(limit int, key func(*model.Wallet) int64) []*model.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Wallet
	for _, w := range m.wallets {
		cp := *w
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Wallet) int {
		if key(a) != key(b) {
			return int(key(b) - key(a))
		}
		return int(a.ID - b.ID)
	})
	return out[:min(limit, len(out))]
}

// adjust applies a delta with the same guard as the SQL update.
func (m *memWallets) adjust(d model.WalletDelta) error {
	w, ok := m.wallets[d.UserID]
	if !ok {
		return repository.ErrWalletNotFound
	}
	if w.Coins+d.Coins < 0 {
		return repository.ErrInsufficientCoins
	}
	w.Coins += d.Coins
	w.Diamonds += d.Diamonds
	w.Wealth += d.Wealth
	w.Charm += d.Charm
	w.HostProduction += d.HostProduction
	return nil
}

// memLedger applies gift commits all-or-nothing against memWallets.
type memLedger struct {
	wallets *memWallets

	mu            sync.Mutex
	commits       []*model.GiftCommit
	messages      []*model.ChatMessage
	announcements []*model.Announcement
	agencies      map[string]model.AgencyCredit
	fail          error

	// Per gift id, set before sending.
	delays   map[string]time.Duration
	failGift map[string]error
}

func newMemLedger(w *memWallets) *memLedger {
	return &memLedger{wallets: w, agencies: make(map[string]model.AgencyCredit)}
}

func (l *memLedger) CommitGift(_ context.Context, c *model.GiftCommit) error {
	if d := l.delays[c.Event.GiftID]; d > 0 {
		time.Sleep(d)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	if err := l.failGift[c.Event.GiftID]; err != nil {
		return err
	}

	l.wallets.mu.Lock()
	defer l.wallets.mu.Unlock()

	backup := make(map[int64]model.Wallet, len(l.wallets.wallets))
	for id, w := range l.wallets.wallets {
		backup[id] = *w
	}
	restore := func() {
		for id, w := range backup {
			cp := w
			l.wallets.wallets[id] = &cp
		}
	}

	for _, d := range append([]model.WalletDelta{c.Sender}, c.Recipients...) {
		if err := l.wallets.adjust(d); err != nil {
			restore()
			return fmt.Errorf("user %d: %w", d.UserID, err)
		}
	}
	for _, credit := range c.AgencyCredits {
		agg := l.agencies[credit.AgencyID]
		agg.AgencyID = credit.AgencyID
		agg.Production += credit.Production
		agg.Commission += credit.Commission
		l.agencies[credit.AgencyID] = agg
	}

	l.commits = append(l.commits, c)
	msg := c.Message
	l.messages = append(l.messages, &msg)
	if c.Announcement != nil {
		l.announcements = append(l.announcements, c.Announcement)
	}
	return nil
}

func (l *memLedger) AppendMessage(_ context.Context, msg *model.ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	return nil
}

func (l *memLedger) RecentMessages(_ context.Context, roomID string, limit int) ([]*model.ChatMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.ChatMessage
	for _, m := range l.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out[max(0, len(out)-limit):], nil
}

func (l *memLedger) RecentAnnouncements(_ context.Context, limit int) ([]*model.Announcement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.announcements[max(0, len(l.announcements)-limit):], nil
}

func (l *memLedger) TopContributors(_ context.Context, roomID string, limit int) ([]*model.Contribution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := map[int64]*model.Contribution{}
	for _, c := range l.commits {
		if c.RoomID != roomID {
			continue
		}
		t := totals[c.Contribution.UserID]
		if t == nil {
			cp := c.Contribution
			totals[c.Contribution.UserID] = &cp
			continue
		}
		t.Amount += c.Contribution.Amount
	}
	var out []*model.Contribution
	for _, t := range totals {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *model.Contribution) int { return int(b.Amount - a.Amount) })
	return out[:min(limit, len(out))], nil
}

func (l *memLedger) commitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.commits)
}

func (l *memLedger) giftOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, len(l.commits))
	for i, c := range l.commits {
		ids[i] = c.Event.GiftID
	}
	return ids
}

func (l *memLedger) lastCommit() *model.GiftCommit {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.commits) == 0 {
		return nil
	}
	return l.commits[len(l.commits)-1]
}

// memBags mirrors the conditional claim of BagRepository.
type memBags struct {
	wallets *memWallets

	mu   sync.Mutex
	bags map[string]*model.LuckyBag
}

func newMemBags(w *memWallets) *memBags {
	return &memBags{wallets: w, bags: make(map[string]*model.LuckyBag)}
}

func (b *memBags) CreateBag(_ context.Context, bag *model.LuckyBag, _ *model.Announcement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wallets.mu.Lock()
	defer b.wallets.mu.Unlock()
	if err := b.wallets.adjust(model.WalletDelta{UserID: bag.SenderID, Coins: -bag.TotalAmount}); err != nil {
		return err
	}
	cp := *bag
	b.bags[bag.ID] = &cp
	return nil
}

func (b *memBags) ClaimBag(_ context.Context, bagID string, userID int64, now time.Time) (int64, *model.LuckyBag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bag, ok := b.bags[bagID]
	if !ok {
		return 0, nil, repository.ErrBagNotFound
	}
	if bag.HasClaimed(userID) {
		return 0, nil, repository.ErrAlreadyClaimed
	}
	share := bag.Share()
	if !bag.IsActive(now) || bag.RemainingAmount < share || len(bag.ClaimedBy) >= bag.RecipientsLimit {
		return 0, nil, repository.ErrBagExhausted
	}
	bag.RemainingAmount -= share
	bag.ClaimedBy = append(bag.ClaimedBy, userID)

	b.wallets.mu.Lock()
	defer b.wallets.mu.Unlock()
	if err := b.wallets.adjust(model.WalletDelta{UserID: userID, Coins: share}); err != nil {
		return 0, nil, err
	}
	cp := *bag
	return share, &cp, nil
}

func (b *memBags) GetBag(_ context.Context, bagID string) (*model.LuckyBag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bag, ok := b.bags[bagID]
	if !ok {
		return nil, repository.ErrBagNotFound
	}
	cp := *bag
	return &cp, nil
}

func (b *memBags) ActiveBags(_ context.Context, roomID string, now time.Time) ([]*model.LuckyBag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.LuckyBag
	for _, bag := range b.bags {
		if bag.RoomID == roomID && bag.IsActive(now) {
			cp := *bag
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memAgencies struct {
	mu       sync.Mutex
	agencies map[string]*model.HostAgency
}

func (a *memAgencies) Create(_ context.Context, id string, agentID int64) (*model.HostAgency, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.agencies == nil {
		a.agencies = make(map[string]*model.HostAgency)
	}
	ag := &model.HostAgency{ID: id, AgentID: agentID}
	a.agencies[id] = ag
	return ag, nil
}

func (a *memAgencies) GetByID(_ context.Context, id string) (*model.HostAgency, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ag, ok := a.agencies[id]
	if !ok {
		return nil, repository.ErrAgencyNotFound
	}
	return ag, nil
}

// recorder is a Presenter that keeps every call.
type recorder struct {
	mu            sync.Mutex
	hits          []GiftHit
	combos        []ComboState
	ended         []ComboState
	wins          []int64
	notices       []string
	announcements []*model.Announcement
}

func (r *recorder) GiftHit(_ *Client, hit GiftHit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = append(r.hits, hit)
}

func (r *recorder) ComboChanged(_ *Client, combo ComboState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.combos = append(r.combos, combo)
}

func (r *recorder) ComboEnded(_ *Client, combo ComboState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, combo)
}

func (r *recorder) LuckyWin(_ *Client, _ model.Gift, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wins = append(r.wins, amount)
}

func (r *recorder) Notice(_ *Client, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, text)
}

func (r *recorder) Announcement(a *model.Announcement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announcements = append(r.announcements, a)
}

func (r *recorder) RoomChanged(model.Room) {}

func (r *recorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ended)
}

func (r *recorder) noticeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

const testRoom = "room-1"

// harness wires every service over in-memory stores.
type harness struct {
	t         *testing.T
	wallets   *memWallets
	ledger    *memLedger
	bags      *memBags
	store     *roomstate.MemoryStore
	writer    *async.Writer
	presenter *recorder
	sessions  *SessionManager
	accounts  *AccountService
	gifts     *GiftService
	combos    *ComboBatcher
	luckyBags *LuckyBagService
	rooms     *RoomService
}

func newHarness(t *testing.T, settings model.GameSettings, combo config.ComboConfig) *harness {
	t.Helper()

	h := &harness{t: t, presenter: &recorder{}}
	h.wallets = newMemWallets()
	h.ledger = newMemLedger(h.wallets)
	h.bags = newMemBags(h.wallets)
	h.store = roomstate.NewMemoryStore()
	h.writer = async.NewWriter(context.Background(), time.Second)
	h.sessions = NewSessionManager(h.store, h.writer, h.presenter, time.Second)
	t.Cleanup(h.sessions.Close)

	cat := catalog.New(nil, settings)
	h.accounts = NewAccountService(h.wallets, &memAgencies{}, h.sessions, 10000)
	h.gifts = NewGiftService(h.wallets, h.ledger, h.store, cat, h.sessions, h.writer, h.presenter, &config.EconomyConfig{})
	h.combos = NewComboBatcher(h.gifts, h.presenter, &combo)
	h.luckyBags = NewLuckyBagService(h.bags, h.wallets, h.sessions, h.presenter, time.Minute)
	h.rooms = NewRoomService(h.store, h.ledger, 0, 0)

	_, err := h.rooms.OpenRoom(context.Background(), testRoom, 1, "Lounge")
	require.NoError(t, err)
	return h
}

// seat creates a wallet, joins the room and takes a seat.
func (h *harness) seat(w model.Wallet, seat int) *Client {
	h.t.Helper()
	h.wallets.put(w)
	c, err := h.accounts.EnsureClient(context.Background(), testRoom, roomstate.Actor{UserID: w.ID, Name: w.Name})
	require.NoError(h.t, err)
	require.NoError(h.t, c.Projection.JoinSeat(seat))
	h.writer.Wait()
	return c
}

func (h *harness) join(w model.Wallet) *Client {
	h.t.Helper()
	h.wallets.put(w)
	c, err := h.accounts.EnsureClient(context.Background(), testRoom, roomstate.Actor{UserID: w.ID, Name: w.Name})
	require.NoError(h.t, err)
	return c
}

// fixedRand always returns v.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

var _ economy.RandSource = fixedRand(0)
