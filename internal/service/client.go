package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"voice-room/internal/model"
	"voice-room/internal/pkg/async"
	"voice-room/internal/pkg/lock"
	"voice-room/internal/roomstate"
)

// LocalWallet is a user's optimistic balance view. All of a user's clients
// share one LocalWallet so spends in different rooms see each other.
// Spends not yet confirmed by a commit are kept aside so a reload from the
// store does not drop them.
type LocalWallet struct {
	mu sync.RWMutex
	w  model.Wallet

	unconfirmedCoins  int64
	unconfirmedWealth int64
}

// Snapshot returns a copy of the wallet.
func (lw *LocalWallet) Snapshot() model.Wallet {
	lw.mu.RLock()
	defer lw.mu.RUnlock()
	return lw.w
}

// Replace overwrites the view with a stored wallet plus any spends still
// waiting for their commit.
func (lw *LocalWallet) Replace(w model.Wallet) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	w.Coins += lw.unconfirmedCoins
	w.Wealth += lw.unconfirmedWealth
	lw.w = w
}

// spend applies a gift's sender effect if coins cover totalCost.
func (lw *LocalWallet) spend(totalCost, win int64) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.w.Coins < totalCost {
		return ErrInsufficientFunds
	}
	lw.w.Coins += win - totalCost
	lw.w.Wealth += totalCost
	lw.unconfirmedCoins += win - totalCost
	lw.unconfirmedWealth += totalCost
	return nil
}

// settle forgets a spend once its commit has finished, whether it landed
// or not.
func (lw *LocalWallet) settle(totalCost, win int64) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.unconfirmedCoins -= win - totalCost
	lw.unconfirmedWealth -= totalCost
}

func (lw *LocalWallet) addCoins(delta int64) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.w.Coins += delta
}

// Client is one user's presence in one room: a projection of the room
// document plus the user's wallet view.
type Client struct {
	RoomID     string
	Projection *roomstate.Projection
	wallet     *LocalWallet
}

// UserID returns the id of the user behind the client.
func (c *Client) UserID() int64 {
	return c.Projection.Actor().UserID
}

// Actor returns the room actor for the client.
func (c *Client) Actor() roomstate.Actor {
	return c.Projection.Actor()
}

// Wallet returns the client's current wallet view.
func (c *Client) Wallet() model.Wallet {
	return c.wallet.Snapshot()
}

type roomSession struct {
	cancel  context.CancelFunc
	clients map[int64]*Client
}

// SessionManager owns the live clients of every room. Each room has one
// store subscription whose updates replace every client's projection.
type SessionManager struct {
	store         roomstate.Store
	writer        *async.Writer
	presenter     Presenter
	emojiDuration time.Duration
	roomLocks     *lock.RoomLock
	spendLocks    *lock.UserLock

	mu      sync.RWMutex
	rooms   map[string]*roomSession
	wallets map[int64]*LocalWallet

	heldMu sync.Mutex
	held   map[int64]*heldSpend
}

// heldSpend is a sender's combo hits spent locally but not yet queued for
// commit. A sender has at most one.
type heldSpend struct {
	key    ComboKey
	d      dispatch
	commit func(dispatch)
}

// NewSessionManager creates a new SessionManager instance.
func NewSessionManager(store roomstate.Store, writer *async.Writer, presenter Presenter, emojiDuration time.Duration) *SessionManager {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	return &SessionManager{
		store:         store,
		writer:        writer,
		presenter:     presenter,
		emojiDuration: emojiDuration,
		roomLocks:     lock.NewRoomLock(),
		spendLocks:    lock.NewUserLock(),
		rooms:         make(map[string]*roomSession),
		wallets:       make(map[int64]*LocalWallet),
		held:          make(map[int64]*heldSpend),
	}
}

// Join returns the user's client in a room, creating it from the current
// room document on first use.
func (m *SessionManager) Join(ctx context.Context, roomID string, actor roomstate.Actor, w *model.Wallet) (*Client, error) {
	m.roomLocks.Lock(roomID)
	defer m.roomLocks.Unlock(roomID)

	lw := m.walletFor(w)

	m.mu.RLock()
	rs := m.rooms[roomID]
	var existing *Client
	if rs != nil {
		existing = rs.clients[actor.UserID]
	}
	m.mu.RUnlock()
	if existing != nil {
		return existing, nil
	}

	seed, err := m.store.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	if rs == nil {
		subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		updates, err := m.store.Subscribe(subCtx, roomID)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to subscribe to room: %w", err)
		}
		rs = &roomSession{cancel: cancel, clients: make(map[int64]*Client)}
		m.mu.Lock()
		m.rooms[roomID] = rs
		m.mu.Unlock()
		go m.fanOut(roomID, updates)

		log.Info().Str("room_id", roomID).Msg("Room session started")
	}

	c := &Client{
		RoomID:     roomID,
		Projection: roomstate.NewProjection(actor, seed, m.store, m.writer, m.emojiDuration),
		wallet:     lw,
	}
	m.mu.Lock()
	rs.clients[actor.UserID] = c
	m.mu.Unlock()

	return c, nil
}

// Leave drops a user's client. The room subscription ends with its last client.
func (m *SessionManager) Leave(roomID string, userID int64) {
	m.roomLocks.Lock(roomID)
	defer m.roomLocks.Unlock(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	rs := m.rooms[roomID]
	if rs == nil {
		return
	}
	if c := rs.clients[userID]; c != nil {
		c.Projection.Stop()
		delete(rs.clients, userID)
	}
	if len(rs.clients) == 0 {
		rs.cancel()
		delete(m.rooms, roomID)
		log.Info().Str("room_id", roomID).Msg("Room session ended")
	}
}

// Client returns a user's client in a room.
func (m *SessionManager) Client(roomID string, userID int64) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs := m.rooms[roomID]
	if rs == nil {
		return nil, false
	}
	c, ok := rs.clients[userID]
	return c, ok
}

// Clients returns every client of a room.
func (m *SessionManager) Clients(roomID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs := m.rooms[roomID]
	if rs == nil {
		return nil
	}
	clients := make([]*Client, 0, len(rs.clients))
	for _, c := range rs.clients {
		clients = append(clients, c)
	}
	return clients
}

// RefreshWallet replaces a user's wallet view, if the user has one.
func (m *SessionManager) RefreshWallet(w model.Wallet) {
	m.mu.RLock()
	lw := m.wallets[w.ID]
	m.mu.RUnlock()
	if lw != nil {
		lw.Replace(w)
	}
}

// Close ends every room session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rs := range m.rooms {
		for _, c := range rs.clients {
			c.Projection.Stop()
		}
		rs.cancel()
		delete(m.rooms, id)
	}
}

// spendLane names the write lane that keeps a user's commits in spend order.
func spendLane(userID int64) string {
	return "spend:" + strconv.FormatInt(userID, 10)
}

// hold parks a combo hit. Hits on the same combo merge; a different combo's
// held hits are queued first so commits follow spend order. Callers hold the
// user's spend lock.
func (m *SessionManager) hold(userID int64, key ComboKey, d dispatch, commit func(dispatch)) {
	m.heldMu.Lock()
	h := m.held[userID]
	if h != nil && h.key == key {
		h.d.merge(d)
		m.heldMu.Unlock()
		return
	}
	m.held[userID] = &heldSpend{key: key, d: d, commit: commit}
	m.heldMu.Unlock()

	if h != nil {
		h.commit(h.d)
	}
}

// releaseHeld queues the user's held hits for commit. With a key, only hits
// of that combo are released. Callers hold the user's spend lock.
func (m *SessionManager) releaseHeld(userID int64, key *ComboKey) bool {
	m.heldMu.Lock()
	h := m.held[userID]
	if h == nil || (key != nil && h.key != *key) {
		m.heldMu.Unlock()
		return false
	}
	delete(m.held, userID)
	m.heldMu.Unlock()

	h.commit(h.d)
	return true
}

// heldUsers lists users with held combo hits.
func (m *SessionManager) heldUsers() []int64 {
	m.heldMu.Lock()
	defer m.heldMu.Unlock()
	ids := make([]int64, 0, len(m.held))
	for id := range m.held {
		ids = append(ids, id)
	}
	return ids
}

// settle queues the user's held hits and waits until every queued commit of
// theirs has finished, so a synchronous write sees the stored balance the
// local view was built on. Callers hold the user's spend lock.
func (m *SessionManager) settle(ctx context.Context, userID int64) error {
	m.releaseHeld(userID, nil)
	if err := m.writer.WaitLane(ctx, spendLane(userID)); err != nil {
		return fmt.Errorf("failed to wait for pending gifts: %w", err)
	}
	return nil
}

// walletFor returns the shared view for a wallet. An existing view keeps its
// optimistic state.
func (m *SessionManager) walletFor(w *model.Wallet) *LocalWallet {
	m.mu.Lock()
	defer m.mu.Unlock()

	lw := m.wallets[w.ID]
	if lw == nil {
		lw = &LocalWallet{w: *w}
		m.wallets[w.ID] = lw
	}
	return lw
}

func (m *SessionManager) fanOut(roomID string, updates <-chan model.Room) {
	for room := range updates {
		for _, c := range m.Clients(roomID) {
			c.Projection.Replace(room)
		}
		m.presenter.RoomChanged(room)
	}
}

// reloadWallet re-reads a wallet after a failed write so the local view
// matches what was actually stored.
func reloadWallet(ctx context.Context, wallets WalletStore, sessions *SessionManager, userID int64) {
	w, err := wallets.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to reload wallet")
		return
	}
	sessions.RefreshWallet(*w)
}
