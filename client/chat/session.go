// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/talentwire/chatsync/client/compose"
	"github.com/talentwire/chatsync/client/connection"
	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/metrics"
	"github.com/talentwire/chatsync/client/models"
	"github.com/talentwire/chatsync/client/notify"
	"github.com/talentwire/chatsync/client/receipts"
	"github.com/talentwire/chatsync/client/session"
	"github.com/talentwire/chatsync/client/timeline"
)

const ackTimeout = 10 * time.Second

// Backend is the remote REST surface the session consumes.
type Backend interface {
	History(ctx context.Context, peer string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID, reader string) error
	Delete(ctx context.Context, messageID string) error
	Profile(ctx context.Context, id string, role models.Role) (*models.Profile, error)
}

// Cache persists session continuity snapshots across reloads.
type Cache interface {
	Save(ctx context.Context, identity string, snap session.Snapshot) error
	Load(ctx context.Context, identity string) (*session.Snapshot, error)
	Clear(ctx context.Context, identity string) error
}

// Options configures a conversation session.
type Options struct {
	Self     string
	PeerRole models.Role
	Conn     *connection.Manager
	Backend  Backend
	Cache    Cache              // optional
	Notifier notify.Notifier    // optional, defaults to LogNotifier
	Audio    notify.AudioPlayer // optional
}

// Session composes the timeline store, connection manager, composer,
// read-receipt reconciler and notification dispatcher into the live
// two-party conversation exposed to the surrounding UI. Each holds only
// its own state; the session is the ownership hierarchy, not a
// singleton store of everything.
type Session struct {
	self     string
	peerRole models.Role

	conn       *connection.Manager
	backend    Backend
	cache      Cache
	store      *timeline.Store
	composer   *compose.Composer
	receipts   *receipts.Reconciler
	dispatcher *notify.Dispatcher

	mu         sync.Mutex
	recipient  string
	activePeer string
	minimized  bool
	open       bool
	online     map[string]bool
	changeSubs []func()

	// loadMu makes the generation check and the history swap atomic so
	// a superseded fetch can never touch the current timeline.
	loadMu     sync.Mutex
	loadGen    uint64
	loadCancel context.CancelFunc
}

func New(opts Options) *Session {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	s := &Session{
		self:       opts.Self,
		peerRole:   opts.PeerRole,
		conn:       opts.Conn,
		backend:    opts.Backend,
		cache:      opts.Cache,
		store:      timeline.New(),
		dispatcher: notify.New(notifier, opts.Audio),
		online:     map[string]bool{},
		open:       true,
	}
	s.composer = compose.New(opts.Self, opts.Conn, s.store, opts.Backend)
	s.receipts = receipts.New(s.store, opts.Backend, opts.Self, s.onViewed)

	s.conn.OnMessage(s.handleInbound)
	s.conn.OnNotification(s.handleNotification)
	s.conn.OnStatus(s.handleStatus)
	s.conn.OnState(s.handleState)
	s.store.Subscribe(s.handleStoreChange)
	return s
}

// Start connects the transport for the local identity and restores the
// cached session, if any. The cached messages are only a seed: the
// history fetch kicked off by the recipient selection supersedes them.
func (s *Session) Start(ctx context.Context) error {
	if err := s.conn.Connect(s.self); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}

	snap, err := s.cache.Load(ctx, s.self)
	if err != nil {
		logging.Warn("session restore failed", "err", err)
		return nil
	}
	if snap == nil {
		return nil
	}

	s.composer.SetBuffer(snap.Buffer)
	s.mu.Lock()
	s.minimized = snap.Minimized
	s.open = snap.Open
	s.mu.Unlock()
	if snap.Recipient != "" {
		s.selectRecipient(ctx, snap.Recipient, snap.Messages)
	}
	return nil
}

// SelectRecipient switches the active conversation. The previous
// timeline is replaced wholesale, the acknowledgement arena is rebuilt,
// and any in-flight history fetch for the old recipient is cancelled.
func (s *Session) SelectRecipient(ctx context.Context, id string) {
	s.selectRecipient(ctx, compose.NormalizeIdentity(id), nil)
}

func (s *Session) selectRecipient(ctx context.Context, peer string, seed []models.Message) {
	s.mu.Lock()
	if peer == s.recipient && seed == nil {
		s.mu.Unlock()
		return
	}
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.recipient = peer
	s.activePeer = peer
	var loadCtx context.Context
	if peer != "" {
		loadCtx, s.loadCancel = context.WithCancel(ctx)
	}
	s.mu.Unlock()

	s.composer.SetRecipient(peer, s.peerRole)

	s.loadMu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.receipts.Reset()
	s.store.Replace(seed)
	s.loadMu.Unlock()

	if peer == "" {
		return
	}

	go func() {
		msgs, err := s.backend.History(loadCtx, peer)
		if err != nil {
			// Store left as-is; a failed load never garbles the timeline.
			logging.Warn("history load failed", "peer", peer, "err", err)
			return
		}
		s.loadMu.Lock()
		if gen == s.loadGen {
			s.store.Replace(msgs)
			s.receipts.GC()
		}
		s.loadMu.Unlock()
		s.persist(context.Background())
	}()
}

// Send publishes the composer buffer to the selected recipient.
func (s *Session) Send(ctx context.Context) error {
	if err := s.composer.Send(ctx); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// MarkVisible is the viewport-visibility trigger for read receipts,
// dispatched off the caller's path so the UI never blocks on the
// acknowledgement call.
func (s *Session) MarkVisible(id string, ratio float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		defer cancel()
		s.receipts.MarkVisible(ctx, id, ratio)
	}()
}

// DeleteMessage removes a message remotely and, on success, locally.
// The acknowledgement marker is dropped too, so a later message reusing
// the id is never suppressed.
func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	s.store.Remove(id)
	s.receipts.Forget(id)
	s.persist(ctx)
	return nil
}

// Reply records a pending-reply snapshot of an existing message.
func (s *Session) Reply(messageID string) bool {
	msg, ok := s.store.Get(messageID)
	if !ok {
		return false
	}
	s.composer.SetReply(models.ReplyRef{ID: msg.ID, Sender: msg.Sender, Content: msg.Content})
	s.notifyChange()
	return true
}

// ClearReply drops the pending-reply state.
func (s *Session) ClearReply() {
	s.composer.ClearReply()
	s.notifyChange()
}

// Subscribe registers fn to run after every observable state change.
func (s *Session) Subscribe(fn func()) {
	s.mu.Lock()
	s.changeSubs = append(s.changeSubs, fn)
	s.mu.Unlock()
}

// Close persists the session and tears down the connection.
func (s *Session) Close(ctx context.Context) {
	s.persist(ctx)
	s.mu.Lock()
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.mu.Unlock()
	s.conn.Disconnect()
}

// --- reactive accessors -------------------------------------------------

func (s *Session) Messages() []models.Message { return s.store.Messages() }
func (s *Session) UnreadCount() int           { return s.store.UnreadFor(s.self) }
func (s *Session) ConnState() connection.State {
	return s.conn.State()
}
func (s *Session) Buffer() string { return s.composer.Buffer() }
func (s *Session) SetBuffer(text string) {
	s.composer.SetBuffer(text)
	s.notifyChange()
}
func (s *Session) PendingReply() *models.ReplyRef { return s.composer.PendingReply() }

func (s *Session) Recipient() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipient
}

// ActivePeer is the conversation pointer, following the sender of the
// most recently viewed message.
func (s *Session) ActivePeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

func (s *Session) Minimized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimized
}

func (s *Session) SetMinimized(v bool) {
	s.mu.Lock()
	s.minimized = v
	s.mu.Unlock()
	s.notifyChange()
}

// PeerOnline reports the last presence state seen for an identity.
func (s *Session) PeerOnline(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[compose.NormalizeIdentity(id)]
}

// --- event plumbing -----------------------------------------------------

// handleInbound processes a privateMessage event. An echo of our own
// send is merged into its optimistic entry by correlation id; a message
// from the active peer is appended; anything else only raises a
// notification, since exactly one timeline exists per conversation pair.
func (s *Session) handleInbound(msg models.Message) {
	metrics.MessagesReceived.Inc()
	msg.Delivered = true
	msg.Status = models.StatusConfirmed

	s.mu.Lock()
	recipient := s.recipient
	s.mu.Unlock()

	sender := compose.NormalizeIdentity(msg.Sender)
	fromSelf := sender == compose.NormalizeIdentity(s.self)
	inConversation := fromSelf || sender == recipient

	if inConversation {
		s.store.Append(msg)
	} else {
		logging.Debug("message outside active conversation", "sender", msg.Sender)
	}

	if !fromSelf {
		title := msg.SenderName
		if title == "" {
			title = msg.Sender
		}
		content := msg.Content
		if msg.IsFile() {
			content = msg.FileName
		}
		s.dispatcher.Dispatch(models.Notification{Title: title, Content: content})
	}
}

func (s *Session) handleNotification(n models.Notification) {
	s.dispatcher.Dispatch(n)
}

func (s *Session) handleStatus(sc models.StatusChange) {
	s.mu.Lock()
	s.online[compose.NormalizeIdentity(sc.User)] = sc.Online
	s.mu.Unlock()
	s.notifyChange()
}

func (s *Session) handleState(st connection.State) {
	metrics.ConnectionState.Set(float64(st))
	s.notifyChange()
}

func (s *Session) handleStoreChange() {
	metrics.Unread.Set(float64(s.store.UnreadFor(s.self)))
	s.notifyChange()
}

// onViewed runs after a successful read acknowledgement: the
// conversation pointer follows the message's sender and the chat
// surface is brought back if minimized or closed.
func (s *Session) onViewed(sender string) {
	s.mu.Lock()
	s.activePeer = sender
	s.minimized = false
	s.open = true
	s.mu.Unlock()
	s.notifyChange()
}

func (s *Session) notifyChange() {
	s.mu.Lock()
	subs := make([]func(), len(s.changeSubs))
	copy(subs, s.changeSubs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// persist saves the continuity snapshot, best-effort.
func (s *Session) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	snap := session.Snapshot{
		Messages:  s.store.Messages(),
		Recipient: s.recipient,
		Buffer:    s.composer.Buffer(),
		Minimized: s.minimized,
		Open:      s.open,
	}
	s.mu.Unlock()
	if err := s.cache.Save(ctx, s.self, snap); err != nil {
		logging.Warn("session persist failed", "err", err)
	}
}
