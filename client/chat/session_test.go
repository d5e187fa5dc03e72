// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talentwire/chatsync/client/connection"
	"github.com/talentwire/chatsync/client/models"
	"github.com/talentwire/chatsync/client/session"
)

const self = "alice@example.com"

type fakeBackend struct {
	mu        sync.Mutex
	history   map[string][]models.Message
	gate      map[string]chan struct{} // when set, History blocks until closed
	histErr   error
	deleteErr error
	marked    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		history: map[string][]models.Message{},
		gate:    map[string]chan struct{}{},
	}
}

func (f *fakeBackend) History(ctx context.Context, peer string) ([]models.Message, error) {
	f.mu.Lock()
	g := f.gate[peer]
	msgs := f.history[peer]
	err := f.histErr
	f.mu.Unlock()

	if g != nil {
		<-g
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, messageID, reader string) error {
	f.mu.Lock()
	f.marked = append(f.marked, messageID)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}

func (f *fakeBackend) Profile(ctx context.Context, id string, role models.Role) (*models.Profile, error) {
	return nil, errors.New("no profile service")
}

type fakeConn struct{ published []models.Message }

func (f *fakeConn) PublishMessage(msg models.Message) error {
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeConn) Close() {}

type fakeCache struct {
	mu    sync.Mutex
	snaps map[string]*session.Snapshot
}

func (f *fakeCache) Save(ctx context.Context, identity string, snap session.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snaps == nil {
		f.snaps = map[string]*session.Snapshot{}
	}
	f.snaps[identity] = &snap
	return nil
}

func (f *fakeCache) Load(ctx context.Context, identity string) (*session.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[identity], nil
}

func (f *fakeCache) Clear(ctx context.Context, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, identity)
	return nil
}

type harness struct {
	sess    *Session
	backend *fakeBackend
	conn    *fakeConn
	handler connection.Handler
}

func newHarness(t *testing.T, cache Cache) *harness {
	t.Helper()
	h := &harness{backend: newFakeBackend(), conn: &fakeConn{}}

	dial := func(identity string, hd connection.Handler) (connection.Conn, error) {
		h.handler = hd
		return h.conn, nil
	}

	h.sess = New(Options{
		Self:     self,
		PeerRole: models.RoleEmployer,
		Conn:     connection.NewManager(dial),
		Backend:  h.backend,
		Cache:    cache,
	})
	if err := h.sess.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { h.sess.Close(context.Background()) })
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func peerMsg(id, sender, content string) models.Message {
	return models.Message{ID: id, Sender: sender, Recipient: self, Content: content}
}

func TestSelectRecipientLoadsHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.history["bob@example.com"] = []models.Message{
		peerMsg("m1", "bob@example.com", "hello"),
		peerMsg("m2", "bob@example.com", "you there?"),
	}

	h.sess.SelectRecipient(context.Background(), " Bob@Example.com ")

	if h.sess.Recipient() != "bob@example.com" {
		t.Errorf("recipient should be normalized, got %q", h.sess.Recipient())
	}
	waitFor(t, "history load", func() bool { return len(h.sess.Messages()) == 2 })
}

func TestConversationSwitchDiscardsStaleHistory(t *testing.T) {
	h := newHarness(t, nil)

	bobGate := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.gate["bob@example.com"] = bobGate
	h.backend.history["bob@example.com"] = []models.Message{peerMsg("b1", "bob@example.com", "from bob")}
	h.backend.history["carol@example.com"] = []models.Message{peerMsg("c1", "carol@example.com", "from carol")}
	h.backend.mu.Unlock()

	// Bob's history fetch hangs; the user switches to Carol meanwhile.
	h.sess.SelectRecipient(context.Background(), "bob@example.com")
	h.sess.SelectRecipient(context.Background(), "carol@example.com")

	waitFor(t, "carol history", func() bool {
		msgs := h.sess.Messages()
		return len(msgs) == 1 && msgs[0].ID == "c1"
	})

	// Bob's fetch finally resolves; it must not touch the timeline.
	close(bobGate)
	time.Sleep(50 * time.Millisecond)

	msgs := h.sess.Messages()
	if len(msgs) != 1 || msgs[0].ID != "c1" {
		t.Errorf("stale history leaked into the timeline: %+v", msgs)
	}
}

func TestHistoryFailureLeavesTimelineUntouched(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.mu.Lock()
	h.backend.histErr = errors.New("backend down")
	h.backend.mu.Unlock()

	h.sess.SelectRecipient(context.Background(), "bob@example.com")
	time.Sleep(20 * time.Millisecond)

	if len(h.sess.Messages()) != 0 {
		t.Error("failed history load should leave the timeline empty")
	}
}

// selectAndLoad switches to peer after seeding its history, and waits
// for the load to land so later appends cannot race the replace.
func selectAndLoad(t *testing.T, h *harness, peer string, seed ...models.Message) {
	t.Helper()
	h.backend.mu.Lock()
	h.backend.history[peer] = seed
	h.backend.mu.Unlock()
	h.sess.SelectRecipient(context.Background(), peer)
	waitFor(t, "history load", func() bool { return len(h.sess.Messages()) == len(seed) })
}

func viewedMsg(id, sender, content string) models.Message {
	m := peerMsg(id, sender, content)
	m.Viewed = true
	return m
}

func TestInboundMessageDrivesUnreadCount(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", viewedMsg("h0", "bob@example.com", "earlier"))

	h.handler.OnMessage(peerMsg("m1", "bob@example.com", "one"))
	h.handler.OnMessage(peerMsg("m2", "bob@example.com", "two"))

	if got := h.sess.UnreadCount(); got != 2 {
		t.Fatalf("expected 2 unread, got %d", got)
	}

	h.sess.MarkVisible("m1", 1.0)
	waitFor(t, "read receipt", func() bool { return h.sess.UnreadCount() == 1 })

	h.backend.mu.Lock()
	marked := len(h.backend.marked)
	h.backend.mu.Unlock()
	if marked != 1 {
		t.Errorf("expected 1 mark-read call, got %d", marked)
	}
}

func TestInboundEchoConfirmsOptimisticSend(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", viewedMsg("h0", "bob@example.com", "earlier"))

	h.sess.SetBuffer("hello bob")
	if err := h.sess.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(h.conn.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(h.conn.published))
	}

	echo := h.conn.published[0]
	echo.ID = "server-1"
	echo.Status = ""
	h.handler.OnMessage(echo)

	msgs := h.sess.Messages()
	if len(msgs) != 2 {
		t.Fatalf("echo should merge into the optimistic entry, got %d messages", len(msgs))
	}
	if msgs[1].ID != "server-1" || msgs[1].Status != models.StatusConfirmed {
		t.Errorf("merged entry should be confirmed with the server id: %+v", msgs[1])
	}
	if h.sess.UnreadCount() != 0 {
		t.Error("own messages must not count as unread")
	}
}

func TestInboundSenderCaseInsensitive(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", viewedMsg("h0", "bob@example.com", "earlier"))

	// The wire sender carries different casing than the selected recipient.
	h.handler.OnMessage(peerMsg("m1", "Bob@Example.com", "same peer"))

	if len(h.sess.Messages()) != 2 {
		t.Error("a differently cased sender is still the active peer and must be appended")
	}
	if h.sess.UnreadCount() != 1 {
		t.Errorf("expected 1 unread, got %d", h.sess.UnreadCount())
	}
}

func TestInboundFromOtherSenderStaysOut(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", viewedMsg("h0", "bob@example.com", "earlier"))

	h.handler.OnMessage(peerMsg("x1", "carol@example.com", "wrong conversation"))

	if len(h.sess.Messages()) != 1 {
		t.Error("a message from outside the active conversation must not enter the timeline")
	}
}

func TestDeleteMessage(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", peerMsg("m1", "bob@example.com", "to be removed"))

	if err := h.sess.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if len(h.sess.Messages()) != 0 {
		t.Error("deleted message should leave the timeline")
	}
}

func TestDeleteMessageRemoteFailureKeepsLocal(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", peerMsg("m1", "bob@example.com", "sticky"))

	h.backend.mu.Lock()
	h.backend.deleteErr = errors.New("backend rejected")
	h.backend.mu.Unlock()

	if err := h.sess.DeleteMessage(context.Background(), "m1"); err == nil {
		t.Fatal("remote failure should surface as an error")
	}
	if len(h.sess.Messages()) != 1 {
		t.Error("local copy must survive a failed remote delete")
	}
}

func TestReplySnapshotSurvivesDeletion(t *testing.T) {
	h := newHarness(t, nil)
	selectAndLoad(t, h, "bob@example.com", peerMsg("m1", "bob@example.com", "original"))

	if !h.sess.Reply("m1") {
		t.Fatal("reply to an existing message should succeed")
	}
	if err := h.sess.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}

	ref := h.sess.PendingReply()
	if ref == nil || ref.Content != "original" {
		t.Error("pending reply snapshot should survive deletion of the original")
	}
}

func TestSessionRestoreSeedsThenSupersedes(t *testing.T) {
	cache := &fakeCache{snaps: map[string]*session.Snapshot{
		self: {
			Messages:  []models.Message{peerMsg("cached-1", "bob@example.com", "old view")},
			Recipient: "bob@example.com",
			Buffer:    "half-typed",
			Open:      true,
		},
	}}

	h := &harness{backend: newFakeBackend(), conn: &fakeConn{}}
	h.backend.history["bob@example.com"] = []models.Message{
		peerMsg("m1", "bob@example.com", "authoritative"),
	}

	dial := func(identity string, hd connection.Handler) (connection.Conn, error) {
		h.handler = hd
		return h.conn, nil
	}
	h.sess = New(Options{
		Self:     self,
		PeerRole: models.RoleEmployer,
		Conn:     connection.NewManager(dial),
		Backend:  h.backend,
		Cache:    cache,
	})
	if err := h.sess.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer h.sess.Close(context.Background())

	if h.sess.Buffer() != "half-typed" {
		t.Errorf("buffer should restore from the snapshot, got %q", h.sess.Buffer())
	}
	if h.sess.Recipient() != "bob@example.com" {
		t.Errorf("recipient should restore from the snapshot, got %q", h.sess.Recipient())
	}

	// The server history replaces the cached seed.
	waitFor(t, "history supersedes cache", func() bool {
		msgs := h.sess.Messages()
		return len(msgs) == 1 && msgs[0].ID == "m1"
	})
}

func TestPresenceTracking(t *testing.T) {
	h := newHarness(t, nil)

	h.handler.OnStatus(models.StatusChange{User: "Bob@Example.com", Online: true})
	if !h.sess.PeerOnline("bob@example.com") {
		t.Error("presence should track status events, normalized")
	}

	h.handler.OnStatus(models.StatusChange{User: "bob@example.com", Online: false})
	if h.sess.PeerOnline("bob@example.com") {
		t.Error("going offline should be reflected")
	}
}
