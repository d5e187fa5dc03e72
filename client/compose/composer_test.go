// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/talentwire/chatsync/client/connection"
	"github.com/talentwire/chatsync/client/models"
	"github.com/talentwire/chatsync/client/timeline"
)

type fakePublisher struct {
	state     connection.State
	published []models.Message
	err       error
}

func (f *fakePublisher) State() connection.State { return f.state }

func (f *fakePublisher) SendMessage(msg models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

type fakeProfiles struct {
	names map[string]string
	err   error
	calls int
}

func (f *fakeProfiles) Profile(ctx context.Context, id string, role models.Role) (*models.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	name, ok := f.names[id]
	if !ok {
		return nil, errors.New("no such profile")
	}
	return &models.Profile{ID: id, DisplayName: name, Role: role}, nil
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bob@Example.com", "bob@example.com"},
		{"  alice@example.com  ", "alice@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeIdentity(tt.in); got != tt.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSendAppendsOptimistically(t *testing.T) {
	store := timeline.New()
	pub := &fakePublisher{state: connection.StateConnected}
	profiles := &fakeProfiles{names: map[string]string{
		"alice@example.com": "Alice",
		"bob@example.com":   "Bob",
	}}

	c := New("alice@example.com", pub, store, profiles)
	c.SetRecipient("  Bob@Example.com ", models.RoleEmployer)
	c.SetBuffer("hello bob")

	if err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.published))
	}
	sent := pub.published[0]
	if sent.Recipient != "bob@example.com" {
		t.Errorf("recipient should be normalized, got %q", sent.Recipient)
	}
	if sent.CorrelationID == "" {
		t.Error("outbound message needs a correlation id for echo merging")
	}
	if sent.SenderName != "Alice" || sent.RecipientName != "Bob" {
		t.Errorf("display names not resolved: %q / %q", sent.SenderName, sent.RecipientName)
	}

	if store.Len() != 1 {
		t.Fatalf("expected optimistic append, store has %d messages", store.Len())
	}
	got := store.Messages()[0]
	if got.Status != models.StatusOptimistic {
		t.Errorf("appended message should be optimistic, got %q", got.Status)
	}
	if c.Buffer() != "" {
		t.Error("buffer should be cleared after a successful send")
	}
}

func TestSendNoOps(t *testing.T) {
	tests := []struct {
		name      string
		buffer    string
		recipient string
		state     connection.State
	}{
		{"blank buffer", "   ", "bob@example.com", connection.StateConnected},
		{"no recipient", "hello", "", connection.StateConnected},
		{"disconnected", "hello", "bob@example.com", connection.StateDisconnected},
		{"still connecting", "hello", "bob@example.com", connection.StateConnecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := timeline.New()
			pub := &fakePublisher{state: tt.state}
			c := New("alice@example.com", pub, store, nil)
			c.SetRecipient(tt.recipient, models.RoleEmployer)
			c.SetBuffer(tt.buffer)

			if err := c.Send(context.Background()); err != nil {
				t.Fatalf("no-op send should not error, got %v", err)
			}
			if len(pub.published) != 0 {
				t.Error("nothing should be published")
			}
			if store.Len() != 0 {
				t.Error("nothing should be appended")
			}
		})
	}
}

func TestSendFailureKeepsInput(t *testing.T) {
	store := timeline.New()
	pub := &fakePublisher{state: connection.StateConnected, err: errors.New("transport down")}

	c := New("alice@example.com", pub, store, nil)
	c.SetRecipient("bob@example.com", models.RoleEmployer)
	c.SetBuffer("important message")
	c.SetReply(models.ReplyRef{ID: "m1", Sender: "bob@example.com", Content: "earlier"})

	if err := c.Send(context.Background()); err == nil {
		t.Fatal("publish failure should surface as an error")
	}

	if store.Len() != 0 {
		t.Error("failed publish must not append optimistically")
	}
	if c.Buffer() != "important message" {
		t.Error("failed publish must keep the buffer")
	}
	if c.PendingReply() == nil {
		t.Error("failed publish must keep the pending reply")
	}
}

func TestSendCarriesReplySnapshot(t *testing.T) {
	store := timeline.New()
	pub := &fakePublisher{state: connection.StateConnected}

	c := New("alice@example.com", pub, store, nil)
	c.SetRecipient("bob@example.com", models.RoleEmployer)
	c.SetReply(models.ReplyRef{ID: "m1", Sender: "bob@example.com", Content: "original"})
	c.SetBuffer("replying")

	if err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	sent := pub.published[0]
	if sent.ReplyTo == nil || sent.ReplyTo.ID != "m1" {
		t.Fatal("outbound message should carry the reply snapshot")
	}
	if c.PendingReply() != nil {
		t.Error("pending reply should clear after a successful send")
	}
}

func TestDisplayNameFallsBackToIdentity(t *testing.T) {
	store := timeline.New()
	pub := &fakePublisher{state: connection.StateConnected}
	profiles := &fakeProfiles{err: errors.New("profile service down")}

	c := New("alice@example.com", pub, store, profiles)
	c.SetRecipient("bob@example.com", models.RoleEmployer)
	c.SetBuffer("hi")

	if err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	sent := pub.published[0]
	if sent.SenderName != "alice@example.com" || sent.RecipientName != "bob@example.com" {
		t.Errorf("lookup failure should fall back to identities: %q / %q", sent.SenderName, sent.RecipientName)
	}
}

func TestDisplayNameIsCached(t *testing.T) {
	store := timeline.New()
	pub := &fakePublisher{state: connection.StateConnected}
	profiles := &fakeProfiles{names: map[string]string{
		"alice@example.com": "Alice",
		"bob@example.com":   "Bob",
	}}

	c := New("alice@example.com", pub, store, profiles)
	c.SetRecipient("bob@example.com", models.RoleEmployer)

	c.SetBuffer("one")
	c.Send(context.Background())
	c.SetBuffer("two")
	c.Send(context.Background())

	if profiles.calls != 2 {
		t.Errorf("expected 2 lookups (one per identity), got %d", profiles.calls)
	}
}
