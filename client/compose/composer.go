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

package compose

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentwire/chatsync/client/connection"
	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/metrics"
	"github.com/talentwire/chatsync/client/models"
	"github.com/talentwire/chatsync/client/timeline"
)

// Publisher is the connection surface the composer needs.
type Publisher interface {
	State() connection.State
	SendMessage(msg models.Message) error
}

// ProfileLookup resolves display names for the denormalized fields.
type ProfileLookup interface {
	Profile(ctx context.Context, id string, role models.Role) (*models.Profile, error)
}

// NormalizeIdentity trims and lower-cases an identity string; recipients
// are normalized this way before transmission.
func NormalizeIdentity(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Composer turns user input into a message record, optimistically
// appends it and publishes it over the connection.
type Composer struct {
	mu sync.Mutex

	buffer       string
	pendingReply *models.ReplyRef

	self          string
	selfName      string
	recipient     string
	recipientRole models.Role

	conn     Publisher
	store    *timeline.Store
	profiles ProfileLookup

	// names already resolved, keyed by identity
	names map[string]string

	now   func() time.Time
	newID func() string
}

func New(self string, conn Publisher, store *timeline.Store, profiles ProfileLookup) *Composer {
	return &Composer{
		self:     self,
		conn:     conn,
		store:    store,
		profiles: profiles,
		names:    map[string]string{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetBuffer replaces the composer input buffer.
func (c *Composer) SetBuffer(text string) {
	c.mu.Lock()
	c.buffer = text
	c.mu.Unlock()
}

// Buffer returns the current input buffer.
func (c *Composer) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

// SetReply records a pending-reply snapshot for the next send.
func (c *Composer) SetReply(ref models.ReplyRef) {
	c.mu.Lock()
	c.pendingReply = &ref
	c.mu.Unlock()
}

// ClearReply drops the pending-reply state.
func (c *Composer) ClearReply() {
	c.mu.Lock()
	c.pendingReply = nil
	c.mu.Unlock()
}

// PendingReply returns a copy of the pending-reply snapshot, if any.
func (c *Composer) PendingReply() *models.ReplyRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingReply == nil {
		return nil
	}
	ref := *c.pendingReply
	return &ref
}

// SetRecipient selects and normalizes the recipient of subsequent sends.
func (c *Composer) SetRecipient(id string, role models.Role) {
	c.mu.Lock()
	c.recipient = NormalizeIdentity(id)
	c.recipientRole = role
	c.mu.Unlock()
}

// Recipient returns the normalized selected recipient.
func (c *Composer) Recipient() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recipient
}

// Send publishes the buffered text as a message. It is a no-op when the
// buffer is blank, no recipient is selected, or the connection is not
// live. Publish and optimistic append happen together or not at all: a
// publish failure keeps the buffer and pending reply intact so user
// input is never silently dropped.
func (c *Composer) Send(ctx context.Context) error {
	c.mu.Lock()
	text := strings.TrimSpace(c.buffer)
	recipient := c.recipient
	role := c.recipientRole
	reply := c.pendingReply
	c.mu.Unlock()

	if text == "" || recipient == "" || c.conn.State() != connection.StateConnected {
		return nil
	}

	msg := models.Message{
		CorrelationID: c.newID(),
		Sender:        c.self,
		Recipient:     recipient,
		SenderName:    c.displayName(ctx, c.self, models.Role("")),
		RecipientName: c.displayName(ctx, recipient, role),
		Content:       text,
		CreatedAt:     c.now(),
		Status:        models.StatusOptimistic,
	}
	if reply != nil {
		ref := *reply
		msg.ReplyTo = &ref
	}

	if err := c.conn.SendMessage(msg); err != nil {
		return err
	}

	c.store.Append(msg)
	metrics.MessagesSent.Inc()

	c.mu.Lock()
	c.buffer = ""
	c.pendingReply = nil
	c.mu.Unlock()
	return nil
}

// displayName resolves an identity to its profile display name, falling
// back to the identity itself when the lookup fails.
func (c *Composer) displayName(ctx context.Context, id string, role models.Role) string {
	c.mu.Lock()
	if name, ok := c.names[id]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	if c.profiles == nil {
		return id
	}
	profile, err := c.profiles.Profile(ctx, id, role)
	if err != nil || profile == nil || profile.DisplayName == "" {
		if err != nil {
			logging.Debug("profile lookup failed", "id", id, "err", err)
		}
		return id
	}

	c.mu.Lock()
	c.names[id] = profile.DisplayName
	c.mu.Unlock()
	return profile.DisplayName
}
