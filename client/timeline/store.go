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

package timeline

import (
	"sync"

	"github.com/talentwire/chatsync/client/models"
)

// Patch is a partial update applied through UpdateByID.
type Patch struct {
	Viewed    *bool
	Delivered *bool
}

// Store is the ordered, append-only, deduplicated message log for the
// active conversation. It is the single source of truth for rendering
// and unread counting; no other component mutates its contents directly.
type Store struct {
	mu   sync.RWMutex
	msgs []models.Message
	subs []func()
}

func New() *Store {
	return &Store{}
}

// Subscribe registers fn to run after every mutation. Subscribers are
// invoked in registration order, outside the store lock.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Append adds a message, deduplicating by server id when present. An
// inbound message whose correlation id matches an existing optimistic
// entry is merged into it (confirmation) rather than appended, so a
// transport echo of our own send never doubles the timeline. Returns
// true when the store changed.
func (s *Store) Append(m models.Message) bool {
	s.mu.Lock()
	if m.ID != "" {
		for i := range s.msgs {
			if s.msgs[i].ID == m.ID {
				s.mu.Unlock()
				return false
			}
		}
	}
	if m.CorrelationID != "" {
		for i := range s.msgs {
			if s.msgs[i].CorrelationID == m.CorrelationID {
				s.merge(i, m)
				s.mu.Unlock()
				s.notify()
				return true
			}
		}
	}
	if m.Status == "" {
		m.Status = models.StatusConfirmed
	}
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	s.notify()
	return true
}

// merge confirms the optimistic entry at index i with the server echo.
// The local CreatedAt is kept; Viewed stays monotonic.
func (s *Store) merge(i int, echo models.Message) {
	cur := &s.msgs[i]
	if echo.ID != "" {
		cur.ID = echo.ID
	}
	cur.Delivered = cur.Delivered || echo.Delivered
	cur.Viewed = cur.Viewed || echo.Viewed
	cur.Status = models.StatusConfirmed
	if cur.FileURL == "" && echo.FileURL != "" {
		cur.FileURL = echo.FileURL
		cur.FileName = echo.FileName
		cur.FileType = echo.FileType
		cur.FileSize = echo.FileSize
	}
}

// Replace performs a full swap of the timeline, used when loading
// conversation history or switching conversations.
func (s *Store) Replace(all []models.Message) {
	next := make([]models.Message, len(all))
	copy(next, all)
	for i := range next {
		if next[i].Status == "" {
			next[i].Status = models.StatusConfirmed
		}
	}
	s.mu.Lock()
	s.msgs = next
	s.mu.Unlock()
	s.notify()
}

// UpdateByID applies a partial update to the message with the given id.
// Viewed is monotonic: a patch can set it true but an attempt to reset
// it to false is ignored. Returns false when the id is unknown.
func (s *Store) UpdateByID(id string, p Patch) bool {
	s.mu.Lock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			if p.Viewed != nil && *p.Viewed {
				s.msgs[i].Viewed = true
			}
			if p.Delivered != nil {
				s.msgs[i].Delivered = *p.Delivered
			}
			s.mu.Unlock()
			s.notify()
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Remove deletes the message with the given id. Returns false when the
// id is unknown.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			s.mu.Unlock()
			s.notify()
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return s.msgs[i], true
		}
	}
	return models.Message{}, false
}

// Has reports whether a message with the given id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Messages returns a copy of the timeline in insertion order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// UnreadFor derives the unread count for the local identity: messages
// not authored by self and not yet viewed. It holds no state of its
// own and is recomputed on demand.
func (s *Store) UnreadFor(self string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.msgs {
		if s.msgs[i].Sender != self && !s.msgs[i].Viewed {
			n++
		}
	}
	return n
}
