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

package receipts

import (
	"context"
	"sync"

	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/metrics"
	"github.com/talentwire/chatsync/client/timeline"
)

// VisibilityThreshold is the minimum fraction of a message that must be
// on-screen before a visibility event counts as "seen".
const VisibilityThreshold = 0.5

type ackState int

const (
	ackUnseen ackState = iota
	ackPending
	ackDone
)

// Remote is the mark-read collaborator.
type Remote interface {
	MarkRead(ctx context.Context, messageID, reader string) error
}

// Reconciler drives read receipts from viewport visibility. Per message
// the state machine is unseen → pending → done, falling back to unseen
// when the remote call fails so a later visibility event may retry.
// The arena is per conversation and rebuilt wholesale on switch.
type Reconciler struct {
	mu    sync.Mutex
	arena map[string]ackState
	// gen is bumped by Reset; an acknowledgement that resolves after a
	// conversation switch belongs to the old arena and must not write
	// into the new one.
	gen uint64

	store  *timeline.Store
	remote Remote
	self   string

	// onViewed runs after a successful acknowledgement with the sender
	// of the viewed message; the session uses it to point the active
	// conversation at that sender and un-minimize the chat surface.
	onViewed func(sender string)
}

func New(store *timeline.Store, remote Remote, self string, onViewed func(sender string)) *Reconciler {
	return &Reconciler{
		arena:    make(map[string]ackState),
		store:    store,
		remote:   remote,
		self:     self,
		onViewed: onViewed,
	}
}

// Reset rebuilds the arena, discarding all acknowledgement state. Called
// on conversation switch so suppression never leaks across conversations.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.arena = make(map[string]ackState)
	r.gen++
	r.mu.Unlock()
}

// Forget drops the arena entry for a deleted message so a reused id is
// never suppressed by a stale marker.
func (r *Reconciler) Forget(id string) {
	r.mu.Lock()
	delete(r.arena, id)
	r.mu.Unlock()
}

// MarkVisible is the visibility trigger. It acknowledges the message
// when at least VisibilityThreshold of it is on-screen, it was authored
// by the remote party, and it is neither viewed nor already pending.
// The pending insertion is a synchronous check-and-set, so racing
// visibility callbacks for the same id issue at most one remote call.
// The remote call itself blocks; callers run MarkVisible off the UI path.
func (r *Reconciler) MarkVisible(ctx context.Context, id string, ratio float64) {
	if id == "" || ratio < VisibilityThreshold {
		return
	}
	msg, ok := r.store.Get(id)
	if !ok || msg.Sender == r.self || msg.Viewed {
		return
	}

	r.mu.Lock()
	if r.arena[id] != ackUnseen {
		r.mu.Unlock()
		return
	}
	r.arena[id] = ackPending
	gen := r.gen
	r.mu.Unlock()

	if err := r.remote.MarkRead(ctx, id, r.self); err != nil {
		// Release the guard so a future visibility event retries.
		r.mu.Lock()
		if r.gen == gen {
			delete(r.arena, id)
		}
		r.mu.Unlock()
		metrics.AcksFailed.Inc()
		logging.Warn("mark-read failed", "message_id", id, "err", err)
		return
	}

	r.mu.Lock()
	if r.gen != gen {
		// The conversation switched while the call was in flight; the
		// result belongs to the previous arena. A same id in the new
		// timeline was never visible here, so leave it untouched.
		r.mu.Unlock()
		return
	}
	r.arena[id] = ackDone
	r.mu.Unlock()

	viewed := true
	r.store.UpdateByID(id, timeline.Patch{Viewed: &viewed})

	metrics.AcksSucceeded.Inc()
	if r.onViewed != nil {
		r.onViewed(msg.Sender)
	}
}

// GC purges arena ids that no longer correspond to a stored message,
// bounding memory and avoiding stale suppression after history swaps.
func (r *Reconciler) GC() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.arena {
		if !r.store.Has(id) {
			delete(r.arena, id)
		}
	}
}

// Pending reports whether an acknowledgement is in flight for id.
func (r *Reconciler) Pending(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arena[id] == ackPending
}
