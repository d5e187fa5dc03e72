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

package connection

import (
	"errors"
	"sync"

	"github.com/talentwire/chatsync/client/models"
)

// State is the connection lifecycle state, exposed as events rather
// than polled.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned when publishing without a live connection.
var ErrNotConnected = errors.New("not connected to chat transport")

// Handler receives decoded inbound events and state transitions from a
// live connection. Payloads are validated at the transport boundary;
// anything reaching these callbacks is well-formed.
type Handler struct {
	OnMessage      func(models.Message)
	OnStatus       func(models.StatusChange)
	OnNotification func(models.Notification)
	OnState        func(State)
}

// Conn is a live bidirectional event-stream connection.
type Conn interface {
	PublishMessage(msg models.Message) error
	Close()
}

// DialFunc opens a connection for the given local identity, wiring
// inbound events into h.
type DialFunc func(identity string, h Handler) (Conn, error)

// Manager owns at most one live connection, keyed by the local
// identity. No other component holds a reference to the transport.
type Manager struct {
	dial DialFunc

	// opMu serializes connect/disconnect cycles; mu guards the fields.
	opMu sync.Mutex
	mu   sync.Mutex

	identity string
	conn     Conn
	state    State

	stateSubs  []func(State)
	msgSubs    []func(models.Message)
	statusSubs []func(models.StatusChange)
	notifSubs  []func(models.Notification)
}

func NewManager(dial DialFunc) *Manager {
	return &Manager{dial: dial, state: StateDisconnected}
}

// OnState registers a state-transition listener. Listeners for the same
// event type run in subscription order.
func (m *Manager) OnState(fn func(State)) {
	m.mu.Lock()
	m.stateSubs = append(m.stateSubs, fn)
	m.mu.Unlock()
}

// OnMessage registers an inbound private-message listener.
func (m *Manager) OnMessage(fn func(models.Message)) {
	m.mu.Lock()
	m.msgSubs = append(m.msgSubs, fn)
	m.mu.Unlock()
}

// OnStatus registers a user-status-change listener.
func (m *Manager) OnStatus(fn func(models.StatusChange)) {
	m.mu.Lock()
	m.statusSubs = append(m.statusSubs, fn)
	m.mu.Unlock()
}

// OnNotification registers a system-notification listener.
func (m *Manager) OnNotification(fn func(models.Notification)) {
	m.mu.Lock()
	m.notifSubs = append(m.notifSubs, fn)
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the identity of the live connection, if any.
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Connect establishes the connection for the given local identity.
// An empty identity does nothing: there is no connection without an
// authenticated user. Connecting again with the same identity is a
// no-op. A different identity tears down the old connection before the
// new one opens, so at most one connection is ever live.
func (m *Manager) Connect(identity string) error {
	if identity == "" {
		return nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.conn != nil && m.identity == identity {
		m.mu.Unlock()
		return nil
	}
	old := m.conn
	m.conn = nil
	m.identity = identity
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	m.setState(StateConnecting)

	conn, err := m.dial(identity, Handler{
		OnMessage:      m.dispatchMessage,
		OnStatus:       m.dispatchStatus,
		OnNotification: m.dispatchNotification,
		OnState:        m.setState,
	})
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(StateConnected)
	return nil
}

// Disconnect tears down the live connection. It is idempotent.
func (m *Manager) Disconnect() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.identity = ""
	m.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()
	m.setState(StateDisconnected)
}

// SendMessage publishes an outbound private message. It fails without
// side effects when no connection is live.
func (m *Manager) SendMessage(msg models.Message) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()
	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}
	return conn.PublishMessage(msg)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	subs := make([]func(State), len(m.stateSubs))
	copy(subs, m.stateSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (m *Manager) dispatchMessage(msg models.Message) {
	m.mu.Lock()
	subs := make([]func(models.Message), len(m.msgSubs))
	copy(subs, m.msgSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (m *Manager) dispatchStatus(sc models.StatusChange) {
	m.mu.Lock()
	subs := make([]func(models.StatusChange), len(m.statusSubs))
	copy(subs, m.statusSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(sc)
	}
}

func (m *Manager) dispatchNotification(n models.Notification) {
	m.mu.Lock()
	subs := make([]func(models.Notification), len(m.notifSubs))
	copy(subs, m.notifSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}
