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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/talentwire/chatsync/client/chat"
	"github.com/talentwire/chatsync/client/config"
	"github.com/talentwire/chatsync/client/connection"
	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/models"
	"github.com/talentwire/chatsync/client/notify"
	"github.com/talentwire/chatsync/client/remote"
	"github.com/talentwire/chatsync/client/session"
)

var (
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	peerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false)
)

// stateChangedMsg is pushed into the program whenever the session's
// observable state changes.
type stateChangedMsg struct{}

// sendResultMsg delivers the outcome of an asynchronous send.
type sendResultMsg struct {
	err error
}

// sendCmd performs the send off the event loop; profile lookups and the
// transport publish block, so they must never run inside Update.
func sendCmd(sess *chat.Session, text string) tea.Cmd {
	return func() tea.Msg {
		sess.SetBuffer(text)
		return sendResultMsg{err: sess.Send(context.Background())}
	}
}

// messageSpan records which viewport lines a message occupies, so
// visibility ratios can be computed from the scroll offset.
type messageSpan struct {
	id    string
	start int
	end   int // exclusive
}

type model struct {
	sess *chat.Session

	viewport  viewport.Model
	input     textinput.Model
	spans     []messageSpan
	width     int
	height    int
	ready     bool
	statusErr string
}

func newModel(sess *chat.Session) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.CharLimit = 2000

	return model{sess: sess, input: ti}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chrome := 4 // header + input border + input + status
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.sess.ClearReply()
			return m, nil
		case "enter":
			text := m.input.Value()
			m.input.SetValue("")
			return m, sendCmd(m.sess, text)
		}

	case sendResultMsg:
		if msg.err != nil {
			m.statusErr = msg.err.Error()
			// The composer keeps the buffer on failure; put it back.
			m.input.SetValue(m.sess.Buffer())
		} else {
			m.statusErr = ""
		}
		return m, nil

	case stateChangedMsg:
		m.refresh()
		m.viewport.GotoBottom()
		m.reportVisibility()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	before := m.viewport.YOffset
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if m.viewport.YOffset != before {
		m.reportVisibility()
	}

	return m, tea.Batch(cmds...)
}

// refresh re-renders the timeline into the viewport and rebuilds the
// per-message line spans.
func (m *model) refresh() {
	if !m.ready {
		return
	}

	var b strings.Builder
	m.spans = m.spans[:0]
	line := 0

	for _, msg := range m.sess.Messages() {
		rendered := m.renderMessage(msg)
		lines := strings.Count(rendered, "\n") + 1
		m.spans = append(m.spans, messageSpan{id: msg.ID, start: line, end: line + lines})
		line += lines
		b.WriteString(rendered)
		b.WriteByte('\n')
	}

	m.viewport.SetContent(b.String())
}

func (m *model) renderMessage(msg models.Message) string {
	var b strings.Builder

	name := msg.SenderName
	if name == "" {
		name = msg.Sender
	}
	style := peerStyle
	marker := ""
	if msg.Sender != m.sess.Recipient() {
		style = selfStyle
		switch {
		case msg.Viewed:
			marker = " ✓✓"
		case msg.Status == models.StatusConfirmed:
			marker = " ✓"
		default:
			marker = " …"
		}
	}

	b.WriteString(style.Render(name))
	b.WriteString(metaStyle.Render(fmt.Sprintf(" %s%s", msg.CreatedAt.Format("15:04"), marker)))
	b.WriteByte('\n')

	if msg.ReplyTo != nil {
		b.WriteString(replyStyle.Render("↳ " + msg.ReplyTo.Sender + ": " + truncate(msg.ReplyTo.Content, 60)))
		b.WriteByte('\n')
	}

	content := msg.Content
	if msg.IsFile() {
		content = fmt.Sprintf("[file] %s (%d bytes)", msg.FileName, msg.FileSize)
	}
	b.WriteString(content)

	return b.String()
}

// reportVisibility computes, for every message, the fraction of its
// lines currently inside the viewport and feeds it to the session,
// which drives read receipts.
func (m *model) reportVisibility() {
	top := m.viewport.YOffset
	bottom := top + m.viewport.Height

	for _, span := range m.spans {
		total := span.end - span.start
		if total <= 0 {
			continue
		}
		visStart := max(span.start, top)
		visEnd := min(span.end, bottom)
		visible := visEnd - visStart
		if visible <= 0 {
			continue
		}
		m.sess.MarkVisible(span.id, float64(visible)/float64(total))
	}
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	recipient := m.sess.Recipient()
	if recipient == "" {
		recipient = "(no conversation)"
	}
	header := statusStyle.Render(recipient) +
		metaStyle.Render(fmt.Sprintf("  %s  unread:%d", m.sess.ConnState(), m.sess.UnreadCount()))

	status := ""
	if reply := m.sess.PendingReply(); reply != nil {
		status = replyStyle.Render("replying to " + reply.Sender + " (esc to cancel)")
	}
	if m.statusErr != "" {
		status = metaStyle.Render("error: " + m.statusErr)
	}

	return header + "\n" +
		m.viewport.View() + "\n" +
		inputStyle.Width(m.width).Render(m.input.View()) + "\n" +
		status
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func main() {
	configPath := flag.String("config", os.Getenv("CHATSYNC_CONFIG"), "path to config file")
	recipient := flag.String("to", "", "conversation peer identity")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logs must not write to the terminal the TUI owns.
	if os.Getenv("CHATSYNC_LOG_SINK") == "" {
		os.Setenv("CHATSYNC_LOG_SINK", "file:chatsync-tui.log")
	}
	logging.Init(cfg.Logging.Level)

	var cache chat.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cache = session.NewCache(rdb)
	}

	sess := chat.New(chat.Options{
		Self:     cfg.Identity.Self,
		PeerRole: cfg.PeerRole(),
		Conn:     connection.NewManager(connection.NATSDialer(cfg.NATS.URL)),
		Backend:  remote.New(cfg.Backend.BaseURL, cfg.Backend.Token),
		Cache:    cache,
		Audio:    notify.BellPlayer{W: os.Stderr},
	})

	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer sess.Close(ctx)

	if *recipient != "" {
		sess.SelectRecipient(ctx, *recipient)
	}

	p := tea.NewProgram(newModel(sess), tea.WithAltScreen())
	sess.Subscribe(func() {
		p.Send(stateChangedMsg{})
	})

	if _, err := p.Run(); err != nil {
		log.Fatalf("TUI failed: %v", err)
	}
}
