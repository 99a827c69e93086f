// Package tui is the interactive renderer: a conversation sidebar, the live
// transcript and an input line, driven by a session.Orchestrator.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/chatai/session"
	"github.com/longkey1/chatai/internal/chatai/transcript"
)

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// changedMsg signals that the transcript or the exchange state moved.
type changedMsg struct{}

type submitDoneMsg struct {
	text string
	err  error
}

type openedMsg struct {
	id  chatai.ID
	err error
}

type refreshedMsg struct {
	refs []chatai.ConversationRef
	err  error
}

type Model struct {
	ctx     context.Context
	orch    *session.Orchestrator
	initial chatai.ID
	changes chan struct{}
	unsub   []func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	focus         focus
	cursor        int
	conversations []chatai.ConversationRef
	snapshot      transcript.Snapshot
	state         session.State
	status        string
	err           error
	loading       int // navigations started from the keyboard and not yet done

	width  int
	height int
}

// NewModel creates the renderer. initial is the conversation to open on
// start; empty opens the most recent one. Call Close when the program exits.
func NewModel(ctx context.Context, orch *session.Orchestrator, initial chatai.ID) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 8000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle

	m := Model{
		ctx:      ctx,
		orch:     orch,
		initial:  initial,
		changes:  make(chan struct{}, 1),
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
		width:    100,
		height:   30,
	}

	// Observers run on the folding goroutine and must never block it.
	notify := func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	}
	m.unsub = append(m.unsub,
		orch.Transcript().Subscribe(func(transcript.Snapshot) { notify() }),
		orch.OnStateChange(func(session.State) { notify() }),
	)
	m.layout()
	return m
}

// Close detaches the model from the orchestrator and abandons any exchange
// still streaming.
func (m Model) Close() {
	for _, fn := range m.unsub {
		fn()
	}
	m.orch.Abandon()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForChange(m.changes),
		m.openCmd(m.initial),
		m.refreshCmd(),
	)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) submitCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{text: text, err: m.orch.Submit(m.ctx, text)}
	}
}

func (m Model) openCmd(id chatai.ID) tea.Cmd {
	return func() tea.Msg {
		err := m.orch.OpenConversation(m.ctx, id)
		return openedMsg{id: m.orch.ConversationID(), err: err}
	}
}

func (m Model) newConversationCmd() tea.Cmd {
	return func() tea.Msg {
		m.orch.NewConversation()
		return openedMsg{}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		refs, err := m.orch.RefreshDirectory(m.ctx)
		return refreshedMsg{refs: refs, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.render()
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case changedMsg:
		m.sync()
		return m, waitForChange(m.changes)

	case submitDoneMsg:
		m.sync()
		switch {
		case msg.err == nil:
			m.err = nil
			m.status = ""
		case errors.Is(msg.err, chatai.ErrExchangeAbandoned):
			m.status = "reply abandoned"
		case errors.Is(msg.err, chatai.ErrBusy):
			// Give the text back unless something new has been typed.
			if m.input.Value() == "" {
				m.input.SetValue(msg.text)
				m.input.CursorEnd()
			}
			m.status = "busy, message not sent"
		default:
			m.err = msg.err
		}
		return m, nil

	case openedMsg:
		if m.loading > 0 {
			m.loading--
		}
		m.sync()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if msg.id == "" {
			m.status = "new conversation"
		} else {
			m.status = "opened " + msg.id.String()
		}
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.conversations = msg.refs
		m.clampCursor()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Busy() {
			m.render()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.New):
		m.focusInput()
		m.loading++
		return m, m.newConversationCmd()

	case key.Matches(msg, keys.Refresh):
		m.status = "refreshing..."
		return m, m.refreshCmd()

	case key.Matches(msg, keys.Focus):
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			m.focusInput()
		}
		return m, nil

	case msg.String() == "pgup" || msg.String() == "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.conversations)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Open):
			if len(m.conversations) == 0 {
				return m, nil
			}
			m.focusInput()
			m.status = "loading..."
			m.loading++
			return m, m.openCmd(m.conversations[m.cursor].ID)
		}
		return m, nil
	}

	if key.Matches(msg, keys.Submit) {
		text := m.input.Value()
		if m.state.Busy() {
			m.status = "wait for the reply to finish, or press ctrl+n"
			return m, nil
		}
		if m.loading > 0 {
			m.status = "loading..."
			return m, nil
		}
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.err = nil
		m.status = ""
		return m, m.submitCmd(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) focusInput() {
	m.focus = focusInput
	m.input.Focus()
}

// sync pulls the latest state from the orchestrator.
func (m *Model) sync() {
	m.snapshot = m.orch.Transcript().Snapshot()
	m.state = m.orch.State()
	if refs := m.orch.Conversations(); len(refs) > 0 {
		m.conversations = refs
	}
	m.clampCursor()
	m.render()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.conversations) {
		m.cursor = max(0, len(m.conversations)-1)
	}
}

func (m *Model) layout() {
	w := m.width - sidebarWidth - 2
	if w < 20 {
		w = 20
	}
	// title, input, status and help lines
	h := m.height - 4
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
	m.help.Width = m.width
}

// render refreshes the transcript pane, following the tail while streaming.
func (m *Model) render() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderTranscript(m.snapshot, m.state, m.spinner.View(), m.viewport.Width))
	if atBottom || m.state.Busy() {
		m.viewport.GotoBottom()
	}
}

func (m Model) statusLine() string {
	id := m.orch.ConversationID()
	conv := "new conversation"
	if id != "" {
		conv = "conversation " + id.Short()
	}
	line := fmt.Sprintf("%s · %s", conv, m.state)
	if m.status != "" {
		line += " · " + m.status
	}
	return line
}
