package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/chatai/api"
	"github.com/longkey1/chatai/internal/chatai/session"
	"github.com/longkey1/chatai/internal/chatai/transcript"
)

type fakeStreamer struct {
	body string
}

func (f fakeStreamer) Chat(context.Context, api.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type fakeDirectory struct {
	latest      chatai.ID
	refs        []chatai.ConversationRef
	transcripts map[chatai.ID][]chatai.Message
}

func (f fakeDirectory) ListConversations(context.Context, chatai.ID) ([]chatai.ConversationRef, error) {
	return f.refs, nil
}

func (f fakeDirectory) LoadTranscript(_ context.Context, _ chatai.ID, id chatai.ID) ([]chatai.Message, error) {
	return f.transcripts[id], nil
}

func (f fakeDirectory) LatestConversationID(context.Context) (chatai.ID, error) {
	return f.latest, nil
}

func event(text string) string {
	return fmt.Sprintf("data: {\"message\": %q}\n\n", text)
}

func newTestModel(t *testing.T, streamer fakeStreamer, dir fakeDirectory) Model {
	t.Helper()
	orch := session.New(streamer, dir, chatai.Identity{ID: "1", Username: "alice"})
	m := NewModel(context.Background(), orch, "")
	t.Cleanup(m.Close)
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// run applies msg and executes the command it returns, feeding the result
// back into the model.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	return update(t, next.(Model), cmd())
}

func TestModel_SubmitStreamsReply(t *testing.T) {
	m := newTestModel(t,
		fakeStreamer{body: event("Hi") + event(" there")},
		fakeDirectory{latest: "c1", refs: []chatai.ConversationRef{{ID: "c1", Title: "Greeting"}}},
	)

	m.input.SetValue("Hello")
	m = run(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, m.input.Value())
	assert.NoError(t, m.err)
	assert.Equal(t, session.StateIdle, m.state)
	assert.Equal(t, []chatai.Message{
		{Role: chatai.RoleUser, Content: "Hello"},
		{Role: chatai.RoleAssistant, Content: "Hi there"},
	}, m.snapshot.Messages)

	view := m.View()
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "Hi there")
	assert.Contains(t, view, "Greeting")
	assert.Contains(t, view, "conversation c1")
}

func TestModel_SubmitWhileBusy(t *testing.T) {
	m := newTestModel(t, fakeStreamer{}, fakeDirectory{})
	m.state = session.StateStreaming
	m.input.SetValue("again")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, "again", m.input.Value())
	assert.Contains(t, m.status, "wait")
}

func TestModel_SubmitWhileLoading(t *testing.T) {
	dir := fakeDirectory{refs: []chatai.ConversationRef{{ID: "c1", Title: "first"}}}
	m := newTestModel(t, fakeStreamer{}, dir)
	m = update(t, m, refreshedMsg{refs: dir.refs})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	next, openCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, openCmd)

	m.input.SetValue("hello")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, "hello", m.input.Value())
	assert.Equal(t, "loading...", m.status)

	m = update(t, m, openCmd())
	assert.Zero(t, m.loading)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
}

func TestModel_BusySubmitKeepsText(t *testing.T) {
	m := newTestModel(t, fakeStreamer{}, fakeDirectory{})

	m = update(t, m, submitDoneMsg{text: "hello", err: chatai.ErrBusy})

	assert.Equal(t, "hello", m.input.Value())
	assert.NoError(t, m.err)
	assert.Contains(t, m.status, "not sent")

	m.input.SetValue("newer")
	m = update(t, m, submitDoneMsg{text: "hello", err: chatai.ErrBusy})
	assert.Equal(t, "newer", m.input.Value())
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	m := newTestModel(t, fakeStreamer{}, fakeDirectory{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_OpenFromSidebar(t *testing.T) {
	dir := fakeDirectory{
		refs: []chatai.ConversationRef{{ID: "c2", Title: "second"}, {ID: "c1", Title: "first"}},
		transcripts: map[chatai.ID][]chatai.Message{
			"c1": {{Role: chatai.RoleUser, Content: "one"}, {Role: chatai.RoleAssistant, Content: "1"}},
		},
	}
	m := newTestModel(t, fakeStreamer{}, dir)
	m = update(t, m, refreshedMsg{refs: dir.refs})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusSidebar, m.focus)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)

	m = run(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, focusInput, m.focus)
	assert.Equal(t, chatai.ID("c1"), m.orch.ConversationID())
	assert.Equal(t, dir.transcripts["c1"], m.snapshot.Messages)
	assert.Contains(t, m.status, "c1")
}

func TestModel_NewConversation(t *testing.T) {
	dir := fakeDirectory{
		latest: "c1",
		transcripts: map[chatai.ID][]chatai.Message{
			"c1": {{Role: chatai.RoleUser, Content: "one"}},
		},
	}
	m := newTestModel(t, fakeStreamer{}, dir)
	m = update(t, m, m.openCmd("")())
	require.Len(t, m.snapshot.Messages, 1)

	m = run(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Empty(t, m.snapshot.Messages)
	assert.Empty(t, m.orch.ConversationID())
	assert.Equal(t, "new conversation", m.status)
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t, fakeStreamer{}, fakeDirectory{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ChangeNotification(t *testing.T) {
	m := newTestModel(t, fakeStreamer{}, fakeDirectory{})

	m.orch.Transcript().AppendUserMessage("typed elsewhere")
	msg := waitForChange(m.changes)()
	assert.IsType(t, changedMsg{}, msg)

	m = update(t, m, msg)
	assert.Len(t, m.snapshot.Messages, 1)
}

func TestRenderTranscript(t *testing.T) {
	tests := []struct {
		name     string
		snap     transcript.Snapshot
		state    session.State
		contains []string
		excludes []string
	}{
		{
			name:     "empty",
			snap:     transcript.Snapshot{Pending: -1},
			state:    session.StateIdle,
			contains: []string{"Send a message"},
		},
		{
			name: "waiting for first fragment",
			snap: transcript.Snapshot{
				Messages: []chatai.Message{{Role: chatai.RoleUser, Content: "Hello"}},
				Pending:  -1,
			},
			state:    session.StateSending,
			contains: []string{"You", "Hello", "Assistant", "SPIN"},
		},
		{
			name: "streaming",
			snap: transcript.Snapshot{
				Messages: []chatai.Message{
					{Role: chatai.RoleUser, Content: "Hello"},
					{Role: chatai.RoleAssistant, Content: "Hi"},
				},
				Streaming: true,
				Pending:   1,
			},
			state:    session.StateStreaming,
			contains: []string{"Hi" + streamCursor},
			excludes: []string{"SPIN"},
		},
		{
			name: "finished",
			snap: transcript.Snapshot{
				Messages: []chatai.Message{
					{Role: chatai.RoleUser, Content: "Hello"},
					{Role: chatai.RoleAssistant, Content: "Hi there"},
				},
				Pending: -1,
			},
			state:    session.StateCompleting,
			contains: []string{"Hi there"},
			excludes: []string{streamCursor, "SPIN"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderTranscript(tt.snap, tt.state, "SPIN", 60)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestVisibleWindow(t *testing.T) {
	refs := make([]chatai.ConversationRef, 10)
	for i := range refs {
		refs[i] = chatai.ConversationRef{ID: chatai.ID(fmt.Sprint(i))}
	}

	tests := []struct {
		name       string
		cursor     int
		rows       int
		wantFirst  chatai.ID
		wantLen    int
		wantOffset int
	}{
		{"fits", 0, 20, "0", 10, 0},
		{"cursor in first page", 2, 4, "0", 4, 0},
		{"cursor past first page", 6, 4, "3", 4, 3},
		{"cursor at end", 9, 4, "6", 4, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, offset := visibleWindow(refs, tt.cursor, tt.rows)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantFirst, got[0].ID)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
