package transcript

import (
	"strings"
	"sync"
	"testing"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(s string) chatai.Message      { return chatai.Message{Role: chatai.RoleUser, Content: s} }
func assistant(s string) chatai.Message { return chatai.Message{Role: chatai.RoleAssistant, Content: s} }

func TestReducer_StreamedReply(t *testing.T) {
	r := NewReducer(nil)

	r.AppendUserMessage("Hello")
	assert.Equal(t, []chatai.Message{user("Hello")}, r.Snapshot().Messages)

	r.BeginAssistantMessage()
	r.ApplyDelta("Hi")
	r.ApplyDelta(" there")

	snap := r.Snapshot()
	assert.Equal(t, []chatai.Message{user("Hello"), assistant("Hi there")}, snap.Messages)
	assert.True(t, snap.Streaming)
	assert.Equal(t, 1, snap.Pending)

	r.EndAssistantMessage()
	snap = r.Snapshot()
	assert.Equal(t, []chatai.Message{user("Hello"), assistant("Hi there")}, snap.Messages)
	assert.False(t, snap.Streaming)
	assert.Equal(t, -1, snap.Pending)
}

func TestReducer_FinalizedEntryIsNotMutated(t *testing.T) {
	r := NewReducer(nil)
	r.AppendUserMessage("Hello")
	r.BeginAssistantMessage()
	r.ApplyDelta("Hi there")
	r.EndAssistantMessage()

	// A stray fragment opens a new reply instead of touching the old one.
	r.ApplyDelta("late")

	snap := r.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, assistant("Hi there"), snap.Messages[1])
	assert.Equal(t, assistant("late"), snap.Messages[2])
}

func TestReducer_FoldPreservesOrder(t *testing.T) {
	deltas := []string{"The", " quick", " brown", "", " fox", " 🦊", "\n", "jumps"}

	r := NewReducer(nil)
	r.AppendUserMessage("q")
	r.BeginAssistantMessage()
	for _, d := range deltas {
		r.ApplyDelta(d)
	}
	r.EndAssistantMessage()

	last, ok := r.Snapshot().Last()
	require.True(t, ok)
	assert.Equal(t, strings.Join(deltas, ""), last.Content)
}

func TestReducer_AtMostOneInProgressEntry(t *testing.T) {
	r := NewReducer(nil)

	var snaps []Snapshot
	r.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	r.AppendUserMessage("one")
	r.BeginAssistantMessage()
	r.BeginAssistantMessage() // continues the open reply
	r.ApplyDelta("a")
	r.AppendUserMessage("two") // racing user input
	r.ApplyDelta("b")
	r.EndAssistantMessage()
	r.AppendUserMessage("three")
	r.ApplyDelta("c")
	r.EndAssistantMessage()

	require.NotEmpty(t, snaps)
	for i, s := range snaps {
		if s.Streaming {
			require.GreaterOrEqual(t, s.Pending, 0, "snapshot %d", i)
			assert.Equal(t, chatai.RoleAssistant, s.Messages[s.Pending].Role, "snapshot %d", i)
		} else {
			assert.Equal(t, -1, s.Pending, "snapshot %d", i)
		}
	}

	assert.Equal(t, []chatai.Message{
		user("one"),
		assistant("ab"),
		user("two"),
		user("three"),
		assistant("c"),
	}, r.Snapshot().Messages)
}

func TestReducer_DeltaBeforeUserMessageIsReconciled(t *testing.T) {
	r := NewReducer([]chatai.Message{user("earlier"), assistant("reply")})

	// The first fragment arrives before the optimistic user insert.
	r.BeginAssistantMessage()
	r.ApplyDelta("Hi")
	r.AppendUserMessage("Hello")
	r.ApplyDelta(" there")
	r.EndAssistantMessage()

	assert.Equal(t, []chatai.Message{
		user("earlier"),
		assistant("reply"),
		assistant("Hi there"),
		user("Hello"),
	}, r.Snapshot().Messages)
}

func TestReducer_ConsecutiveUserMessagesAreKept(t *testing.T) {
	r := NewReducer(nil)
	r.AppendUserMessage("a")
	r.AppendUserMessage("b")
	assert.Equal(t, []chatai.Message{user("a"), user("b")}, r.Snapshot().Messages)
}

func TestReducer_EmptyReply(t *testing.T) {
	r := NewReducer(nil)
	r.AppendUserMessage("Hello")
	r.BeginAssistantMessage()
	assert.False(t, r.Snapshot().Streaming)

	r.EndAssistantMessage()
	assert.Equal(t, []chatai.Message{user("Hello"), assistant("")}, r.Snapshot().Messages)

	// Ending again is a no-op.
	r.EndAssistantMessage()
	assert.Equal(t, 2, r.Len())
}

func TestReducer_Reset(t *testing.T) {
	r := NewReducer(nil)
	r.AppendUserMessage("Hello")
	r.BeginAssistantMessage()
	r.ApplyDelta("partial")

	history := []chatai.Message{user("x"), assistant("y")}
	r.Reset(history)
	history[0].Content = "mutated"

	snap := r.Snapshot()
	assert.Equal(t, []chatai.Message{user("x"), assistant("y")}, snap.Messages)
	assert.False(t, snap.Streaming)

	r.ApplyDelta("z")
	assert.Equal(t, assistant("z"), r.Snapshot().Messages[2])
}

func TestReducer_SnapshotIsACopy(t *testing.T) {
	r := NewReducer(nil)
	r.AppendUserMessage("Hello")

	snap := r.Snapshot()
	snap.Messages[0].Content = "changed"

	assert.Equal(t, "Hello", r.Snapshot().Messages[0].Content)
}

func TestReducer_Unsubscribe(t *testing.T) {
	r := NewReducer(nil)
	calls := 0
	cancel := r.Subscribe(func(Snapshot) { calls++ })

	r.AppendUserMessage("a")
	cancel()
	r.AppendUserMessage("b")

	assert.Equal(t, 1, calls)
}

func TestReducer_ConcurrentReadersSeeWholeFolds(t *testing.T) {
	r := NewReducer(nil)
	r.AppendUserMessage("q")
	r.BeginAssistantMessage()

	const n = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			r.ApplyDelta("x")
		}
		r.EndAssistantMessage()
	}()

	for i := 0; i < n; i++ {
		snap := r.Snapshot()
		if last, ok := snap.Last(); ok && last.Role == chatai.RoleAssistant {
			// Content only ever grows by whole fragments.
			assert.Equal(t, strings.Repeat("x", len(last.Content)), last.Content)
		}
	}
	wg.Wait()

	last, _ := r.Snapshot().Last()
	assert.Equal(t, strings.Repeat("x", n), last.Content)
}
