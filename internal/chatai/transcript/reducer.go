// Package transcript holds the conversation transcript and folds streamed
// assistant fragments and user messages into it.
package transcript

import (
	"slices"
	"strings"
	"sync"

	"github.com/longkey1/chatai/internal/chatai"
)

// Snapshot is a consistent copy of the transcript.
type Snapshot struct {
	Messages []chatai.Message
	// Streaming is true while an assistant entry is still receiving
	// fragments.
	Streaming bool
	// Pending is the index of the in-progress assistant entry, -1 if none.
	Pending int
}

// Last returns the newest message, if any.
func (s Snapshot) Last() (chatai.Message, bool) {
	if len(s.Messages) == 0 {
		return chatai.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Reducer is the single owner of the transcript. Every operation is one
// atomic fold: readers never observe a partially applied update.
//
// The transcript is append-only. Role alternation is expected but not
// enforced; out-of-order input adds entries instead of dropping them.
type Reducer struct {
	mu       sync.Mutex
	messages []chatai.Message
	open     bool // a reply is being streamed
	pending  int  // index of the in-progress assistant entry, -1 if none yet
	buf      strings.Builder

	observers map[int]func(Snapshot)
	nextObs   int
}

// NewReducer creates a Reducer seeded with history (oldest first).
func NewReducer(history []chatai.Message) *Reducer {
	return &Reducer{
		messages:  slices.Clone(history),
		pending:   -1,
		observers: make(map[int]func(Snapshot)),
	}
}

// AppendUserMessage appends a user entry at the end of the transcript.
func (r *Reducer) AppendUserMessage(content string) {
	r.fold(func() {
		r.messages = append(r.messages, chatai.Message{Role: chatai.RoleUser, Content: content})
	})
}

// BeginAssistantMessage opens a new streamed reply with an empty buffer.
// If a reply is already open it is continued unchanged.
func (r *Reducer) BeginAssistantMessage() {
	r.fold(func() {
		r.begin()
	})
}

// ApplyDelta appends text to the open reply. The in-progress assistant entry
// is replaced with the accumulated text, or created at the end of the
// transcript when the reply has no entry yet. A reply is opened implicitly
// when none is open.
func (r *Reducer) ApplyDelta(text string) {
	r.fold(func() {
		r.begin()
		r.buf.WriteString(text)
		r.syncPending()
	})
}

// EndAssistantMessage finalizes the open reply and clears the buffer.
// A reply that received no fragments is recorded as an empty assistant
// entry. It is a no-op when no reply is open.
func (r *Reducer) EndAssistantMessage() {
	r.fold(func() {
		if !r.open {
			return
		}
		r.syncPending()
		r.open = false
		r.pending = -1
		r.buf.Reset()
	})
}

// Reset replaces the whole transcript and discards any open reply.
func (r *Reducer) Reset(history []chatai.Message) {
	r.fold(func() {
		r.messages = slices.Clone(history)
		r.open = false
		r.pending = -1
		r.buf.Reset()
	})
}

// Snapshot returns a copy of the current transcript.
func (r *Reducer) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of entries in the transcript.
func (r *Reducer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Subscribe registers fn to receive the snapshot produced by every
// subsequent fold. The returned function removes the subscription.
// Observers run on the folding goroutine after the fold has been committed.
func (r *Reducer) Subscribe(fn func(Snapshot)) func() {
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

func (r *Reducer) fold(apply func()) {
	r.mu.Lock()
	apply()
	snap := r.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(r.observers))
	for _, fn := range r.observers {
		observers = append(observers, fn)
	}
	r.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (r *Reducer) begin() {
	if r.open {
		return
	}
	r.open = true
	r.pending = -1
	r.buf.Reset()
}

// syncPending writes the buffer into the in-progress entry, creating it at
// the end of the transcript if it does not exist yet.
func (r *Reducer) syncPending() {
	content := r.buf.String()
	if r.pending >= 0 && r.pending < len(r.messages) {
		r.messages[r.pending].Content = content
		return
	}
	r.messages = append(r.messages, chatai.Message{Role: chatai.RoleAssistant, Content: content})
	r.pending = len(r.messages) - 1
}

func (r *Reducer) snapshotLocked() Snapshot {
	snap := Snapshot{
		Messages: slices.Clone(r.messages),
		Pending:  -1,
	}
	if r.open && r.pending >= 0 {
		snap.Streaming = true
		snap.Pending = r.pending
	}
	return snap
}
