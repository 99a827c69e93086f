// Package session drives a single chat exchange at a time: it submits the
// user's message, folds the streamed reply into the transcript and resolves
// the conversation id once the server has closed the stream.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/chatai/api"
	"github.com/longkey1/chatai/internal/chatai/metrics"
	"github.com/longkey1/chatai/internal/chatai/stream"
	"github.com/longkey1/chatai/internal/chatai/transcript"
)

// Streamer opens the streamed reply for one message.
type Streamer interface {
	Chat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
}

// Directory lists conversations and loads their transcripts.
// *directory.Loader implements it.
type Directory interface {
	ListConversations(ctx context.Context, userID chatai.ID) ([]chatai.ConversationRef, error)
	LoadTranscript(ctx context.Context, userID, conversationID chatai.ID) ([]chatai.Message, error)
	LatestConversationID(ctx context.Context) (chatai.ID, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTranscript sets the reducer the orchestrator folds into.
func WithTranscript(r *transcript.Reducer) Option {
	return func(o *Orchestrator) {
		o.transcript = r
	}
}

// WithConversation binds the orchestrator to an existing conversation.
func WithConversation(id chatai.ID) Option {
	return func(o *Orchestrator) {
		o.conversationID = id
	}
}

// WithMetrics records exchange outcomes and stream counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func withIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// Orchestrator owns the transcript of the open conversation and at most one
// in-flight exchange.
type Orchestrator struct {
	streamer   Streamer
	directory  Directory
	user       chatai.Identity
	transcript *transcript.Reducer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	newID      func() string

	// foldMu serializes transcript writes made on behalf of an exchange with
	// abandonment and navigation, so a discarded exchange never writes again.
	// When both are needed foldMu is taken before mu.
	foldMu sync.Mutex

	mu             sync.Mutex
	state          State
	lastErr        error
	conversationID chatai.ID
	conversations  []chatai.ConversationRef
	active         *StreamSession
	cancel         context.CancelFunc
	navigating     int // OpenConversation/NewConversation calls in progress
	listeners      map[int]func(State)
	nextListener   int
}

// New creates an Orchestrator for the given user.
func New(streamer Streamer, dir Directory, user chatai.Identity, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		streamer:  streamer,
		directory: dir,
		user:      user,
		logger:    slog.New(slog.DiscardHandler),
		newID:     uuid.NewString,
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.transcript == nil {
		o.transcript = transcript.NewReducer(nil)
	}
	return o
}

// Transcript returns the reducer holding the open conversation.
func (o *Orchestrator) Transcript() *transcript.Reducer {
	return o.transcript
}

// Submit sends text as a new user message and blocks until the reply has
// been streamed in full, has failed, or has been abandoned.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return chatai.ErrEmptyMessage
	}

	o.mu.Lock()
	if o.active != nil || o.navigating > 0 {
		o.mu.Unlock()
		return chatai.ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	sess := &StreamSession{
		ID:             o.newID(),
		ConversationID: o.conversationID,
		Active:         true,
	}
	o.active = sess
	o.cancel = cancel
	o.lastErr = nil
	o.mu.Unlock()
	defer cancel()

	logger := o.logger.With("exchange_id", sess.ID)
	o.transition(sess, StateSending)
	if !o.foldFor(sess, func() { o.transcript.AppendUserMessage(text) }) {
		return chatai.ErrExchangeAbandoned
	}

	logger.Debug("sending message", "conversation_id", sess.ConversationID.String(), "length", len(text))
	body, err := o.streamer.Chat(ctx, api.ChatRequest{
		Message:        text,
		ConversationID: sess.ConversationID,
		RequestID:      sess.ID,
	})
	if err != nil {
		return o.fail(sess, logger, err)
	}
	defer body.Close()

	o.transition(sess, StateStreaming)
	if !o.foldFor(sess, o.transcript.BeginAssistantMessage) {
		return chatai.ErrExchangeAbandoned
	}

	onMalformed := func(err error) {
		logger.Debug("skipping malformed event", "error", err)
		o.metrics.MalformedEvent()
	}
	for delta, err := range stream.Events(ctx, body, onMalformed) {
		if err != nil {
			return o.fail(sess, logger, err)
		}
		o.mu.Lock()
		sess.AccumulatedText += delta.Text
		o.mu.Unlock()
		if !o.foldFor(sess, func() { o.transcript.ApplyDelta(delta.Text) }) {
			return chatai.ErrExchangeAbandoned
		}
		o.metrics.Delta(len(delta.Text))
	}

	o.transition(sess, StateCompleting)
	if !o.foldFor(sess, o.transcript.EndAssistantMessage) {
		return chatai.ErrExchangeAbandoned
	}
	o.complete(ctx, sess, logger)

	o.mu.Lock()
	if o.active != sess {
		o.mu.Unlock()
		return chatai.ErrExchangeAbandoned
	}
	o.finishLocked(sess)
	o.mu.Unlock()
	o.metrics.Exchange(metrics.OutcomeCompleted)
	logger.Debug("exchange completed", "bytes", len(sess.AccumulatedText))
	o.notify(StateIdle)
	return nil
}

// complete resolves the conversation id and refreshes the directory.
// Failures are logged; the exchange has already succeeded.
func (o *Orchestrator) complete(ctx context.Context, sess *StreamSession, logger *slog.Logger) {
	if sess.ConversationID == "" {
		id, err := o.directory.LatestConversationID(ctx)
		switch {
		case err != nil:
			logger.Warn("failed to resolve conversation id", "error", err)
		case id != "":
			o.mu.Lock()
			if o.active == sess {
				sess.ConversationID = id
				o.conversationID = id
			}
			o.mu.Unlock()
			logger.Debug("conversation id resolved", "conversation_id", id.String())
		}
	}

	refs, err := o.directory.ListConversations(ctx, o.user.ID)
	if err != nil {
		logger.Warn("failed to refresh conversation directory", "error", err)
		return
	}
	o.mu.Lock()
	if o.active == sess {
		o.conversations = refs
	}
	o.mu.Unlock()
}

func (o *Orchestrator) fail(sess *StreamSession, logger *slog.Logger, err error) error {
	if !o.foldFor(sess, o.transcript.EndAssistantMessage) {
		return chatai.ErrExchangeAbandoned
	}

	o.mu.Lock()
	if o.active != sess {
		o.mu.Unlock()
		return chatai.ErrExchangeAbandoned
	}
	o.state = StateFailed
	o.lastErr = err
	o.mu.Unlock()
	o.notify(StateFailed)

	outcome := metrics.OutcomeFailed
	if chatai.IsAuthRejected(err) {
		outcome = metrics.OutcomeRejected
	}
	o.metrics.Exchange(outcome)
	logger.Error("exchange failed", "error", err, "bytes", len(sess.AccumulatedText))

	o.mu.Lock()
	if o.active == sess {
		o.finishLocked(sess)
	}
	o.mu.Unlock()
	o.notify(StateIdle)
	return err
}

// finishLocked tears down sess and returns to Idle. o.mu must be held.
func (o *Orchestrator) finishLocked(sess *StreamSession) {
	sess.Active = false
	o.active = nil
	o.cancel = nil
	o.state = StateIdle
}

// foldFor runs apply against the transcript unless sess has been discarded.
func (o *Orchestrator) foldFor(sess *StreamSession, apply func()) bool {
	o.foldMu.Lock()
	defer o.foldMu.Unlock()
	if sess.discarded {
		return false
	}
	apply()
	return true
}

// Abandon cancels the in-flight exchange, if any, without waiting for it.
// Partial reply content already folded stays in the transcript.
func (o *Orchestrator) Abandon() {
	o.abandon(false)
}

// abandon discards the active exchange. The session is marked discarded and
// its reply closed before it is released, so no later exchange can start
// while it may still write. With navigate set, Submit is rejected until
// endNavigation is called.
func (o *Orchestrator) abandon(navigate bool) {
	o.foldMu.Lock()
	o.mu.Lock()
	if navigate {
		o.navigating++
	}
	sess, cancel := o.active, o.cancel
	if sess != nil {
		sess.discarded = true
		o.finishLocked(sess)
	}
	o.mu.Unlock()
	if sess != nil {
		o.transcript.EndAssistantMessage()
	}
	o.foldMu.Unlock()

	if sess == nil {
		return
	}
	cancel()
	o.metrics.Exchange(metrics.OutcomeAbandoned)
	o.logger.Debug("exchange abandoned", "exchange_id", sess.ID)
	o.notify(StateIdle)
}

func (o *Orchestrator) endNavigation() {
	o.mu.Lock()
	o.navigating--
	o.mu.Unlock()
}

// rebind replaces the transcript and the bound conversation id in one step.
func (o *Orchestrator) rebind(id chatai.ID, msgs []chatai.Message) {
	o.foldMu.Lock()
	defer o.foldMu.Unlock()
	o.transcript.Reset(msgs)
	o.mu.Lock()
	o.conversationID = id
	o.mu.Unlock()
}

// OpenConversation abandons any active exchange and loads the transcript of
// the given conversation. An empty id opens the most recent conversation.
// Submissions are rejected with ErrBusy until it returns.
func (o *Orchestrator) OpenConversation(ctx context.Context, id chatai.ID) error {
	o.abandon(true)
	defer o.endNavigation()

	if id == "" {
		latest, err := o.directory.LatestConversationID(ctx)
		if err != nil {
			return err
		}
		id = latest
	}

	var msgs []chatai.Message
	if id != "" {
		var err error
		msgs, err = o.directory.LoadTranscript(ctx, o.user.ID, id)
		if err != nil {
			return err
		}
	}

	o.rebind(id, msgs)
	return nil
}

// NewConversation abandons any active exchange, unbinds the conversation id
// and clears the transcript. The next submission starts a new conversation.
func (o *Orchestrator) NewConversation() {
	o.abandon(true)
	defer o.endNavigation()

	o.rebind("", nil)
}

// RefreshDirectory reloads the conversation listing.
func (o *Orchestrator) RefreshDirectory(ctx context.Context) ([]chatai.ConversationRef, error) {
	refs, err := o.directory.ListConversations(ctx, o.user.ID)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.conversations = refs
	o.mu.Unlock()
	return append([]chatai.ConversationRef(nil), refs...), nil
}

// Conversations returns the last fetched conversation listing.
func (o *Orchestrator) Conversations() []chatai.ConversationRef {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]chatai.ConversationRef(nil), o.conversations...)
}

// ConversationID returns the bound conversation id, empty if unresolved.
func (o *Orchestrator) ConversationID() chatai.ID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversationID
}

// State returns the current exchange state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the error of the most recent failed exchange.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Session returns a copy of the active exchange.
func (o *Orchestrator) Session() (StreamSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return StreamSession{}, false
	}
	return StreamSession{
		ID:              o.active.ID,
		ConversationID:  o.active.ConversationID,
		AccumulatedText: o.active.AccumulatedText,
		Active:          o.active.Active,
	}, true
}

// OnStateChange registers fn to be called after every state transition.
// Listeners run on the goroutine that caused the transition.
func (o *Orchestrator) OnStateChange(fn func(State)) func() {
	o.mu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) transition(sess *StreamSession, s State) {
	o.mu.Lock()
	if o.active != sess {
		o.mu.Unlock()
		return
	}
	o.state = s
	o.mu.Unlock()
	o.notify(s)
}

func (o *Orchestrator) notify(s State) {
	o.mu.Lock()
	fns := make([]func(State), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// IsAbandoned reports whether err is the result of an abandoned exchange.
func IsAbandoned(err error) bool {
	return errors.Is(err, chatai.ErrExchangeAbandoned)
}
