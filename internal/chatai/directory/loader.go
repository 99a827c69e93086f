// Package directory loads the conversation list and conversation
// transcripts of the authenticated user.
package directory

import (
	"context"
	"log/slog"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/chatai/cache"
	"github.com/longkey1/chatai/internal/chatai/metrics"
)

const (
	OpList     = "list"
	OpHistory  = "history"
	OpLatestID = "latest-id"
)

// Backend is the server side of the directory. *api.Client implements it.
type Backend interface {
	Conversations(ctx context.Context) ([]chatai.ConversationRef, error)
	History(ctx context.Context, userID, conversationID chatai.ID) ([]chatai.Message, error)
	LatestConversationID(ctx context.Context) (chatai.ID, error)
}

// Loader fetches directory data and wraps failures as
// *chatai.DirectoryUnavailableError. A rejected credential is returned as
// *chatai.AuthRejectedError.
//
// With a cache attached, successful reads are written through and a failed
// read is answered from the cache when an entry exists.
type Loader struct {
	backend Backend
	cache   cache.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache attaches a cache store.
func WithCache(store cache.Store) Option {
	return func(l *Loader) {
		l.cache = store
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader over backend.
func NewLoader(backend Backend, opts ...Option) *Loader {
	l := &Loader{
		backend: backend,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListConversations returns the user's conversations in server order.
func (l *Loader) ListConversations(ctx context.Context, userID chatai.ID) ([]chatai.ConversationRef, error) {
	refs, err := l.backend.Conversations(ctx)
	if err == nil {
		l.storeConversations(ctx, userID, refs)
		return refs, nil
	}
	if chatai.IsAuthRejected(err) {
		return nil, err
	}

	if l.cache != nil {
		cached, ok, cerr := l.cache.GetConversations(ctx, userID)
		if cerr == nil && ok {
			l.fallback(OpList, err)
			return cached, nil
		}
	}
	return nil, chatai.NewDirectoryUnavailableError(OpList, err)
}

// LoadTranscript returns the transcript of conversationID, oldest first.
// An empty conversationID loads the most recent conversation; when the user
// has none the transcript is empty.
func (l *Loader) LoadTranscript(ctx context.Context, userID, conversationID chatai.ID) ([]chatai.Message, error) {
	if conversationID == "" {
		latest, err := l.LatestConversationID(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return []chatai.Message{}, nil
		}
		conversationID = latest
	}

	msgs, err := l.backend.History(ctx, userID, conversationID)
	if err == nil {
		l.storeTranscript(ctx, userID, conversationID, msgs)
		return msgs, nil
	}
	if chatai.IsAuthRejected(err) {
		return nil, err
	}

	if l.cache != nil {
		cached, ok, cerr := l.cache.GetTranscript(ctx, userID, conversationID)
		if cerr == nil && ok {
			l.fallback(OpHistory, err)
			return cached, nil
		}
	}
	return nil, chatai.NewDirectoryUnavailableError(OpHistory, err)
}

// LatestConversationID returns the most recently created conversation of the
// user, or an empty ID when there is none.
func (l *Loader) LatestConversationID(ctx context.Context) (chatai.ID, error) {
	id, err := l.backend.LatestConversationID(ctx)
	if err != nil {
		if chatai.IsAuthRejected(err) {
			return "", err
		}
		return "", chatai.NewDirectoryUnavailableError(OpLatestID, err)
	}
	return id, nil
}

func (l *Loader) storeConversations(ctx context.Context, userID chatai.ID, refs []chatai.ConversationRef) {
	if l.cache == nil {
		return
	}
	if err := l.cache.PutConversations(ctx, userID, refs); err != nil {
		l.logger.Warn("caching conversation list failed", "error", err)
	}
}

func (l *Loader) storeTranscript(ctx context.Context, userID, conversationID chatai.ID, msgs []chatai.Message) {
	if l.cache == nil {
		return
	}
	if err := l.cache.PutTranscript(ctx, userID, conversationID, msgs); err != nil {
		l.logger.Warn("caching transcript failed", "conversation_id", conversationID, "error", err)
	}
}

func (l *Loader) fallback(op string, err error) {
	l.logger.Warn("directory unavailable, serving cached copy", "op", op, "error", err)
	l.metrics.DirectoryFallback(op)
}
