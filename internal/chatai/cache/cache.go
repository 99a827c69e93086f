// Package cache keeps the last known conversation listings and transcripts
// so the directory can still be rendered when the server is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/longkey1/chatai/internal/chatai"
)

// StoreType represents the type of cache store.
type StoreType string

const (
	StoreTypeNone   StoreType = "none"
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"

	defaultTTL = 24 * time.Hour
)

var (
	ErrInvalidConfig    = errors.New("invalid cache configuration")
	ErrInvalidStoreType = errors.New("invalid cache store type")
)

// Store defines the cache operations used by the directory loader.
// Get methods report a miss with ok=false and a nil error.
type Store interface {
	GetConversations(ctx context.Context, userID chatai.ID) (refs []chatai.ConversationRef, ok bool, err error)
	PutConversations(ctx context.Context, userID chatai.ID, refs []chatai.ConversationRef) error
	GetTranscript(ctx context.Context, userID, conversationID chatai.ID) (msgs []chatai.Message, ok bool, err error)
	PutTranscript(ctx context.Context, userID, conversationID chatai.ID, msgs []chatai.Message) error
	Close() error
}

// NewStore creates a Store of the given type.
// StoreTypeNone (or an empty type) returns a store that never hits.
// StoreTypeRedis requires WithRedisClient or WithRedisURL.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{ttl: defaultTTL, keyPrefix: "chatai:"}
	for _, opt := range opts {
		opt(config)
	}
	if config.ttl <= 0 {
		config.ttl = defaultTTL
	}
	if config.err != nil {
		return nil, config.err
	}

	var backend bytesBackend
	switch storeType {
	case "", StoreTypeNone:
		return noopStore{}, nil
	case StoreTypeMemory:
		backend = newMemoryBackend(config.now)
	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		backend = &redisBackend{client: config.redisClient}
	default:
		return nil, ErrInvalidStoreType
	}

	return &store{backend: backend, ttl: config.ttl, prefix: config.keyPrefix}, nil
}

// bytesBackend is the minimal key/value contract a driver implements.
type bytesBackend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	close() error
}

type store struct {
	backend bytesBackend
	ttl     time.Duration
	prefix  string
}

func (s *store) conversationsKey(userID chatai.ID) string {
	return s.prefix + "conversations:" + userID.String()
}

func (s *store) transcriptKey(userID, conversationID chatai.ID) string {
	return s.prefix + "transcript:" + userID.String() + ":" + conversationID.String()
}

// GetConversations implements Store.
func (s *store) GetConversations(ctx context.Context, userID chatai.ID) ([]chatai.ConversationRef, bool, error) {
	var refs []chatai.ConversationRef
	ok, err := s.load(ctx, s.conversationsKey(userID), &refs)
	return refs, ok, err
}

// PutConversations implements Store.
func (s *store) PutConversations(ctx context.Context, userID chatai.ID, refs []chatai.ConversationRef) error {
	return s.save(ctx, s.conversationsKey(userID), refs)
}

// GetTranscript implements Store.
func (s *store) GetTranscript(ctx context.Context, userID, conversationID chatai.ID) ([]chatai.Message, bool, error) {
	var msgs []chatai.Message
	ok, err := s.load(ctx, s.transcriptKey(userID, conversationID), &msgs)
	return msgs, ok, err
}

// PutTranscript implements Store.
func (s *store) PutTranscript(ctx context.Context, userID, conversationID chatai.ID, msgs []chatai.Message) error {
	return s.save(ctx, s.transcriptKey(userID, conversationID), msgs)
}

// Close implements Store.
func (s *store) Close() error {
	return s.backend.close()
}

func (s *store) load(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := s.backend.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.backend.set(ctx, key, data, s.ttl)
}

type noopStore struct{}

func (noopStore) GetConversations(context.Context, chatai.ID) ([]chatai.ConversationRef, bool, error) {
	return nil, false, nil
}

func (noopStore) PutConversations(context.Context, chatai.ID, []chatai.ConversationRef) error {
	return nil
}

func (noopStore) GetTranscript(context.Context, chatai.ID, chatai.ID) ([]chatai.Message, bool, error) {
	return nil, false, nil
}

func (noopStore) PutTranscript(context.Context, chatai.ID, chatai.ID, []chatai.Message) error {
	return nil
}

func (noopStore) Close() error {
	return nil
}
