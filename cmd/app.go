package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/chatai/api"
	"github.com/longkey1/chatai/internal/chatai/auth"
	"github.com/longkey1/chatai/internal/chatai/cache"
	"github.com/longkey1/chatai/internal/chatai/config"
	"github.com/longkey1/chatai/internal/chatai/directory"
	"github.com/longkey1/chatai/internal/chatai/metrics"
	"github.com/longkey1/chatai/internal/chatai/session"
	"github.com/longkey1/chatai/internal/version"
)

// app wires the components shared by the commands.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	credentials *auth.Store
	client      *api.Client
	cache       cache.Store
	loader      *directory.Loader
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	credentials, err := auth.DefaultStore()
	if err != nil {
		return nil, fmt.Errorf("locating credential store: %w", err)
	}

	var cacheOpts []cache.StoreOption
	cacheOpts = append(cacheOpts, cache.WithTTL(cfg.CacheTTL))
	if cache.StoreType(cfg.CacheDriver) == cache.StoreTypeRedis {
		cacheOpts = append(cacheOpts, cache.WithRedisURL(cfg.RedisURL))
	}
	store, err := cache.NewStore(cache.StoreType(cfg.CacheDriver), cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating %s cache: %w", cfg.CacheDriver, err)
	}

	m := metrics.New()
	client := api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithStreamClient(&http.Client{}),
		api.WithCredentials(credentials),
		api.WithUserAgent(version.UserAgent()),
		api.WithLogger(logger.With("component", "api")),
	)
	loader := directory.NewLoader(client,
		directory.WithCache(store),
		directory.WithMetrics(m),
		directory.WithLogger(logger.With("component", "directory")),
	)

	logger.Debug("client configured", "base_url", client.BaseURL(), "cache_driver", cfg.CacheDriver)
	return &app{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		credentials: credentials,
		client:      client,
		cache:       store,
		loader:      loader,
	}, nil
}

// identity returns the signed-in user.
func (a *app) identity() (chatai.Identity, error) {
	cred, err := a.credentials.Load()
	if err != nil {
		return chatai.Identity{}, err
	}
	return cred.User, nil
}

// orchestrator creates an Orchestrator for the signed-in user.
func (a *app) orchestrator(opts ...session.Option) (*session.Orchestrator, error) {
	user, err := a.identity()
	if err != nil {
		return nil, err
	}
	opts = append([]session.Option{
		session.WithMetrics(a.metrics),
		session.WithLogger(a.logger.With("component", "session")),
	}, opts...)
	return session.New(a.client, a.loader, user, opts...), nil
}

// resolveConversation maps a --conversation value to an id. "latest"
// resolves to the most recent conversation.
func (a *app) resolveConversation(ctx context.Context, id string) (chatai.ID, error) {
	if id != "latest" {
		return chatai.ID(id), nil
	}
	latest, err := a.loader.LatestConversationID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving latest conversation: %w", err)
	}
	if latest == "" {
		return "", errors.New("no conversations found\n\nStart a new conversation with: chatai chat \"your message\"")
	}
	return latest, nil
}

func (a *app) Close() error {
	return a.cache.Close()
}
