package configs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"

	"chatsync/internal/pkg/logx"
)

// ServerURLs groups the endpoints the client talks to.
type ServerURLs struct {
	Chat         string `yaml:"chat"`
	Notification string `yaml:"notification"`
	Analytics    string `yaml:"analytics"`
}

type runtimeConfig struct {
	Server ServerURLs `yaml:"server"`
}

// LoadRuntimeConfig reads the YAML runtime configuration written by the hosting shell:
//
//	server:
//	  chat: https://chat.example.com/api
//	  notification: https://notify.example.com/events
//	  analytics: https://analytics.example.com/api/event
func LoadRuntimeConfig(path string) (ServerURLs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerURLs{}, fmt.Errorf("read runtime config: %w", err)
	}

	var rc runtimeConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return ServerURLs{}, fmt.Errorf("parse runtime config: %w", err)
	}

	return rc.Server, nil
}

// Resolver answers which base URLs to use. Runtime values, once loaded, win over
// the defaults; until then (or when a runtime value is empty) defaults apply.
type Resolver struct {
	defaults ServerURLs
	path     string

	once sync.Once
	done chan struct{}

	mu      sync.RWMutex
	runtime ServerURLs
}

// NewResolver builds a Resolver whose defaults come from cfg.
func NewResolver(cfg *AppConfig) *Resolver {
	return &Resolver{
		defaults: ServerURLs{
			Chat:         cfg.ChatServerURL,
			Notification: cfg.NotifyServerURL,
			Analytics:    cfg.AnalyticsURL,
		},
		path: cfg.RuntimeConfigPath,
		done: make(chan struct{}),
	}
}

// Start loads the runtime configuration once in the background. Subsequent calls are no-ops.
func (r *Resolver) Start() {
	r.once.Do(func() {
		go r.load()
	})
}

func (r *Resolver) load() {
	defer close(r.done)

	if r.path == "" {
		return
	}

	urls, err := LoadRuntimeConfig(r.path)
	if err != nil {
		logx.Warn("Failed to load runtime config, falling back to defaults", "path", r.path, "error", err)
		return
	}

	r.mu.Lock()
	r.runtime = urls
	r.mu.Unlock()

	logx.Info("Runtime config loaded", "chat", urls.Chat, "notification", urls.Notification)
}

// Wait blocks until the background load finished or ctx is done.
func (r *Resolver) Wait(ctx context.Context) error {
	r.Start()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Resolver) pick(runtime, fallback string) string {
	if runtime != "" {
		return runtime
	}
	return fallback
}

// RESTBase returns the chat server REST base URL.
func (r *Resolver) RESTBase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pick(r.runtime.Chat, r.defaults.Chat)
}

// StreamBase returns the push stream endpoint URL.
func (r *Resolver) StreamBase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pick(r.runtime.Notification, r.defaults.Notification)
}

// AnalyticsURL returns the analytics ingestion endpoint URL.
func (r *Resolver) AnalyticsURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pick(r.runtime.Analytics, r.defaults.Analytics)
}
