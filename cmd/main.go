/*
Package main is the entry point of the chatsync client.

It loads configuration, initializes the global logger, opens the persistent
cache and then runs the client in rounds: each round hydrates the session from
the cache, builds the sync engine and serves the local UI bridge. A logout ends
the round and the next one starts again from hydration. SIGINT and SIGTERM end
the process after a graceful shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chatsync/internal/app/analytics"
	"chatsync/internal/app/engine"
	"chatsync/internal/app/remote"
	"chatsync/internal/app/session"
	"chatsync/internal/app/store"
	"chatsync/internal/app/stream"
	"chatsync/internal/configs"
	"chatsync/internal/handler"
	"chatsync/internal/pkg/logx"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if run(cfg) == analytics.ExitCodeFailure {
		os.Exit(1)
	}
}

// run drives the client until shutdown and returns how it ended.
func run(cfg *configs.AppConfig) analytics.ExitCode {
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("version", cfg.AppVersion).
		Str("cache_driver", cfg.Cache.Driver).
		Str("stream_transport", cfg.StreamTransport).
		Int("bridge_port", cfg.BridgePort).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := configs.NewResolver(cfg)
	resolver.Start()

	kv, err := store.Open(ctx, cfg.Cache)
	if err != nil {
		logx.Fatal(err, "Failed to open cache", "driver", cfg.Cache.Driver)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logx.Error(err, "Failed to close cache")
		}
	}()

	cache := store.NewCache(kv)
	analytics.InitPlatformInfo(cache)

	// The runtime config only moves endpoints; give it a moment before the first round.
	waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
	if err := resolver.Wait(waitCtx); err != nil {
		logx.Warn("Runtime config not ready, starting with defaults")
	}
	cancelWait()

	exitCode := analytics.ExitCodeSuccess
	for {
		again, err := runRound(ctx, cfg, resolver, cache)
		if err != nil {
			logx.Error(err, "Client stopped unexpectedly")
			exitCode = analytics.ExitCodeFailure
			break
		}
		if !again {
			break
		}
		logx.Info("Session ended, reloading")
	}

	// AppExit is sent from a fresh round of collaborators since the last round's emitter is closed.
	sess := session.Hydrate(cache)
	events := newEmitter(cfg, resolver, cache, sess)
	events.AppExit(exitCode)

	closeCtx, cancelClose := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelClose()
	if err := events.Close(closeCtx); err != nil {
		logx.Warn("Analytics queue not drained before exit", "error", err)
	}

	logx.Info("Client gracefully stopped.")
	return exitCode
}

// runRound serves one session from hydration to logout or shutdown. It reports
// whether the caller should start another round.
func runRound(ctx context.Context, cfg *configs.AppConfig, resolver *configs.Resolver, cache *store.Cache) (bool, error) {
	sess := session.Hydrate(cache)
	events := newEmitter(cfg, resolver, cache, sess)

	reload := make(chan struct{}, 1)
	eng := engine.New(sess, cache, remote.NewClient(resolver.RESTBase, cfg.RequestTimeout), events, engine.Config{
		PageSize:  cfg.MessagePageSize,
		StreamURL: resolver.StreamBase,
		Transport: newTransport(cfg),
		Reload: func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		},
	})

	roundCtx, cancelRound := context.WithCancel(ctx)
	defer cancelRound()

	eng.Resume(roundCtx)
	events.AppStart()

	server := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.BridgePort),
		Handler:      handler.Router(roundCtx, &handler.AppDeps{Engine: eng, Config: cfg}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logx.Info(fmt.Sprintf("UI bridge listening on http://%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var again bool
	var roundErr error
	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	case <-reload:
		again = true
	case err, ok := <-serveErr:
		if ok {
			roundErr = fmt.Errorf("serve bridge: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Bridge forced to shutdown")
	}
	eng.Shutdown()
	if err := events.Close(shutdownCtx); err != nil {
		logx.Warn("Analytics queue not drained", "error", err)
	}

	return again, roundErr
}

func newEmitter(cfg *configs.AppConfig, resolver *configs.Resolver, cache *store.Cache, sess *session.Session) *analytics.Emitter {
	builder := analytics.NewContextBuilder(cache, cfg.AppVersion, func() string {
		if u := sess.User(); u != nil {
			return strconv.FormatInt(u.ID, 10)
		}
		return ""
	})

	return analytics.NewEmitter(builder, analytics.Options{
		URL:       resolver.AnalyticsURL,
		Token:     sess.Token,
		QueueSize: cfg.AnalyticsQueueSize,
		Timeout:   cfg.RequestTimeout,
		Disabled:  !cfg.AnalyticsEnabled,
	})
}

func newTransport(cfg *configs.AppConfig) stream.Transport {
	if cfg.StreamTransport == configs.StreamTransportWebSocket {
		return stream.WebSocketTransport{}
	}
	return stream.SSETransport{}
}
