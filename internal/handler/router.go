/*
Package handler is the local UI bridge: a loopback HTTP API through which the
webview reads the session and invokes lifecycle, message and analytics operations.

This file defines the Router, applying logging, CORS, recovery and rate limiting
before delegating to the handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/limiter"
	"chatsync/internal/pkg/logx"
	"chatsync/internal/pkg/resp"
)

const (
	AuthRate  = 0.5
	AuthBurst = 5
)

// Router builds the bridge's routing table. Background work started for it
// stops when ctx is done.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "chatsync",
			"state":   string(deps.Engine.State()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/signup", HandleSignup(deps))
			auth.Post("/signin", HandleSignin(deps))
		})

		api.Get("/session", HandleGetSession(deps))
		api.Post("/navigation", HandleNavigation(deps))

		api.Group(func(authed chi.Router) {
			authed.Use(requireAuth(deps))

			authed.Post("/logout", HandleLogout(deps))
			authed.Get("/workspace", HandleGetWorkspace(deps))

			authed.Get("/channels", HandleListChannels(deps))
			authed.Get("/channels/single", HandleListSingleChannels(deps))
			authed.Post("/channels", HandleCreateChannel(deps))
			authed.Post("/channels/{id}/active", HandleSelectChannel(deps))
			authed.Get("/channels/{id}/messages", HandleListMessages(deps))
			authed.Post("/channels/{id}/messages", HandleSendMessage(deps))
			authed.Get("/messages/active", HandleActiveMessages(deps))

			authed.Get("/users/{id}", HandleGetUser(deps))
		})
	})

	return r
}

// requireAuth rejects requests while the session holds no token.
func requireAuth(deps *AppDeps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !deps.Engine.Session().IsAuthenticated() {
				resp.RespondError(w, r, errs.NewError(errs.ErrNotAuthenticated))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
