// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package web exposes the auth and post services over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/breadsocial/bread/internal/auth"
	"github.com/breadsocial/bread/internal/docstore"
	"github.com/breadsocial/bread/internal/observability"
	"github.com/breadsocial/bread/internal/post"
)

// AuthService is the account and session surface the handlers call.
type AuthService interface {
	Register(ctx context.Context, name, password string) (docstore.ID, error)
	Login(ctx context.Context, name, password string) (*auth.Session, error)
	ChangePassword(ctx context.Context, identity auth.Claims, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, identity auth.Claims) error
	AuthenticateRequest(ctx context.Context, cookieValue string) (auth.Claims, error)
}

// PostService is the post surface the handlers call.
type PostService interface {
	Submit(ctx context.Context, identity auth.Claims, content, image string) (docstore.ID, error)
	DeletePost(ctx context.Context, identity auth.Claims, postID docstore.ID) error
	RandomPost(ctx context.Context) (*post.Post, error)
}

// Deps are the collaborators of the router. Metrics, Limiter and Logger
// are optional.
type Deps struct {
	Auth         AuthService
	Posts        PostService
	Metrics      *observability.Metrics
	Limiter      *RateLimiter
	Logger       *slog.Logger
	CookieSecure bool
}

// NewRouter builds the /api routes.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if deps.Posts == nil {
		return nil, oops.Errorf("post service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &handlers{
		auth:         deps.Auth,
		posts:        deps.Posts,
		logger:       logger,
		cookieSecure: deps.CookieSecure,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	limited := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limited = deps.Limiter.Middleware
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limited).Post("/register", h.register)
			r.With(limited).Post("/login", h.login)
			r.Post("/logout", h.logout)
			r.With(h.requireSession).Post("/change-password", h.changePassword)
		})

		r.With(h.requireSession).Delete("/users/me", h.deleteAccount)

		r.Route("/posts", func(r chi.Router) {
			r.With(h.requireSession).Post("/", h.submitPost)
			r.With(h.requireSession).Delete("/{id}", h.deletePost)
			r.Get("/random", h.randomPost)
		})
	})

	return r, nil
}

type claimsKey struct{}

// requireSession authenticates the session cookie and stores the claims in
// the request context.
func (h *handlers) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
			token = cookie.Value
		}
		claims, err := h.auth.AuthenticateRequest(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return claims, ok
}

// metricsMiddleware counts requests by matched route pattern and status.
func metricsMiddleware(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
