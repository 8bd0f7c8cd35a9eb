// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/breadsocial/bread/internal/auth"
	"github.com/breadsocial/bread/internal/docstore"
	"github.com/breadsocial/bread/internal/post"
)

type handlers struct {
	auth         AuthService
	posts        PostService
	logger       *slog.Logger
	cookieSecure bool
}

// IDResponse is returned by the create endpoints.
type IDResponse struct {
	ID string `json:"id"`
}

// UserView is a user as returned to clients. It never carries the hash.
type UserView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Preferences auth.Preferences `json:"preferences"`
}

// PostView is a post as returned to clients.
type PostView struct {
	ID      string  `json:"id"`
	Author  string  `json:"author"`
	Content *string `json:"content,omitempty"`
	Image   *string `json:"image,omitempty"`
}

func newUserView(u *auth.User) UserView {
	return UserView{ID: u.ID.String(), Name: u.Name, Preferences: u.Preferences}
}

func newPostView(p *post.Post) PostView {
	return PostView{ID: p.ID.String(), Author: p.Author.String(), Content: p.Content, Image: p.Image}
}

// POST /api/auth/register
func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id.String()})
}

// POST /api/auth/login
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	session, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, h.sessionCookie(session.Token))
	writeJSON(w, http.StatusOK, newUserView(session.User))
}

// POST /api/auth/logout
func (h *handlers) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.expiredCookie())
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/auth/change-password
func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	err := h.auth.ChangePassword(r.Context(), claims, r.PostFormValue("old_password"), r.PostFormValue("new_password"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/users/me
func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	if err := h.auth.DeleteAccount(r.Context(), claims); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, h.expiredCookie())
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/posts
func (h *handlers) submitPost(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	id, err := h.posts.Submit(r.Context(), claims, r.PostFormValue("content"), r.PostFormValue("image"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id.String()})
}

// DELETE /api/posts/{id}
func (h *handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	postID := docstore.ID(chi.URLParam(r, "id"))
	if err := h.posts.DeletePost(r.Context(), claims, postID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/posts/random
func (h *handlers) randomPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.RandomPost(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPostView(p))
}

func (h *handlers) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/api",
		Secure:   h.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handlers) expiredCookie() *http.Cookie {
	c := h.sessionCookie("")
	c.MaxAge = -1
	return c
}
