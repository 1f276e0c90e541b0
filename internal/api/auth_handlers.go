package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/auth"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// register handles POST /api/auth/register. The first account created
// becomes the admin and open registration closes behind it; further
// accounts can only be created by an admin session.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		h.writeError(w, http.StatusBadRequest, "username and a password of at least 8 characters are required")
		return
	}

	count, err := h.storage.CountUsers()
	if err != nil {
		h.internalError(w, err)
		return
	}
	if count > 0 {
		claims := claimsFrom(r)
		if claims == nil || !claims.IsAdmin {
			h.writeError(w, http.StatusForbidden, "registration is closed")
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, err)
		return
	}

	now := time.Now()
	user := &model.User{
		ID:           generateID(),
		Username:     req.Username,
		PasswordHash: hash,
		IsAdmin:      count == 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.storage.CreateUser(user); err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			h.writeError(w, http.StatusConflict, "username already taken")
			return
		}
		h.internalError(w, err)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

// login handles POST /api/auth/login
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.storage.GetUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.internalError(w, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// me handles GET /api/auth/me
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims == nil || claims.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	user, err := h.storage.GetUser(claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.writeError(w, http.StatusUnauthorized, "no session")
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
