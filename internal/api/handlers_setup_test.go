package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/martinsuchenak/ztnetd/internal/auth"
	"github.com/martinsuchenak/ztnetd/internal/member"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/notify"
	"github.com/martinsuchenak/ztnetd/internal/ws"
)

const testSecret = "handler-test-secret"

var errTest = errors.New("simulated controller failure")

func setupTestHandler() *Handler {
	store := newMockStorage()
	ctrl := newMockController()
	members := member.NewService(store, ctrl, nil)
	return NewHandler(store, members, ctrl, auth.NewTokens(testSecret), ws.NewHub(), notify.NewDispatcher(store))
}

// withClaims attaches a session to the request the way
// SessionMiddleware would.
func withClaims(r *http.Request, userID string, isAdmin bool) *http.Request {
	claims := &auth.Claims{UserID: userID, Username: "tester", IsAdmin: isAdmin}
	return r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
}

func seedNetwork(h *Handler, id, authorID string) *model.Network {
	store := h.storage.(*mockStorage)
	network := &model.Network{ID: id, Name: "net-" + id, AuthorID: authorID, Private: true}
	store.CreateNetwork(network)
	return network
}
