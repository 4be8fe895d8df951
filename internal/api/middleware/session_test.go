package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/service"
)

func TestSessions_CreatesAndReuses(t *testing.T) {
	registry := service.NewSessionRegistry(time.Hour)

	var seen []string
	handler := Sessions(registry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, GetSessionID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	id := cookies[0].Value
	assert.Equal(t, id, w.Header().Get(SessionHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, id)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, []string{id, id, id}, seen)
	assert.Equal(t, 1, registry.Len())
}

func TestSessions_UnknownIDGetsFreshSession(t *testing.T) {
	registry := service.NewSessionRegistry(time.Hour)

	var got string
	handler := Sessions(registry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSessionID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "expired-session")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEqual(t, "expired-session", got)
	assert.Equal(t, got, w.Header().Get(SessionHeader))
	require.Len(t, w.Result().Cookies(), 1)
}

func TestGetSession_MissingContext(t *testing.T) {
	assert.Nil(t, GetSession(context.Background()))
	assert.Equal(t, "", GetSessionID(context.Background()))
}
