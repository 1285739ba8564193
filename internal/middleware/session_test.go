package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-registration-portal/internal/service"
)

func newSessionRouter(sessions *service.SessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Session(sessions, SessionOptions{CookieName: "sid", TTL: time.Minute}))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, SessionFrom(c).ID)
	})
	return r
}

func TestSessionMiddlewareIssuesAndReusesCookie(t *testing.T) {
	sessions := service.NewSessionService(nil, nil, nil, nil, nil, nil, service.SessionConfig{TTL: time.Minute})
	r := newSessionRouter(sessions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 60, cookies[0].MaxAge)
	assert.Equal(t, cookies[0].Value, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, cookies[0].Value, w2.Body.String())
	assert.Equal(t, 1, sessions.Count())
}

func TestSessionMiddlewareReplacesUnknownCookie(t *testing.T) {
	sessions := service.NewSessionService(nil, nil, nil, nil, nil, nil, service.SessionConfig{})
	r := newSessionRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "forged", w.Body.String())
	assert.NotEmpty(t, w.Body.String())
}
