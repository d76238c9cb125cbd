package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/internal/session"
)

func sessionEngine(store session.Store) *gin.Engine {
	e := gin.New()
	g := e.Group("", Session(store, testSessionConfig))
	g.GET("/noop", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	g.GET("/set", func(c *gin.Context) {
		SessionFrom(c).Set("greeting", c.Query("v"))
		c.String(http.StatusOK, "ok")
	})
	g.GET("/get", func(c *gin.Context) {
		v, _ := SessionFrom(c).Get("greeting")
		c.String(http.StatusOK, v)
	})
	g.GET("/redirect", func(c *gin.Context) {
		SessionFrom(c).Set("greeting", "moved")
		c.Redirect(http.StatusFound, "/get")
	})
	g.POST("/regenerate", func(c *gin.Context) {
		SessionFrom(c).Regenerate()
		c.Status(http.StatusNoContent)
	})
	g.POST("/destroy", func(c *gin.Context) {
		if err := SessionFrom(c).Destroy(c.Request.Context()); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return e
}

func TestSession_UntouchedSessionSetsNoCookie(t *testing.T) {
	rec := do(sessionEngine(session.NewMemoryStore(time.Hour, time.Minute)), http.MethodGet, "http://meg.www/noop")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSession_RoundTrip(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, time.Minute)
	e := sessionEngine(store)

	rec := do(e, http.MethodGet, "http://hospital1.meg.www/set?v=hello")
	cookie := sessionCookie(t, rec)
	assert.Equal(t, "meg.www", cookie.Domain)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)

	rec = do(e, http.MethodGet, "http://meg.www/get", cookie)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "unchanged id needs no new cookie")
}

func TestSession_SavedBeforeRedirect(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, time.Minute)
	e := sessionEngine(store)

	rec := do(e, http.MethodGet, "http://meg.www/redirect")
	assert.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec)

	values, err := store.Load(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "moved", values["greeting"])
}

func TestSession_RegenerateIssuesNewID(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, time.Minute)
	e := sessionEngine(store)
	old := seedSession(t, store, "old-id", map[string]string{"greeting": "hi"})

	rec := do(e, http.MethodPost, "http://meg.www/regenerate", old)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.NotEqual(t, "old-id", cookie.Value)

	_, err := store.Load(context.Background(), "old-id")
	assert.ErrorIs(t, err, session.ErrNotFound)
	values, err := store.Load(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "hi", values["greeting"])
}

func TestSession_DestroyExpiresCookie(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, time.Minute)
	e := sessionEngine(store)
	old := seedSession(t, store, "doomed", map[string]string{"greeting": "hi"})

	rec := do(e, http.MethodPost, "http://meg.www/destroy", old)
	cookie := sessionCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)

	_, err := store.Load(context.Background(), "doomed")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
