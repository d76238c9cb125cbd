package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/session"
	apperrors "github.com/megcare/caseflow/pkg/errors"
)

const ContextSession = "session"

type SessionConfig struct {
	CookieName string
	// CookieDomain is shared by the main domain and every hospital
	// subdomain, e.g. ".meg.www".
	CookieDomain string
	Secure       bool
	TTL          time.Duration
}

// Session loads the request's session from its cookie and saves it before
// the first byte of the response is written.
func Session(store session.Store, config SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieID, _ := c.Cookie(config.CookieName)

		sess, err := session.Load(c.Request.Context(), store, cookieID, config.TTL)
		if err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("Failed to load session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse(apperrors.GenericMessage))
			return
		}
		c.Set(ContextSession, sess)

		w := &sessionWriter{ResponseWriter: c.Writer, c: c, sess: sess, config: config, cookieID: cookieID}
		c.Writer = w

		c.Next()

		w.commit()
	}
}

// SessionFrom returns the session loaded by Session.
func SessionFrom(c *gin.Context) *session.Session {
	if v, ok := c.Get(ContextSession); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return nil
}

// sessionWriter commits the session ahead of the response headers so the
// cookie is part of them.
type sessionWriter struct {
	gin.ResponseWriter
	c         *gin.Context
	sess      *session.Session
	config    SessionConfig
	cookieID  string
	committed bool
}

func (w *sessionWriter) WriteHeaderNow() {
	w.commit()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(data []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(data)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.commit()
	return w.ResponseWriter.WriteString(s)
}

func (w *sessionWriter) commit() {
	if w.committed || w.ResponseWriter.Written() {
		return
	}
	w.committed = true

	if w.sess.Destroyed() {
		if w.cookieID != "" {
			w.setCookie("", -1)
		}
		return
	}

	dirty := w.sess.Dirty()
	if err := w.sess.Save(w.c.Request.Context()); err != nil {
		log.Error().Err(err).Str("request_id", w.c.GetString(ContextRequestID)).Msg("Failed to save session")
		return
	}
	if dirty && w.sess.ID() != w.cookieID {
		w.setCookie(w.sess.ID(), int(w.config.TTL.Seconds()))
	}
}

func (w *sessionWriter) setCookie(value string, maxAge int) {
	http.SetCookie(w.ResponseWriter, &http.Cookie{
		Name:     w.config.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   w.config.CookieDomain,
		MaxAge:   maxAge,
		Secure:   w.config.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
