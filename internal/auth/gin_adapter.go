package auth

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// sessionWriter commits the session right before the status line goes out.
// Headers are frozen after that, so a cookie set any later would be lost.
// Handlers that must react to a store failure call Save themselves first.
type sessionWriter struct {
	gin.ResponseWriter
	sessions  *SessionManager
	ctx       context.Context
	committed bool
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	if _, err := w.sessions.writeCookie(w.ctx, w.ResponseWriter); err != nil {
		log.Printf("Failed to commit session: %v", err)
	}
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) WriteHeaderNow() {
	w.commit()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.commit()
	return w.ResponseWriter.WriteString(s)
}

// SessionLoadSave loads the request's session and commits it when the
// response starts. Every route that touches the session sits behind it.
func (sm *SessionManager) SessionLoadSave() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if cookie, err := c.Request.Cookie(sm.Cookie.Name); err == nil {
			token = cookie.Value
		}

		ctx, err := sm.Load(c.Request.Context(), token)
		if err != nil {
			log.Printf("Failed to load session: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Request = c.Request.WithContext(ctx)

		w := &sessionWriter{ResponseWriter: c.Writer, sessions: sm, ctx: ctx}
		c.Writer = w

		c.Next()

		// Nothing was written, e.g. a bare c.Status.
		w.commit()
	}
}
