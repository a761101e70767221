package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"reboot-miniapp/internal/bridge"
	"reboot-miniapp/internal/session"
)

const bridgeHeader = bridge.HeaderInitData

func loggingMiddleware(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"size", ww.BytesWritten(),
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// securityHeaders sets conservative headers. Framing is limited to the
// Telegram web clients instead of denied outright.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-inline' https://telegram.org; "+
				"style-src 'self' 'unsafe-inline'; img-src * data:; object-src 'none'; base-uri 'self'; "+
				"frame-ancestors 'self' https://web.telegram.org https://*.telegram.org")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

type sessionKey struct{}

// requireSession serves the bootstrap page to requests that have no live
// launch session; the bootstrap posts to /launch and comes back here.
func (h *handlers) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := h.sessions.FromRequest(r)
		if s == nil {
			if r.Method != http.MethodGet {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			h.render(w, http.StatusOK, "bootstrap", page{
				Title: "Reboot Adventures",
				Data:  bootstrapView{Next: r.URL.RequestURI()},
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return s
}
