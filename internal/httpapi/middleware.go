package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/auth"
	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

type principalKey struct{}

// withPrincipal кладёт проверенного субъекта в контекст запроса.
func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom возвращает субъекта запроса, если он аутентифицирован.
func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// accessLog пишет одну строку на запрос и обновляет HTTP-метрики.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.RecordHTTPRequest(r.Method, route, status, duration)

		s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"bytes":       ww.BytesWritten(),
			"duration_ms": duration.Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
			"remote_addr": r.RemoteAddr,
		}).Info("http request")
	})
}

// cors разрешает запросы фронтенда с настроенных origin.
func (s *Server) cors(next http.Handler) http.Handler {
	allowAll := len(s.allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(s.allowedOrigins))
	for _, origin := range s.allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate требует валидный bearer-токен.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, s.logger, domain.Unauthorized(domain.ErrUnauthenticated))
			return
		}
		principal, err := s.auth.ParseToken(token)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// optionalAuth добавляет субъекта, если токен передан и валиден; иначе запрос идёт анонимно.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if principal, err := s.auth.ParseToken(token); err == nil {
				r = r.WithContext(withPrincipal(r.Context(), principal))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin пропускает только субъектов с ролью admin. Ставится после authenticate.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalFrom(r.Context())
		if !ok {
			writeError(w, r, s.logger, domain.Unauthorized(domain.ErrUnauthenticated))
			return
		}
		if !principal.IsAdmin() {
			writeError(w, r, s.logger, domain.Forbidden(domain.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}
