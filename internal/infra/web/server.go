package web

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"time"

	"plans-admin/internal/infra/i18n"
	"plans-admin/internal/infra/logging"
	"plans-admin/internal/infra/metrics"
	"plans-admin/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// LoginLimiter throttles login attempts per key. A nil limiter disables
// throttling.
type LoginLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	LoginLimit     int
	RequestTimeout time.Duration

	// Translator supplies UI strings; nil means English.
	Translator *i18n.Translator
}

type Server struct {
	planUC  usecase.PlanUseCase
	auth    *AuthManager
	limiter LoginLimiter
	opts    Options
	tr      *i18n.Translator
	pages   *template.Template
	log     *zerolog.Logger
}

func NewServer(
	planUC usecase.PlanUseCase,
	auth *AuthManager,
	limiter LoginLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.LoginLimit <= 0 {
		opts.LoginLimit = 5
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	tr := opts.Translator
	if tr == nil {
		tr = i18n.MustLoad(i18n.DefaultLang)
	}
	return &Server{
		planUC:  planUC,
		auth:    auth,
		limiter: limiter,
		opts:    opts,
		tr:      tr,
		pages:   parsePages(tr),
		log:     logger,
	}
}

// Routes builds the admin panel router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, RequestLog(s.log), middleware.Recoverer, middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, plansPath, http.StatusSeeOther)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.loginForm)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/plans", s.plansPage)
			r.Get("/plans/new", s.newPlanForm)
			r.Post("/plans/new", s.createPlan)
			r.Get("/plans/{id}/edit", s.editPlanForm)
			r.Post("/plans/{id}/edit", s.updatePlan)
			r.Post("/plans/{id}/delete", s.deletePlan)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIAuth)
		r.Get("/plans", s.apiListPlans)
		r.Post("/plans", s.apiCreatePlan)
		r.Get("/plans/{id}", s.apiGetPlan)
		r.Put("/plans/{id}", s.apiUpdatePlan)
		r.Delete("/plans/{id}", s.apiDeletePlan)
	})
	return r
}

// requireSession redirects unauthenticated browsers to the login form.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.auth.Authenticate(r)
		if err != nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithAdmin(r.Context(), sub)))
	})
}

func (s *Server) requireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.auth.Authenticate(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithAdmin(r.Context(), sub)))
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
