package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vidshare/vidshare/internal/auth"
	"github.com/vidshare/vidshare/internal/database"
	"github.com/vidshare/vidshare/internal/geoip"
	"github.com/vidshare/vidshare/internal/ratelimit"
	"github.com/vidshare/vidshare/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB                  database.DBTX
	Pinger              Pinger
	Storage             video.ObjectStorage
	Geo                 *geoip.Resolver
	JWTSecret           string
	BaseURL             string
	MaxUploadBytes      int64
	ProbeTimeout        time.Duration
	MaxConcurrentProbes int
	StorageEndpoint     string
}

type Server struct {
	router       chi.Router
	pinger       Pinger
	authHandler  *auth.Handler
	videoHandler *video.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.StorageEndpoint,
	}))

	s := &Server{router: r, pinger: cfg.Pinger}

	secureCookies := hasHTTPS(cfg.BaseURL)
	s.authHandler = auth.NewHandler(cfg.DB, cfg.JWTSecret, secureCookies)
	s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, cfg.Geo, cfg.MaxUploadBytes,
		cfg.ProbeTimeout, cfg.MaxConcurrentProbes)

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// VideoHandler exposes the handler so main can start the background
// reconcile loop against the same reconciler instance.
func (s *Server) VideoHandler() *video.Handler {
	return s.videoHandler
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	authLimiter := ratelimit.NewLimiter(0.5, 5)
	s.router.Route("/api/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/register", s.authHandler.Register)
		r.Post("/login", s.authHandler.Login)
		r.Post("/refresh", s.authHandler.Refresh)
		r.Post("/logout", s.authHandler.Logout)
		r.With(s.authHandler.Middleware).Get("/session", s.authHandler.CurrentSession)
	})

	writeLimiter := ratelimit.NewLimiter(2, 10)
	s.router.Route("/api/videos", func(r chi.Router) {
		r.With(s.authHandler.OptionalMiddleware).Get("/", s.videoHandler.List)
		r.Get("/{id}/download", s.videoHandler.Download)
		r.Post("/{id}/events", s.videoHandler.PlaybackEvent)

		r.Group(func(r chi.Router) {
			r.Use(writeLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Post("/", s.videoHandler.Upload)
			r.Patch("/{id}", s.videoHandler.Edit)
			r.Delete("/{id}", s.videoHandler.Delete)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func hasHTTPS(baseURL string) bool {
	return len(baseURL) >= 8 && baseURL[:8] == "https://"
}
