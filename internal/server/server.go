package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/internal/auth"
	"github.com/sweetshop/apiserver/internal/cache"
	"github.com/sweetshop/apiserver/internal/db"
	"github.com/sweetshop/apiserver/internal/handlers"
	"github.com/sweetshop/apiserver/internal/logging"
	"github.com/sweetshop/apiserver/internal/mq"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/internal/store/memory"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	requestTimeout = 60 * time.Second
)

// Options tune startup behaviour.
type Options struct {
	// Migrate applies pending migrations before serving.
	Migrate bool
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        zerolog.Logger
	closers    []func() error
}

// Services bundles what the router needs.
type Services struct {
	Auth   *services.AuthService
	Sweets *services.SweetService
	Tokens *auth.Tokens
}

// New wires storage, optional cache and event backends, services and routes.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*Server, error) {
	s := &Server{log: log}

	users, sweets, err := s.openStores(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	sweetOpts := []services.SweetOption{services.WithLogger(log)}

	if cfg.Cache.RedisAddr != "" {
		catalogCache, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, catalogCache.Close)
		sweetOpts = append(sweetOpts, services.WithListCache(catalogCache))
		log.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", cfg.Cache.TTL).Msg("catalog cache enabled")
	}

	events, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, err
	}
	if events != nil {
		s.closers = append(s.closers, events.Close)
		sweetOpts = append(sweetOpts, services.WithEvents(events, cfg.MQ.EventsChannel))
		log.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.EventsChannel).Msg("inventory events enabled")
	}

	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn().Msg("JWT_SECRET is not set; using the development default")
	}
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	s.router = NewRouter(cfg, log, Services{
		Auth:   services.NewAuthService(users, tokens),
		Sweets: services.NewSweetService(sweets, sweetOpts...),
		Tokens: tokens,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) openStores(ctx context.Context, cfg config.Config, opts Options) (services.UserRepository, services.SweetRepository, error) {
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		s.log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.NewUserRepository(), memory.NewSweetRepository(), nil
	case "", StoreDriverPostgres:
		if opts.Migrate {
			if err := db.MigrateUp(cfg.Database.DSN()); err != nil {
				return nil, nil, err
			}
		}
		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s.closers = append(s.closers, dbConn.Close)
		return store.NewUserRepository(dbConn), store.NewSweetRepository(dbConn), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewRouter builds the HTTP routes and middleware stack.
func NewRouter(cfg config.Config, log zerolog.Logger, svc Services) *chi.Mux {
	authMiddleware := handlers.RequireAuth(svc.Tokens)

	var limit func(http.Handler) http.Handler
	if cfg.Auth.RateLimit > 0 {
		limit = handlers.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst).Middleware
	}

	router := chi.NewRouter()
	router.Use(
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)
	router.NotFound(handlers.RouteNotFound)
	router.MethodNotAllowed(handlers.RouteNotFound)

	router.Get("/health", handlers.Health)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, svc.Auth, authMiddleware, limit)
	})
	router.Route("/api/sweets", func(r chi.Router) {
		handlers.SweetRouter(r, svc.Sweets, authMiddleware)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and
// broker connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn().Err(err).Msg("close resource")
		}
	}
	s.closers = nil
}
