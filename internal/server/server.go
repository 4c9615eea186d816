package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paneladmin/apiserver/config"
	"github.com/paneladmin/apiserver/internal/db"
	"github.com/paneladmin/apiserver/internal/handlers"
	"github.com/paneladmin/apiserver/internal/metrics"
	"github.com/paneladmin/apiserver/internal/mq"
	"github.com/paneladmin/apiserver/internal/password"
	"github.com/paneladmin/apiserver/internal/services"
	"github.com/paneladmin/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.UserEvents
	logger     *zap.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, dbConn, err := OpenUserRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		closeDB(dbConn)
		return nil, err
	}

	opts := []services.UserServiceOption{services.WithLogger(logger)}
	backend, err := mq.NewBackend(ctx, cfg)
	if err != nil {
		closeDB(dbConn)
		return nil, fmt.Errorf("connect events backend: %w", err)
	}
	var events *mq.UserEvents
	if backend != nil {
		events = mq.NewUserEvents(backend, cfg.Events.Channel)
		opts = append(opts, services.WithEvents(events))
	}

	userService := services.NewUserService(repo, hasher, opts...)
	router := NewRouter(userService, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
		logger:     logger,
	}, nil
}

// OpenUserRepository builds the user store selected by cfg.Store.Driver.
// The returned *sql.DB is nil for the memory store.
func OpenUserRepository(ctx context.Context, cfg config.Config) (services.UserRepository, *sql.DB, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryUserRepository(), nil, nil
	case "", "postgres":
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return store.NewUserRepository(dbConn), dbConn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// NewRouter wires the HTTP routes and middleware around userService.
func NewRouter(userService *services.UserService, logger *zap.Logger) *chi.Mux {
	httpMetrics := metrics.NewHTTP()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(logger),
		middleware.Recoverer,
		httpMetrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", httpMetrics.Handler())
	router.Route("/api/panel_users", func(r chi.Router) {
		handlers.UserRouter(r, userService, logger)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		if closeErr := s.events.Close(); closeErr != nil {
			s.logger.Warn("failed to close events backend", zap.Error(closeErr))
		}
	}
	closeDB(s.db)
	return err
}

func closeDB(dbConn *sql.DB) {
	if dbConn != nil {
		_ = dbConn.Close()
	}
}
