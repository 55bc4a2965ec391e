package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jjudge-oj/gatekeeper/config"
	"github.com/jjudge-oj/gatekeeper/internal/handlers"
	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/metrics"
	"github.com/jjudge-oj/gatekeeper/internal/mq"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and its backing resources.
type Server struct {
	httpServer *http.Server
	stores     Stores
	mq         *mq.MQ
	log        *zap.Logger
}

// New opens the store and broker, wires services and builds the router.
// The in-memory store is seeded on startup.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.Named("server")

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	var publisher services.Publisher
	if broker != nil {
		publisher = broker
	}

	svc, err := NewServices(cfg, stores, publisher)
	if err != nil {
		_ = broker.Close()
		_ = stores.Close()
		return nil, err
	}

	if cfg.StoreDriver == config.StoreDriverMemory {
		if err := svc.Seeder.Seed(ctx, SeedOptions(cfg)); err != nil {
			_ = broker.Close()
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		log.Warn("using in-memory credential store; data is lost on restart")
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	log.Info("server configured",
		zap.Int("port", port),
		zap.String("store", cfg.StoreDriver),
		zap.String("authz_model", string(svc.Model)),
		zap.Strings("public_paths", cfg.Auth.PublicPaths),
		zap.Duration("token_ttl", svc.Tokens.TTL()),
		zap.Bool("audit", broker != nil),
		zap.Bool("metrics", m != nil),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      NewHandler(cfg, svc, logger.Named("http"), m),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stores: stores,
		mq:     broker,
		log:    log,
	}, nil
}

// NewHandler builds the router. Every request passes through the
// authentication filter; paths outside cfg.Auth.PublicPaths then need a
// principal, and guarded routes evaluate their requirement. m may be nil.
func NewHandler(cfg config.Config, svc *Services, log *zap.Logger, m *metrics.Metrics) http.Handler {
	policy := handlers.PolicyFor(svc.Model)
	authenticator := handlers.NewAuthenticator(svc.Tokens, svc.Loader, m)
	production := cfg.Env == "prod"
	headers := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            31536000,
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log),
		middleware.Recoverer,
		m.Instrument,
		headers.Handler,
		middleware.Timeout(60*time.Second),
		authenticator.Middleware,
		handlers.RequireAuthenticated(cfg.Auth.PublicPaths),
	)

	router.Get("/healthz", handlers.Healthz)
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/authentication", func(r chi.Router) {
			handlers.AuthRouter(r, handlers.NewAuthHandler(svc.Users, svc.Tokens), cfg.Auth.LoginRateLimit)
		})
		r.Route("/user", func(r chi.Router) {
			handlers.UserRouter(r, handlers.NewUserHandler(svc.Users), policy)
		})
		roleHandler := handlers.NewRoleHandler(svc.Roles, svc.Permissions)
		r.Route("/roles", func(r chi.Router) {
			handlers.RoleRouter(r, roleHandler, policy)
		})
		r.Route("/permissions", func(r chi.Router) {
			handlers.PermissionRouter(r, roleHandler, policy)
		})
		r.Route("/health", func(r chi.Router) {
			handlers.HealthRouter(r, policy)
		})
	})
	return router
}

// Run serves until ctx is cancelled or the listener fails, then shuts
// down gracefully and releases the store and broker.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) close() {
	if err := s.mq.Close(); err != nil {
		s.log.Warn("close mq", zap.Error(err))
	}
	if err := s.stores.Close(); err != nil {
		s.log.Warn("close store", zap.Error(err))
	}
}
