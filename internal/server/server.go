package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/internal/db"
	"github.com/libris-lms/apiserver/internal/handlers"
	"github.com/libris-lms/apiserver/internal/logging"
	"github.com/libris-lms/apiserver/internal/mq"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/internal/storage"
	"github.com/libris-lms/apiserver/internal/store"
	"github.com/libris-lms/apiserver/internal/worker"
)

// Server wraps the HTTP server and the backends it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	queue      *mq.MQ
	covers     *storage.Storage
	dispatcher *services.NotificationDispatcher
	logger     *slog.Logger

	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// Dependencies are the backends the API runs on. Publisher and Covers may be
// nil, which disables reminders and cover images respectively.
type Dependencies struct {
	DB        *sqlx.DB
	Publisher services.Publisher
	Covers    services.CoverStorage
	Logger    *slog.Logger
}

// New connects to every configured backend and builds the server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := logging.New(cfg)

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := &Server{db: dbConn, logger: logger}
	deps := Dependencies{DB: dbConn, Logger: logger}

	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		logger.Info("message queue disabled, due-date reminders are off")
	case err != nil:
		srv.close()
		return nil, err
	default:
		srv.queue = queue
		deps.Publisher = queue
		if queue.Name() == mq.BackendMemory {
			srv.startReminderWorker(cfg, dbConn, queue)
		}
	}

	covers, err := storage.NewFromConfig(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Info("object storage disabled, book covers are off")
	case err != nil:
		srv.close()
		return nil, err
	default:
		srv.covers = covers
		deps.Covers = covers
	}

	router, dispatcher := NewRouter(cfg, deps)
	srv.router = router
	srv.dispatcher = dispatcher

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter wires repositories, services and handlers onto a chi router. The
// returned dispatcher must be drained on shutdown.
func NewRouter(cfg config.Config, deps Dependencies) (*chi.Mux, *services.NotificationDispatcher) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userRepo := store.NewUserRepository(deps.DB)
	borrowRepo := store.NewBorrowRepository(deps.DB)

	var dispatcher *services.NotificationDispatcher
	if deps.Publisher != nil {
		dispatcher = services.NewNotificationDispatcher(deps.Publisher, cfg.Lending.ReminderChannel, logger)
	}

	userService := services.NewUserService(userRepo)
	borrowService := services.NewBorrowService(borrowRepo, userRepo, dispatcher, services.PolicyFromConfig(cfg.Lending))
	authorService := services.NewAuthorService(store.NewAuthorRepository(deps.DB))
	categoryService := services.NewCategoryService(store.NewCategoryRepository(deps.DB))
	bookService := services.NewBookService(store.NewBookRepository(deps.DB), deps.Covers)
	roleService := services.NewRoleService(store.NewRoleRepository(deps.DB))

	mw := handlers.NewMiddlewares(userService, cfg.JWTSecret,
		handlers.RateLimit(cfg.RateLimit.Auth, handlers.IPKey),
		handlers.RateLimit(cfg.RateLimit.Burst, handlers.UserKey),
		handlers.RateLimit(cfg.RateLimit.Sustained, handlers.UserKey),
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.HTTPMiddleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	var pinger handlers.Pinger
	if deps.DB != nil {
		pinger = deps.DB
	}
	router.Get("/healthz", handlers.Healthz(pinger))
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.JWTSecret, cfg.TokenTTL, mw)
		handlers.BorrowRouter(r, borrowService, mw)
		r.Route("/authors", func(r chi.Router) {
			handlers.AuthorRouter(r, authorService, mw)
		})
		r.Route("/categories", func(r chi.Router) {
			handlers.CategoryRouter(r, categoryService, mw)
		})
		r.Route("/books", func(r chi.Router) {
			handlers.BookRouter(r, bookService, mw)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userService, borrowService, mw)
		})
		r.Route("/roles", func(r chi.Router) {
			handlers.RoleRouter(r, roleService, mw)
		})
	})

	return router, dispatcher
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests and
// reminder publishes, then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.dispatcher.Wait()
	s.close()
	return err
}

// startReminderWorker consumes the in-process broker, which no separate
// worker process can reach.
func (s *Server) startReminderWorker(cfg config.Config, dbConn *sqlx.DB, queue *mq.MQ) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	s.workerDone = make(chan struct{})

	w := worker.NewReminderWorker(
		queue,
		cfg.Lending.ReminderChannel,
		store.NewBorrowRepository(dbConn),
		store.NewUserRepository(dbConn),
		worker.NewLogSender(s.logger),
		s.logger,
	)
	go func() {
		defer close(s.workerDone)
		if err := w.Run(ctx); err != nil {
			s.logger.Error("reminder worker stopped", "error", err)
		}
	}()
}

func (s *Server) close() {
	if s.stopWorker != nil {
		s.stopWorker()
		<-s.workerDone
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close message queue", "error", err)
		}
	}
	if s.covers != nil {
		if err := s.covers.Close(); err != nil {
			s.logger.Warn("close object storage", "error", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
