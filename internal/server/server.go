// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "snapshare/docs" // swagger docs
	"snapshare/internal/config"
	"snapshare/internal/middleware"
	"snapshare/internal/models"
	"snapshare/internal/notifications"
	"snapshare/internal/observability"
	"snapshare/internal/repository"
	"snapshare/internal/service"
	"snapshare/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "snapshare-api"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.Storage
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	followRepo   repository.FollowRepository
	bookmarkRepo repository.BookmarkRepository

	notifier   *notifications.Notifier
	hub        *notifications.Hub
	dispatcher *notifications.Dispatcher

	userService    *service.UserService
	postService    *service.PostService
	commentService *service.CommentService
	followService  *service.FollowService
	imageService   *service.ImageService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; the server then runs single-instance without cache,
// rate limiting or token revocation.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Storage) (*Server, error) {
	if cfg == nil || db == nil || store == nil {
		return nil, errors.New("server: config, database and storage are required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: observability.HTTPMetrics(serviceName),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		bookmarkRepo:   repository.NewBookmarkRepository(db),
	}
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())

	s.hub = notifications.NewHub(redisClient)
	var publisher notifications.Publisher
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		publisher = s.notifier
	}
	s.dispatcher = notifications.NewDispatcher(s.hub, publisher)

	s.imageService = service.NewImageService(store, cfg)
	s.userService = service.NewUserService(s.userRepo, s.postRepo, s.followRepo, s.bookmarkRepo, s.imageService)
	s.postService = service.NewPostService(s.postRepo, s.bookmarkRepo, s.userRepo, s.dispatcher)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo)
	s.followService = service.NewFollowService(s.followRepo, s.userRepo, s.dispatcher)

	return s, nil
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	bodyLimit := s.config.ImageMaxUploadMB
	if bodyLimit <= 0 {
		bodyLimit = service.DefaultImageMaxUploadSizeMB
	}
	app := fiber.New(fiber.Config{
		AppName:      "SnapShare API",
		BodyLimit:    (bodyLimit + 1) * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler writes the failure envelope for every error a handler returns.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{
			Message: fe.Message,
			Code:    statusCode(fe.Code),
		})
	}

	if models.StatusFor(err) >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global per-IP ceiling in production; per-route limits sit on the routes.
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later.",
				Code:    "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	if local, ok := s.store.(*storage.LocalStorage); ok {
		app.Static(mediaPrefix(s.config.StoragePublicURL), local.BasePath(), fiber.Static{
			MaxAge: 3600,
		})
	}

	api := app.Group("/api/v1")

	users := api.Group("/user")
	users.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	users.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	users.Get("/logout", s.Logout)

	protectedUsers := users.Group("", s.AuthRequired())
	protectedUsers.Get("/suggested", s.SuggestedUsers)
	protectedUsers.Post("/profile/edit", s.EditProfile)
	protectedUsers.Post("/followorunfollow/:id", s.FollowOrUnfollow)
	protectedUsers.Get("/:id/profile", s.GetProfile)

	posts := api.Group("/post", s.AuthRequired())
	posts.Post("/addpost", middleware.RateLimit(s.redis, 10, time.Minute, "addpost"), s.AddPost)
	posts.Get("/all", s.GetAllPosts)
	posts.Get("/userpost/all", s.GetUserPosts)
	posts.Delete("/delete/:id", s.DeletePost)
	posts.Get("/:id/like", s.LikePost)
	posts.Get("/:id/dislike", s.DislikePost)
	posts.Post("/:id/comment/all", s.GetComments)
	posts.Post("/:id/comment", middleware.RateLimit(s.redis, 30, time.Minute, "comment"), s.AddComment)
	posts.Get("/:id/bookmark", s.BookmarkPost)

	api.Get("/ws", s.AuthRequired(), requireUpgrade, s.WebsocketHandler())
}

// mediaPrefix is the route local files are served under. Absolute public
// URLs point at a CDN in front of the same files, so they keep the default.
func mediaPrefix(publicURL string) string {
	if strings.HasPrefix(publicURL, "/") {
		return strings.TrimSuffix(publicURL, "/")
	}
	return "/media"
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires cross-instance notifications and serves HTTP until shutdown.
func (s *Server) Start() error {
	app := s.App()

	if s.notifier != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start notification wiring",
				slog.String("hub", s.hub.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	s.postService.WaitNotifications()
	s.followService.WaitNotifications()

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub",
			slog.String("hub", s.hub.Name()),
			slog.String("error", err.Error()),
		)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
