package config

import (
	"VisionGuard/database/postgres"
	"VisionGuard/internal/api/detection"
	detectionHandler "VisionGuard/internal/api/detection/handler"
	detectionRepository "VisionGuard/internal/api/detection/repository"
	detectionService "VisionGuard/internal/api/detection/service"
	"VisionGuard/internal/middleware"
	"VisionGuard/pkg/inference"
	"VisionGuard/pkg/redis"
	"VisionGuard/pkg/s3"
	"VisionGuard/pkg/storage"
	"VisionGuard/pkg/utils"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	model       *inference.Model
	detector    inference.Detector
	results     *storage.ResultStore
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	handlers    []handler
	pages       []handler
}

type handler interface {
	Start(srv fiber.Router)
}

// pageRoutes adapts a handler's root-level routes to the handler interface.
type pageRoutes func(srv fiber.Router)

func (p pageRoutes) Start(srv fiber.Router) { p(srv) }

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.results == nil {
		return nil, fmt.Errorf("result store is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithModel(model *inference.Model) ServerOption {
	return func(s *Server) error {
		if model == nil {
			return inference.ErrModelNotFound
		}
		s.model = model
		return nil
	}
}

// WithDetector dials nothing; the websocket transport connects on the
// first detection.
func WithDetector(rawURL string, timeout time.Duration) ServerOption {
	return func(s *Server) error {
		if s.model == nil {
			return fmt.Errorf("model must be loaded before the detector")
		}
		detector, err := inference.New(rawURL, s.model, timeout, s.log)
		if err != nil {
			return fmt.Errorf("failed to create detector: %w", err)
		}
		s.detector = detector
		return nil
	}
}

func WithResultStore(dir string) ServerOption {
	return func(s *Server) error {
		store, err := storage.NewResultStore(dir, detection.OutputFileName, s.log)
		if err != nil {
			return fmt.Errorf("failed to prepare result directory: %w", err)
		}
		s.results = store
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if client == nil && s.log != nil {
			s.log.Info("AWS_BUCKET_NAME not set, output archive disabled")
		}
		s.s3Client = client
		return nil
	}
}

// WithDatabase enables detection history. A missing DB_HOST leaves it off.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if errors.Is(err, postgres.ErrNotConfigured) {
			if s.log != nil {
				s.log.Info("DB_HOST not set, detection history disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	var historyRepo detectionRepository.Repository
	if s.db != nil {
		historyRepo = detectionRepository.New(s.db, s.log)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := historyRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare history schema: %w", err)
		}
	}

	if s.utils == nil {
		s.utils = utils.New()
	}
	if s.middleware == nil {
		s.middleware = middleware.New(s.log)
	}
	if s.validator == nil {
		s.validator = NewValidator()
	}

	detectionServices := detectionService.NewDetectionService(
		s.log,
		s.detector,
		s.model,
		s.results,
		historyRepo,
		s.redisServer,
		s.s3Client,
		s.utils,
	)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.utils)

	s.handlers = append(s.handlers, detectionHandlers)
	s.pages = append(s.pages, pageRoutes(detectionHandlers.StartPage))

	return nil
}

// Mount installs middleware and routes on the engine. Run calls it; tests
// can call it directly and drive the app with fiber's Test.
func (s *Server) Mount() *fiber.App {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.setupHealthCheck()

	for _, p := range s.pages {
		p.Start(s.engine)
	}

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	return s.engine
}

func (s *Server) Run() error {
	s.Mount()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.detector != nil {
		if cerr := s.detector.Close(); cerr != nil {
			s.log.Warnf("Failed to close detector: %v", cerr)
		}
	}
	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.Warnf("Failed to close redis: %v", cerr)
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.log.Warnf("Failed to close database: %v", cerr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
			"model":   s.model.Name,
		})
	})
}
