package main

import (
	"VisionGuard/internal/config"
	"VisionGuard/pkg/inference"
	"VisionGuard/pkg/log"
	"VisionGuard/pkg/redis"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/raven-go"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	logger := log.NewLogger()
	if envErr != nil {
		if os.Getenv("APP_ENV") == "production" {
			logger.Fatalf("Error loading .env file: %v", envErr)
		}
		logger.Warnf("No .env file loaded: %v", envErr)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := raven.SetDSN(dsn); err != nil {
			logger.Warnf("Invalid SENTRY_DSN: %v", err)
		}
	}

	modelPath := getenv("MODEL_PATH", "models/yolov8n.pt")
	model, err := inference.LoadModel(modelPath, os.Getenv("MODEL_LABELS_PATH"))
	if errors.Is(err, inference.ErrModelNotFound) {
		logger.Fatal(inference.MissingModelMessage(modelPath))
	}
	if err != nil {
		logger.Fatalf("Failed to load model: %v", err)
	}
	logger.WithField("model", model.Name).Info("Model Loaded!")

	inferenceTimeout := 30 * time.Second
	if raw := os.Getenv("INFERENCE_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			inferenceTimeout = parsed
		} else {
			logger.Warnf("Invalid INFERENCE_TIMEOUT %q, using %s", raw, inferenceTimeout)
		}
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithModel(model),
		config.WithDetector(getenv("INFERENCE_URL", "ws://localhost:8000/api/v1/detect/ws"), inferenceTimeout),
		config.WithResultStore(getenv("RESULT_DIR", "results")),
		config.WithRedisServer(redisServer),
		config.WithS3Client(),
		config.WithDatabase(),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
