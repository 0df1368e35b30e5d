package detectionHandler

import (
	detectionService "VisionGuard/internal/api/detection/service"
	"VisionGuard/internal/middleware"
	"VisionGuard/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"time"
)

const requestTimeout = 60 * time.Second

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
) *DetectionHandler {
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
	}
}

// Start mounts the JSON and websocket API under srv.
func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	detections := srv.Group("/detections")
	detections.Post("/", h.middleware.NewRateLimiter, h.Detect)
	detections.Get("/history", h.History)
	detections.Use("/ws", wsMiddleware)
	detections.Get("/ws", websocket.New(h.handleLiveDetection))
}

// StartPage mounts the browser page and the download route on the app root.
func (h *DetectionHandler) StartPage(srv fiber.Router) {
	srv.Get("/", h.ShowPage)
	srv.Post("/", h.middleware.NewRateLimiter, h.SubmitPage)
	srv.Get("/results/output", h.DownloadOutput)
}
