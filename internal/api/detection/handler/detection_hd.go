package detectionHandler

import (
	"VisionGuard/internal/api/detection"
	contextPkg "VisionGuard/pkg/context"
	"VisionGuard/pkg/handlerUtil"
	"VisionGuard/pkg/log"
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const downloadRoute = "/results/output"

func (h *DetectionHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	req, err := h.parseDetectionRequest(ctx, true)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_detection_request")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"threshold":  req.ConfidenceThreshold,
		"bytes":      len(req.Image),
	}).Debug("Running detection")

	view, err := h.detectionService.Run(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "run_detection")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, toResponse(view))
	}
}

func (h *DetectionHandler) History(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	entries, err := h.detectionService.History(c, ctx.QueryInt("limit", 0))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_history")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.HistoryResponse{
			Data: entries,
		})
	}
}

func (h *DetectionHandler) DownloadOutput(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	data, err := h.detectionService.LatestOutput()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "download_output")
	}

	ctx.Attachment(detection.DownloadFileName)
	ctx.Set(fiber.HeaderContentType, detection.DownloadMimeType)
	return ctx.Status(fiber.StatusOK).Send(data)
}

func toResponse(view *detection.SessionView) detection.DetectionResponse {
	resp := detection.DetectionResponse{
		RequestID:  view.RequestID,
		Threshold:  view.Result.Threshold,
		Detections: view.Result.Detections,
		Summary:    view.Summary,
		Download:   downloadRoute,
		OutputURL:  view.OutputURL,
		Cached:     view.Result.Cached,
	}
	if len(view.Summary.ChartPNG) > 0 {
		resp.Chart = base64.StdEncoding.EncodeToString(view.Summary.ChartPNG)
	}
	return resp
}
