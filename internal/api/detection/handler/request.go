package detectionHandler

import (
	"VisionGuard/internal/api/detection"
	"VisionGuard/pkg/utils"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// parseDetectionRequest reads the multipart form shared by the page and the
// JSON API. showChartDefault applies when the show_chart field is absent.
func (h *DetectionHandler) parseDetectionRequest(ctx *fiber.Ctx, showChartDefault bool) (detection.DetectionRequest, error) {
	req := detection.DetectionRequest{
		ConfidenceThreshold: detection.DefaultConfidence,
		ShowChart:           showChartDefault,
	}

	if raw := strings.TrimSpace(ctx.FormValue("confidence")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, detection.ErrInvalidThreshold
		}
		req.ConfidenceThreshold = v
	}

	if raw := strings.TrimSpace(ctx.FormValue("show_chart")); raw != "" {
		req.ShowChart = parseCheckbox(raw)
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		return req, utils.ErrNoFile
	}

	if err := h.utils.ValidateImageFile(file); err != nil {
		return req, err
	}

	data, err := h.utils.ReadFile(file)
	if err != nil {
		return req, err
	}

	contentType, err := h.utils.SniffImageType(data)
	if err != nil {
		return req, err
	}

	req.Image = data
	req.ContentType = contentType

	return req, nil
}

func parseCheckbox(raw string) bool {
	switch strings.ToLower(raw) {
	case "on", "yes":
		return true
	}
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
