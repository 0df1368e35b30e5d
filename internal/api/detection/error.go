package detection

import (
	"VisionGuard/pkg/response"
	"net/http"
)

var (
	ErrInvalidImage     = response.NewError(http.StatusBadRequest, "image must be a valid jpg, jpeg or png file")
	ErrInvalidThreshold = response.NewError(http.StatusBadRequest, "confidence threshold must be between 0.1 and 0.9")
	ErrInferenceFailed  = response.NewError(http.StatusBadGateway, "object detection failed")
	ErrRenderFailed     = response.NewError(http.StatusInternalServerError, "failed to render detection output")
	ErrNoOutput         = response.NewError(http.StatusNotFound, "no detection output available yet")
	ErrHistoryDisabled  = response.NewError(http.StatusNotFound, "detection history is not configured")
)
