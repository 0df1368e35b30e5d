package handlerUtil

import (
	"VisionGuard/pkg/log"
	"VisionGuard/pkg/response"
	"VisionGuard/pkg/utils"
	"errors"

	"github.com/getsentry/raven-go"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Resolve logs err and returns the status and the message that is safe to
// show to a client.
func (h *ErrorHandler) Resolve(requestID string, err error, path string, operation string) (int, string) {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return respErr.Code, respErr.Error()
	}

	switch {
	case errors.Is(err, utils.ErrNoFile):
		h.logger.WithFields(fields).Warn("No image uploaded")
		return fiber.StatusBadRequest, "Please upload an image."
	case errors.Is(err, utils.ErrFileTooLarge):
		h.logger.WithFields(fields).Warn("File too large")
		return fiber.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB."
	case errors.Is(err, utils.ErrUnsupportedImage):
		h.logger.WithFields(fields).Warn("Invalid file type")
		return fiber.StatusBadRequest, "Invalid file type. Only jpg, jpeg and png images are allowed."
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(fields).Warn("Request rejected")
		return fiberErr.Code, fiberErr.Message
	}

	traceID := log.ErrorWithTraceID(fields, "Unexpected error")
	raven.CaptureError(err, map[string]string{
		"trace_id":  traceID,
		"path":      path,
		"operation": operation,
	})

	return fiber.StatusInternalServerError, "An unexpected error occurred. Trace ID: " + traceID
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, message := h.Resolve(requestID, err, path, operation)
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		RequestID: requestID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:     "Validation failed: " + ValidationMessage(err),
		Code:      "VALIDATION_ERROR",
		RequestID: requestID,
	})
}

// ValidationMessage flattens validator errors into "field: rule" pairs.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += ", "
		}
		msg += fe.Field() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
	}
	return msg
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: fiberUtils.StatusMessage(fiber.StatusRequestTimeout),
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

// FiberErrorHandler is installed as the app-wide fallback so errors that
// escape a handler still get the JSON shape.
func (h *ErrorHandler) FiberErrorHandler(c *fiber.Ctx, err error) error {
	requestID, _ := c.Locals("X-Request-ID").(string)
	return h.Handle(c, requestID, err, c.Path(), "fiber")
}
