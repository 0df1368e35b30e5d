package middleware

import (
	"VisionGuard/pkg/log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return LoggerConfig()
}

// LoggerConfig logs one line per request through the shared logger.
func LoggerConfig() fiber.Handler {
	return logRequest
}

func logRequest(c *fiber.Ctx) error {
	start := time.Now()

	// The error handler has to run before the status is read, otherwise
	// failed requests are logged with the default 200.
	if chainErr := c.Next(); chainErr != nil {
		if err := c.App().ErrorHandler(c, chainErr); err != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	latency := time.Since(start)
	status := c.Response().StatusCode()

	requestID, ok := c.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = "unknown"
	}

	logFields := log.Fields{
		"request_id":    requestID,
		"method":        c.Method(),
		"path":          c.Path(),
		"status":        status,
		"latency_ms":    latency.Milliseconds(),
		"ip":            c.IP(),
		"user_agent":    c.Get("User-Agent"),
		"response_size": len(c.Response().Body()),
	}

	if body := requestBodySummary(c); body != "" {
		logFields["request_body"] = body
	}

	switch {
	case status >= 500:
		log.Error(logFields, "Server error")
	case status >= 400:
		log.Warn(logFields, "Client error")
	default:
		log.Info(logFields, "Success")
	}

	return nil
}

// requestBodySummary never logs uploads; only small JSON bodies are kept.
func requestBodySummary(c *fiber.Ctx) string {
	body := c.Request().Body()
	if len(body) == 0 {
		return ""
	}

	contentType := string(c.Request().Header.ContentType())
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return "[multipart upload]"
	}

	if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) || len(body) > 4096 {
		return "[omitted]"
	}

	var jsonBody map[string]interface{}
	if err := json.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	sanitized, err := json.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}
