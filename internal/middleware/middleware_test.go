package middleware

import (
	contextPkg "VisionGuard/pkg/context"
	"VisionGuard/pkg/log"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRequestIDMiddleware(t *testing.T) {
	m := New(newQuietLogger())

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"locals":  m.GetRequestID(c),
			"context": contextPkg.GetRequestID(c.UserContext()),
		})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	generated := resp.Header.Get(RequestIDKey)
	_, err = ulid.Parse(generated)
	assert.NoError(t, err, "generated ids are ULIDs")

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"locals":"`+generated+`","context":"`+generated+`"}`, string(body))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "client-supplied")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "client-supplied", resp.Header.Get(RequestIDKey))
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	m := New(newQuietLogger())

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "unknown", string(body))
}

func TestRateLimiter(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "0.001")
	t.Setenv("RATE_LIMIT_BURST", "2")
	m := New(newQuietLogger())

	app := fiber.New()
	app.Post("/", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	m := New(newQuietLogger())

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware())
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTeapot)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
}

func TestLoggingMiddlewareLogsHandlerErrorStatus(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	hook := logtest.NewLocal(log.NewLogger())
	m := New(newQuietLogger())

	app := fiber.New()
	app.Use(m.NewLoggingMiddleware())
	app.Get("/ws", func(c *fiber.Ctx) error {
		return fiber.ErrUpgradeRequired
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Client error", entry.Message)
	assert.Equal(t, fiber.StatusUpgradeRequired, entry.Data["status"])
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("VG_TEST_FLOAT", "")
	assert.Equal(t, 3.0, envFloat("VG_TEST_FLOAT", 3))

	t.Setenv("VG_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, envFloat("VG_TEST_FLOAT", 3))

	t.Setenv("VG_TEST_FLOAT", "-1")
	assert.Equal(t, 3.0, envFloat("VG_TEST_FLOAT", 3))

	t.Setenv("VG_TEST_FLOAT", "lots")
	assert.Equal(t, 3.0, envFloat("VG_TEST_FLOAT", 3))
}
