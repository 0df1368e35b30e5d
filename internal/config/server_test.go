package config

import (
	"VisionGuard/pkg/inference"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "")
	t.Setenv("AWS_BUCKET_NAME", "")

	log := logrus.New()
	log.SetOutput(io.Discard)

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "yolov8n.pt")
	require.NoError(t, os.WriteFile(modelPath, []byte("weights"), 0o644))
	model, err := inference.LoadModel(modelPath, "")
	require.NoError(t, err)

	server, err := NewServer(
		WithFiber(NewFiber(log)),
		WithLogger(log),
		WithValidator(NewValidator()),
		WithModel(model),
		WithDetector("http://127.0.0.1:1/detect", time.Second),
		WithResultStore(filepath.Join(dir, "results")),
		WithS3Client(),
		WithDatabase(),
		WithMiddleware(),
		WithUtils(),
	)
	require.NoError(t, err)
	require.NoError(t, server.RegisterHandler())

	return server
}

func TestNewServerRequiresCoreParts(t *testing.T) {
	_, err := NewServer()
	assert.Error(t, err)

	_, err = NewServer(WithModel(nil))
	assert.ErrorIs(t, err, inference.ErrModelNotFound)

	_, err = NewServer(WithDetector("ws://localhost:8000", time.Second))
	assert.Error(t, err, "the detector needs a model first")
}

func TestServerRoutes(t *testing.T) {
	app := newTestServer(t).Mount()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"message":"Server is Healthy!","model":"yolov8n.pt"}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/results/output", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detections/ws", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestNewValidatorUsesJSONNames(t *testing.T) {
	type payload struct {
		Confidence float64 `json:"confidence" validate:"gte=0.1,lte=0.9"`
	}

	err := NewValidator().Struct(payload{Confidence: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'confidence'")
}
