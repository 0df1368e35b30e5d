package inference

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{"detections":[
	{"class_id":0,"label":"person","confidence":0.91,"box":[10,20,110,220]},
	{"class_id":16,"label":"","confidence":0.47,"box":[300,40,200,140]}
]}`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDecodeResponse(t *testing.T) {
	detections, err := decodeResponse([]byte(sampleResponse))
	require.NoError(t, err)
	require.Len(t, detections, 2)

	assert.Equal(t, "person", detections[0].Label)
	assert.Equal(t, 0.91, detections[0].Confidence)
	assert.Equal(t, 10, detections[0].Box.X)
	assert.Equal(t, 20, detections[0].Box.Y)
	assert.Equal(t, 100, detections[0].Box.Width)
	assert.Equal(t, 200, detections[0].Box.Height)

	// inverted corners are normalised
	assert.Equal(t, 16, detections[1].ClassID)
	assert.Equal(t, 200, detections[1].Box.X)
	assert.Equal(t, 100, detections[1].Box.Width)
	assert.Equal(t, 100, detections[1].Box.Height)
}

func TestDecodeResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"detections":`, "unmarshaling"},
		{"backend error", `{"error":"model not loaded"}`, "model not loaded"},
		{"short box", `{"detections":[{"class_id":1,"confidence":0.5,"box":[1,2,3]}]}`, "box coordinates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeResponse([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeResponseEmpty(t *testing.T) {
	detections, err := decodeResponse([]byte(`{"detections":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, detections)
	assert.Empty(t, detections)
}

func TestHTTPDetector(t *testing.T) {
	image := []byte("fake-jpeg-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "0.55", r.FormValue("conf"))
		assert.Equal(t, "yolov8n.pt", r.FormValue("model"))

		file, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			got, _ := io.ReadAll(file)
			assert.Equal(t, image, got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	detector := NewHTTPDetector(srv.URL, "yolov8n.pt", time.Second)
	defer detector.Close()

	detections, err := detector.Detect(context.Background(), image, 0.55)
	require.NoError(t, err)
	assert.Len(t, detections, 2)
}

func TestHTTPDetectorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	detector := NewHTTPDetector(srv.URL, "yolov8n.pt", time.Second)

	_, err := detector.Detect(context.Background(), []byte("x"), 0.4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// newInferenceServer answers every websocket message with sampleResponse.
// When dropAfterReply is set the connection is closed after each reply.
func newInferenceServer(t *testing.T, dropAfterReply bool, connections *int32) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		atomic.AddInt32(connections, 1)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req detectRequest
			if !assert.NoError(t, json.Unmarshal(msg, &req)) {
				return
			}
			assert.Equal(t, "yolov8n.pt", req.Model)
			_, err = base64.StdEncoding.DecodeString(req.Image)
			assert.NoError(t, err)

			if err := conn.WriteMessage(websocket.TextMessage, []byte(sampleResponse)); err != nil {
				return
			}
			if dropAfterReply {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketDetectorReusesConnection(t *testing.T) {
	var connections int32
	srv := newInferenceServer(t, false, &connections)
	defer srv.Close()

	detector := NewWebsocketDetector(wsURL(srv), "yolov8n.pt", time.Second, quietLogger())
	defer detector.Close()

	for i := 0; i < 3; i++ {
		detections, err := detector.Detect(context.Background(), []byte("frame"), 0.4)
		require.NoError(t, err)
		assert.Len(t, detections, 2)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&connections))
}

func TestWebsocketDetectorReconnects(t *testing.T) {
	var connections int32
	srv := newInferenceServer(t, true, &connections)
	defer srv.Close()

	detector := NewWebsocketDetector(wsURL(srv), "yolov8n.pt", time.Second, quietLogger())
	defer detector.Close()

	_, err := detector.Detect(context.Background(), []byte("frame"), 0.4)
	require.NoError(t, err)

	// the server hung up after its reply, so this exchange fails
	_, err = detector.Detect(context.Background(), []byte("frame"), 0.4)
	require.Error(t, err)

	detections, err := detector.Detect(context.Background(), []byte("frame"), 0.4)
	require.NoError(t, err)
	assert.Len(t, detections, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&connections))
}

func TestWebsocketDetectorHonoursContext(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	detector := NewWebsocketDetector(wsURL(srv), "yolov8n.pt", 10*time.Second, quietLogger())
	defer detector.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := detector.Detect(ctx, []byte("frame"), 0.4)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWebsocketDetectorClosed(t *testing.T) {
	detector := NewWebsocketDetector("ws://127.0.0.1:1/never", "yolov8n.pt", time.Second, quietLogger())
	require.NoError(t, detector.Close())
	require.NoError(t, detector.Close())

	_, err := detector.Detect(context.Background(), []byte("frame"), 0.4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestNewSelectsTransport(t *testing.T) {
	model := &Model{Name: "yolov8n.pt", labels: cocoLabels}

	d, err := New("ws://localhost:8000/api/v1/detect/ws", model, time.Second, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &websocketDetector{}, d)

	d, err = New("https://inference.internal/detect", model, time.Second, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &httpDetector{}, d)

	_, err = New("grpc://inference.internal", model, time.Second, quietLogger())
	require.Error(t, err)

	t.Setenv("GEMINI_API_KEY", "")
	_, err = New("gemini://gemini-2.0-flash", model, time.Second, quietLogger())
	require.Error(t, err)
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yolov8n.pt")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))

	model, err := LoadModel(path, "")
	require.NoError(t, err)
	assert.Equal(t, "yolov8n.pt", model.Name)
	assert.Equal(t, 80, model.NumClasses())
	assert.Equal(t, "person", model.Label(0))
	assert.Equal(t, "dog", model.Label(16))
	assert.Equal(t, "class_80", model.Label(80))
	assert.Equal(t, "class_-1", model.Label(-1))
}

func TestLoadModelMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "yolov8n.pt")

	_, err := LoadModel(path, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Equal(t, "Model yolov8n.pt not found! Place it into the /models folder.", MissingModelMessage("models/yolov8n.pt"))
}

func TestLoadModelDirectory(t *testing.T) {
	_, err := LoadModel(t.TempDir(), "")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestLoadModelCustomLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helmet.pt")
	labels := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))
	require.NoError(t, os.WriteFile(labels, []byte("helmet\n\nno_helmet\n"), 0o644))

	model, err := LoadModel(path, labels)
	require.NoError(t, err)
	assert.Equal(t, 2, model.NumClasses())
	assert.Equal(t, "no_helmet", model.Label(1))

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = LoadModel(path, empty)
	assert.Error(t, err)
}
