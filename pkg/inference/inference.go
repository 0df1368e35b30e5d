package inference

import (
	"VisionGuard/internal/entity"
	"VisionGuard/pkg/gemini"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detector is the object-detection capability. Implementations return the
// detections the backend reports for image at the given threshold, in the
// backend's order. Labels may be empty when the backend only knows ids.
type Detector interface {
	Detect(ctx context.Context, image []byte, threshold float64) ([]entity.Detection, error)
	Close() error
}

// New picks a transport from the scheme of rawURL: ws/wss use a
// persistent websocket, http/https a multipart POST per image and
// gemini://<model> a Gemini vision model.
func New(rawURL string, model *Model, timeout time.Duration, log *logrus.Logger) (Detector, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid inference url: %w", err)
	}

	modelName := ""
	if model != nil {
		modelName = model.Name
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return NewWebsocketDetector(u.String(), modelName, timeout, log), nil
	case "http", "https":
		return NewHTTPDetector(u.String(), modelName, timeout), nil
	case "gemini":
		client, err := gemini.NewGeminiClient(u.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return NewGeminiDetector(client, model), nil
	default:
		return nil, fmt.Errorf("unsupported inference url scheme %q", u.Scheme)
	}
}

type detectRequest struct {
	Model string  `json:"model"`
	Conf  float64 `json:"conf"`
	Image string  `json:"image"`
}

type wireDetection struct {
	ClassID    int       `json:"class_id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

func newDetectRequest(model string, image []byte, threshold float64) detectRequest {
	return detectRequest{
		Model: model,
		Conf:  threshold,
		Image: base64.StdEncoding.EncodeToString(image),
	}
}

// decodeResponse parses a backend reply. Boxes arrive as corners
// [x1, y1, x2, y2] and are converted to origin plus size.
func decodeResponse(body []byte) ([]entity.Detection, error) {
	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling detection response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference backend error: %s", resp.Error)
	}

	detections := make([]entity.Detection, 0, len(resp.Detections))
	for i, d := range resp.Detections {
		if len(d.Box) != 4 {
			return nil, fmt.Errorf("detection %d has %d box coordinates, want 4", i, len(d.Box))
		}
		x1, y1, x2, y2 := d.Box[0], d.Box[1], d.Box[2], d.Box[3]
		if x2 < x1 {
			x1, x2 = x2, x1
		}
		if y2 < y1 {
			y1, y2 = y2, y1
		}
		detections = append(detections, entity.Detection{
			Label:      d.Label,
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
			Box: entity.BoundingBox{
				X:      int(x1),
				Y:      int(y1),
				Width:  int(x2 - x1),
				Height: int(y2 - y1),
			},
		})
	}

	return detections, nil
}
