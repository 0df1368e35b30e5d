package inference

import (
	"VisionGuard/internal/entity"
	"VisionGuard/pkg/gemini"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

const geminiPrompt = `Detect every distinct object in the image.
Return a JSON array. Each element must have:
"label": a short lowercase class name,
"confidence": your confidence between 0 and 1,
"box_2d": [ymin, xmin, ymax, xmax] normalised to 0-1000.
Only include objects with confidence of at least %.2f.`

// geminiScale is the coordinate range Gemini uses for box_2d.
const geminiScale = 1000.0

type geminiObject struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box2D      []float64 `json:"box_2d"`
}

type geminiDetector struct {
	client gemini.IGemini
	model  *Model
}

// NewGeminiDetector runs detection through a Gemini vision model. Class ids
// are looked up from the returned labels in the model's label table.
func NewGeminiDetector(client gemini.IGemini, model *Model) Detector {
	return &geminiDetector{
		client: client,
		model:  model,
	}
}

func (d *geminiDetector) Detect(ctx context.Context, img []byte, threshold float64) ([]entity.Detection, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	text, err := d.client.DetectObjects(ctx, img, format, fmt.Sprintf(geminiPrompt, threshold))
	if err != nil {
		return nil, fmt.Errorf("gemini detection: %w", err)
	}

	var objects []geminiObject
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &objects); err != nil {
		return nil, fmt.Errorf("error unmarshaling gemini response: %w", err)
	}

	detections := make([]entity.Detection, 0, len(objects))
	for _, o := range objects {
		if len(o.Box2D) != 4 {
			continue
		}
		ymin := o.Box2D[0] * float64(cfg.Height) / geminiScale
		xmin := o.Box2D[1] * float64(cfg.Width) / geminiScale
		ymax := o.Box2D[2] * float64(cfg.Height) / geminiScale
		xmax := o.Box2D[3] * float64(cfg.Width) / geminiScale
		if xmax < xmin {
			xmin, xmax = xmax, xmin
		}
		if ymax < ymin {
			ymin, ymax = ymax, ymin
		}

		label := strings.ToLower(strings.TrimSpace(o.Label))
		detections = append(detections, entity.Detection{
			Label:      label,
			ClassID:    d.classID(label),
			Confidence: o.Confidence,
			Box: entity.BoundingBox{
				X:      int(xmin),
				Y:      int(ymin),
				Width:  int(xmax - xmin),
				Height: int(ymax - ymin),
			},
		})
	}

	return detections, nil
}

func (d *geminiDetector) Close() error {
	return d.client.Close()
}

// classID returns -1 for labels outside the label table.
func (d *geminiDetector) classID(label string) int {
	if d.model == nil {
		return -1
	}
	for i, l := range d.model.labels {
		if l == label {
			return i
		}
	}
	return -1
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
