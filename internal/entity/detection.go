package entity

import "time"

// BoundingBox is an axis-aligned box in source image pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Detection struct {
	Label      string      `json:"label"`
	ClassID    int         `json:"class_id"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// DetectionResult is the outcome of one inference pass: the detections
// in model order plus the annotated JPEG that was written for download.
type DetectionResult struct {
	Threshold  float64     `json:"threshold"`
	Detections []Detection `json:"detections"`
	Annotated  []byte      `json:"-"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	OutputPath string      `json:"output_path"`
	Cached     bool        `json:"cached"`
}

type HistoryEntry struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	Threshold     float64   `json:"threshold"`
	Count         int       `json:"count"`
	TopLabel      string    `json:"top_label,omitempty"`
	TopConfidence float64   `json:"top_confidence,omitempty"`
	OutputURL     string    `json:"output_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
