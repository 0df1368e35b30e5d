package detection

import "VisionGuard/internal/entity"

const (
	DefaultConfidence = 0.4
	MinConfidence     = 0.1
	MaxConfidence     = 0.9

	OutputFileName   = "detected_output.jpg"
	DownloadFileName = "VisionGuardAI_output.jpg"
	DownloadMimeType = "image/jpeg"

	NoObjectsNotice = "No objects detected at this confidence threshold."
)

type DetectionRequest struct {
	Image               []byte  `validate:"required,min=1"`
	ContentType         string  `validate:"omitempty,oneof=image/jpeg image/png"`
	ConfidenceThreshold float64 `validate:"gte=0.1,lte=0.9"`
	ShowChart           bool
}

type ThresholdMessage struct {
	Confidence float64 `json:"confidence" validate:"gte=0.1,lte=0.9"`
}

type SummaryRow struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type TopDetection struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DetectionSummary holds the views derived from one result. Rows, Top and
// Chart are empty when NoObjects is set.
type DetectionSummary struct {
	Total     int           `json:"total"`
	Rows      []SummaryRow  `json:"rows,omitempty"`
	Top       *TopDetection `json:"top,omitempty"`
	NoObjects bool          `json:"no_objects"`
	Notice    string        `json:"notice,omitempty"`
	ChartPNG  []byte        `json:"-"`
}

type SessionView struct {
	RequestID string                  `json:"request_id"`
	Result    *entity.DetectionResult `json:"result"`
	Summary   *DetectionSummary       `json:"summary"`
	OutputURL string                  `json:"output_url,omitempty"`
}

type DetectionResponse struct {
	RequestID  string             `json:"request_id"`
	Threshold  float64            `json:"threshold"`
	Detections []entity.Detection `json:"detections"`
	Summary    *DetectionSummary  `json:"summary"`
	Chart      string             `json:"chart,omitempty"`
	Download   string             `json:"download"`
	OutputURL  string             `json:"output_url,omitempty"`
	Cached     bool               `json:"cached"`
}

type HistoryResponse struct {
	Data []entity.HistoryEntry `json:"data"`
}
