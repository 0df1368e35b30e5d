package detectionService

import (
	"VisionGuard/internal/api/detection"
	"VisionGuard/internal/entity"
	"VisionGuard/pkg/render"
	"fmt"
	"math"
)

func (s *detectionService) Summarize(result *entity.DetectionResult, showChart bool) (*detection.DetectionSummary, error) {
	summary := &detection.DetectionSummary{
		Total: len(result.Detections),
	}

	if summary.Total == 0 {
		summary.NoObjects = true
		summary.Notice = detection.NoObjectsNotice
		return summary, nil
	}

	labels := make([]string, 0, summary.Total)
	confidences := make([]float64, 0, summary.Total)
	summary.Rows = make([]detection.SummaryRow, 0, summary.Total)

	top := 0
	for i, d := range result.Detections {
		labels = append(labels, d.Label)
		confidences = append(confidences, d.Confidence)
		summary.Rows = append(summary.Rows, detection.SummaryRow{
			Label:      d.Label,
			Confidence: round(d.Confidence, 3),
		})
		if d.Confidence > result.Detections[top].Confidence {
			top = i
		}
	}

	summary.Top = &detection.TopDetection{
		Index:      top,
		Label:      labels[top],
		Confidence: round(confidences[top], 2),
	}

	if showChart {
		png, err := render.ConfidenceChart(labels, confidences, top)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", detection.ErrRenderFailed, err)
		}
		summary.ChartPNG = png
	}

	return summary, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
