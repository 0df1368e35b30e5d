package detectionService

import (
	"VisionGuard/internal/api/detection"
	"VisionGuard/internal/entity"
	contextPkg "VisionGuard/pkg/context"
	"VisionGuard/pkg/redis"
	"VisionGuard/pkg/render"
	"VisionGuard/pkg/storage"
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (s *detectionService) Run(ctx context.Context, req detection.DetectionRequest) (*detection.SessionView, error) {
	requestID := contextPkg.GetRequestID(ctx)

	result, err := s.Detect(ctx, req)
	if err != nil {
		return nil, err
	}

	summary, err := s.Summarize(result, req.ShowChart)
	if err != nil {
		return nil, err
	}

	view := &detection.SessionView{
		RequestID: requestID,
		Result:    result,
		Summary:   summary,
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to generate run id, skipping archive and history")
		return view, nil
	}

	if s.archive != nil {
		view.OutputURL = s.archiveOutput(ctx, requestID, id, result.Annotated)
	}

	s.recordHistory(ctx, id, view)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"threshold":  result.Threshold,
		"count":      summary.Total,
		"cached":     result.Cached,
	}).Info("Detection session completed")

	return view, nil
}

func (s *detectionService) Detect(ctx context.Context, req detection.DetectionRequest) (*entity.DetectionResult, error) {
	threshold := req.ConfidenceThreshold
	if threshold < detection.MinConfidence || threshold > detection.MaxConfidence {
		return nil, detection.ErrInvalidThreshold
	}

	if _, err := s.utils.SniffImageType(req.Image); err != nil {
		return nil, detection.ErrInvalidImage
	}

	img, err := render.Decode(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
	}

	detections, cached, err := s.infer(ctx, req.Image, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrInferenceFailed, err)
	}
	detections = s.qualify(detections, threshold)

	encoded, err := render.EncodeJPEG(render.Annotate(img, detections))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrRenderFailed, err)
	}

	path, err := s.results.Save(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrRenderFailed, err)
	}

	return &entity.DetectionResult{
		Threshold:  threshold,
		Detections: detections,
		Annotated:  encoded,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		OutputPath: path,
		Cached:     cached,
	}, nil
}

// archiveOutput uploads the annotated image and returns a presigned URL
// for it, or "" when either step fails.
func (s *detectionService) archiveOutput(ctx context.Context, requestID string, id string, annotated []byte) string {
	key := id + ".jpg"

	if _, err := s.archive.UploadOutput(ctx, key, annotated, detection.DownloadMimeType); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to archive detection output")
		return ""
	}

	url, err := s.archive.PresignUrl(key)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Warn("Failed to presign archived output")
		return ""
	}

	return url
}

func (s *detectionService) LatestOutput() ([]byte, error) {
	data, err := s.results.Load()
	if errors.Is(err, storage.ErrNoResult) {
		return nil, detection.ErrNoOutput
	}
	return data, err
}

// infer asks the backend for detections, going through the result cache
// when one is configured.
func (s *detectionService) infer(ctx context.Context, image []byte, threshold float64) ([]entity.Detection, bool, error) {
	var key string
	if s.cache != nil {
		key = redis.CacheKey(s.utils.Fingerprint(image), s.model.Name, threshold)
		if payload, err := s.cache.GetDetections(ctx, key); err == nil {
			var detections []entity.Detection
			if err := json.Unmarshal(payload, &detections); err == nil {
				return detections, true, nil
			}
			s.log.WithField("key", key).Warn("Discarding unreadable cached detections")
		}
	}

	detections, err := s.detector.Detect(ctx, image, threshold)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(detections); err == nil {
			_ = s.cache.SetDetections(ctx, key, payload)
		}
	}

	return detections, false, nil
}

// qualify drops detections under the threshold and fills in labels the
// backend left empty. Order is preserved.
func (s *detectionService) qualify(detections []entity.Detection, threshold float64) []entity.Detection {
	out := make([]entity.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < threshold {
			continue
		}
		if d.Label == "" {
			d.Label = s.model.Label(d.ClassID)
		}
		out = append(out, d)
	}
	return out
}
