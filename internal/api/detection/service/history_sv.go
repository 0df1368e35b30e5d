package detectionService

import (
	"VisionGuard/internal/api/detection"
	"VisionGuard/internal/entity"
	contextPkg "VisionGuard/pkg/context"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (s *detectionService) History(ctx context.Context, limit int) ([]entity.HistoryEntry, error) {
	if s.repo == nil {
		return nil, detection.ErrHistoryDisabled
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}

	return client.History.ListRecent(ctx, limit)
}

func (s *detectionService) recordHistory(ctx context.Context, id string, view *detection.SessionView) {
	if s.repo == nil {
		return
	}

	entry := entity.HistoryEntry{
		ID:        id,
		RequestID: view.RequestID,
		Threshold: view.Result.Threshold,
		Count:     view.Summary.Total,
		OutputURL: view.OutputURL,
		CreatedAt: time.Now().UTC(),
	}
	if view.Summary.Top != nil {
		entry.TopLabel = view.Summary.Top.Label
		entry.TopConfidence = view.Summary.Top.Confidence
	}

	fields := logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"history_id": id,
	}

	client, err := s.repo.NewClient(true)
	if err != nil {
		s.log.WithFields(fields).WithError(err).Warn("Failed to open history transaction")
		return
	}

	if err := client.History.CreateEntry(ctx, entry); err != nil {
		_ = client.Rollback()
		s.log.WithFields(fields).WithError(err).Warn("Failed to record detection history")
		return
	}

	if err := client.Commit(); err != nil {
		s.log.WithFields(fields).WithError(err).Warn("Failed to commit detection history")
	}
}
