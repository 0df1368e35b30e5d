package detectionRepository

import (
	"VisionGuard/internal/entity"
	contextPkg "VisionGuard/pkg/context"
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type HistoryEntryDB struct {
	ID            string          `db:"id"`
	RequestID     string          `db:"request_id"`
	Threshold     float64         `db:"threshold"`
	Count         int             `db:"count"`
	TopLabel      sql.NullString  `db:"top_label"`
	TopConfidence sql.NullFloat64 `db:"top_confidence"`
	OutputURL     sql.NullString  `db:"output_url"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (h HistoryEntryDB) toEntity() entity.HistoryEntry {
	return entity.HistoryEntry{
		ID:            h.ID,
		RequestID:     h.RequestID,
		Threshold:     h.Threshold,
		Count:         h.Count,
		TopLabel:      h.TopLabel.String,
		TopConfidence: h.TopConfidence.Float64,
		OutputURL:     h.OutputURL.String,
		CreatedAt:     h.CreatedAt,
	}
}

func (r *historyRepository) CreateEntry(c context.Context, entry entity.HistoryEntry) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":             entry.ID,
		"request_id":     entry.RequestID,
		"threshold":      entry.Threshold,
		"count":          entry.Count,
		"top_label":      sql.NullString{String: entry.TopLabel, Valid: entry.Count > 0},
		"top_confidence": sql.NullFloat64{Float64: entry.TopConfidence, Valid: entry.Count > 0},
		"output_url":     sql.NullString{String: entry.OutputURL, Valid: entry.OutputURL != ""},
		"created_at":     entry.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateHistoryEntry, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateEntry")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating history entry")
		return err
	}

	return nil
}

func (r *historyRepository) ListRecent(c context.Context, limit int) ([]entity.HistoryEntry, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryListRecentHistory, map[string]interface{}{
		"limit": limit,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListRecent named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []HistoryEntryDB
	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing history")
		return nil, err
	}

	entries := make([]entity.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntity())
	}

	return entries, nil
}
