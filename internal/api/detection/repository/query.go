package detectionRepository

const (
	queryCreateHistoryTable = `
		CREATE TABLE IF NOT EXISTS detection_history (
			id             VARCHAR(26) PRIMARY KEY,
			request_id     VARCHAR(64) NOT NULL,
			threshold      DOUBLE PRECISION NOT NULL,
			count          INTEGER NOT NULL,
			top_label      VARCHAR(128),
			top_confidence DOUBLE PRECISION,
			output_url     TEXT,
			created_at     TIMESTAMPTZ NOT NULL
		)
	`

	queryCreateHistoryEntry = `
		INSERT INTO detection_history (
			id,
			request_id,
			threshold,
			count,
			top_label,
			top_confidence,
			output_url,
			created_at
		) VALUES (
			:id,
			:request_id,
			:threshold,
			:count,
			:top_label,
			:top_confidence,
			:output_url,
			:created_at
		)
	`

	queryListRecentHistory = `
		SELECT
			id,
			request_id,
			threshold,
			count,
			top_label,
			top_confidence,
			output_url,
			created_at
		FROM detection_history
		ORDER BY created_at DESC
		LIMIT :limit
	`
)
