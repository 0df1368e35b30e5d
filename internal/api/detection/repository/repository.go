package detectionRepository

import (
	"VisionGuard/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
	EnsureSchema(ctx context.Context) error
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		History:  &historyRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

func (r *repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, queryCreateHistoryTable); err != nil {
		r.log.WithField("error", err.Error()).Error("Failed to create detection_history table")
		return err
	}
	return nil
}

type Client struct {
	History interface {
		CreateEntry(ctx context.Context, entry entity.HistoryEntry) error
		ListRecent(ctx context.Context, limit int) ([]entity.HistoryEntry, error)
	}

	Commit   func() error
	Rollback func() error
}

type historyRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
