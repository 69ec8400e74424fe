package notifications

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"tmis-business-guru/internal/common/database"
	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/models"
)

const (
	createWatermarksTable = `CREATE TABLE IF NOT EXISTS notification_watermarks (
	role       TEXT        NOT NULL,
	user_id    TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	at         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (role, user_id, kind)
)`

	selectWatermark = `SELECT at FROM notification_watermarks WHERE role = $1 AND user_id = $2 AND kind = $3`

	upsertWatermark = `INSERT INTO notification_watermarks (role, user_id, kind, at) VALUES ($1, $2, $3, $4)
ON CONFLICT (role, user_id, kind) DO UPDATE SET at = GREATEST(notification_watermarks.at, EXCLUDED.at)`

	deleteWatermark = `DELETE FROM notification_watermarks WHERE role = $1 AND user_id = $2 AND kind = $3`
)

// PostgresStore keeps watermarks in a table so they survive restarts and follow the user
// across devices.
type PostgresStore struct {
	db *database.PostgresClient
}

func NewPostgresStore(db *database.PostgresClient) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the watermark table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createWatermarksTable); err != nil {
		return errors.NewWatermarkStoreError("ensure_schema", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, role, userID string, kind models.WatermarkKind) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRow(ctx, selectWatermark, role, userID, string(kind)).Scan(&at)
	if stderrors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.NewWatermarkStoreError("get", err)
	}
	return at, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, role, userID string, kind models.WatermarkKind, at time.Time) error {
	if _, err := s.db.Exec(ctx, upsertWatermark, role, userID, string(kind), at.UTC()); err != nil {
		return errors.NewWatermarkStoreError("set", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, role, userID string, kind models.WatermarkKind) error {
	if _, err := s.db.Exec(ctx, deleteWatermark, role, userID, string(kind)); err != nil {
		return errors.NewWatermarkStoreError("delete", err)
	}
	return nil
}
