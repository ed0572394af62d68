package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// SnapshotStore 每个画布只保留最近一次快照
type SnapshotStore struct{ db *sql.DB }

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

const createSnapshotTable = `CREATE TABLE IF NOT EXISTS canvas_snapshots (
	canvas_id  VARCHAR(64) NOT NULL PRIMARY KEY,
	content    LONGBLOB    NOT NULL,
	updated_at TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

func (s *SnapshotStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createSnapshotTable)
	return err
}

func (s *SnapshotStore) SaveCanvasSnapshot(ctx context.Context, canvasID string, content []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canvas_snapshots (canvas_id, content)
		VALUES (?, ?)`,
		canvasID,
		content,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 已有快照：覆盖
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			_, err = s.db.ExecContext(ctx,
				`UPDATE canvas_snapshots SET content = ? WHERE canvas_id = ?`,
				content,
				canvasID,
			)
		}
		return err
	}
	return nil
}

func (s *SnapshotStore) DeleteCanvasSnapshot(ctx context.Context, canvasID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM canvas_snapshots WHERE canvas_id = ?`, canvasID)
	return err
}

// LoadSnapshots canvasId -> content
func (s *SnapshotStore) LoadSnapshots(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT canvas_id, content FROM canvas_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id string
		var content []byte
		if err := rows.Scan(&id, &content); err != nil {
			return nil, err
		}
		out[id] = content
	}
	return out, rows.Err()
}
