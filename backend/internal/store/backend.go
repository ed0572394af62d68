package store

import (
	"context"
	"fmt"

	"canvasServer/backend/internal/membership"
	"canvasServer/backend/internal/presence"
)

// Backend 成员关系和快照的持久化目标，由 Writer 串行调用
type Backend interface {
	SaveCanvas(ctx context.Context, c membership.Canvas) error
	SaveCollaborator(ctx context.Context, canvasID string, c membership.Collaborator, seq int) error
	RemoveCollaborator(ctx context.Context, canvasID, userID string) error
	SaveSnapshot(ctx context.Context, canvasID string, content []byte) error
	DeleteCanvas(ctx context.Context, canvasID string) error
}

// MySQLBackend 成员关系走 gorm，快照走原生 SQL
type MySQLBackend struct {
	Repo      *MembershipRepo
	Snapshots *SnapshotStore
}

func (b *MySQLBackend) SaveCanvas(ctx context.Context, c membership.Canvas) error {
	return b.Repo.SaveCanvas(ctx, c)
}

func (b *MySQLBackend) SaveCollaborator(ctx context.Context, canvasID string, c membership.Collaborator, seq int) error {
	return b.Repo.SaveCollaborator(ctx, canvasID, c, seq)
}

func (b *MySQLBackend) RemoveCollaborator(ctx context.Context, canvasID, userID string) error {
	return b.Repo.RemoveCollaborator(ctx, canvasID, userID)
}

func (b *MySQLBackend) SaveSnapshot(ctx context.Context, canvasID string, content []byte) error {
	return b.Snapshots.SaveCanvasSnapshot(ctx, canvasID, content)
}

func (b *MySQLBackend) DeleteCanvas(ctx context.Context, canvasID string) error {
	if err := b.Snapshots.DeleteCanvasSnapshot(ctx, canvasID); err != nil {
		return err
	}
	return b.Repo.DeleteCanvas(ctx, canvasID)
}

// LoadCanvases 启动时读出全部画布，交给 membership.Store.Restore
func (b *MySQLBackend) LoadCanvases(ctx context.Context) ([]membership.Canvas, error) {
	recs, err := b.Repo.ListCanvases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	collabs, err := b.Repo.ListCollaborators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	snaps, err := b.Snapshots.LoadSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	// 已按 seq 排序；记录每个画布最大的 seq，回填后继续递增
	byCanvas := make(map[string][]membership.Collaborator)
	lastSeq := make(map[string]int)
	for _, c := range collabs {
		byCanvas[c.CanvasID] = append(byCanvas[c.CanvasID], membership.Collaborator{
			UserID:       c.UserID,
			Username:     c.Username,
			ProfilePhoto: c.ProfilePhoto,
		})
		if c.Seq > lastSeq[c.CanvasID] {
			lastSeq[c.CanvasID] = c.Seq
		}
	}

	out := make([]membership.Canvas, 0, len(recs))
	for _, rec := range recs {
		c := membership.Canvas{ID: rec.ID, Name: rec.Name, Collaborators: byCanvas[rec.ID], LastSeq: lastSeq[rec.ID]}
		if rec.AdminUserID != "" {
			c.Admin = &presence.Profile{UserID: rec.AdminUserID, Username: rec.AdminUsername, ProfilePhoto: rec.AdminProfilePhoto}
		}
		if snap, ok := snaps[rec.ID]; ok {
			c.Snapshot = snap
		}
		out = append(out, c)
	}
	return out, nil
}
