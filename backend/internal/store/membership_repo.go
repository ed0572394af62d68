package store

import (
	"context"

	"canvasServer/backend/internal/entity"
	"canvasServer/backend/internal/membership"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepo struct {
	db *gorm.DB
}

func NewMembershipRepo(db *gorm.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

func (r *MembershipRepo) SaveCanvas(ctx context.Context, c membership.Canvas) error {
	rec := entity.Canvas{ID: c.ID, Name: c.Name}
	if c.Admin != nil {
		rec.AdminUserID = c.Admin.UserID
		rec.AdminUsername = c.Admin.Username
		rec.AdminProfilePhoto = c.Admin.ProfilePhoto
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "admin_user_id", "admin_username", "admin_profile_photo", "updated_at"}),
	}).Create(&rec).Error
}

func (r *MembershipRepo) SaveCollaborator(ctx context.Context, canvasID string, c membership.Collaborator, seq int) error {
	rec := entity.CanvasCollaborator{
		CanvasID:     canvasID,
		UserID:       c.UserID,
		Username:     c.Username,
		ProfilePhoto: c.ProfilePhoto,
		Seq:          seq,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canvas_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "profile_photo", "seq"}),
	}).Create(&rec).Error
}

func (r *MembershipRepo) RemoveCollaborator(ctx context.Context, canvasID, userID string) error {
	return r.db.WithContext(ctx).
		Where("canvas_id = ? AND user_id = ?", canvasID, userID).
		Delete(&entity.CanvasCollaborator{}).Error
}

// DeleteCanvas 协作者和画布在一个事务里删除
func (r *MembershipRepo) DeleteCanvas(ctx context.Context, canvasID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("canvas_id = ?", canvasID).Delete(&entity.CanvasCollaborator{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", canvasID).Delete(&entity.Canvas{}).Error
	})
}

// ListCanvases 按创建顺序返回所有画布
func (r *MembershipRepo) ListCanvases(ctx context.Context) ([]entity.Canvas, error) {
	var out []entity.Canvas
	err := r.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

func (r *MembershipRepo) ListCollaborators(ctx context.Context) ([]entity.CanvasCollaborator, error) {
	var out []entity.CanvasCollaborator
	err := r.db.WithContext(ctx).Order("canvas_id, seq").Find(&out).Error
	return out, err
}
