package entity

import "time"

// Canvas 画布及其管理员；管理员资料冗余保存，管理员离线时也能拼出成员列表
type Canvas struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	Name              string `gorm:"type:varchar(255)"`
	AdminUserID       string `gorm:"type:varchar(64);index"`
	AdminUsername     string `gorm:"type:varchar(255)"`
	AdminProfilePhoto string `gorm:"type:varchar(512)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Canvas) TableName() string { return "canvases" }

// CanvasCollaborator 协作者，Seq 保存加入顺序
type CanvasCollaborator struct {
	CanvasID     string `gorm:"primaryKey;type:varchar(64)"`
	UserID       string `gorm:"primaryKey;type:varchar(64);index"`
	Username     string `gorm:"type:varchar(255)"`
	ProfilePhoto string `gorm:"type:varchar(512)"`
	Seq          int
	CreatedAt    time.Time
}

func (CanvasCollaborator) TableName() string { return "canvas_collaborators" }
