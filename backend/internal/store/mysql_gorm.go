package store

import (
	"canvasServer/backend/internal/entity"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 建表；canvas_snapshots 由 SnapshotStore 用原生 SQL 维护
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Canvas{}, &entity.CanvasCollaborator{})
}
