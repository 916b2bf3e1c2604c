// models/gorm_models.go
package models

import (
	"gorm.io/gorm"

	"github.com/playhouse/partyserver/game"
)

// GormGame 游戏配置模型
type GormGame struct {
	gorm.Model
	GameID string       `gorm:"uniqueIndex;not null"`
	Code   string       `gorm:"uniqueIndex;not null"`
	Scenes []game.Scene `gorm:"type:jsonb;serializer:json"`
	State  *game.State  `gorm:"type:jsonb;serializer:json"`
}

// GormGameRecord 对局记录模型
type GormGameRecord struct {
	gorm.Model
	GameID     string                  `gorm:"index;not null"`
	Code       string                  `gorm:"not null"`
	SceneCount int                     `gorm:"default:0"`
	Results    map[string]PlayerResult `gorm:"type:jsonb;serializer:json;not null"`
}
