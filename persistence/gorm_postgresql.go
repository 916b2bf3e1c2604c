// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
)

// GormPostgres 使用GORM的PostgreSQL实现
type GormPostgres struct {
	db *gorm.DB
}

// NewGormPostgres 创建GORM PostgreSQL数据库连接
func NewGormPostgres(host string, port int, user, password, dbname string) (*GormPostgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormGame{}, &models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgres{db: db}, nil
}

// LoadGame 按房间码加载游戏配置
func (p *GormPostgres) LoadGame(ctx context.Context, code string) (*models.GameConfig, error) {
	var row models.GormGame
	if err := p.db.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &models.GameConfig{
		GameID: row.GameID,
		Code:   row.Code,
		Scenes: row.Scenes,
	}, nil
}

// SaveState 保存房间状态快照
func (p *GormPostgres) SaveState(ctx context.Context, gameID string, state *game.State) error {
	result := p.db.WithContext(ctx).
		Model(&models.GormGame{}).
		Where("game_id = ?", gameID).
		Update("state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRecord 保存对局记录
func (p *GormPostgres) SaveRecord(ctx context.Context, record *models.GameRecord) error {
	return p.Transaction(func(tx *gorm.DB) error {
		row := models.GormGameRecord{
			GameID:     record.GameID,
			Code:       record.Code,
			SceneCount: record.SceneCount,
			Results:    record.Results,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}

		// 对局结束后清空在线状态快照
		return tx.WithContext(ctx).
			Model(&models.GormGame{}).
			Where("game_id = ?", record.GameID).
			Update("state", nil).Error
	})
}

// TopScores 查询排行榜
func (p *GormPostgres) TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry

	// jsonb展开每条对局记录中的玩家结果
	err := p.db.WithContext(ctx).Raw(
		`
        SELECT
            result->>'name' AS name,
            (result->>'score')::int AS score
        FROM gorm_game_records, jsonb_each(results) AS r(player_id, result)
        ORDER BY score DESC
        LIMIT ?`,
		limit,
	).Scan(&entries).Error

	return entries, err
}

// Close 关闭数据库连接
func (p *GormPostgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 事务支持
func (p *GormPostgres) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}
