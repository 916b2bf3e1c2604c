// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
)

// Postgres 基于database/sql的PostgreSQL实现
type Postgres struct {
	db *sql.DB
}

// NewPostgres 创建 PostgreSQL 数据库连接
func NewPostgres(host string, port int, user, password, dbname string) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &Postgres{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS games (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(64) UNIQUE NOT NULL,
            code VARCHAR(64) UNIQUE NOT NULL,
            scenes JSONB NOT NULL,
            state JSONB,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(64) NOT NULL,
            code VARCHAR(64) NOT NULL,
            scene_count INT NOT NULL DEFAULT 0,
            results JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_games_code ON games(code);
        CREATE INDEX IF NOT EXISTS idx_game_records_game_id ON game_records(game_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at);
    `)

	return err
}

// LoadGame 按房间码加载游戏配置
func (p *Postgres) LoadGame(ctx context.Context, code string) (*models.GameConfig, error) {
	var (
		gameID    string
		sceneJSON []byte
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT game_id, scenes FROM games WHERE code = $1`, code,
	).Scan(&gameID, &sceneJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var scenes []game.Scene
	if err := json.Unmarshal(sceneJSON, &scenes); err != nil {
		return nil, fmt.Errorf("decode scenes for game %s: %w", gameID, err)
	}

	return &models.GameConfig{GameID: gameID, Code: code, Scenes: scenes}, nil
}

// SaveState 保存房间状态快照
func (p *Postgres) SaveState(ctx context.Context, gameID string, state *game.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return err
	}

	result, err := p.db.ExecContext(ctx,
		`UPDATE games SET state = $1, updated_at = CURRENT_TIMESTAMP WHERE game_id = $2`,
		stateJSON, gameID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRecord 保存对局记录
func (p *Postgres) SaveRecord(ctx context.Context, record *models.GameRecord) error {
	resultsJSON, err := json.Marshal(record.Results)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_records (game_id, code, scene_count, results) VALUES ($1, $2, $3, $4)`,
		record.GameID, record.Code, record.SceneCount, resultsJSON,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE games SET state = NULL, updated_at = CURRENT_TIMESTAMP WHERE game_id = $1`,
		record.GameID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// TopScores 查询排行榜
func (p *Postgres) TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`
        SELECT
            result->>'name' AS name,
            (result->>'score')::int AS score
        FROM game_records, jsonb_each(results) AS r(player_id, result)
        ORDER BY score DESC
        LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.Name, &entry.Score); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close 关闭数据库连接
func (p *Postgres) Close() error {
	return p.db.Close()
}
