// models/models.go
package models

import (
	"time"

	"github.com/playhouse/partyserver/game"
)

// GameConfig is the record the gateway loads at room start: the game's
// identity plus its ordered scene list. Games are created by an external
// workflow, so a missing config is a configuration error, not a runtime
// condition.
type GameConfig struct {
	GameID string       `json:"game_id"`
	Code   string       `json:"code"`
	Scenes []game.Scene `json:"scenes"`
}

// PlayerResult 玩家对局结果
type PlayerResult struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameRecord is the durable result of one finished room.
type GameRecord struct {
	GameID     string                  `json:"game_id"`
	Code       string                  `json:"code"`
	SceneCount int                     `json:"scene_count"`
	Results    map[string]PlayerResult `json:"results"`
	CreatedAt  time.Time               `json:"created_at"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
