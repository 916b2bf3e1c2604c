// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
)

// Gateway 持久化网关接口
//
// LoadGame is authoritative at room start only. SaveState is advisory:
// broadcast correctness never depends on it succeeding.
type Gateway interface {
	LoadGame(ctx context.Context, code string) (*models.GameConfig, error)
	SaveState(ctx context.Context, gameID string, state *game.State) error
	SaveRecord(ctx context.Context, record *models.GameRecord) error
	TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Close() error
}

// 错误定义
var (
	ErrNotFound = fmt.Errorf("game not found")
)
