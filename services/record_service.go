// services/record_service.go
package services

import (
	"context"
	"time"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
	"github.com/playhouse/partyserver/persistence"
)

// RecordService turns a finished room's state into a durable game record
// and serves leaderboard queries over past records.
type RecordService struct {
	gateway persistence.Gateway
}

func NewRecordService(gateway persistence.Gateway) *RecordService {
	return &RecordService{gateway: gateway}
}

// BuildRecord folds a final state into a game record. Disconnected players
// keep their results; they played.
func (s *RecordService) BuildRecord(gameID string, state *game.State) *models.GameRecord {
	results := make(map[string]models.PlayerResult, len(state.Players))
	for id, player := range state.Players {
		results[id] = models.PlayerResult{
			Name:  player.Name,
			Score: player.Score,
		}
	}

	return &models.GameRecord{
		GameID:     gameID,
		Code:       state.RoomID,
		SceneCount: len(state.Scenes),
		Results:    results,
		CreatedAt:  time.Now(),
	}
}

// SaveFinal persists the record for a room that reached the ended phase.
func (s *RecordService) SaveFinal(ctx context.Context, gameID string, state *game.State) error {
	return s.gateway.SaveRecord(ctx, s.BuildRecord(gameID, state))
}

// Leaderboard returns the top scores across all recorded games.
func (s *RecordService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.gateway.TopScores(ctx, limit)
}
