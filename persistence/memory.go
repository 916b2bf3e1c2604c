// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
)

// Memory is an in-process Gateway used by tests and the demo client.
type Memory struct {
	mutex   sync.RWMutex
	games   map[string]*models.GameConfig // code -> config
	states  map[string]*game.State        // game id -> last saved state
	records []*models.GameRecord
}

func NewMemory() *Memory {
	return &Memory{
		games:  make(map[string]*models.GameConfig),
		states: make(map[string]*game.State),
	}
}

// Seed registers a game config under its room code.
func (m *Memory) Seed(config *models.GameConfig) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.games[config.Code] = config
}

func (m *Memory) LoadGame(ctx context.Context, code string) (*models.GameConfig, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	config, exists := m.games[code]
	if !exists {
		return nil, ErrNotFound
	}
	return config, nil
}

func (m *Memory) SaveState(ctx context.Context, gameID string, state *game.State) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.states[gameID] = state
	return nil
}

func (m *Memory) SaveRecord(ctx context.Context, record *models.GameRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records = append(m.records, record)
	delete(m.states, record.GameID)
	return nil
}

func (m *Memory) TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var entries []models.LeaderboardEntry
	for _, record := range m.records {
		for _, result := range record.Results {
			entries = append(entries, models.LeaderboardEntry{
				Name:  result.Name,
				Score: result.Score,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// LastState returns the most recently saved state for a game.
func (m *Memory) LastState(gameID string) (*game.State, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	state, exists := m.states[gameID]
	return state, exists
}

// Records returns all saved game records.
func (m *Memory) Records() []*models.GameRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]*models.GameRecord(nil), m.records...)
}

func (m *Memory) Close() error {
	return nil
}
