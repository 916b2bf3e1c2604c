// persistence/redis.go
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
)

// snapshotTTL bounds how long a stale snapshot can outlive its room.
const snapshotTTL = 30 * time.Minute

func stateKey(gameID string) string {
	return "partyserver:state:" + gameID
}

// CachedGateway decorates a Gateway with a Redis write-through of every
// state snapshot, so spectator and ops tooling can read the latest room
// state without touching the database. Loads stay authoritative from the
// wrapped gateway; a cache failure degrades to the inner gateway alone.
type CachedGateway struct {
	inner Gateway
	rdb   *redis.Client
}

func NewCachedGateway(inner Gateway, addr, password string, db int) (*CachedGateway, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &CachedGateway{inner: inner, rdb: rdb}, nil
}

func (c *CachedGateway) LoadGame(ctx context.Context, code string) (*models.GameConfig, error) {
	return c.inner.LoadGame(ctx, code)
}

func (c *CachedGateway) SaveState(ctx context.Context, gameID string, state *game.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	// Best-effort cache write; the database save decides success.
	cacheErr := c.rdb.Set(ctx, stateKey(gameID), data, snapshotTTL).Err()

	if err := c.inner.SaveState(ctx, gameID, state); err != nil {
		return err
	}
	return cacheErr
}

func (c *CachedGateway) SaveRecord(ctx context.Context, record *models.GameRecord) error {
	if err := c.inner.SaveRecord(ctx, record); err != nil {
		return err
	}
	// The room is over; drop its snapshot.
	return c.rdb.Del(ctx, stateKey(record.GameID)).Err()
}

func (c *CachedGateway) TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return c.inner.TopScores(ctx, limit)
}

// Snapshot returns the most recently cached state for a game, if any.
func (c *CachedGateway) Snapshot(ctx context.Context, gameID string) (*game.State, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var state game.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *CachedGateway) Close() error {
	if err := c.rdb.Close(); err != nil {
		c.inner.Close()
		return err
	}
	return c.inner.Close()
}
