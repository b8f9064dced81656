package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"feed-game/internal/domain"
	"feed-game/internal/infra/metrics"
)

// Redis хранит снапшот игры одним JSON-значением по фиксированному ключу.
type Redis struct {
	client *redis.Client
	key    string
}

var _ domain.GameRepo = (*Redis)(nil)

// NewRedis создаёт адаптер.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Save перезаписывает снапшот.
func (r *Redis) Save(ctx context.Context, game *domain.Game) error {
	payload, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("сериализация снапшота: %w", err)
	}
	start := time.Now()
	err = r.client.Set(ctx, r.key, payload, 0).Err()
	metrics.ObserveNetworkRequest("redis", "save_game", r.key, start, err)
	if err != nil {
		return fmt.Errorf("сохранение снапшота: %w", err)
	}
	return nil
}

// Load возвращает снапшот либо domain.ErrNoGame.
func (r *Redis) Load(ctx context.Context) (*domain.Game, error) {
	start := time.Now()
	payload, err := r.client.Get(ctx, r.key).Bytes()
	metrics.ObserveNetworkRequest("redis", "load_game", r.key, start, err)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNoGame
	}
	if err != nil {
		return nil, fmt.Errorf("чтение снапшота: %w", err)
	}
	var game domain.Game
	if err := json.Unmarshal(payload, &game); err != nil {
		return nil, fmt.Errorf("разбор снапшота: %w", err)
	}
	return &game, nil
}
