package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"feed-game/internal/domain"
	"feed-game/internal/infra/metrics"
)

// Postgres хранит снапшоты игры в таблице game_saves: одна строка на игру,
// последний снапшот побеждает.
//
//	CREATE TABLE IF NOT EXISTS game_saves (
//	    game_uuid  TEXT PRIMARY KEY,
//	    snapshot   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.GameRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

// Save перезаписывает снапшот игры.
func (p *Postgres) Save(ctx context.Context, game *domain.Game) error {
	payload, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("сериализация снапшота: %w", err)
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO game_saves (game_uuid, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (game_uuid) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, game.UUID, payload)
	metrics.ObserveNetworkRequest("postgres", "save_game", "game_saves", start, err)
	if err != nil {
		return fmt.Errorf("сохранение снапшота: %w", err)
	}
	return nil
}

// Load возвращает последний сохранённый снапшот.
func (p *Postgres) Load(ctx context.Context) (*domain.Game, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var payload []byte
	err := p.pool.QueryRow(ctx, `
		SELECT snapshot FROM game_saves ORDER BY updated_at DESC LIMIT 1
	`).Scan(&payload)
	metrics.ObserveNetworkRequest("postgres", "load_game", "game_saves", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
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
