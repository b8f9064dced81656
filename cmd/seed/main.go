package main

import (
	"context"
	"flag"
	"math/rand"

	"feed-game/internal/adapters/repo"
	"feed-game/internal/infra/config"
	logpkg "feed-game/internal/infra/log"
	"feed-game/internal/usecase/seed"
)

// Утилита генерирует стартовый снапшот игры и кладёт его в файловое
// хранилище. Полезна для подготовки демо-миров и воспроизводимых сценариев.
func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	var (
		out      = flag.String("out", cfg.Storage.FilePath, "путь к файлу снапшота")
		users    = flag.Int("users", cfg.Seed.Users, "число пользователей")
		follows  = flag.Int("max-follows", cfg.Seed.MaxFollows, "максимум исходящих подписок")
		seedFlag = flag.Int64("seed", 0, "сид генератора; 0 означает случайный мир")
	)
	flag.Parse()

	var rnd *rand.Rand
	if *seedFlag != 0 {
		rnd = rand.New(rand.NewSource(*seedFlag))
	}

	game := seed.NewGame(seed.Options{
		Version:    cfg.GameVersion,
		Users:      *users,
		MaxFollows: *follows,
		Rand:       rnd,
	})

	store := repo.NewFile(*out)
	if err := store.Save(context.Background(), game); err != nil {
		logger.Fatal().Err(err).Msg("seed: снапшот не сохранился")
	}
	logger.Info().
		Str("game", game.UUID).
		Str("hero", game.Hero).
		Int("users", len(game.Users)).
		Int("follows", len(game.Relations)).
		Str("out", *out).
		Msg("seed: мир сгенерирован")
}
