package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"feed-game/internal/adapters/content"
	"feed-game/internal/adapters/notify"
	"feed-game/internal/adapters/repo"
	"feed-game/internal/domain"
	"feed-game/internal/infra/config"
	"feed-game/internal/infra/db"
	httpinfra "feed-game/internal/infra/http"
	logpkg "feed-game/internal/infra/log"
	"feed-game/internal/infra/metrics"
	"feed-game/internal/infra/openai"
	"feed-game/internal/infra/ws"
	"feed-game/internal/usecase/scheduler"
	"feed-game/internal/usecase/seed"
	"feed-game/internal/usecase/state"
	syncuc "feed-game/internal/usecase/sync"
)

const autosavePeriod = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameRepo, err := buildRepo(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("game: хранилище не собралось")
	}

	game, err := loadOrSeed(ctx, gameRepo, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("game: игра не загрузилась")
	}
	store := state.New(game, logpkg.Component(logger, "state"))

	contentClient, err := buildContent(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("game: генератор контента не собрался")
	}
	notifier := buildNotifier(cfg, logger)

	sched := scheduler.New(store, contentClient, notifier, logpkg.Component(logger, "scheduler"), nil)

	links := syncuc.NewLinkMinter(cfg.PublicBaseURL, time.Duration(cfg.Sync.LinkTTLSeconds)*time.Second)

	var hub *ws.Hub
	forward := func(command string, data json.RawMessage) {
		if hub != nil {
			hub.ForwardRaw(command, data)
		}
	}
	dispatcher := syncuc.NewDispatcher(store, sched, logpkg.Component(logger, "sync"), forward)
	hub = ws.NewHub(store, dispatcher, links, logpkg.Component(logger, "ws"), time.Duration(cfg.Sync.IdleTimeoutSeconds)*time.Second)
	sched.SetEventSink(func(e scheduler.Event) {
		hub.BroadcastCommand(e.Command, e.Data)
	})

	go hub.Run(ctx)
	go store.RunClock(ctx, time.Duration(cfg.Clock.TickMillis)*time.Millisecond)
	go autosave(ctx, store, gameRepo, logpkg.Component(logger, "autosave"))

	// Если открытой задачи нет (свежая игра или добитая история), первый
	// раунд запускается сразу.
	ensureOpenTask(ctx, store, sched, logger)

	metrics.StartServer(ctx, logpkg.Component(logger, "metrics"), cfg.MetricsAddr)

	restart := func(ctx context.Context) (*domain.Game, error) {
		fresh := seed.NewGame(seed.Options{
			Version:    cfg.GameVersion,
			Users:      cfg.Seed.Users,
			MaxFollows: cfg.Seed.MaxFollows,
		})
		if err := store.Merge(fresh); err != nil {
			return nil, err
		}
		snapshot, err := store.Snapshot()
		if err != nil {
			return nil, err
		}
		if err := gameRepo.Save(ctx, snapshot); err != nil {
			return nil, err
		}
		go ensureOpenTask(context.WithoutCancel(ctx), store, sched, logger)
		return fresh, nil
	}

	srv := httpinfra.NewServer(logpkg.Component(logger, "http"))
	handlers := httpinfra.NewHandlers(store, links, hub, restart, cfg.RestartCredential, logpkg.Component(logger, "http"))
	handlers.Mount(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("game: HTTP сервер упал")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("game: HTTP сервер не остановился корректно")
	}
	if snapshot, err := store.Snapshot(); err != nil {
		logger.Error().Err(err).Msg("game: финальный снапшот не собрался")
	} else if err := gameRepo.Save(shutdownCtx, snapshot); err != nil {
		logger.Error().Err(err).Msg("game: финальный снапшот не сохранился")
	}
	logger.Info().Msg("game: остановлен")
}

func buildRepo(cfg config.AppConfig) (domain.GameRepo, error) {
	switch cfg.Storage.Backend {
	case "file":
		return repo.NewFile(cfg.Storage.FilePath), nil
	case "postgres":
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return repo.NewPostgres(pool), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return repo.NewRedis(client, cfg.RedisGameKey), nil
	default:
		return nil, fmt.Errorf("неизвестный storage backend: %s", cfg.Storage.Backend)
	}
}

func buildContent(cfg config.AppConfig) (domain.ContentClient, error) {
	switch cfg.ContentBackend {
	case "openai":
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)
		return content.NewOpenAI(client, cfg.OpenAI.Model, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second, nil), nil
	case "simple":
		return content.NewSimple(nil), nil
	default:
		return nil, fmt.Errorf("неизвестный content backend: %s", cfg.ContentBackend)
	}
}

func buildNotifier(cfg config.AppConfig, logger zerolog.Logger) domain.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		return notify.Nop{}
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Warn().Err(err).Msg("game: телеграм-бот не собрался, уведомления выключены")
		return notify.Nop{}
	}
	return notify.NewTelegram(bot, cfg.Telegram.ChatID, logpkg.Component(logger, "notify"))
}

// loadOrSeed поднимает сохранённую игру либо засеивает новую.
func loadOrSeed(ctx context.Context, gameRepo domain.GameRepo, cfg config.AppConfig, logger zerolog.Logger) (*domain.Game, error) {
	game, err := gameRepo.Load(ctx)
	if err == nil {
		logger.Info().Str("game", game.UUID).Int("users", len(game.Users)).Msg("game: сохранение загружено")
		return game, nil
	}
	if !errors.Is(err, domain.ErrNoGame) {
		return nil, err
	}

	game = seed.NewGame(seed.Options{
		Version:    cfg.GameVersion,
		Users:      cfg.Seed.Users,
		MaxFollows: cfg.Seed.MaxFollows,
	})
	if err := gameRepo.Save(ctx, game); err != nil {
		return nil, err
	}
	logger.Info().Str("game", game.UUID).Int("users", len(game.Users)).Msg("game: новая игра засеяна")
	return game, nil
}

// ensureOpenTask запускает первый раунд, если в истории нет незавершённой
// задачи.
func ensureOpenTask(ctx context.Context, store *state.Store, sched *scheduler.Service, logger zerolog.Logger) {
	var open bool
	store.View(func(g *domain.Game) {
		for _, t := range g.Tasks {
			if !t.Completed {
				open = true
				return
			}
		}
	})
	if open {
		return
	}
	if _, err := sched.NextTask(ctx, domain.Task{}); err != nil {
		logger.Error().Err(err).Msg("game: стартовый раунд не запустился")
	}
}

// autosave периодически сбрасывает снапшот, если игра менялась.
func autosave(ctx context.Context, store *state.Store, gameRepo domain.GameRepo, logger zerolog.Logger) {
	updates, cancel := store.SubscribeGame()
	defer cancel()

	ticker := time.NewTicker(autosavePeriod)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			snapshot, err := store.Snapshot()
			if err != nil {
				logger.Warn().Err(err).Msg("autosave: снапшот не собрался")
				continue
			}
			if err := gameRepo.Save(ctx, snapshot); err != nil {
				logger.Warn().Err(err).Msg("autosave: снапшот не сохранился")
				continue
			}
			dirty = false
		}
	}
}
