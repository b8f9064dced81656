package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"feed-game/internal/domain"
	"feed-game/internal/usecase/graph"
	"feed-game/internal/usecase/state"
	syncuc "feed-game/internal/usecase/sync"
)

// WSHandler обслуживает вебсокет-подключения зрителей и контроллеров.
type WSHandler interface {
	HandleViewer(w http.ResponseWriter, r *http.Request)
	HandleController(w http.ResponseWriter, r *http.Request)
}

// RestartFunc пересоздаёт игру с нуля и возвращает новую.
type RestartFunc func(ctx context.Context) (*domain.Game, error)

// Handlers собирает HTTP-слой игры поверх роутера.
type Handlers struct {
	store      *state.Store
	links      *syncuc.LinkMinter
	hub        WSHandler
	restart    RestartFunc
	credential string
	log        zerolog.Logger
}

// NewHandlers создаёт обработчики.
func NewHandlers(store *state.Store, links *syncuc.LinkMinter, hub WSHandler, restart RestartFunc, credential string, logger zerolog.Logger) *Handlers {
	return &Handlers{store: store, links: links, hub: hub, restart: restart, credential: credential, log: logger}
}

// Mount вешает маршруты на роутер.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/game", h.handleGame)
	r.Get("/graph", h.handleGraph)
	r.Get("/controller-link", h.handleControllerLink)
	r.Post("/restart", h.handleRestart)
	r.Get("/ws", h.hub.HandleViewer)
	r.Get("/controller", h.hub.HandleController)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGame отдаёт полный снапшот игры. Сериализация под блокировкой
// хранилища.
func (h *Handlers) handleGame(w http.ResponseWriter, _ *http.Request) {
	var payload []byte
	var err error
	h.store.View(func(g *domain.Game) {
		payload, err = json.Marshal(g)
	})
	if err != nil {
		h.log.Error().Err(err).Msg("http: игра не сериализована")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// handleGraph отдаёт презентационный граф игры. По умолчанию полный
// (пользователи и контент), с ?social=1 — только пользователи и
// follow-рёбра.
func (h *Handlers) handleGraph(w http.ResponseWriter, r *http.Request) {
	onlyUsers := r.URL.Query().Get("social") == "1"
	var nodes []graph.Node
	var edges []graph.Edge
	h.store.View(func(g *domain.Game) {
		built := graph.Build(g, graph.BuildOptions{OnlyUsers: onlyUsers})
		nodes = built.Nodes()
		edges = built.Edges()
	})
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "edges": edges})
}

// handleControllerLink выписывает свежую ссылку на роль контроллера.
func (h *Handlers) handleControllerLink(w http.ResponseWriter, _ *http.Request) {
	link := h.links.Mint(h.store.Game().UUID, time.Now())
	writeJSON(w, http.StatusOK, map[string]string{"link": link})
}

// handleRestart пересоздаёт игру. Эндпоинт закрыт учётными данными из
// конфига; пустой настроенный секрет запрещает перезапуск вовсе.
func (h *Handlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	if h.credential == "" {
		http.Error(w, "restart disabled", http.StatusForbidden)
		return
	}
	supplied := r.Header.Get("X-Restart-Credential")
	if supplied == "" {
		supplied = r.URL.Query().Get("credential")
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.credential)) != 1 {
		h.log.Warn().Str("remote", r.RemoteAddr).Msg("http: перезапуск отклонён")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	game, err := h.restart(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("http: перезапуск не удался")
		http.Error(w, "restart failed", http.StatusInternalServerError)
		return
	}
	h.log.Info().Str("game", game.UUID).Msg("http: игра перезапущена")
	writeJSON(w, http.StatusOK, map[string]string{"game": game.UUID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
