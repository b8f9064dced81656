package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"feed-game/internal/domain"
	"feed-game/internal/infra/metrics"
	"feed-game/internal/usecase/state"
	syncuc "feed-game/internal/usecase/sync"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// linkRefreshPeriod — как часто активному контроллеру перевыпускается
	// ссылка. Период короче срока жизни ссылки, чтобы живой контроллер
	// никогда не остался с протухшей.
	linkRefreshPeriod = time.Minute

	maxMessageSize = 4 << 20
)

// Envelope — кадр протокола поверх вебсокета. Типы: game (полное состояние),
// message (команда или её ретрансляция), controller (смена роли), error,
// warning.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ControllerStatus уходит клиенту при изменении его места в очереди.
type ControllerStatus struct {
	Role     string `json:"role"`
	Position int    `json:"position,omitempty"`
	Link     string `json:"link,omitempty"`
}

type client struct {
	id   uint64
	conn *websocket.Conn
	mu   sync.Mutex
}

// write шлёт кадр под мьютексом клиента с дедлайном записи.
func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Hub держит всех подключённых зрителей и очередь контроллеров, рассылает
// изменения игры и пропускает команды только от активного контроллера.
type Hub struct {
	store      *state.Store
	dispatcher *syncuc.Dispatcher
	links      *syncuc.LinkMinter
	log        zerolog.Logger

	idleTimeout time.Duration

	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]*client
	queue   controlQueue
	idle    *syncuc.IdleWatch

	upgrader websocket.Upgrader
}

// NewHub создаёт хаб. idleTimeout <= 0 означает таймаут тишины по умолчанию.
func NewHub(store *state.Store, dispatcher *syncuc.Dispatcher, links *syncuc.LinkMinter, logger zerolog.Logger, idleTimeout time.Duration) *Hub {
	if idleTimeout <= 0 {
		idleTimeout = syncuc.DefaultIdleTimeout
	}
	return &Hub{
		store:       store,
		dispatcher:  dispatcher,
		links:       links,
		log:         logger,
		idleTimeout: idleTimeout,
		clients:     make(map[uint64]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run рассылает зрителям обновления игры и тики фиктивных часов, а активному
// контроллеру периодически перевыпускает ссылку. Блокируется до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	games, cancelGames := h.store.SubscribeGame()
	defer cancelGames()
	ticks, cancelTicks := h.store.SubscribeClock()
	defer cancelTicks()

	refresh := time.NewTicker(linkRefreshPeriod)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-games:
			h.broadcastGame()
		case ftime := <-ticks:
			h.Broadcast(Envelope{Type: "message", Data: syncuc.Command{Command: "ftime", Data: mustRaw(ftime)}})
		case <-refresh.C:
			h.refreshControllerLink()
		}
	}
}

// HandleViewer — апгрейд зрителя на /ws. Зритель сразу получает полный
// снапшот игры и дальше живёт на рассылке.
func (h *Hub) HandleViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws: апгрейд зрителя не удался")
		return
	}
	c := h.register(conn)
	h.sendSnapshot(c)
	go h.readLoop(c, false)
	go h.pingLoop(c)
}

// HandleController — апгрейд контроллера на /controller. Ссылка проверяется
// до апгрейда; невалидная даёт 403 без вебсокета.
func (h *Hub) HandleController(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	valid := r.URL.Query().Get("valid")
	if err := h.links.Validate(h.store.Game().UUID, from, valid, time.Now()); err != nil {
		h.log.Warn().Err(err).Str("from", from).Msg("ws: контроллер отклонён")
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws: апгрейд контроллера не удался")
		return
	}
	c := h.register(conn)
	h.sendSnapshot(c)
	h.enqueueController(c)
	go h.readLoop(c, true)
	go h.pingLoop(c)
}

// Broadcast рассылает кадр всем подключённым клиентам. Клиенты с мёртвым
// сокетом отключаются.
func (h *Hub) Broadcast(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("type", env.Type).Msg("ws: кадр не сериализован")
		return
	}
	h.broadcastRaw(payload)
}

func (h *Hub) broadcastRaw(payload []byte) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.log.Debug().Err(err).Uint64("client", c.id).Msg("ws: запись не удалась, клиент отключается")
			h.drop(c)
		}
	}
	metrics.WSBroadcastBytes.Add(float64(len(payload) * len(targets)))
}

// BroadcastCommand заворачивает команду в кадр message и рассылает всем.
// Через него зрителям уходят доменные события раунда и ретрансляция подсветок.
func (h *Hub) BroadcastCommand(command string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Str("command", command).Msg("ws: данные команды не сериализованы")
		return
	}
	h.Broadcast(Envelope{Type: "message", Data: syncuc.Command{Command: command, Data: raw}})
}

// ForwardRaw ретранслирует команду контроллера зрителям без интерпретации.
func (h *Hub) ForwardRaw(command string, data json.RawMessage) {
	h.Broadcast(Envelope{Type: "message", Data: syncuc.Command{Command: command, Data: data}})
}

func (h *Hub) register(conn *websocket.Conn) *client {
	h.mu.Lock()
	h.nextID++
	c := &client{id: h.nextID, conn: conn}
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSSubscribers.Set(float64(total))
	h.log.Info().Uint64("client", c.id).Int("total", total).Msg("ws: клиент подключился")
	return c
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	promoted, hasNext := h.queue.remove(c.id)
	total := len(h.clients)
	queued := h.queue.len()
	h.mu.Unlock()

	_ = c.conn.Close()
	metrics.WSSubscribers.Set(float64(total))
	metrics.WSControllersQueued.Set(float64(queued))
	h.log.Info().Uint64("client", c.id).Int("total", total).Msg("ws: клиент отключился")

	if hasNext {
		h.promote(promoted)
	}
}

// enqueueController ставит клиента в очередь контроллеров и сообщает ему его
// роль. Первый в очереди получает управление и свежую ссылку.
func (h *Hub) enqueueController(c *client) {
	h.mu.Lock()
	active, position := h.queue.add(c.id)
	queued := h.queue.len()
	h.mu.Unlock()

	metrics.WSControllersQueued.Set(float64(queued))
	if active {
		h.grantControl(c)
		return
	}
	h.sendTo(c, Envelope{Type: "controller", Data: ControllerStatus{Role: "queued", Position: position}})
}

// grantControl передаёт клиенту управление: заводит слежение за тишиной и
// объявляет смену контроллера всем.
func (h *Hub) grantControl(c *client) {
	h.mu.Lock()
	if h.idle != nil {
		h.idle.Stop()
	}
	id := c.id
	h.idle = syncuc.NewIdleWatch(h.idleTimeout, func() { h.revokeIdle(id) })
	h.mu.Unlock()

	link := h.links.Mint(h.store.Game().UUID, time.Now())
	h.sendTo(c, Envelope{Type: "controller", Data: ControllerStatus{Role: "controller", Link: link}})
	h.Broadcast(Envelope{Type: "message", Data: syncuc.Command{Command: "controller-changed", Data: mustRaw(c.id)}})
	h.log.Info().Uint64("client", c.id).Msg("ws: управление передано")
}

// revokeIdle отбирает управление у замолчавшего контроллера. Сокет
// закрывается, очередь продвигается через drop.
func (h *Hub) revokeIdle(id uint64) {
	h.mu.Lock()
	active, ok := h.queue.active()
	c := h.clients[id]
	h.mu.Unlock()
	if !ok || active != id || c == nil {
		return
	}

	h.log.Info().Uint64("client", id).Dur("timeout", h.idleTimeout).Msg("ws: контроллер молчал, управление отбирается")
	h.sendTo(c, Envelope{Type: "warning", Data: "управление отобрано по таймауту тишины"})
	h.drop(c)
}

func (h *Hub) promote(id uint64) {
	h.mu.Lock()
	c := h.clients[id]
	h.mu.Unlock()
	if c == nil {
		return
	}
	h.grantControl(c)
}

// refreshControllerLink перевыпускает ссылку активному контроллеру.
func (h *Hub) refreshControllerLink() {
	h.mu.Lock()
	var c *client
	if id, ok := h.queue.active(); ok {
		c = h.clients[id]
	}
	h.mu.Unlock()
	if c == nil {
		return
	}
	link := h.links.Mint(h.store.Game().UUID, time.Now())
	h.sendTo(c, Envelope{Type: "controller", Data: ControllerStatus{Role: "controller", Link: link}})
}

// readLoop читает кадры клиента. Команды принимаются только от активного
// контроллера; остальные получают warning.
func (h *Hub) readLoop(c *client, controller bool) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Uint64("client", c.id).Msg("ws: чтение оборвалось")
			}
			return
		}
		if !controller {
			continue
		}

		h.mu.Lock()
		active, ok := h.queue.active()
		idle := h.idle
		h.mu.Unlock()
		if !ok || active != c.id {
			h.sendTo(c, Envelope{Type: "warning", Data: "команды принимает только активный контроллер"})
			continue
		}
		if idle != nil {
			idle.Touch()
		}

		if err := h.dispatcher.Dispatch(context.Background(), raw); err != nil {
			h.log.Warn().Err(err).Uint64("client", c.id).Msg("ws: команда отклонена")
			h.sendTo(c, Envelope{Type: "error", Data: err.Error()})
		}
	}
}

func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if err := c.write(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

// broadcastGame сериализует состояние под блокировкой хранилища: игра не
// должна меняться посреди маршалинга.
func (h *Hub) broadcastGame() {
	payload, err := h.marshalGame()
	if err != nil {
		h.log.Error().Err(err).Msg("ws: игра не сериализована")
		return
	}
	h.broadcastRaw(payload)
}

func (h *Hub) sendSnapshot(c *client) {
	payload, err := h.marshalGame()
	if err != nil {
		h.log.Error().Err(err).Msg("ws: игра не сериализована")
		return
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		h.drop(c)
	}
}

func (h *Hub) marshalGame() ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	h.store.View(func(g *domain.Game) {
		payload, err = json.Marshal(Envelope{Type: "game", Data: g})
	})
	return payload, err
}

func (h *Hub) sendTo(c *client, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("type", env.Type).Msg("ws: кадр не сериализован")
		return
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		h.drop(c)
	}
}

func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
