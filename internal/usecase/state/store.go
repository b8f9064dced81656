package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"feed-game/internal/domain"
)

// ErrInvalidSnapshot возвращается при попытке влить снапшот без валидного
// uuid. Канонические данные при этом не меняются.
var ErrInvalidSnapshot = errors.New("снапшот игры без uuid отброшен")

// clockTickStep — шаг фонового дрейфа фиктивного времени за один реальный
// интервал.
const clockTickStep = time.Millisecond

// Store владеет единственным каноническим экземпляром Game. Все мутации
// агрегата проходят через Store; удалённые процессы присылают снапшоты,
// которые вливаются на место, не подменяя сам объект — подписчики держат
// долгоживущие ссылки на него.
type Store struct {
	mu   sync.RWMutex
	game *domain.Game
	log  zerolog.Logger

	subMu     sync.Mutex
	nextSub   int
	gameSubs  map[int]chan *domain.Game
	clockSubs map[int]chan int64
}

// New создаёт стор вокруг канонической игры. Фиктивное время засевается от
// created, если его ещё нет.
func New(game *domain.Game, logger zerolog.Logger) *Store {
	if game.FTime == 0 {
		game.FTime = game.Created
	}
	return &Store{
		game:      game,
		log:       logger,
		gameSubs:  make(map[int]chan *domain.Game),
		clockSubs: make(map[int]chan int64),
	}
}

// Game возвращает канонический экземпляр. Вызывающий не должен мутировать
// его напрямую — для этого есть Update.
func (s *Store) Game() *domain.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game
}

// View выполняет чтение под блокировкой.
func (s *Store) View(fn func(g *domain.Game)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.game)
}

// Update мутирует каноническую игру под блокировкой, обновляет updated и
// рассылает уведомление.
func (s *Store) Update(fn func(g *domain.Game)) {
	s.mu.Lock()
	fn(s.game)
	s.game.Updated = time.Now().UnixMilli()
	game := s.game
	s.mu.Unlock()
	s.publishGame(game)
}

// Merge вливает входящий снапшот в каноническую игру: каждое верхнеуровневое
// поле перезаписывается значением из снапшота целиком, коллекции заменяются
// оптом, без поэлементного слияния. Ссылка на канонический объект не
// меняется никогда. Снапшот без uuid отбрасывается целиком.
func (s *Store) Merge(incoming *domain.Game) error {
	if incoming == nil || incoming.UUID == "" {
		return ErrInvalidSnapshot
	}
	s.mu.Lock()
	*s.game = *incoming
	game := s.game
	s.mu.Unlock()
	s.publishGame(game)
	return nil
}

// Snapshot возвращает глубокую копию игры (через JSON). Копию можно
// сериализовать и сохранять, не держа блокировку стора.
func (s *Store) Snapshot() (*domain.Game, error) {
	s.mu.RLock()
	payload, err := json.Marshal(s.game)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var copied domain.Game
	if err := json.Unmarshal(payload, &copied); err != nil {
		return nil, err
	}
	return &copied, nil
}

// FictionalTime возвращает текущее фиктивное время в миллисекундах.
func (s *Store) FictionalTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game.FTime
}

// SetFictionalTime выставляет фиктивное время явно.
func (s *Store) SetFictionalTime(ms int64) {
	s.mu.Lock()
	s.game.FTime = ms
	s.mu.Unlock()
	s.publishClock(ms)
}

// AdvanceFictional сдвигает фиктивные часы на d вперёд и возвращает новое
// время.
func (s *Store) AdvanceFictional(d time.Duration) int64 {
	s.mu.Lock()
	s.game.FTime += d.Milliseconds()
	ftime := s.game.FTime
	s.mu.Unlock()
	s.publishClock(ftime)
	return ftime
}

// RunClock гонит фоновый дрейф фиктивного времени: +1 фиктивная
// миллисекунда за каждый реальный interval. Изменения часов уходят в
// отдельный поток уведомлений, не в полные обновления игры.
func (s *Store) RunClock(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.AdvanceFictional(clockTickStep)
		}
	}
}

// SubscribeGame возвращает канал полных обновлений игры и функцию отписки.
func (s *Store) SubscribeGame() (<-chan *domain.Game, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan *domain.Game, 8)
	s.gameSubs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.gameSubs, id)
	}
}

// SubscribeClock возвращает канал тиков фиктивного времени и функцию
// отписки. UI читает его с большей частотой, чем полные обновления.
func (s *Store) SubscribeClock() (<-chan int64, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan int64, 64)
	s.clockSubs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.clockSubs, id)
	}
}

func (s *Store) publishGame(game *domain.Game) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.gameSubs {
		select {
		case ch <- game:
		default:
			s.log.Warn().Msg("state: подписчик не успевает за обновлениями игры")
		}
	}
}

func (s *Store) publishClock(ftime int64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.clockSubs {
		select {
		case ch <- ftime:
		default:
		}
	}
}
