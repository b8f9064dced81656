package sync

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ErrLinkExpired возвращается при попытке подключиться по протухшей ссылке.
var ErrLinkExpired = errors.New("ссылка контроллера истекла")

// ErrWrongGame возвращается, если ссылка выписана на другую игру.
var ErrWrongGame = errors.New("ссылка выписана на другую игру")

const (
	// DefaultLinkTTL — номинальный срок жизни ссылки контроллера. Пока
	// контроллер активен, хаб перевыпускает ссылку раз в минуту, так что
	// живой контроллер всегда держит свежую.
	DefaultLinkTTL = 2 * time.Minute
	// linkGrace — допуск на рассинхрон часов и задержку доставки.
	linkGrace = 15 * time.Second
)

// LinkMinter выписывает и проверяет ссылки на роль контроллера. Ссылка
// привязана к конкретной игре и несёт срок годности в миллисекундах эпохи:
// <base>/controller?from=<gameId>&valid=<epochMillis>.
type LinkMinter struct {
	base string
	ttl  time.Duration
}

// NewLinkMinter создаёт выдачу ссылок. ttl <= 0 означает срок по умолчанию.
func NewLinkMinter(base string, ttl time.Duration) *LinkMinter {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &LinkMinter{base: base, ttl: ttl}
}

// Mint выписывает ссылку контроллера для игры gameID со сроком от now.
func (m *LinkMinter) Mint(gameID string, now time.Time) string {
	valid := now.Add(m.ttl).UnixMilli()
	q := url.Values{}
	q.Set("from", gameID)
	q.Set("valid", strconv.FormatInt(valid, 10))
	return fmt.Sprintf("%s/controller?%s", m.base, q.Encode())
}

// Validate проверяет параметры ссылки против игры и времени.
func (m *LinkMinter) Validate(gameID, from, valid string, now time.Time) error {
	if from != gameID {
		return ErrWrongGame
	}
	ms, err := strconv.ParseInt(valid, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: параметр valid не разобран: %s", ErrLinkExpired, valid)
	}
	if now.After(time.UnixMilli(ms).Add(linkGrace)) {
		return ErrLinkExpired
	}
	return nil
}
