package domain

import (
	"context"
	"errors"
)

// ErrNoGame возвращается хранилищем, если сохранённой игры ещё нет.
var ErrNoGame = errors.New("сохранённая игра не найдена")

// ContentClient генерирует контент от имени синтетических пользователей.
// Любая ошибка клиента трактуется вызывающим как "этого шага не было":
// раунд продолжается без сгенерированной сущности.
type ContentClient interface {
	// GeneratePost сочиняет пост от имени пользователя с учётом сводки его
	// недавней активности и фиктивного времени.
	GeneratePost(ctx context.Context, user User, recentActivity string, ftime int64) (Post, error)
	// ViewPost имитирует прочтение поста пользователем и возвращает просмотр
	// с позывами-скорами. postContext — текст поста вместе с уже
	// существующими комментариями и реакциями.
	ViewPost(ctx context.Context, post Post, user User, postContext string, ftime int64) (View, error)
	// DecideComment вероятностно (по commentUrge просмотра) сочиняет
	// комментарий. nil без ошибки означает "комментария не будет".
	DecideComment(ctx context.Context, view View, user User, post Post, ftime int64) (*Comment, error)
	// RecalculateProfile пересчитывает психологический профиль пользователя
	// по всей истории постов, комментариев и реакций.
	RecalculateProfile(ctx context.Context, user User, game *Game) (PsychoProfile, error)
}

// GameRepo сохраняет и загружает снапшоты игры.
type GameRepo interface {
	Save(ctx context.Context, game *Game) error
	Load(ctx context.Context) (*Game, error)
}

// Notifier отправляет служебные уведомления оператору инсталляции.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
