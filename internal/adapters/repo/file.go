package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"feed-game/internal/domain"
)

// File хранит снапшот игры в JSON-файле. Запись атомарна: сначала во
// временный файл рядом, затем rename.
type File struct {
	path string
}

var _ domain.GameRepo = (*File)(nil)

// NewFile создаёт файловое хранилище.
func NewFile(path string) *File {
	return &File{path: path}
}

// Save перезаписывает снапшот.
func (f *File) Save(_ context.Context, game *domain.Game) error {
	payload, err := json.MarshalIndent(game, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация снапшота: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("каталог хранилища: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "game-*.json")
	if err != nil {
		return fmt.Errorf("временный файл: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("запись снапшота: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("закрытие временного файла: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("подмена снапшота: %w", err)
	}
	return nil
}

// Load возвращает снапшот либо domain.ErrNoGame, если файла ещё нет.
func (f *File) Load(_ context.Context) (*domain.Game, error) {
	payload, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
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
