package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"feed-game/internal/domain"
)

func TestFileSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "game.json")
	store := NewFile(path)

	game := domain.NewGame("test", time.Unix(1700000000, 0))
	game.Hero = "a"
	game.Users = []domain.User{{UUID: "a", Name: "Anna", Surname: "Hero"}}
	game.Tasks = []domain.Task{{UUID: "t1", Type: domain.TaskDistributePost}}

	if err := store.Save(context.Background(), game); err != nil {
		t.Fatalf("сохранение не удалось: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("загрузка не удалась: %v", err)
	}
	if loaded.UUID != game.UUID || loaded.Hero != "a" {
		t.Fatalf("снапшот после загрузки не совпадает: %+v", loaded)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].Type != domain.TaskDistributePost {
		t.Fatalf("задачи не восстановились: %+v", loaded.Tasks)
	}
}

func TestFileLoadMissing(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := store.Load(context.Background()); !errors.Is(err, domain.ErrNoGame) {
		t.Fatalf("ожидался ErrNoGame, получили %v", err)
	}
}

func TestFileSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	store := NewFile(path)

	game := domain.NewGame("test", time.Unix(1700000000, 0))
	if err := store.Save(context.Background(), game); err != nil {
		t.Fatalf("первое сохранение: %v", err)
	}
	game.Hero = "b"
	if err := store.Save(context.Background(), game); err != nil {
		t.Fatalf("второе сохранение: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("загрузка: %v", err)
	}
	if loaded.Hero != "b" {
		t.Fatalf("последний снапшот должен побеждать, hero=%q", loaded.Hero)
	}
}
