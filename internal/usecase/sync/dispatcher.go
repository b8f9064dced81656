package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"feed-game/internal/domain"
	"feed-game/internal/usecase/state"
)

// Command — сообщение контроллера. Полезная нагрузка зависит от команды и
// разбирается лениво.
type Command struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// TaskFinalizer завершает задачу раунда и запускает следующий.
type TaskFinalizer interface {
	FinalizeTask(ctx context.Context, completed domain.Task) (domain.Task, error)
}

// Dispatcher применяет команды активного контроллера к канонической игре.
// Неизвестные команды не считаются ошибкой: протокол расширяется со стороны
// клиента, сервер их логирует и молча пропускает.
type Dispatcher struct {
	store     *state.Store
	scheduler TaskFinalizer
	log       zerolog.Logger
	forward   func(command string, data json.RawMessage)
}

// NewDispatcher создаёт обработчик команд. forward может быть nil; через него
// команды подсветки графа ретранслируются зрителям без интерпретации.
func NewDispatcher(store *state.Store, scheduler TaskFinalizer, logger zerolog.Logger, forward func(command string, data json.RawMessage)) *Dispatcher {
	return &Dispatcher{store: store, scheduler: scheduler, log: logger, forward: forward}
}

// Dispatch разбирает и применяет одно сообщение контроллера.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) error {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("разбор команды контроллера: %w", err)
	}

	switch cmd.Command {
	case "select-hero":
		return d.selectHero(cmd.Data)
	case "update-game":
		return d.updateGame(cmd.Data)
	case "comment":
		return d.addComment(cmd.Data)
	case "reaction":
		return d.addReaction(cmd.Data)
	case "task":
		return d.completeTask(ctx, cmd.Data)
	case "set-fictional-time":
		return d.setFictionalTime(cmd.Data)
	case "highlight-graph-user", "highlight-graph-path":
		if d.forward != nil {
			d.forward(cmd.Command, cmd.Data)
		}
		return nil
	default:
		d.log.Warn().Str("command", cmd.Command).Msg("sync: неизвестная команда пропущена")
		return nil
	}
}

func (d *Dispatcher) selectHero(data json.RawMessage) error {
	var heroID string
	if err := json.Unmarshal(data, &heroID); err != nil {
		return fmt.Errorf("select-hero: %w", err)
	}
	var found bool
	d.store.Update(func(g *domain.Game) {
		if _, ok := g.UserByID(heroID); ok {
			g.Hero = heroID
			found = true
		}
	})
	if !found {
		return fmt.Errorf("select-hero: пользователь %s не найден", heroID)
	}
	return nil
}

func (d *Dispatcher) updateGame(data json.RawMessage) error {
	var incoming domain.Game
	if err := json.Unmarshal(data, &incoming); err != nil {
		return fmt.Errorf("update-game: %w", err)
	}
	if err := d.store.Merge(&incoming); err != nil {
		return fmt.Errorf("update-game: %w", err)
	}
	return nil
}

func (d *Dispatcher) addComment(data json.RawMessage) error {
	var c domain.Comment
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("comment: %w", err)
	}
	if c.UUID == "" {
		c.UUID = domain.NewID()
	}
	d.store.Update(func(g *domain.Game) {
		g.Comments = append(g.Comments, c)
		g.Relations = append(g.Relations, domain.Rel(c.Author, c.Parent, domain.RelationComment))
	})
	return nil
}

func (d *Dispatcher) addReaction(data json.RawMessage) error {
	var r domain.Reaction
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("reaction: %w", err)
	}
	if r.UUID == "" {
		r.UUID = domain.NewID()
	}
	d.store.Update(func(g *domain.Game) {
		g.Reactions = append(g.Reactions, r)
		g.Relations = append(g.Relations, domain.Rel(r.Author, r.Parent, domain.RelationReact))
	})
	return nil
}

func (d *Dispatcher) completeTask(ctx context.Context, data json.RawMessage) error {
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	if _, err := d.scheduler.FinalizeTask(ctx, task); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	return nil
}

func (d *Dispatcher) setFictionalTime(data json.RawMessage) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("set-fictional-time: %w", err)
	}
	d.store.SetFictionalTime(ms)
	return nil
}
