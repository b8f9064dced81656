package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"feed-game/internal/domain"
	"feed-game/internal/usecase/state"
)

type stubFinalizer struct {
	got  []domain.Task
	next domain.Task
	err  error
}

func (s *stubFinalizer) FinalizeTask(_ context.Context, completed domain.Task) (domain.Task, error) {
	s.got = append(s.got, completed)
	return s.next, s.err
}

func newDispatcher(g *domain.Game, fin *stubFinalizer, forward func(string, json.RawMessage)) (*Dispatcher, *state.Store) {
	store := state.New(g, zerolog.Nop())
	return NewDispatcher(store, fin, zerolog.Nop(), forward), store
}

func testGame() *domain.Game {
	g := domain.NewGame("test", time.Unix(1700000000, 0))
	g.Users = []domain.User{{UUID: "a"}, {UUID: "b"}}
	return g
}

func mustCmd(t *testing.T, command string, data any) []byte {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("сериализация данных команды: %v", err)
	}
	raw, err := json.Marshal(Command{Command: command, Data: payload})
	if err != nil {
		t.Fatalf("сериализация команды: %v", err)
	}
	return raw
}

func TestDispatchSelectHero(t *testing.T) {
	d, store := newDispatcher(testGame(), &stubFinalizer{}, nil)

	if err := d.Dispatch(context.Background(), mustCmd(t, "select-hero", "b")); err != nil {
		t.Fatalf("select-hero не применился: %v", err)
	}
	if store.Game().Hero != "b" {
		t.Fatalf("герой не выбран, hero=%q", store.Game().Hero)
	}

	if err := d.Dispatch(context.Background(), mustCmd(t, "select-hero", "ghost")); err == nil {
		t.Fatalf("выбор несуществующего героя должен отклоняться")
	}
}

func TestDispatchUpdateGameMerges(t *testing.T) {
	g := testGame()
	d, store := newDispatcher(g, &stubFinalizer{}, nil)

	incoming := *g
	incoming.Hero = "a"
	incoming.Posts = []domain.Post{{UUID: "p1", Author: "a"}}

	if err := d.Dispatch(context.Background(), mustCmd(t, "update-game", incoming)); err != nil {
		t.Fatalf("update-game не применился: %v", err)
	}
	got := store.Game()
	if got != g {
		t.Fatalf("merge должен сохранять идентичность канонического экземпляра")
	}
	if len(got.Posts) != 1 || got.Hero != "a" {
		t.Fatalf("состояние контроллера не влилось: %+v", got)
	}
}

func TestDispatchTask(t *testing.T) {
	fin := &stubFinalizer{next: domain.Task{UUID: "next"}}
	d, _ := newDispatcher(testGame(), fin, nil)

	task := domain.Task{UUID: "t1", ShowTo: []string{"b"}, ShowPost: "p1"}
	if err := d.Dispatch(context.Background(), mustCmd(t, "task", task)); err != nil {
		t.Fatalf("task не применился: %v", err)
	}
	if len(fin.got) != 1 || fin.got[0].UUID != "t1" {
		t.Fatalf("финализатор не получил задачу: %+v", fin.got)
	}

	fin.err = errors.New("дубль")
	if err := d.Dispatch(context.Background(), mustCmd(t, "task", task)); err == nil {
		t.Fatalf("ошибка финализатора должна подниматься наверх")
	}
}

func TestDispatchCommentAndReaction(t *testing.T) {
	d, store := newDispatcher(testGame(), &stubFinalizer{}, nil)

	comment := domain.Comment{Parent: "p1", ParentType: domain.ParentPost, Author: "b", Text: "вручную"}
	if err := d.Dispatch(context.Background(), mustCmd(t, "comment", comment)); err != nil {
		t.Fatalf("comment не применился: %v", err)
	}
	reaction := domain.Reaction{Parent: "p1", ParentType: domain.ParentPost, Author: "b", Value: domain.ReactLove}
	if err := d.Dispatch(context.Background(), mustCmd(t, "reaction", reaction)); err != nil {
		t.Fatalf("reaction не применился: %v", err)
	}

	store.View(func(g *domain.Game) {
		if len(g.Comments) != 1 || g.Comments[0].UUID == "" {
			t.Fatalf("комментарий должен получить uuid: %+v", g.Comments)
		}
		if len(g.Reactions) != 1 {
			t.Fatalf("реакция не добавлена")
		}
		var comments, reacts int
		for _, r := range g.Relations {
			switch r.Label {
			case domain.RelationComment:
				comments++
			case domain.RelationReact:
				reacts++
			}
		}
		if comments != 1 || reacts != 1 {
			t.Fatalf("рёбра журнала отношений: comment=%d react=%d", comments, reacts)
		}
	})
}

func TestDispatchForwardsHighlights(t *testing.T) {
	var forwarded []string
	d, _ := newDispatcher(testGame(), &stubFinalizer{}, func(command string, _ json.RawMessage) {
		forwarded = append(forwarded, command)
	})

	if err := d.Dispatch(context.Background(), mustCmd(t, "highlight-graph-user", "b")); err != nil {
		t.Fatalf("highlight-graph-user: %v", err)
	}
	if err := d.Dispatch(context.Background(), mustCmd(t, "highlight-graph-path", []string{"a", "b"})); err != nil {
		t.Fatalf("highlight-graph-path: %v", err)
	}
	if len(forwarded) != 2 {
		t.Fatalf("подсветки должны ретранслироваться зрителям, получили %v", forwarded)
	}
}

func TestDispatchUnknownIgnored(t *testing.T) {
	d, _ := newDispatcher(testGame(), &stubFinalizer{}, nil)
	if err := d.Dispatch(context.Background(), mustCmd(t, "totally-new-command", 42)); err != nil {
		t.Fatalf("неизвестная команда не должна быть ошибкой: %v", err)
	}
}

func TestDispatchSetFictionalTime(t *testing.T) {
	d, store := newDispatcher(testGame(), &stubFinalizer{}, nil)
	if err := d.Dispatch(context.Background(), mustCmd(t, "set-fictional-time", int64(4242))); err != nil {
		t.Fatalf("set-fictional-time: %v", err)
	}
	if got := store.FictionalTime(); got != 4242 {
		t.Fatalf("фиктивное время не установлено: %d", got)
	}
}

func TestLinkMintAndValidate(t *testing.T) {
	m := NewLinkMinter("https://example.org", 2*time.Minute)
	now := time.Unix(1700000000, 0)

	link := m.Mint("game-1", now)
	if !strings.HasPrefix(link, "https://example.org/controller?") {
		t.Fatalf("неожиданный формат ссылки: %s", link)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("ссылка не разобрана: %v", err)
	}
	from := u.Query().Get("from")
	valid := u.Query().Get("valid")

	if err := m.Validate("game-1", from, valid, now.Add(time.Minute)); err != nil {
		t.Fatalf("свежая ссылка должна приниматься: %v", err)
	}
	if err := m.Validate("game-1", from, valid, now.Add(10*time.Minute)); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("протухшая ссылка должна отклоняться, получили %v", err)
	}
	if err := m.Validate("game-2", from, valid, now); !errors.Is(err, ErrWrongGame) {
		t.Fatalf("ссылка на чужую игру должна отклоняться, получили %v", err)
	}
	if err := m.Validate("game-1", from, "мусор", now); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("нечитаемый срок должен отклоняться, получили %v", err)
	}
}

func TestLinkGracePeriod(t *testing.T) {
	m := NewLinkMinter("http://localhost", 2*time.Minute)
	now := time.Unix(1700000000, 0)
	link := m.Mint("g", now)
	u, _ := url.Parse(link)
	valid := u.Query().Get("valid")

	// Чуть позже номинального срока, но в пределах допуска.
	if err := m.Validate("g", "g", valid, now.Add(2*time.Minute+5*time.Second)); err != nil {
		t.Fatalf("допуск на рассинхрон не сработал: %v", err)
	}
}

func TestIdleWatchFiresOnce(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatch(20*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("onIdle должен сработать ровно один раз, сработал %d", got)
	}
}

func TestIdleWatchTouchDefers(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatch(60*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	for i := 0; i < 4; i++ {
		time.Sleep(25 * time.Millisecond)
		w.Touch()
	}
	if got := fired.Load(); got != 0 {
		t.Fatalf("активность должна откладывать таймаут, сработал %d раз", got)
	}
	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("после тишины таймаут должен сработать, сработал %d", got)
	}
}

func TestIdleWatchStopPrevents(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatch(30*time.Millisecond, func() { fired.Add(1) })
	w.Stop()
	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("после Stop таймаут не должен срабатывать, сработал %d", got)
	}
}
