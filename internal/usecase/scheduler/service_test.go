package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"feed-game/internal/domain"
	"feed-game/internal/usecase/state"
)

type stubContent struct {
	viewFailFor    map[string]bool
	postFailFor    map[string]bool
	commentFor     map[string]*domain.Comment
	urges          domain.View
	generatedPosts int
	views          int
	profileGame    *domain.Game
}

func (s *stubContent) GeneratePost(_ context.Context, user domain.User, _ string, ftime int64) (domain.Post, error) {
	if s.postFailFor[user.UUID] {
		return domain.Post{}, errors.New("генератор отказал")
	}
	s.generatedPosts++
	return domain.Post{
		UUID:     domain.NewID(),
		Author:   user.UUID,
		Text:     "сгенерированный пост",
		FCreated: ftime,
	}, nil
}

func (s *stubContent) ViewPost(_ context.Context, post domain.Post, user domain.User, _ string, ftime int64) (domain.View, error) {
	if s.viewFailFor[user.UUID] {
		return domain.View{}, errors.New("генератор отказал")
	}
	s.views++
	view := s.urges
	view.UUID = domain.NewID()
	view.User = user.UUID
	view.Post = post.UUID
	view.Time = ftime
	return view, nil
}

func (s *stubContent) DecideComment(_ context.Context, _ domain.View, user domain.User, post domain.Post, ftime int64) (*domain.Comment, error) {
	c, ok := s.commentFor[user.UUID]
	if !ok {
		return nil, nil
	}
	out := *c
	out.UUID = domain.NewID()
	out.Parent = post.UUID
	out.ParentType = domain.ParentPost
	out.Author = user.UUID
	out.FCreated = ftime
	return &out, nil
}

func (s *stubContent) RecalculateProfile(_ context.Context, user domain.User, g *domain.Game) (domain.PsychoProfile, error) {
	s.profileGame = g
	return domain.PsychoProfile{BigFive: user.BigFive, Plutchik: user.Plutchik, Russell: user.Russell}, nil
}

func newTestGame() *domain.Game {
	g := domain.NewGame("test", time.Unix(1700000000, 0))
	g.Hero = "a"
	g.Users = []domain.User{
		{UUID: "a", Name: "Anna", Surname: "Hero"},
		{UUID: "b", Name: "Boris", Surname: "Mid"},
		{UUID: "c", Name: "Clara", Surname: "Far"},
	}
	return g
}

func newTestService(g *domain.Game, content domain.ContentClient) (*Service, *state.Store) {
	store := state.New(g, zerolog.Nop())
	svc := New(store, content, nil, zerolog.Nop(), rand.New(rand.NewSource(7)))
	return svc, store
}

func TestResolveDistributionRoutesThroughGraph(t *testing.T) {
	g := newTestGame()
	g.Relations = []domain.Relation{
		domain.Rel("a", "b", domain.RelationFollow),
		domain.Rel("b", "c", domain.RelationFollow),
	}
	svc, _ := newTestService(g, &stubContent{})

	showTo := svc.ResolveDistribution("c")
	if len(showTo) != 2 || showTo[0] != "b" || showTo[1] != "c" {
		t.Fatalf("ожидался маршрут [b c], получили %v", showTo)
	}
}

func TestResolveDistributionFallsBackToDirect(t *testing.T) {
	g := newTestGame()
	svc, _ := newTestService(g, &stubContent{})

	showTo := svc.ResolveDistribution("c")
	if len(showTo) != 1 || showTo[0] != "c" {
		t.Fatalf("без пути ожидалась прямая доставка [c], получили %v", showTo)
	}
}

func TestFinalizeTaskAppendsNewTask(t *testing.T) {
	g := newTestGame()
	g.Posts = []domain.Post{{UUID: "p1", Author: "a", Text: "пост героя"}}
	g.Tasks = []domain.Task{{
		UUID:  "t1",
		Users: []string{"a"},
		Posts: []string{"p1"},
		Type:  domain.TaskDistributePost,
	}}
	svc, store := newTestService(g, &stubContent{})

	next, err := svc.FinalizeTask(context.Background(), domain.Task{
		UUID:     "t1",
		ShowTo:   []string{"b"},
		ShowPost: "p1",
	})
	if err != nil {
		t.Fatalf("финализация не удалась: %v", err)
	}
	if next.Completed {
		t.Fatalf("новая задача не должна быть завершённой")
	}

	var tasks []domain.Task
	store.View(func(g *domain.Game) {
		tasks = append([]domain.Task(nil), g.Tasks...)
	})
	if len(tasks) != 2 {
		t.Fatalf("ожидались 2 задачи, получили %d", len(tasks))
	}
	if tasks[0].UUID != next.UUID {
		t.Fatalf("новая задача должна стоять первой в истории")
	}
	if !tasks[1].Completed {
		t.Fatalf("старая задача должна быть помечена завершённой")
	}
	if len(tasks[1].ShowTo) != 1 || tasks[1].ShowTo[0] != "b" {
		t.Fatalf("выбор игрока не записан в каноническую задачу: %v", tasks[1].ShowTo)
	}
}

func TestFinalizeTaskRoutesThroughFollowers(t *testing.T) {
	g := newTestGame()
	g.Posts = []domain.Post{{UUID: "p1", Author: "a", Text: "пост героя"}}
	g.Tasks = []domain.Task{{UUID: "t1", Posts: []string{"p1"}, Type: domain.TaskDistributePost}}
	g.Relations = []domain.Relation{
		domain.Rel("a", "b", domain.RelationFollow),
		domain.Rel("b", "c", domain.RelationFollow),
	}
	svc, store := newTestService(g, &stubContent{})

	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "t1", ShowTo: []string{"c"}, ShowPost: "p1"}); err != nil {
		t.Fatalf("финализация не удалась: %v", err)
	}

	store.View(func(g *domain.Game) {
		var done *domain.Task
		for i := range g.Tasks {
			if g.Tasks[i].UUID == "t1" {
				done = &g.Tasks[i]
			}
		}
		if done == nil {
			t.Fatalf("завершённая задача пропала из истории")
		}
		if len(done.ShowTo) != 2 || done.ShowTo[0] != "b" || done.ShowTo[1] != "c" {
			t.Fatalf("доставка к c должна идти через b: %v", done.ShowTo)
		}
		var gets []string
		for _, r := range g.Relations {
			if r.Label == domain.RelationGet && r.Target == "p1" {
				gets = append(gets, r.Source)
			}
		}
		if len(gets) != 2 || gets[0] != "b" || gets[1] != "c" {
			t.Fatalf("рёбра get должны покрыть весь маршрут, получили %v", gets)
		}
	})
}

func TestFinalizeTaskShowPostDefaultsToHero(t *testing.T) {
	g := newTestGame()
	g.Posts = []domain.Post{{UUID: "p2", Author: "b", Text: "пост кандидата"}}
	g.Tasks = []domain.Task{{UUID: "t1", Posts: []string{"p2"}, Type: domain.TaskShowPost}}
	svc, store := newTestService(g, &stubContent{})

	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "t1", ShowPost: "p2"}); err != nil {
		t.Fatalf("финализация не удалась: %v", err)
	}

	store.View(func(g *domain.Game) {
		for i := range g.Tasks {
			if g.Tasks[i].UUID != "t1" {
				continue
			}
			if got := g.Tasks[i].ShowTo; len(got) != 1 || got[0] != "a" {
				t.Fatalf("принятый пост без явных получателей показывается герою: %v", got)
			}
			return
		}
		t.Fatalf("завершённая задача пропала из истории")
	})
}

func TestFinalizeTaskExactlyOnce(t *testing.T) {
	g := newTestGame()
	g.Posts = []domain.Post{{UUID: "p1", Author: "a"}}
	g.Tasks = []domain.Task{{UUID: "t1", Posts: []string{"p1"}, Type: domain.TaskDistributePost}}
	svc, store := newTestService(g, &stubContent{})

	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "t1", ShowTo: []string{"b"}, ShowPost: "p1"}); err != nil {
		t.Fatalf("первая финализация не удалась: %v", err)
	}
	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "t1", ShowTo: []string{"b"}, ShowPost: "p1"}); !errors.Is(err, ErrTaskAlreadyCompleted) {
		t.Fatalf("повторная финализация должна отклоняться, получили %v", err)
	}

	var got int
	store.View(func(g *domain.Game) {
		for _, r := range g.Relations {
			if r.Label == domain.RelationGet && r.Source == "b" && r.Target == "p1" {
				got++
			}
		}
	})
	if got != 1 {
		t.Fatalf("ребро get должно появиться ровно один раз, нашли %d", got)
	}
}

func TestFinalizeTaskUnknown(t *testing.T) {
	svc, _ := newTestService(newTestGame(), &stubContent{})
	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "ghost"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("ожидался ErrTaskNotFound, получили %v", err)
	}
}

func TestExposuresGenerateViewsReactionsComments(t *testing.T) {
	g := newTestGame()
	g.Posts = []domain.Post{{UUID: "p1", Author: "a", Text: "пост героя"}}
	g.Tasks = []domain.Task{{UUID: "t1", Posts: []string{"p1"}, Type: domain.TaskDistributePost}}
	content := &stubContent{
		urges: domain.View{ReactionLoveUrge: 1, CommentUrge: 1},
		commentFor: map[string]*domain.Comment{
			"b": {Text: "комментарий от b"},
			"c": {Text: "комментарий от c"},
		},
	}
	svc, store := newTestService(g, content)

	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "t1", ShowTo: []string{"b", "c"}, ShowPost: "p1"}); err != nil {
		t.Fatalf("финализация не удалась: %v", err)
	}

	store.View(func(g *domain.Game) {
		if len(g.Views) != 2 {
			t.Fatalf("ожидались 2 просмотра, получили %d", len(g.Views))
		}
		if g.Views[0].User != "b" || g.Views[1].User != "c" {
			t.Fatalf("просмотры должны идти в порядке получателей: %s, %s", g.Views[0].User, g.Views[1].User)
		}
		if len(g.Reactions) != 2 {
			t.Fatalf("ожидались 2 реакции, получили %d", len(g.Reactions))
		}
		if g.Reactions[0].Value != domain.ReactLove {
			t.Fatalf("при loveUrge=1 ожидалась реакция %s, получили %s", domain.ReactLove, g.Reactions[0].Value)
		}
		if len(g.Comments) != 2 {
			t.Fatalf("ожидались 2 комментария, получили %d", len(g.Comments))
		}
	})
}

func TestExposureFailureSkipsRecipient(t *testing.T) {
	g := newTestGame()
	g.Posts = []domain.Post{{UUID: "p1", Author: "a"}}
	g.Tasks = []domain.Task{{UUID: "t1", Posts: []string{"p1"}, Type: domain.TaskDistributePost}}
	content := &stubContent{viewFailFor: map[string]bool{"b": true}}
	svc, store := newTestService(g, content)

	if _, err := svc.FinalizeTask(context.Background(), domain.Task{UUID: "t1", ShowTo: []string{"b", "c"}, ShowPost: "p1"}); err != nil {
		t.Fatalf("отказ генератора по одному получателю не должен срывать раунд: %v", err)
	}

	store.View(func(g *domain.Game) {
		if len(g.Views) != 1 || g.Views[0].User != "c" {
			t.Fatalf("ожидался один просмотр от c, получили %v", g.Views)
		}
	})
}

func TestShowPostSurvivesPartialFailure(t *testing.T) {
	content := &stubContent{postFailFor: map[string]bool{"b": true}}
	svc, _ := newTestService(newTestGame(), content)

	task, err := svc.createTaskShowPost(context.Background())
	if err != nil {
		t.Fatalf("один живой кандидат должен давать задачу: %v", err)
	}
	if task.Type != domain.TaskShowPost {
		t.Fatalf("ожидался тип %s, получили %s", domain.TaskShowPost, task.Type)
	}
	if len(task.Posts) != 1 {
		t.Fatalf("ожидался один пост-кандидат, получили %d", len(task.Posts))
	}
	for _, u := range task.Users {
		if u == "a" {
			t.Fatalf("герой не может быть автором кандидата showPost")
		}
	}
}

func TestNextTaskFallsBackBetweenBranches(t *testing.T) {
	g := newTestGame()
	// Без других пользователей showPost невозможен, должен получиться
	// distributePost вне зависимости от монеты.
	g.Users = g.Users[:1]
	svc, _ := newTestService(g, &stubContent{})

	for i := 0; i < 5; i++ {
		task, err := svc.NextTask(context.Background(), domain.Task{})
		if err != nil {
			t.Fatalf("раунд %d: %v", i, err)
		}
		if task.Type != domain.TaskDistributePost {
			t.Fatalf("раунд %d: ожидался distributePost, получили %s", i, task.Type)
		}
		if task.ShowPost == "" {
			t.Fatalf("distributePost должен предзаполнять showPost")
		}
	}
}

func TestHeroRecalculationGetsDetachedCopy(t *testing.T) {
	g := newTestGame()
	content := &stubContent{}
	svc, store := newTestService(g, content)

	if _, err := svc.NextTask(context.Background(), domain.Task{}); err != nil {
		t.Fatalf("раунд не удался: %v", err)
	}
	if content.profileGame == nil {
		t.Fatalf("пересчёт психики должен получить агрегат")
	}
	// Генератор держит агрегат во время сетевого вызова без блокировки, поэтому
	// ему нельзя отдавать канонический указатель.
	if content.profileGame == store.Game() {
		t.Fatalf("генератору ушёл канонический агрегат вместо копии")
	}
	content.profileGame.Users[0].Name = "Mutated"
	if store.Game().Users[0].Name != "Anna" {
		t.Fatalf("правка копии не должна просачиваться в каноническое состояние")
	}
}

func TestRoundAdvancesFictionalClock(t *testing.T) {
	g := newTestGame()
	svc, store := newTestService(g, &stubContent{})
	before := store.FictionalTime()

	if _, err := svc.NextTask(context.Background(), domain.Task{}); err != nil {
		t.Fatalf("раунд не удался: %v", err)
	}
	after := store.FictionalTime()
	if after-before < time.Hour.Milliseconds() {
		t.Fatalf("часы должны прыгнуть минимум на час, сдвиг %d мс", after-before)
	}
}
