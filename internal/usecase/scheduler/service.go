package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"feed-game/internal/domain"
	"feed-game/internal/infra/metrics"
	"feed-game/internal/usecase/graph"
	"feed-game/internal/usecase/state"
)

// ErrTaskNotFound возвращается при финализации неизвестной задачи.
var ErrTaskNotFound = errors.New("задача не найдена в истории игры")

// ErrTaskAlreadyCompleted защищает от повторной финализации: побочные
// эффекты завершения задачи должны случиться ровно один раз.
var ErrTaskAlreadyCompleted = errors.New("задача уже финализирована")

// ErrNoCandidatePosts возвращается, если генератор не смог выдать ни одного
// поста для нового раунда.
var ErrNoCandidatePosts = errors.New("нет кандидатов для новой задачи")

const (
	// maxRecipientClockJitter — верхняя граница фиктивной паузы между
	// просмотрами получателей.
	maxRecipientClockJitter = 60 * time.Minute
	// showPostCandidates — сколько чужих постов генерируется для задачи
	// ShowPost.
	showPostCandidates = 2
)

// Event — доменное событие раунда, уходящее зрителям.
type Event struct {
	Command string `json:"command"`
	Data    any    `json:"data"`
}

// Service гоняет пошаговый игровой цикл: переваривает завершённую задачу,
// раздаёт просмотры через генератор контента, двигает фиктивные часы и
// готовит следующую точку решения. Все вызовы генератора строго
// последовательны: часы двигаются на каждого получателя, и каждый следующий
// получатель читает комментарии и реакции предыдущих.
type Service struct {
	store    *state.Store
	content  domain.ContentClient
	notifier domain.Notifier
	log      zerolog.Logger
	rnd      *rand.Rand
	emit     func(Event)
}

// New создаёт планировщик раундов. notifier и emit могут быть nil; rnd nil
// означает генератор, засеянный от текущего времени (в тестах передаётся
// засеянный).
func New(store *state.Store, content domain.ContentClient, notifier domain.Notifier, logger zerolog.Logger, rnd *rand.Rand) *Service {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{store: store, content: content, notifier: notifier, log: logger, rnd: rnd}
}

// SetEventSink подключает получателя доменных событий (реакции и
// комментарии, появившиеся в раунде, уходят зрителям в реальном времени).
func (s *Service) SetEventSink(emit func(Event)) {
	s.emit = emit
}

// ResolveDistribution вычисляет маршрут доставки поста героя к выбранной
// цели: кратчайший путь по социальному графу, все промежуточные узлы
// включаются в порядке пути, автор исключается. Если пути нет, доставка
// деградирует до прямой — только выбранная цель.
func (s *Service) ResolveDistribution(targetID string) []string {
	var showTo []string
	s.store.View(func(g *domain.Game) {
		showTo = routeToTarget(g, targetID)
	})
	return showTo
}

// routeToTarget прокладывает путь героя к цели. Маршрутизация идёт строго
// по журналу отношений: синтетическая топология холодного старта — дело
// визуализации, не доставки.
func routeToTarget(g *domain.Game, targetID string) []string {
	social := graph.New()
	for _, u := range g.Users {
		social.AddNode(graph.Node{ID: u.UUID, Type: graph.NodeUser, Label: u.FullName()})
	}
	for _, r := range g.Relations {
		if r.Label == domain.RelationFollow {
			social.AddEdge(r.Source, r.Target, r.Label)
		}
	}
	path := social.ShortestPath(g.Hero, targetID)
	if len(path) < 2 {
		return []string{targetID}
	}
	return path[1:]
}

// expandRoutes разворачивает выбранные игроком цели в полный список
// получателей: каждая цель заменяется своим маршрутом, дубликаты между
// маршрутами схлопываются с сохранением порядка.
func expandRoutes(g *domain.Game, targets []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, target := range targets {
		for _, id := range routeToTarget(g, target) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// FinalizeTask применяет решение игрока к канонической задаче, ровно один
// раз дописывает рёбра write/get в журнал отношений и запускает следующий
// раунд. completed несёт выбор игрока: ShowTo и ShowPost.
func (s *Service) FinalizeTask(ctx context.Context, completed domain.Task) (domain.Task, error) {
	var (
		applied domain.Task
		err     error
	)
	s.store.Update(func(g *domain.Game) {
		idx := -1
		for i := range g.Tasks {
			if g.Tasks[i].UUID == completed.UUID {
				idx = i
				break
			}
		}
		if idx == -1 {
			err = ErrTaskNotFound
			return
		}
		if g.Tasks[idx].Completed {
			err = ErrTaskAlreadyCompleted
			return
		}
		task := &g.Tasks[idx]
		task.Completed = true
		task.ShowPost = completed.ShowPost
		task.Time = g.FTime

		// Выбор игрока — это цели; получатели выводятся из него. Для
		// distributePost каждая цель разворачивается в маршрут по цепочке
		// подписок, промежуточные узлы тоже получают пост. Принятый showPost
		// без явных получателей показывается самому герою.
		switch {
		case task.Type == domain.TaskDistributePost:
			task.ShowTo = expandRoutes(g, completed.ShowTo)
		case len(completed.ShowTo) == 0 && completed.ShowPost != "":
			task.ShowTo = []string{g.Hero}
		default:
			task.ShowTo = completed.ShowTo
		}

		// Рёбра write для каждого поста задачи, get для каждого получателя
		// показанного поста.
		for _, postID := range task.Posts {
			if post, ok := g.PostByID(postID); ok {
				g.Relations = append(g.Relations, domain.Rel(post.Author, post.UUID, domain.RelationWrite))
			}
		}
		if task.ShowPost != "" {
			for _, userID := range task.ShowTo {
				g.Relations = append(g.Relations, domain.Rel(userID, task.ShowPost, domain.RelationGet))
			}
		}
		applied = *task
	})
	if err != nil {
		return domain.Task{}, err
	}
	metrics.TasksCompleted.WithLabelValues(string(applied.Type)).Inc()
	return s.NextTask(ctx, applied)
}

// NextTask — алгоритм раунда. Сначала разыгрываются просмотры завершённой
// задачи (строго по порядку получателей), затем пересчитывается психика
// героя, часы прыгают на 1-8 фиктивных часов, и взвешенная монета выбирает
// тип следующей задачи. Новая задача добавляется в начало истории.
func (s *Service) NextTask(ctx context.Context, done domain.Task) (domain.Task, error) {
	started := time.Now()
	defer func() {
		metrics.RoundDuration.Observe(time.Since(started).Seconds())
	}()

	if done.ShowPost != "" && len(done.ShowTo) > 0 {
		s.simulateExposures(ctx, done)
	}

	s.recalculateHero(ctx)
	s.store.AdvanceFictional(time.Duration(1+s.rnd.Intn(8)) * time.Hour)

	var (
		task domain.Task
		err  error
	)
	if s.rnd.Float64() < 0.5 {
		task, err = s.createTaskDistributePost(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("scheduler: distributePost не собрался, пробуем showPost")
			task, err = s.createTaskShowPost(ctx)
		}
	} else {
		task, err = s.createTaskShowPost(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("scheduler: showPost не собрался, пробуем distributePost")
			task, err = s.createTaskDistributePost(ctx)
		}
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("создание задачи раунда: %w", err)
	}

	s.store.Update(func(g *domain.Game) {
		g.Tasks = append([]domain.Task{task}, g.Tasks...)
	})
	metrics.RoundsTotal.Inc()

	s.checkGameOver(ctx)
	return task, nil
}

// simulateExposures разыгрывает показ поста каждому получателю по порядку.
// Каждая итерация дожидается генератора, прежде чем перейти к следующей:
// фиктивные часы двигаются на получателя, и контекст поста для следующего
// получателя уже содержит свежие комментарии и реакции.
func (s *Service) simulateExposures(ctx context.Context, done domain.Task) {
	for _, userID := range done.ShowTo {
		var (
			post domain.Post
			user domain.User
			okP  bool
			okU  bool
			text string
		)
		s.store.View(func(g *domain.Game) {
			post, okP = g.PostByID(done.ShowPost)
			user, okU = g.UserByID(userID)
			if okP {
				text = buildPostContext(g, post)
			}
		})
		if !okP || !okU {
			s.log.Warn().Str("user", userID).Str("post", done.ShowPost).Msg("scheduler: получатель или пост не найдены, показ пропущен")
			continue
		}
		if post.Author == userID {
			continue
		}

		ftime := s.store.AdvanceFictional(time.Duration(s.rnd.Int63n(int64(maxRecipientClockJitter))))

		view, err := s.content.ViewPost(ctx, post, user, text, ftime)
		if err != nil {
			metrics.ContentErrors.WithLabelValues("view").Inc()
			s.log.Warn().Err(err).Str("user", userID).Msg("scheduler: просмотр не сгенерировался, получатель пропущен")
			continue
		}
		s.store.Update(func(g *domain.Game) {
			g.Views = append(g.Views, view)
		})
		metrics.ViewsTotal.Inc()

		s.deriveReaction(view, user, post)
		s.deriveComment(ctx, view, user, post, ftime)
	}
}

func (s *Service) deriveReaction(view domain.View, user domain.User, post domain.Post) {
	value, ok := domain.DecideReaction(view, s.rnd.Float64())
	if !ok {
		return
	}
	reaction := domain.Reaction{
		UUID:       domain.NewID(),
		Parent:     post.UUID,
		ParentType: domain.ParentPost,
		Author:     user.UUID,
		Value:      value,
	}
	s.store.Update(func(g *domain.Game) {
		g.Reactions = append(g.Reactions, reaction)
		g.Relations = append(g.Relations, domain.Rel(user.UUID, post.UUID, domain.RelationReact))
	})
	metrics.ReactionsTotal.WithLabelValues(string(value)).Inc()
	s.publish(Event{Command: "reaction", Data: reaction})
}

func (s *Service) deriveComment(ctx context.Context, view domain.View, user domain.User, post domain.Post, ftime int64) {
	comment, err := s.content.DecideComment(ctx, view, user, post, ftime)
	if err != nil {
		metrics.ContentErrors.WithLabelValues("comment").Inc()
		s.log.Warn().Err(err).Str("user", user.UUID).Msg("scheduler: комментарий не сгенерировался, шаг пропущен")
		return
	}
	if comment == nil {
		return
	}
	s.store.Update(func(g *domain.Game) {
		g.Comments = append(g.Comments, *comment)
		g.Relations = append(g.Relations, domain.Rel(user.UUID, post.UUID, domain.RelationComment))
	})
	metrics.CommentsTotal.Inc()
	s.publish(Event{Command: "comment", Data: *comment})
}

// recalculateHero пересчитывает психологический профиль героя по всей
// истории. Генератору уходит глубокая копия агрегата: сетевой вызов долгий,
// и канонический указатель нельзя читать без блокировки хранилища. Отказ
// генератора не прерывает раунд.
func (s *Service) recalculateHero(ctx context.Context) {
	game, err := s.store.Snapshot()
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduler: снапшот для пересчёта психики не снялся, шаг пропущен")
		return
	}
	hero, ok := game.HeroUser()
	if !ok {
		return
	}
	profile, err := s.content.RecalculateProfile(ctx, hero, game)
	if err != nil {
		metrics.ContentErrors.WithLabelValues("profile").Inc()
		s.log.Warn().Err(err).Msg("scheduler: пересчёт психики героя не удался, раунд продолжается")
		return
	}
	s.store.Update(func(g *domain.Game) {
		for i := range g.Users {
			if g.Users[i].UUID == hero.UUID {
				g.Users[i].BigFive = profile.BigFive
				g.Users[i].Plutchik = profile.Plutchik
				g.Users[i].Russell = profile.Russell
				return
			}
		}
	})
}

// createTaskDistributePost просит генератор сочинить один пост от имени
// героя. ShowPost предзаполняется этим же постом: игроку остаётся выбрать
// цель доставки.
func (s *Service) createTaskDistributePost(ctx context.Context) (domain.Task, error) {
	var (
		hero domain.User
		ok   bool
	)
	s.store.View(func(g *domain.Game) {
		hero, ok = g.HeroUser()
	})
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: герой не найден", ErrNoCandidatePosts)
	}
	post, err := s.generatePostFor(ctx, hero)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrNoCandidatePosts, err)
	}
	return domain.Task{
		UUID:     domain.NewID(),
		Users:    []string{hero.UUID},
		Posts:    []string{post.UUID},
		Type:     domain.TaskDistributePost,
		Time:     s.store.FictionalTime(),
		ShowPost: post.UUID,
	}, nil
}

// createTaskShowPost просит генератор сочинить по посту от двух случайных
// не-героев. Отказ по одному кандидату не срывает задачу: достаточно хотя бы
// одного поста.
func (s *Service) createTaskShowPost(ctx context.Context) (domain.Task, error) {
	var authors []domain.User
	s.store.View(func(g *domain.Game) {
		var others []domain.User
		for _, u := range g.Users {
			if u.UUID != g.Hero {
				others = append(others, u)
			}
		}
		s.rnd.Shuffle(len(others), func(i, j int) {
			others[i], others[j] = others[j], others[i]
		})
		if len(others) > showPostCandidates {
			others = others[:showPostCandidates]
		}
		authors = others
	})
	if len(authors) == 0 {
		return domain.Task{}, fmt.Errorf("%w: нет пользователей кроме героя", ErrNoCandidatePosts)
	}

	var (
		userIDs []string
		postIDs []string
	)
	for _, author := range authors {
		post, err := s.generatePostFor(ctx, author)
		if err != nil {
			metrics.ContentErrors.WithLabelValues("post").Inc()
			s.log.Warn().Err(err).Str("author", author.UUID).Msg("scheduler: кандидат не сгенерировался, пропущен")
			continue
		}
		userIDs = append(userIDs, author.UUID)
		postIDs = append(postIDs, post.UUID)
	}
	if len(postIDs) == 0 {
		return domain.Task{}, ErrNoCandidatePosts
	}
	return domain.Task{
		UUID:  domain.NewID(),
		Users: userIDs,
		Posts: postIDs,
		Type:  domain.TaskShowPost,
		Time:  s.store.FictionalTime(),
	}, nil
}

// generatePostFor двигает часы на каждый сгенерированный пост и добавляет
// его в начало ленты.
func (s *Service) generatePostFor(ctx context.Context, author domain.User) (domain.Post, error) {
	var summary string
	s.store.View(func(g *domain.Game) {
		summary = buildActivitySummary(g, author)
	})
	ftime := s.store.AdvanceFictional(time.Duration(s.rnd.Int63n(int64(maxRecipientClockJitter))))

	post, err := s.content.GeneratePost(ctx, author, summary, ftime)
	if err != nil {
		return domain.Post{}, err
	}
	s.store.Update(func(g *domain.Game) {
		g.Posts = append([]domain.Post{post}, g.Posts...)
	})
	metrics.PostsTotal.Inc()
	return post, nil
}

func (s *Service) checkGameOver(ctx context.Context) {
	var over bool
	var avg, limit float64
	s.store.View(func(g *domain.Game) {
		avg = domain.AvgEngagement(len(g.Views), len(g.Comments), len(g.Reactions))
		limit = domain.EngagementLimit(g.Rounds())
		over = avg < limit
	})
	if !over {
		return
	}
	s.log.Info().Float64("avg", avg).Float64("limit", limit).Msg("scheduler: вовлечённость ниже порога, игра окончена")
	s.publish(Event{Command: "gameover", Data: map[string]float64{"avg": avg, "limit": limit}})
	if s.notifier != nil {
		text := fmt.Sprintf("Игра окончена: вовлечённость %.1f ниже порога %.1f", avg, limit)
		if err := s.notifier.Notify(ctx, text); err != nil {
			s.log.Warn().Err(err).Msg("scheduler: уведомление об окончании игры не доставлено")
		}
	}
}

func (s *Service) publish(e Event) {
	if s.emit != nil {
		s.emit(e)
	}
}

// buildPostContext собирает текстовый контекст поста для генератора: сам
// текст плюс уже существующие комментарии и реакции.
func buildPostContext(g *domain.Game, post domain.Post) string {
	var b strings.Builder
	author, _ := g.UserByID(post.Author)
	fmt.Fprintf(&b, "Post by %s:\n%s\n", author.FullName(), post.Text)

	comments := g.CommentsUnderPost(post.UUID)
	if len(comments) > 0 {
		b.WriteString("\nComments:\n")
		for _, c := range comments {
			commenter, _ := g.UserByID(c.Author)
			fmt.Fprintf(&b, "- %s: %s\n", commenter.FullName(), c.Text)
		}
	}
	reactions := g.ReactionsUnderPost(post.UUID)
	if len(reactions) > 0 {
		b.WriteString("\nReactions:\n")
		for _, r := range reactions {
			reactor, _ := g.UserByID(r.Author)
			fmt.Fprintf(&b, "- %s: %s\n", reactor.FullName(), r.Value)
		}
	}
	return b.String()
}

// buildActivitySummary — сводка недавней активности автора для генерации
// нового поста: его последние посты и посты, с которыми он взаимодействовал.
func buildActivitySummary(g *domain.Game, author domain.User) string {
	var b strings.Builder
	own := g.PostsByAuthor(author.UUID)
	if len(own) > 0 {
		b.WriteString("Recent posts by the user:\n")
		for i, p := range own {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", p.Text)
		}
	}
	interacted := g.PostsWhereUserInteracted(author.UUID)
	if len(interacted) > 0 {
		b.WriteString("Posts the user engaged with:\n")
		for i, p := range interacted {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", p.Text)
		}
	}
	if b.Len() == 0 {
		b.WriteString("The user has no activity yet.\n")
	}
	return b.String()
}
