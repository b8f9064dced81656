package domain

// UserByID возвращает пользователя по uuid.
func (g *Game) UserByID(id string) (User, bool) {
	for _, u := range g.Users {
		if u.UUID == id {
			return u, true
		}
	}
	return User{}, false
}

// PostByID возвращает пост по uuid.
func (g *Game) PostByID(id string) (Post, bool) {
	for _, p := range g.Posts {
		if p.UUID == id {
			return p, true
		}
	}
	return Post{}, false
}

// TaskByID возвращает задачу по uuid.
func (g *Game) TaskByID(id string) (Task, bool) {
	for _, t := range g.Tasks {
		if t.UUID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Hero возвращает управляемого пользователя.
func (g *Game) HeroUser() (User, bool) {
	return g.UserByID(g.Hero)
}

// PostsByAuthor возвращает посты автора.
func (g *Game) PostsByAuthor(author string) []Post {
	var out []Post
	for _, p := range g.Posts {
		if p.Author == author {
			out = append(out, p)
		}
	}
	return out
}

// CommentsUnderPost возвращает комментарии непосредственно под постом.
func (g *Game) CommentsUnderPost(postID string) []Comment {
	var out []Comment
	for _, c := range g.Comments {
		if c.Parent == postID && c.ParentType == ParentPost {
			out = append(out, c)
		}
	}
	return out
}

// ReactionsUnderPost возвращает реакции непосредственно под постом.
func (g *Game) ReactionsUnderPost(postID string) []Reaction {
	var out []Reaction
	for _, r := range g.Reactions {
		if r.Parent == postID && r.ParentType == ParentPost {
			out = append(out, r)
		}
	}
	return out
}

// SeenPosts возвращает посты, которые пользователь уже видел. Имитирует
// память пользователя.
func (g *Game) SeenPosts(userID string) []Post {
	seen := make(map[string]struct{})
	for _, v := range g.Views {
		if v.User == userID {
			seen[v.Post] = struct{}{}
		}
	}
	var out []Post
	for _, p := range g.Posts {
		if _, ok := seen[p.UUID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PostsWhereUserInteracted возвращает посты, под которыми пользователь
// оставил комментарий или реакцию.
func (g *Game) PostsWhereUserInteracted(userID string) []Post {
	parents := make(map[string]struct{})
	for _, c := range g.Comments {
		if c.Author == userID {
			parents[c.Parent] = struct{}{}
		}
	}
	for _, r := range g.Reactions {
		if r.Author == userID {
			parents[r.Parent] = struct{}{}
		}
	}
	var out []Post
	for _, p := range g.Posts {
		if _, ok := parents[p.UUID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Rounds возвращает количество сыгранных раундов.
func (g *Game) Rounds() int {
	return len(g.Tasks)
}

// EngagementLimit возвращает требуемый порог вовлечённости для данного числа
// раундов. Кривая стартует с нуля, предельно растёт к 200 и пересекает 100
// на двадцатом раунде. Если средняя вовлечённость ниже порога — игра
// окончена.
func EngagementLimit(rounds int) float64 {
	return 200 - 4000/float64(rounds+20)
}

// AvgEngagement возвращает среднюю вовлечённость, которую вызвал Алгоритм.
// Пока просмотров нет, возвращается максимум 200: игра только началась.
func AvgEngagement(views, comments, reactions int) float64 {
	if views == 0 {
		return 200
	}
	return 100 * float64(reactions+comments) / float64(views)
}

// Over сообщает, проиграна ли игра: средняя вовлечённость упала ниже порога.
func (g *Game) Over() bool {
	avg := AvgEngagement(len(g.Views), len(g.Comments), len(g.Reactions))
	return avg < EngagementLimit(g.Rounds())
}
