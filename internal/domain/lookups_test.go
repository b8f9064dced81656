package domain

import (
	"testing"
	"time"
)

func sampleGame() *Game {
	g := NewGame("test", time.Unix(1700000000, 0))
	g.Users = []User{
		{UUID: "hero", Name: "Vera"},
		{UUID: "u2", Name: "Milan"},
	}
	g.Hero = "hero"
	g.Posts = []Post{
		{UUID: "p1", Author: "hero", Text: "first"},
		{UUID: "p2", Author: "u2", Text: "second"},
	}
	g.Comments = []Comment{
		{UUID: "c1", Parent: "p1", ParentType: ParentPost, Author: "u2", Text: "nice"},
		{UUID: "c2", Parent: "c1", ParentType: ParentComment, Author: "hero", Text: "thanks"},
	}
	g.Reactions = []Reaction{
		{UUID: "r1", Parent: "p1", ParentType: ParentPost, Author: "u2", Value: ReactLike},
	}
	g.Views = []View{
		{UUID: "v1", User: "u2", Post: "p1"},
	}
	return g
}

func TestPostByID(t *testing.T) {
	g := sampleGame()
	p, ok := g.PostByID("p2")
	if !ok || p.Author != "u2" {
		t.Fatalf("ожидали найти пост p2 автора u2")
	}
	if _, ok := g.PostByID("missing"); ok {
		t.Fatalf("не ожидали найти несуществующий пост")
	}
}

func TestCommentsUnderPostSkipsNested(t *testing.T) {
	g := sampleGame()
	comments := g.CommentsUnderPost("p1")
	if len(comments) != 1 || comments[0].UUID != "c1" {
		t.Fatalf("под постом ожидали только прямой комментарий c1")
	}
}

func TestSeenPosts(t *testing.T) {
	g := sampleGame()
	seen := g.SeenPosts("u2")
	if len(seen) != 1 || seen[0].UUID != "p1" {
		t.Fatalf("u2 видел только p1")
	}
	if got := g.SeenPosts("hero"); len(got) != 0 {
		t.Fatalf("герой ещё ничего не видел")
	}
}

func TestPostsWhereUserInteracted(t *testing.T) {
	g := sampleGame()
	posts := g.PostsWhereUserInteracted("u2")
	if len(posts) != 1 || posts[0].UUID != "p1" {
		t.Fatalf("u2 взаимодействовал только с p1")
	}
}

func TestAvgEngagement(t *testing.T) {
	if got := AvgEngagement(0, 5, 5); got != 200 {
		t.Fatalf("без просмотров вовлечённость максимальна, получили %v", got)
	}
	if got := AvgEngagement(10, 3, 2); got != 50 {
		t.Fatalf("ожидали 50, получили %v", got)
	}
}

func TestEngagementLimitCurve(t *testing.T) {
	if got := EngagementLimit(0); got != 0 {
		t.Fatalf("кривая стартует с нуля, получили %v", got)
	}
	if got := EngagementLimit(20); got != 100 {
		t.Fatalf("на двадцатом раунде порог равен 100, получили %v", got)
	}
	if EngagementLimit(1000) >= 200 {
		t.Fatalf("порог не должен достигать 200")
	}
}

func TestDescribeRelationship(t *testing.T) {
	a := User{UUID: "a", Name: "Vera"}
	b := User{UUID: "b", Name: "Milan"}

	none := DescribeRelationship(a, b, nil)
	if none == "" {
		t.Fatalf("ожидали описание отсутствия отношений")
	}

	rels := []Relation{
		Rel("a", "b", RelationFollow),
		Rel("b", "a", RelationFollow),
		Rel("a", "b", RelationComment),
	}
	got := DescribeRelationship(a, b, rels)
	if got != "Vera and Milan mutually follow each other.\nVera comments Milan.\n" {
		t.Fatalf("неожиданное описание: %q", got)
	}
}
