package graph

import (
	"math/rand"

	"feed-game/internal/domain"
)

// NodeType типизирует вершины презентационного графа.
type NodeType string

const (
	NodeUser    NodeType = "user"
	NodePost    NodeType = "post"
	NodeComment NodeType = "comment"
)

// Node — вершина графа. Label заполняется только для пользователей.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label,omitempty"`
}

// Edge — направленное ребро с меткой из словаря отношений.
type Edge struct {
	Source string              `json:"source"`
	Target string              `json:"target"`
	Label  domain.RelationType `json:"label"`
}

// Graph хранит вершины и смежность в порядке вставки. Порядок обхода
// фиксирован, поэтому поиск пути детерминирован для одного и того же графа.
type Graph struct {
	nodes []Node
	index map[string]int
	out   map[string][]string
	in    map[string][]string
	edges []Edge
}

// New создаёт пустой граф.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
}

// AddNode добавляет вершину; повторное добавление игнорируется.
func (g *Graph) AddNode(n Node) {
	if _, ok := g.index[n.ID]; ok {
		return
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// AddEdge добавляет ребро. Ребро с неизвестной вершиной молча
// пропускается: граф строится из журнала отношений, в котором могут
// встречаться ссылки на ещё не добавленные сущности.
func (g *Graph) AddEdge(source, target string, label domain.RelationType) {
	if _, ok := g.index[source]; !ok {
		return
	}
	if _, ok := g.index[target]; !ok {
		return
	}
	g.out[source] = append(g.out[source], target)
	g.in[target] = append(g.in[target], source)
	g.edges = append(g.edges, Edge{Source: source, Target: target, Label: label})
}

// HasNode сообщает, есть ли вершина в графе.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node возвращает вершину по id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes возвращает вершины в порядке вставки.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Edges возвращает рёбра в порядке вставки.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// ShortestPath ищет кратчайший невзвешенный путь обходом в ширину по
// исходящим рёбрам. Для from == to возвращается [from]. Если вершины нет в
// графе или пути не существует, возвращается nil — вызывающий деградирует
// до прямой доставки.
func (g *Graph) ShortestPath(from, to string) []string {
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil
	}
	if from == to {
		return []string{from}
	}
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.out[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				return unwindPath(prev, from, to)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func unwindPath(prev map[string]string, from, to string) []string {
	var reversed []string
	for at := to; at != ""; at = prev[at] {
		reversed = append(reversed, at)
		if at == from {
			break
		}
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// FollowingOf возвращает пользователей, на которых указывают исходящие
// рёбра вершины userID.
func (g *Graph) FollowingOf(userID string) []string {
	return g.userNeighbors(g.out[userID])
}

// FollowedByOf возвращает пользователей, от которых входят рёбра в вершину
// userID.
func (g *Graph) FollowedByOf(userID string) []string {
	return g.userNeighbors(g.in[userID])
}

func (g *Graph) userNeighbors(ids []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if n, ok := g.Node(id); ok && n.Type == NodeUser {
			out = append(out, id)
		}
	}
	return out
}

// Prune возвращает копию графа без вершин, не имеющих ни одного ребра.
// Канонический журнал отношений при этом не затрагивается: чистится только
// презентационное представление.
func (g *Graph) Prune() *Graph {
	pruned := New()
	for _, n := range g.nodes {
		if len(g.out[n.ID]) == 0 && len(g.in[n.ID]) == 0 {
			continue
		}
		pruned.AddNode(n)
	}
	for _, e := range g.edges {
		pruned.AddEdge(e.Source, e.Target, e.Label)
	}
	return pruned
}

// BuildOptions управляет построением презентационного графа.
type BuildOptions struct {
	// OnlyUsers оставляет только пользователей и follow-рёбра (социальный
	// граф без контентных вершин).
	OnlyUsers bool
	// MaxEdgesPerNode ограничивает число синтезируемых исходящих рёбер на
	// пользователя при холодном старте.
	MaxEdgesPerNode int
	// Rand — источник случайности для синтеза стартовой топологии. В тестах
	// сюда передаётся засеянный генератор.
	Rand *rand.Rand
}

// Build строит презентационный граф игры: все пользователи плюс, по
// желанию, контентные вершины; рёбра — журнал отношений. Если отношений ещё
// нет, синтезируется случайная follow-топология (холодный старт, с
// органическими рёбрами она никогда не сводится). Изолированные вершины
// отрезаются.
func Build(game *domain.Game, opts BuildOptions) *Graph {
	g := New()
	if len(game.Users) == 0 {
		return g
	}
	for _, u := range game.Users {
		g.AddNode(Node{ID: u.UUID, Type: NodeUser, Label: u.FullName()})
	}
	if !opts.OnlyUsers {
		for _, p := range game.Posts {
			g.AddNode(Node{ID: p.UUID, Type: NodePost})
		}
		for _, c := range game.Comments {
			g.AddNode(Node{ID: c.UUID, Type: NodeComment})
		}
	}
	if len(game.Relations) > 0 {
		for _, r := range game.Relations {
			if opts.OnlyUsers && r.Label != domain.RelationFollow {
				continue
			}
			g.AddEdge(r.Source, r.Target, r.Label)
		}
	} else {
		for _, r := range SynthesizeFollowTopology(game.Users, opts.MaxEdgesPerNode, opts.Rand) {
			g.AddEdge(r.Source, r.Target, r.Label)
		}
	}
	return g.Prune()
}

const defaultMaxEdgesPerNode = 5

// SynthesizeFollowTopology выдаёт каждому пользователю от 1 до maxPerNode
// случайных исходящих follow-рёбер без петель и без параллельных
// дубликатов. Используется только как запасная топология для визуализации
// до появления органических рёбер.
func SynthesizeFollowTopology(users []domain.User, maxPerNode int, rnd *rand.Rand) []domain.Relation {
	if len(users) < 2 {
		return nil
	}
	if maxPerNode <= 0 {
		maxPerNode = defaultMaxEdgesPerNode
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	exists := make(map[[2]string]struct{})
	var out []domain.Relation
	for _, u := range users {
		wanted := 1 + rnd.Intn(maxPerNode)
		// Кандидатов может не хватить: не больше len(users)-1 рёбер на вершину.
		if wanted > len(users)-1 {
			wanted = len(users) - 1
		}
		for i := 0; i < wanted; i++ {
			target, ok := pickTarget(users, u.UUID, exists, rnd)
			if !ok {
				break
			}
			exists[[2]string{u.UUID, target}] = struct{}{}
			out = append(out, domain.Rel(u.UUID, target, domain.RelationFollow))
		}
	}
	return out
}

func pickTarget(users []domain.User, source string, exists map[[2]string]struct{}, rnd *rand.Rand) (string, bool) {
	for attempt := 0; attempt < 16*len(users); attempt++ {
		candidate := users[rnd.Intn(len(users))].UUID
		if candidate == source {
			continue
		}
		if _, dup := exists[[2]string{source, candidate}]; dup {
			continue
		}
		return candidate, true
	}
	return "", false
}
