package domain

import (
	"fmt"
	"strings"
)

// Rel создаёт ребро графа отношений.
func Rel(source, target string, label RelationType) Relation {
	return Relation{Source: source, Target: target, Label: label}
}

// DescribeRelationship возвращает понятное LLM текстовое описание отношений
// между двумя пользователями: сначала взаимные, затем односторонние рёбра.
// Метки словаря имеют глагольную форму, поэтому описание склеивается как
// "<имя> <метка>s <имя>".
func DescribeRelationship(this, another User, relations []Relation) string {
	var fromThis, fromAnother []Relation
	for _, r := range relations {
		switch {
		case r.Source == this.UUID && r.Target == another.UUID:
			fromThis = append(fromThis, r)
		case r.Source == another.UUID && r.Target == this.UUID:
			fromAnother = append(fromAnother, r)
		}
	}

	if len(fromThis) == 0 && len(fromAnother) == 0 {
		labels := make([]string, 0, len(RelationTypes()))
		for _, t := range RelationTypes() {
			labels = append(labels, string(t))
		}
		return fmt.Sprintf("No common relation (%s) between %s and %s.\n",
			strings.Join(labels, ", "), this.Name, another.Name)
	}

	mutual := make(map[RelationType]bool)
	for _, r := range fromThis {
		for _, back := range fromAnother {
			if back.Label == r.Label {
				mutual[r.Label] = true
			}
		}
	}

	var b strings.Builder
	for _, t := range RelationTypes() {
		if mutual[t] {
			fmt.Fprintf(&b, "%s and %s mutually %s each other.\n", this.Name, another.Name, t)
		}
	}
	for _, r := range fromThis {
		if mutual[r.Label] {
			continue
		}
		fmt.Fprintf(&b, "%s %ss %s.\n", this.Name, r.Label, another.Name)
	}
	for _, r := range fromAnother {
		if mutual[r.Label] {
			continue
		}
		fmt.Fprintf(&b, "%s %ss %s.\n", another.Name, r.Label, this.Name)
	}
	return b.String()
}
