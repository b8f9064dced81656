package domain

// reactionPriority фиксирует разрешение ничьих между равными позывами:
// крайние реакции побеждают умеренные. Порядок задан таблицей, а не порядком
// перечисления словаря, чтобы правило нельзя было сломать перестановкой
// констант.
var reactionPriority = []React{ReactLove, ReactShit, ReactLike, ReactDislike}

// DecideReaction — чистое правило вывода реакции из просмотра. Берётся
// максимум из четырёх позывов; если roll (равномерный в [0,1)) больше
// максимума, реакции нет. Иначе выбирается реакция с максимальным позывом,
// при равенстве — по таблице приоритетов.
func DecideReaction(view View, roll float64) (React, bool) {
	urges := map[React]float64{
		ReactLove:    view.ReactionLoveUrge,
		ReactLike:    view.ReactionLikeUrge,
		ReactDislike: view.ReactionDislikeUrge,
		ReactShit:    view.ReactionShittyUrge,
	}
	max := 0.0
	for _, u := range urges {
		if u > max {
			max = u
		}
	}
	if roll > max || max <= 0 {
		return "", false
	}
	for _, r := range reactionPriority {
		if urges[r] == max {
			return r, true
		}
	}
	return "", false
}
