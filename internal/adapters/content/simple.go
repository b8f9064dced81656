package content

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"feed-game/internal/domain"
)

// Simple — детерминированный офлайн-генератор. Нужен для разработки и демо
// без ключа OpenAI: тексты шаблонные, скоры выводятся из профиля автора и
// зашумляются переданным генератором случайности.
type Simple struct {
	rnd *rand.Rand
}

var _ domain.ContentClient = (*Simple)(nil)

// NewSimple создаёт офлайн-генератор. rnd nil означает генератор, засеянный
// от текущего времени.
func NewSimple(rnd *rand.Rand) *Simple {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simple{rnd: rnd}
}

var postTemplates = []string{
	"Thinking about %s a lot lately.",
	"Can we talk about %s for a second?",
	"Honestly, %s changed my week.",
	"Unpopular opinion: %s is overrated.",
	"Today I finally understood %s.",
}

var postTopics = []string{
	"the weather", "my job", "this city", "old friends", "breakfast",
	"the news", "weekend plans", "a book I read", "the gym", "my neighbors",
}

// GeneratePost сочиняет шаблонный пост.
func (s *Simple) GeneratePost(_ context.Context, user domain.User, _ string, ftime int64) (domain.Post, error) {
	tpl := postTemplates[s.rnd.Intn(len(postTemplates))]
	topic := postTopics[s.rnd.Intn(len(postTopics))]
	return domain.Post{
		UUID:      domain.NewID(),
		Author:    user.UUID,
		Text:      fmt.Sprintf(tpl, topic),
		Reasoning: fmt.Sprintf("%s felt like sharing about %s", user.FullName(), topic),
		FCreated:  ftime,
		RCreated:  time.Now().UnixMilli(),
	}, nil
}

// ViewPost выводит скоры из профиля читателя: экстраверсия толкает к
// комментариям, доброжелательность к лайкам, невротизм к негативу.
func (s *Simple) ViewPost(_ context.Context, post domain.Post, user domain.User, _ string, ftime int64) (domain.View, error) {
	noise := func() float64 { return s.rnd.Float64() * 0.3 }
	positive := clamp01(user.BigFive.Agreeableness*0.6 + user.Russell.Valence*0.2 + noise())
	negative := clamp01(user.BigFive.Neuroticism*0.5 - user.Russell.Valence*0.2 + noise())
	return domain.View{
		UUID:                domain.NewID(),
		User:                user.UUID,
		Post:                post.UUID,
		Reasoning:           fmt.Sprintf("%s skimmed the post", user.FullName()),
		Rating:              clamp01(positive - negative/2),
		JoyScore:            positive,
		SadScore:            negative,
		StupidScore:         clamp01(noise()),
		BoringScore:         clamp01(noise()),
		CommentUrge:         clamp01(user.BigFive.Extraversion*0.7 + noise()),
		ShareUrge:           clamp01(user.BigFive.Extraversion*0.4 + noise()),
		ReactionLikeUrge:    clamp01(positive * 0.9),
		ReactionDislikeUrge: clamp01(negative * 0.6),
		ReactionLoveUrge:    clamp01(positive*0.5 + user.Russell.Arousal*0.2),
		ReactionShittyUrge:  clamp01(negative * 0.4),
		Time:                ftime,
	}, nil
}

var commentTemplates = []string{
	"So true.",
	"Not sure I agree with this one.",
	"Ha, this is exactly what I needed today.",
	"Who hurt you?",
	"Tell me more.",
}

// DecideComment делает бросок против commentUrge и выдаёт шаблонную реплику.
func (s *Simple) DecideComment(_ context.Context, view domain.View, user domain.User, post domain.Post, ftime int64) (*domain.Comment, error) {
	if s.rnd.Float64() > view.CommentUrge {
		return nil, nil
	}
	return &domain.Comment{
		UUID:       domain.NewID(),
		Parent:     post.UUID,
		ParentType: domain.ParentPost,
		Author:     user.UUID,
		Text:       commentTemplates[s.rnd.Intn(len(commentTemplates))],
		FCreated:   ftime,
		RCreated:   time.Now().UnixMilli(),
	}, nil
}

// RecalculateProfile слегка дрейфует эмоции к нейтральным, оставляя черты
// личности на месте.
func (s *Simple) RecalculateProfile(_ context.Context, user domain.User, _ *domain.Game) (domain.PsychoProfile, error) {
	decay := func(v float64) float64 { return v * 0.9 }
	return domain.PsychoProfile{
		BigFive: user.BigFive,
		Plutchik: domain.PlutchikEmotions{
			JoySadness:           decay(user.Plutchik.JoySadness),
			AngerFear:            decay(user.Plutchik.AngerFear),
			TrustDisgust:         decay(user.Plutchik.TrustDisgust),
			SurpriseAnticipation: decay(user.Plutchik.SurpriseAnticipation),
		},
		Russell: domain.RussellCircumplex{
			Valence: decay(user.Russell.Valence),
			Arousal: decay(user.Russell.Arousal),
		},
	}, nil
}
