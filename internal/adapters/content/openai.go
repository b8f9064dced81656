package content

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"feed-game/internal/domain"
	openai "feed-game/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует domain.ContentClient через Chat Completions. Каждый метод
// отыгрывает одного синтетического пользователя: модель получает его персону
// и отвечает строго объектом JSON.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
	rnd     *rand.Rand
}

var _ domain.ContentClient = (*OpenAI)(nil)

// NewOpenAI создаёт генератор контента. rnd nil означает генератор,
// засеянный от текущего времени.
func NewOpenAI(client chatClient, model string, timeout time.Duration, rnd *rand.Rand) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &OpenAI{client: client, model: model, timeout: timeout, rnd: rnd}
}

const personaSystemPrompt = "You are role-playing a single member of a small social network. " +
	"Stay strictly in character: age, occupation, dialect and current emotional state all shape what you write. " +
	"Always answer with a single JSON object and nothing else."

type postPayload struct {
	Text      string `json:"text"`
	Reasoning string `json:"reasoning"`
}

// GeneratePost сочиняет пост от имени пользователя.
func (o *OpenAI) GeneratePost(ctx context.Context, user domain.User, recentActivity string, ftime int64) (domain.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`%s

It is %s in the simulated world.

Recent activity of this person:
%s

Write a new social network post as this person would. Keep it short, informal and in their voice.
Return JSON of the form {"text": "...", "reasoning": "why this person would post this"}.`,
		describePersona(user), formatFictionalTime(ftime), recentActivity)

	var parsed postPayload
	if err := o.complete(ctx, prompt, 400, &parsed); err != nil {
		return domain.Post{}, fmt.Errorf("генерация поста: %w", err)
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return domain.Post{}, fmt.Errorf("генерация поста: пустой текст")
	}
	return domain.Post{
		UUID:      domain.NewID(),
		Author:    user.UUID,
		Text:      strings.TrimSpace(parsed.Text),
		Reasoning: strings.TrimSpace(parsed.Reasoning),
		FCreated:  ftime,
		RCreated:  time.Now().UnixMilli(),
	}, nil
}

type viewPayload struct {
	Reasoning           string  `json:"reasoning"`
	Rating              float64 `json:"rating"`
	JoyScore            float64 `json:"joyScore"`
	SadScore            float64 `json:"sadScore"`
	StupidScore         float64 `json:"stupidScore"`
	BoringScore         float64 `json:"boringScore"`
	CommentUrge         float64 `json:"commentUrge"`
	ShareUrge           float64 `json:"shareUrge"`
	ReactionLikeUrge    float64 `json:"reactionLikeUrge"`
	ReactionDislikeUrge float64 `json:"reactionDislikeUrge"`
	ReactionLoveUrge    float64 `json:"reactionLoveUrge"`
	ReactionShittyUrge  float64 `json:"reactionShittyUrge"`
}

// ViewPost имитирует прочтение поста и возвращает просмотр со скорами позывов.
func (o *OpenAI) ViewPost(ctx context.Context, post domain.Post, user domain.User, postContext string, ftime int64) (domain.View, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`%s

It is %s in the simulated world. This person just saw the following in their feed:

%s

Rate honestly how this person perceives the post. All scores are between 0 and 1.
Return JSON of the form {"reasoning": "...", "rating": 0.0, "joyScore": 0.0, "sadScore": 0.0, "stupidScore": 0.0, "boringScore": 0.0, "commentUrge": 0.0, "shareUrge": 0.0, "reactionLikeUrge": 0.0, "reactionDislikeUrge": 0.0, "reactionLoveUrge": 0.0, "reactionShittyUrge": 0.0}.`,
		describePersona(user), formatFictionalTime(ftime), postContext)

	var parsed viewPayload
	if err := o.complete(ctx, prompt, 500, &parsed); err != nil {
		return domain.View{}, fmt.Errorf("генерация просмотра: %w", err)
	}
	return domain.View{
		UUID:                domain.NewID(),
		User:                user.UUID,
		Post:                post.UUID,
		Reasoning:           parsed.Reasoning,
		Rating:              clamp01(parsed.Rating),
		JoyScore:            clamp01(parsed.JoyScore),
		SadScore:            clamp01(parsed.SadScore),
		StupidScore:         clamp01(parsed.StupidScore),
		BoringScore:         clamp01(parsed.BoringScore),
		CommentUrge:         clamp01(parsed.CommentUrge),
		ShareUrge:           clamp01(parsed.ShareUrge),
		ReactionLikeUrge:    clamp01(parsed.ReactionLikeUrge),
		ReactionDislikeUrge: clamp01(parsed.ReactionDislikeUrge),
		ReactionLoveUrge:    clamp01(parsed.ReactionLoveUrge),
		ReactionShittyUrge:  clamp01(parsed.ReactionShittyUrge),
		Time:                ftime,
	}, nil
}

type commentPayload struct {
	Text string `json:"text"`
}

// DecideComment вероятностно сочиняет комментарий: бросок против commentUrge
// происходит здесь, до обращения к модели. nil без ошибки значит "молчит".
func (o *OpenAI) DecideComment(ctx context.Context, view domain.View, user domain.User, post domain.Post, ftime int64) (*domain.Comment, error) {
	if o.rnd.Float64() > view.CommentUrge {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`%s

It is %s in the simulated world. This person just read the post below and felt an urge to reply.
Their inner reaction was: %s

Post:
%s

Write the comment this person would leave. Short, informal, in their voice.
Return JSON of the form {"text": "..."}.`,
		describePersona(user), formatFictionalTime(ftime), view.Reasoning, post.Text)

	var parsed commentPayload
	if err := o.complete(ctx, prompt, 200, &parsed); err != nil {
		return nil, fmt.Errorf("генерация комментария: %w", err)
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, nil
	}
	return &domain.Comment{
		UUID:       domain.NewID(),
		Parent:     post.UUID,
		ParentType: domain.ParentPost,
		Author:     user.UUID,
		Text:       text,
		FCreated:   ftime,
		RCreated:   time.Now().UnixMilli(),
	}, nil
}

type profilePayload struct {
	BigFive  domain.BigFive           `json:"big_five"`
	Plutchik domain.PlutchikEmotions  `json:"plutchik"`
	Russell  domain.RussellCircumplex `json:"russell"`
}

// RecalculateProfile пересчитывает психологический профиль пользователя по
// его следу в игре.
func (o *OpenAI) RecalculateProfile(ctx context.Context, user domain.User, game *domain.Game) (domain.PsychoProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`%s

Below is what happened to this person in the social network recently:
%s

Update their psychological state. Big Five values are between 0 and 1; emotional axes are between -1 and 1.
Return JSON of the form {"big_five": {"openness": 0.0, "conscientiousness": 0.0, "extraversion": 0.0, "agreeableness": 0.0, "neuroticism": 0.0}, "plutchik": {"joy_sadness": 0.0, "anger_fear": 0.0, "trust_disgust": 0.0, "surprise_anticipation": 0.0}, "russell": {"valence": 0.0, "arousal": 0.0}}.`,
		describePersona(user), describeTrace(game, user))

	var parsed profilePayload
	if err := o.complete(ctx, prompt, 400, &parsed); err != nil {
		return domain.PsychoProfile{}, fmt.Errorf("пересчёт профиля: %w", err)
	}
	return domain.PsychoProfile{
		BigFive:  parsed.BigFive,
		Plutchik: parsed.Plutchik,
		Russell:  parsed.Russell,
	}, nil
}

func (o *OpenAI) complete(ctx context.Context, prompt string, maxTokens int, out any) error {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.9,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: personaSystemPrompt},
			{Role: openai.RoleUser, Content: prompt},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("openai completion: пустой ответ")
	}
	contentText := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(contentText), out); err != nil {
		return fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	return nil
}

// describePersona собирает карточку пользователя для промпта.
func describePersona(u domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %d years old, %s, working as %s.\n", u.FullName(), u.Age, u.Gender, u.Occupation)
	if u.Residence.City != "" {
		fmt.Fprintf(&b, "You live in %s, %s.\n", u.Residence.City, u.Residence.Country)
	}
	if u.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", u.Bio)
	}
	if len(u.Traits) > 0 {
		fmt.Fprintf(&b, "Traits: %s.\n", strings.Join(u.Traits, ", "))
	}
	if u.Dialect != "" {
		fmt.Fprintf(&b, "You write in this manner: %s.\n", u.Dialect)
	}
	fmt.Fprintf(&b, "Personality (0..1): openness %.2f, conscientiousness %.2f, extraversion %.2f, agreeableness %.2f, neuroticism %.2f.\n",
		u.BigFive.Openness, u.BigFive.Conscientiousness, u.BigFive.Extraversion, u.BigFive.Agreeableness, u.BigFive.Neuroticism)
	fmt.Fprintf(&b, "Current mood (-1..1): joy/sadness %.2f, anger/fear %.2f, trust/disgust %.2f, surprise/anticipation %.2f; valence %.2f, arousal %.2f.\n",
		u.Plutchik.JoySadness, u.Plutchik.AngerFear, u.Plutchik.TrustDisgust, u.Plutchik.SurpriseAnticipation,
		u.Russell.Valence, u.Russell.Arousal)
	if u.Memory.ShortTerm != "" {
		fmt.Fprintf(&b, "You currently remember: %s\n", u.Memory.ShortTerm)
	}
	return b.String()
}

// describeTrace — след пользователя в игре для пересчёта психики: его посты,
// полученные комментарии и реакции, отношения с окружением.
func describeTrace(g *domain.Game, u domain.User) string {
	var b strings.Builder
	for i, p := range g.PostsByAuthor(u.UUID) {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "They posted: %s\n", p.Text)
		for _, c := range g.CommentsUnderPost(p.UUID) {
			commenter, _ := g.UserByID(c.Author)
			fmt.Fprintf(&b, "  %s commented: %s\n", commenter.FullName(), c.Text)
		}
		for _, r := range g.ReactionsUnderPost(p.UUID) {
			reactor, _ := g.UserByID(r.Author)
			fmt.Fprintf(&b, "  %s reacted with %s\n", reactor.FullName(), r.Value)
		}
	}
	related := map[string]bool{}
	for _, r := range g.Relations {
		if r.Source == u.UUID {
			related[r.Target] = true
		}
		if r.Target == u.UUID {
			related[r.Source] = true
		}
	}
	for _, other := range g.Users {
		if other.UUID == u.UUID || !related[other.UUID] {
			continue
		}
		b.WriteString(domain.DescribeRelationship(u, other, g.Relations))
	}
	if b.Len() == 0 {
		b.WriteString("Nothing notable happened yet.\n")
	}
	return b.String()
}

func formatFictionalTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("Monday, 2 January 2006, 15:04")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
