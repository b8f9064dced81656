package domain

import (
	"time"

	"github.com/google/uuid"
)

// React перечисляет закрытый словарь реакций.
type React string

const (
	ReactLove    React = "♥️"
	ReactLike    React = "👍"
	ReactDislike React = "👎"
	ReactShit    React = "💩"
)

// ReactValues возвращает все значения реакций в фиксированном порядке.
func ReactValues() []React {
	return []React{ReactLove, ReactLike, ReactDislike, ReactShit}
}

// TaskType описывает тип раунда.
//   - TaskDistributePost: игрок выбирает, кто увидит пост героя.
//   - TaskShowPost: игрок выбирает, какой из чужих постов показать герою.
//   - TaskShowAd: игрок выбирает, какую рекламу показать герою.
type TaskType string

const (
	TaskDistributePost TaskType = "distributePost"
	TaskShowPost       TaskType = "showPost"
	TaskShowAd         TaskType = "showAd"
)

// RelationType перечисляет допустимые метки рёбер графа отношений.
type RelationType string

const (
	RelationFollow  RelationType = "follow"
	RelationWrite   RelationType = "write"
	RelationGet     RelationType = "get"
	RelationComment RelationType = "comment"
	RelationReact   RelationType = "react"
)

// RelationTypes возвращает словарь меток в фиксированном порядке.
func RelationTypes() []RelationType {
	return []RelationType{RelationFollow, RelationWrite, RelationGet, RelationComment, RelationReact}
}

// ParentType указывает, к чему привязана реакция или комментарий.
type ParentType string

const (
	ParentPost    ParentType = "post"
	ParentComment ParentType = "comment"
)

// BigFive (модель OCEAN) квантует психологический профиль по пяти осям.
type BigFive struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// PlutchikEmotions квантует эмоции по четырём осям, каждая в диапазоне -1..1.
type PlutchikEmotions struct {
	JoySadness           float64 `json:"joy_sadness"`
	AngerFear            float64 `json:"anger_fear"`
	TrustDisgust         float64 `json:"trust_disgust"`
	SurpriseAnticipation float64 `json:"surprise_anticipation"`
}

// RussellCircumplex квантует эмоции по двум осям, каждая в диапазоне -1..1.
type RussellCircumplex struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// Location описывает место жительства или происхождения пользователя.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Memory хранит то, что пользователь помнит о происходящем в игре.
type Memory struct {
	ShortTerm      string  `json:"shortTerm"`
	ShortRelevancy float64 `json:"shortRelevancy"`
	LongTerm       string  `json:"longTerm"`
}

// User описывает синтетического жителя сети. UUID неизменен на всю игру;
// меняются только психологические профили и память.
type User struct {
	UUID           string            `json:"uuid"`
	Name           string            `json:"name"`
	Surname        string            `json:"surname"`
	Gender         string            `json:"gender"`
	Age            int               `json:"age"`
	Occupation     string            `json:"occupation"`
	Location       Location          `json:"location"`
	Residence      Location          `json:"residence"`
	Hometown       Location          `json:"hometown"`
	Bio            string            `json:"bio"`
	Traits         []string          `json:"traits"`
	ProfilePicture string            `json:"profile_picture"`
	Role           string            `json:"role"`
	Memory         Memory            `json:"memory"`
	Dialect        string            `json:"dialect"`
	BigFive        BigFive           `json:"big_five"`
	Plutchik       PlutchikEmotions  `json:"plutchik"`
	Russell        RussellCircumplex `json:"russell"`
}

// FullName возвращает имя и фамилию одной строкой.
func (u User) FullName() string {
	return u.Name + " " + u.Surname
}

// PsychoProfile объединяет три психологические модели пользователя.
type PsychoProfile struct {
	BigFive  BigFive           `json:"big_five"`
	Plutchik PlutchikEmotions  `json:"plutchik"`
	Russell  RussellCircumplex `json:"russell"`
}

// Post создаётся генератором контента и после создания не меняется.
// FCreated — фиктивное время, RCreated — реальное (миллисекунды UTC).
type Post struct {
	UUID      string `json:"uuid"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Reasoning string `json:"reasoning"`
	FCreated  int64  `json:"f_created"`
	RCreated  int64  `json:"r_created"`
}

// View фиксирует, что пользователь увидел пост и что он при этом подумал.
// Скоры-позывы управляют вероятностной генерацией реакций и комментариев.
type View struct {
	UUID                string  `json:"uuid"`
	User                string  `json:"user"`
	Post                string  `json:"post"`
	Reasoning           string  `json:"_reasoning"`
	Rating              float64 `json:"_rating"`
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
	Time                int64   `json:"time"`
}

// Reaction неизменна после создания.
type Reaction struct {
	UUID       string     `json:"uuid"`
	Parent     string     `json:"parent"`
	ParentType ParentType `json:"parent_type"`
	Author     string     `json:"author"`
	Value      React      `json:"value"`
}

// Comment неизменен после создания.
type Comment struct {
	UUID       string     `json:"uuid"`
	Parent     string     `json:"parent"`
	ParentType ParentType `json:"parent_type"`
	Author     string     `json:"author"`
	Text       string     `json:"text"`
	FCreated   int64      `json:"f_created"`
	RCreated   int64      `json:"r_created"`
}

// Relation — направленное ребро графа отношений. Список рёбер ведётся как
// журнал: рёбра только добавляются и никогда не удаляются, история нужна
// визуализации.
type Relation struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Label  RelationType `json:"label"`
}

// Task — точка решения игрока в одном раунде. История задач упорядочена от
// новых к старым и одновременно служит счётчиком раундов.
//
// Для DistributePost важен ShowTo — кому игрок доставил пост героя (маршрут
// через граф). Для ShowPost важен ShowPost — какой из чужих постов игрок
// показал герою; отказ выражается пустым ShowTo.
type Task struct {
	UUID      string   `json:"uuid"`
	Users     []string `json:"users"`
	Posts     []string `json:"posts"`
	Completed bool     `json:"completed"`
	Type      TaskType `json:"type"`
	Time      int64    `json:"time"`
	ShowTo    []string `json:"showTo"`
	ShowPost  string   `json:"showPost"`
}

// Game — корень агрегата. Канонический экземпляр ровно один на игровую
// сессию, им владеет игровой процесс; контроллеры держат только копии,
// которые вливаются обратно через merge.
type Game struct {
	Version   string     `json:"version"`
	UUID      string     `json:"uuid"`
	Created   int64      `json:"created"`
	Updated   int64      `json:"updated"`
	FTime     int64      `json:"ftime"`
	Hero      string     `json:"hero"`
	Users     []User     `json:"users"`
	Posts     []Post     `json:"posts"`
	Views     []View     `json:"views"`
	Reactions []Reaction `json:"reactions"`
	Comments  []Comment  `json:"comments"`
	Relations []Relation `json:"relations"`
	Tasks     []Task     `json:"tasks"`
}

// NewGame создаёт пустую игру с фиктивным временем, засеянным от created.
func NewGame(version string, now time.Time) *Game {
	created := now.UnixMilli()
	return &Game{
		Version: version,
		UUID:    uuid.NewString(),
		Created: created,
		Updated: created,
		FTime:   created,
	}
}

// NewID возвращает новый uuid для сущностей игры.
func NewID() string {
	return uuid.NewString()
}
