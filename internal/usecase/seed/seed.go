package seed

import (
	"math/rand"
	"time"

	"feed-game/internal/domain"
	"feed-game/internal/usecase/graph"
)

// Options задаёт параметры новой игры.
type Options struct {
	Version    string
	Users      int
	MaxFollows int
	Rand       *rand.Rand
	Now        time.Time
}

const defaultUsers = 12

type persona struct {
	name, surname, gender, occupation, city, country, bio, dialect string
	traits                                                         []string
}

// Пул персон фиксирован: сид управляет только выборкой, профилями и
// топологией подписок.
var personas = []persona{
	{"Anna", "Koval", "female", "barista", "Rotterdam", "Netherlands", "third place is my first home", "short sentences, lowercase", []string{"warm", "chatty"}},
	{"Boris", "Ten", "male", "bike courier", "Amsterdam", "Netherlands", "faster than your excuses", "sarcastic one-liners", []string{"restless", "blunt"}},
	{"Clara", "Visser", "female", "architect", "Utrecht", "Netherlands", "drawing cities that breathe", "long careful sentences", []string{"precise", "dreamy"}},
	{"Daan", "Bakker", "male", "night-shift nurse", "Leiden", "Netherlands", "sleep is a suggestion", "dry humor", []string{"tired", "kind"}},
	{"Esther", "Smit", "female", "music teacher", "Haarlem", "Netherlands", "everything is rhythm", "exclamation marks everywhere", []string{"enthusiastic"}},
	{"Farid", "Aziz", "male", "food truck owner", "The Hague", "Netherlands", "falafel diplomacy", "mixes food metaphors into everything", []string{"generous", "loud"}},
	{"Greet", "Mulder", "female", "retired postwoman", "Groningen", "Netherlands", "I knew your street before you did", "old-fashioned full sentences", []string{"nosy", "caring"}},
	{"Hugo", "Jansen", "male", "junior data analyst", "Eindhoven", "Netherlands", "correlation enjoyer", "hedges every statement", []string{"cautious", "curious"}},
	{"Iris", "de Wit", "female", "tattoo artist", "Rotterdam", "Netherlands", "skin is the last honest canvas", "poetic fragments", []string{"intense"}},
	{"Joris", "van Dijk", "male", "fisherman", "Volendam", "Netherlands", "the sea owes me nothing", "weather talk, always", []string{"stoic"}},
	{"Kim", "Peters", "female", "law student", "Nijmegen", "Netherlands", "will argue for food", "rhetorical questions", []string{"sharp", "stubborn"}},
	{"Lars", "Hendriks", "male", "game streamer", "Almere", "Netherlands", "professionally unemployed", "internet slang", []string{"ironic", "nocturnal"}},
	{"Mara", "Bos", "female", "florist", "Delft", "Netherlands", "plants gossip too", "gentle and slow", []string{"soft-spoken"}},
	{"Niels", "Vos", "male", "taxi driver", "Amsterdam", "Netherlands", "heard it all twice", "tells everything as a story", []string{"talkative"}},
	{"Olga", "Brand", "female", "physiotherapist", "Zwolle", "Netherlands", "posture is destiny", "imperative mood", []string{"strict", "helpful"}},
	{"Pim", "Kuipers", "male", "brewery apprentice", "Tilburg", "Netherlands", "yeast whisperer", "toasts in every post", []string{"cheerful"}},
}

// NewGame собирает стартовую игру: пользователи из пула персон, случайные
// психологические профили и синтетическая топология подписок. Задач в
// истории нет: первую создаёт планировщик на первом раунде.
func NewGame(opts Options) *domain.Game {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	count := opts.Users
	if count <= 0 || count > len(personas) {
		count = defaultUsers
	}

	g := domain.NewGame(opts.Version, now)

	order := rnd.Perm(len(personas))[:count]
	for _, idx := range order {
		p := personas[idx]
		g.Users = append(g.Users, domain.User{
			UUID:       domain.NewID(),
			Name:       p.name,
			Surname:    p.surname,
			Gender:     p.gender,
			Age:        18 + rnd.Intn(53),
			Occupation: p.occupation,
			Location:   domain.Location{City: p.city, Country: p.country},
			Residence:  domain.Location{City: p.city, Country: p.country},
			Hometown:   domain.Location{City: p.city, Country: p.country},
			Bio:        p.bio,
			Traits:     p.traits,
			Dialect:    p.dialect,
			Role:       "citizen",
			BigFive: domain.BigFive{
				Openness:          rnd.Float64(),
				Conscientiousness: rnd.Float64(),
				Extraversion:      rnd.Float64(),
				Agreeableness:     rnd.Float64(),
				Neuroticism:       rnd.Float64(),
			},
			Plutchik: domain.PlutchikEmotions{
				JoySadness:           symmetric(rnd),
				AngerFear:            symmetric(rnd),
				TrustDisgust:         symmetric(rnd),
				SurpriseAnticipation: symmetric(rnd),
			},
			Russell: domain.RussellCircumplex{
				Valence: symmetric(rnd),
				Arousal: symmetric(rnd),
			},
		})
	}

	g.Hero = g.Users[rnd.Intn(len(g.Users))].UUID
	g.Relations = graph.SynthesizeFollowTopology(g.Users, opts.MaxFollows, rnd)
	return g
}

func symmetric(rnd *rand.Rand) float64 {
	return rnd.Float64()*2 - 1
}
