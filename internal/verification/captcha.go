package verification

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/chatwarden/chatwarden/resources"
)

const captchaChoices = 4

type Challenge struct {
	Question string
	Answer   string
	Choices  []string
}

type textQuestion struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type difficulty struct {
	mixed  bool
	maxNum int
}

var difficulties = map[string]difficulty{
	"easy":   {maxNum: 10},
	"medium": {maxNum: 50},
	"hard":   {mixed: true, maxNum: 100},
}

// Generator produces captcha challenges: arithmetic questions with
// multiple-choice answers, or free-text questions from the embedded set.
type Generator struct {
	difficulty difficulty
	questions  []textQuestion
}

func NewGenerator(level string) *Generator {
	entry := log.WithField("object", "CaptchaGenerator")

	d, ok := difficulties[level]
	if !ok {
		d = difficulties["medium"]
	}

	g := &Generator{difficulty: d}
	data, err := resources.FS.ReadFile("verification/questions.yml")
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant load text questions")
		return g
	}
	if err := yaml.Unmarshal(data, &g.questions); err != nil {
		entry.WithField("error", err.Error()).Error("cant unmarshal text questions")
	}
	return g
}

func (g *Generator) Generate() Challenge {
	if g.difficulty.mixed && len(g.questions) > 0 && rand.Intn(2) == 0 {
		return g.textChallenge()
	}
	return g.mathChallenge()
}

func (g *Generator) textChallenge() Challenge {
	q := g.questions[rand.Intn(len(g.questions))]
	return Challenge{
		Question: q.Question,
		Answer:   q.Answer,
		Choices:  g.textChoices(q.Answer),
	}
}

// textChoices pads the correct answer with decoys borrowed from the other
// questions in the pool, shuffled.
func (g *Generator) textChoices(answer string) []string {
	choices := []string{answer}
	seen := map[string]bool{strings.ToLower(answer): true}
	for _, i := range rand.Perm(len(g.questions)) {
		if len(choices) == captchaChoices {
			break
		}
		decoy := g.questions[i].Answer
		if seen[strings.ToLower(decoy)] {
			continue
		}
		choices = append(choices, decoy)
		seen[strings.ToLower(decoy)] = true
	}
	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return choices
}

func (g *Generator) mathChallenge() Challenge {
	maxNum := g.difficulty.maxNum
	var a, b, answer int
	var op string
	switch rand.Intn(3) {
	case 0:
		op = "+"
		a, b = 1+rand.Intn(maxNum), 1+rand.Intn(maxNum)
		answer = a + b
	case 1:
		op = "-"
		a = maxNum/2 + rand.Intn(maxNum-maxNum/2+1)
		b = 1 + rand.Intn(a)
		answer = a - b
	default:
		op = "×"
		limit := maxNum / 10
		if limit > 12 {
			limit = 12
		}
		if limit < 1 {
			limit = 1
		}
		a, b = 1+rand.Intn(limit), 1+rand.Intn(limit)
		answer = a * b
	}

	return Challenge{
		Question: fmt.Sprintf("What is %d %s %d?", a, op, b),
		Answer:   strconv.Itoa(answer),
		Choices:  mathChoices(answer),
	}
}

// mathChoices builds a shuffled multiple-choice set containing the correct
// answer and non-negative decoys within ±10 of it.
func mathChoices(answer int) []string {
	options := []int{answer}
	seen := map[int]bool{answer: true}
	for len(options) < captchaChoices {
		decoy := answer + rand.Intn(21) - 10
		if decoy < 0 || seen[decoy] {
			continue
		}
		options = append(options, decoy)
		seen[decoy] = true
	}
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	choices := make([]string, len(options))
	for i, option := range options {
		choices[i] = strconv.Itoa(option)
	}
	return choices
}
