package verification

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
)

var arithmeticQuestionRE = regexp.MustCompile(`^What is \d+ [+×-] \d+\?$`)

func TestGeneratorMathChallenges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level  string
		maxNum int
	}{
		{level: "easy", maxNum: 10},
		{level: "medium", maxNum: 50},
		{level: "unknown falls back to medium", maxNum: 50},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()
			gen := NewGenerator(tt.level)
			for i := 0; i < 200; i++ {
				challenge := gen.mathChallenge()
				if challenge.Question == "" {
					t.Fatal("empty question")
				}
				answer, err := strconv.Atoi(challenge.Answer)
				if err != nil {
					t.Fatalf("non-numeric answer %q: %v", challenge.Answer, err)
				}
				if answer < 0 {
					t.Fatalf("negative answer %d for %q", answer, challenge.Question)
				}
				if answer > tt.maxNum*2 {
					t.Fatalf("answer %d out of range for %q", answer, challenge.Question)
				}
			}
		})
	}
}

func TestGeneratorChoices(t *testing.T) {
	t.Parallel()

	gen := NewGenerator("easy")
	for i := 0; i < 200; i++ {
		challenge := gen.mathChallenge()
		if len(challenge.Choices) != captchaChoices {
			t.Fatalf("choices = %d, want %d", len(challenge.Choices), captchaChoices)
		}

		seen := map[string]bool{}
		containsAnswer := false
		for _, choice := range challenge.Choices {
			if seen[choice] {
				t.Fatalf("duplicate choice %q in %v", choice, challenge.Choices)
			}
			seen[choice] = true
			n, err := strconv.Atoi(choice)
			if err != nil {
				t.Fatalf("non-numeric choice %q: %v", choice, err)
			}
			if n < 0 {
				t.Fatalf("negative choice %d", n)
			}
			if choice == challenge.Answer {
				containsAnswer = true
			}
		}
		if !containsAnswer {
			t.Fatalf("choices %v missing answer %q", challenge.Choices, challenge.Answer)
		}
	}
}

func TestMathChoicesStayNearAnswer(t *testing.T) {
	t.Parallel()

	for _, answer := range []int{0, 1, 7, 100} {
		for _, choice := range mathChoices(answer) {
			n, err := strconv.Atoi(choice)
			if err != nil {
				t.Fatalf("non-numeric choice %q: %v", choice, err)
			}
			if n < answer-10 || n > answer+10 {
				t.Fatalf("choice %d too far from answer %d", n, answer)
			}
		}
	}
}

func TestGeneratorHardMixesTextQuestions(t *testing.T) {
	t.Parallel()

	gen := NewGenerator("hard")
	if len(gen.questions) == 0 {
		t.Fatal("embedded text questions not loaded")
	}

	sawText := false
	sawMath := false
	for i := 0; i < 500 && !(sawText && sawMath); i++ {
		challenge := gen.Generate()
		if arithmeticQuestionRE.MatchString(challenge.Question) {
			sawMath = true
		} else {
			sawText = true
		}
	}
	if !sawText || !sawMath {
		t.Fatalf("hard difficulty did not mix question kinds: text=%v math=%v", sawText, sawMath)
	}
}

func TestGeneratorEasyIsMathOnly(t *testing.T) {
	t.Parallel()

	gen := NewGenerator("easy")
	for i := 0; i < 100; i++ {
		challenge := gen.Generate()
		if !arithmeticQuestionRE.MatchString(challenge.Question) {
			t.Fatalf("iteration %d produced a non-math challenge: %+v", i, challenge)
		}
	}
}

func TestTextChallengeAnswersResolve(t *testing.T) {
	t.Parallel()

	gen := NewGenerator("hard")
	pool := map[string]bool{}
	for _, q := range gen.questions {
		pool[strings.ToLower(q.Answer)] = true
	}
	for i := 0; i < 50; i++ {
		challenge := gen.textChallenge()
		if challenge.Question == "" || challenge.Answer == "" {
			t.Fatalf("incomplete text challenge: %+v", challenge)
		}
		if len(challenge.Choices) != captchaChoices {
			t.Fatalf("choices = %d, want %d: %v", len(challenge.Choices), captchaChoices, challenge.Choices)
		}
		containsAnswer := false
		seen := map[string]bool{}
		for _, choice := range challenge.Choices {
			key := strings.ToLower(choice)
			if seen[key] {
				t.Fatalf("duplicate choice %q in %v", choice, challenge.Choices)
			}
			seen[key] = true
			if !pool[key] {
				t.Fatalf("choice %q not drawn from the question pool", choice)
			}
			if choice == challenge.Answer {
				containsAnswer = true
			}
		}
		if !containsAnswer {
			t.Fatalf("choices %v missing answer %q", challenge.Choices, challenge.Answer)
		}
	}
}
