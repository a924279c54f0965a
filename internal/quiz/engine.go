package quiz

import (
	"math"
	"math/rand/v2"
	"sort"
)

// PoolSize caps how many of the closest-difficulty candidates take part in
// the random draw.
const PoolSize = 5

// Timeout is the choice sentinel for an answer that was never given.
const Timeout = -1

// RandSource draws a uniform integer in [0, n).
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Engine runs the adaptive selection and scoring rules over a State.
type Engine struct {
	rng    RandSource
	levels *Levels
}

// NewEngine returns an engine drawing from rng. A nil rng uses the
// goroutine-safe top-level math/rand/v2 source; a nil levels uses the
// built-in band schemes.
func NewEngine(rng RandSource, levels *Levels) *Engine {
	if rng == nil {
		rng = globalRand{}
	}
	if levels == nil {
		levels = NewLevels(nil, DefaultScheme)
	}
	return &Engine{rng: rng, levels: levels}
}

func (e *Engine) Levels() *Levels { return e.levels }

// Start creates a session state with the scheme resolved against the
// registry.
func (e *Engine) Start(userID uint, bank []Question, settings Settings) (*State, error) {
	settings.Scheme = e.levels.Resolve(settings.Scheme)
	return NewState(userID, bank, settings)
}

type Presented struct {
	Question           Question
	Index              int
	TotalQuestions     int
	SecondsPerQuestion int
	Score              int
	Level              string
}

// Next presents the next question, or returns nil when the session is
// complete. A presented but unanswered question is returned again.
func (e *Engine) Next(s *State) *Presented {
	if s.Index > s.TotalQuestions {
		return nil
	}

	var q Question
	if current, ok := s.question(s.CurrentQuestionID); ok && s.CurrentQuestionID != 0 && !s.hasAsked(current.ID) {
		q = current
	} else {
		picked, ok := e.pick(s)
		if !ok {
			return nil
		}
		q = picked
		s.CurrentQuestionID = q.ID
	}

	return &Presented{
		Question:           q,
		Index:              s.Index,
		TotalQuestions:     s.TotalQuestions,
		SecondsPerQuestion: s.SecondsPerQuestion,
		Score:              s.OverallSkill,
		Level:              e.levels.Level(s.Scheme, float64(s.OverallSkill)),
	}
}

type candidate struct {
	q    Question
	dist int
}

func (e *Engine) pick(s *State) (Question, bool) {
	remaining := make([]candidate, 0, len(s.Bank))
	for _, q := range s.Bank {
		if s.hasAsked(q.ID) {
			continue
		}
		d := q.Difficulty - s.TargetDifficulty
		if d < 0 {
			d = -d
		}
		remaining = append(remaining, candidate{q: q, dist: d})
	}
	if len(remaining) == 0 {
		return Question{}, false
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].dist < remaining[j].dist
	})

	pool := remaining[:min(PoolSize, len(remaining))]
	return pool[e.rng.IntN(len(pool))].q, true
}

type Feedback struct {
	Correct       bool
	CorrectAnswer string
	Explanation   string
	Score         int
	Level         string
}

// Answer scores choice for the presented question questionID. Pass Timeout
// as choice when the time budget ran out.
func (e *Engine) Answer(s *State, questionID uint, choice int) (*Feedback, error) {
	if questionID == 0 || questionID != s.CurrentQuestionID {
		return nil, ErrStaleQuestion
	}
	q, ok := s.question(questionID)
	if !ok {
		return nil, ErrStaleQuestion
	}

	correct := choice != Timeout && choice == q.AnswerIndex

	s.OverallSkill = UpdateSkill(s.OverallSkill, q.Difficulty, correct)

	t, ok := s.TopicStats[q.Topic]
	if !ok {
		t = &TopicStat{Score: InitialSkill}
		s.TopicStats[q.Topic] = t
	}
	t.Attempts++
	if correct {
		t.Correct++
	}
	t.Score = UpdateSkill(t.Score, q.Difficulty, correct)

	if correct {
		s.TargetDifficulty = clamp(s.TargetDifficulty+1, MinDifficulty, MaxDifficulty)
	} else {
		s.TargetDifficulty = clamp(s.TargetDifficulty-1, MinDifficulty, MaxDifficulty)
	}

	if !s.hasAsked(q.ID) {
		s.Asked = append(s.Asked, q.ID)
	}
	s.CurrentQuestionID = 0
	s.Index++

	var answer string
	if q.AnswerIndex >= 0 && q.AnswerIndex < len(q.Choices) {
		answer = q.Choices[q.AnswerIndex]
	}

	return &Feedback{
		Correct:       correct,
		CorrectAnswer: answer,
		Explanation:   q.Explanation,
		Score:         s.OverallSkill,
		Level:         e.levels.Level(s.Scheme, float64(s.OverallSkill)),
	}, nil
}

// UpdateSkill moves score by 4+2*difficulty towards the outcome.
func UpdateSkill(score, difficulty int, correct bool) int {
	step := 4 + difficulty*2
	if !correct {
		step = -step
	}
	return clamp(score+step, MinSkill, MaxSkill)
}

type TopicResult struct {
	Topic    string `json:"topic"`
	Attempts int    `json:"total"`
	Correct  int    `json:"correct"`
	Accuracy int    `json:"accuracy"`
	Score    int    `json:"score"`
}

type Result struct {
	FinalScore int
	FinalLevel string
	Topics     []TopicResult
}

// Finish summarizes s. It does not clear the session; the owner of the
// state is expected to drop it.
func (e *Engine) Finish(s *State) *Result {
	topics := make([]TopicResult, 0, len(s.TopicStats))
	for name, t := range s.TopicStats {
		accuracy := 0
		if t.Attempts > 0 {
			accuracy = int(math.Round(float64(t.Correct) / float64(t.Attempts) * 100))
		}
		topics = append(topics, TopicResult{
			Topic:    name,
			Attempts: t.Attempts,
			Correct:  t.Correct,
			Accuracy: accuracy,
			Score:    t.Score,
		})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Score != topics[j].Score {
			return topics[i].Score > topics[j].Score
		}
		return topics[i].Topic < topics[j].Topic
	})

	return &Result{
		FinalScore: s.OverallSkill,
		FinalLevel: e.levels.Level(s.Scheme, float64(s.OverallSkill)),
		Topics:     topics,
	}
}
