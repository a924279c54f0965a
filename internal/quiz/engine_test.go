package quiz

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand returns the queued values in order and records every pool size it
// was asked to draw from.
type seqRand struct {
	values []int
	sizes  []int
}

func (r *seqRand) IntN(n int) int {
	r.sizes = append(r.sizes, n)
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

func bankOf(difficulties ...int) []Question {
	bank := make([]Question, len(difficulties))
	for i, d := range difficulties {
		bank[i] = Question{
			ID:          uint(i + 1),
			Topic:       "math",
			Difficulty:  d,
			Prompt:      "q",
			Choices:     []string{"a", "b", "c"},
			AnswerIndex: 1,
			Explanation: "because",
		}
	}
	return bank
}

func newTestState(t *testing.T, bank []Question, total int) *State {
	t.Helper()
	s, err := NewState(7, bank, Settings{TotalQuestions: total})
	require.NoError(t, err)
	return s
}

func TestNewState_Defaults(t *testing.T) {
	s := newTestState(t, bankOf(1, 2), 0)

	assert.Equal(t, DefaultQuestions, s.TotalQuestions)
	assert.Equal(t, DefaultSeconds, s.SecondsPerQuestion)
	assert.Equal(t, InitialSkill, s.OverallSkill)
	assert.Equal(t, InitialDifficulty, s.TargetDifficulty)
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, ModePractice, s.Mode)
	assert.Empty(t, s.Asked)
	assert.NotEmpty(t, s.ID)
}

func TestNewState_EmptyBank(t *testing.T) {
	_, err := NewState(1, nil, Settings{})
	assert.ErrorIs(t, err, ErrNoQuestionsAvailable)
}

func TestSettingsNormalize_Clamps(t *testing.T) {
	tests := []struct {
		name        string
		in          Settings
		wantTotal   int
		wantSeconds int
		wantMode    string
	}{
		{"below range", Settings{TotalQuestions: 1, SecondsPerQuestion: 2}, 3, 10, ModePractice},
		{"above range", Settings{TotalQuestions: 500, SecondsPerQuestion: 1000}, 100, 300, ModePractice},
		{"negative", Settings{TotalQuestions: -4, SecondsPerQuestion: -1}, 3, 10, ModePractice},
		{"exam kept", Settings{Mode: ModeExam, TotalQuestions: 20, SecondsPerQuestion: 45}, 20, 45, ModeExam},
		{"unknown mode", Settings{Mode: "speedrun"}, 12, 30, ModePractice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantTotal, got.TotalQuestions)
			assert.Equal(t, tt.wantSeconds, got.SecondsPerQuestion)
			assert.Equal(t, tt.wantMode, got.Mode)
		})
	}
}

func TestNext_PoolCappedAtFive(t *testing.T) {
	rng := &seqRand{values: []int{5}}
	e := NewEngine(rng, nil)
	s := newTestState(t, bankOf(2, 2, 2, 2, 2, 2), 10)

	p := e.Next(s)
	require.NotNil(t, p)
	assert.Equal(t, []int{5}, rng.sizes)
	// All six tie at distance zero; the stable sort keeps bank order so the
	// sixth question is outside the pool.
	assert.NotEqual(t, uint(6), p.Question.ID)
}

func TestNext_PoolPrefersClosestDifficulty(t *testing.T) {
	rng := &seqRand{values: []int{0, 1, 2, 3, 4}}
	e := NewEngine(rng, nil)
	bank := bankOf(5, 5, 5, 2, 3, 1, 2, 4)
	s := newTestState(t, bank, 10)

	allowed := map[uint]bool{4: true, 7: true, 5: true, 6: true, 8: true}
	for i := 0; i < 5; i++ {
		s.Asked = nil
		s.CurrentQuestionID = 0
		p := e.Next(s)
		require.NotNil(t, p)
		assert.True(t, allowed[p.Question.ID], "question %d is not among the closest five", p.Question.ID)
	}
}

func TestNext_PoolExcludesAsked(t *testing.T) {
	e := NewEngine(rand.New(rand.NewPCG(1, 2)), nil)
	s := newTestState(t, bankOf(2, 2, 2, 2, 2, 2), 10)
	s.Asked = []uint{1, 2, 3}

	for i := 0; i < 50; i++ {
		s.CurrentQuestionID = 0
		p := e.Next(s)
		require.NotNil(t, p)
		assert.NotContains(t, []uint{1, 2, 3}, p.Question.ID)
	}
}

func TestNext_ReturnsPendingQuestion(t *testing.T) {
	e := NewEngine(rand.New(rand.NewPCG(3, 4)), nil)
	s := newTestState(t, bankOf(1, 2, 3, 4, 5), 5)

	first := e.Next(s)
	require.NotNil(t, first)
	again := e.Next(s)
	require.NotNil(t, again)
	assert.Equal(t, first.Question.ID, again.Question.ID)
}

func TestNext_DoneWhenIndexExceedsTotal(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(1, 2, 3, 4, 5), 3)
	s.Index = 4

	assert.Nil(t, e.Next(s))
}

func TestNext_DoneWhenBankExhausted(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(1, 2), 10)
	s.Asked = []uint{1, 2}

	assert.Nil(t, e.Next(s))
}

func TestAnswer_CorrectMediumQuestion(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(3), 5)
	p := e.Next(s)
	require.NotNil(t, p)

	fb, err := e.Answer(s, p.Question.ID, 1)
	require.NoError(t, err)

	assert.True(t, fb.Correct)
	assert.Equal(t, 60, fb.Score)
	assert.Equal(t, 60, s.OverallSkill)
	assert.Equal(t, 3, s.TargetDifficulty)
	assert.Equal(t, "b", fb.CorrectAnswer)
	assert.Equal(t, "because", fb.Explanation)
	assert.Equal(t, "Intermediate", fb.Level)
	assert.Equal(t, []uint{1}, s.Asked)
	assert.Equal(t, 2, s.Index)
	assert.Zero(t, s.CurrentQuestionID)

	stat := s.TopicStats["math"]
	require.NotNil(t, stat)
	assert.Equal(t, TopicStat{Attempts: 1, Correct: 1, Score: 60}, *stat)
}

func TestAnswer_IncorrectHardQuestionClampsAtZero(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(5), 5)
	s.OverallSkill = 10
	p := e.Next(s)
	require.NotNil(t, p)

	fb, err := e.Answer(s, p.Question.ID, 0)
	require.NoError(t, err)

	assert.False(t, fb.Correct)
	assert.Equal(t, 0, s.OverallSkill)
	assert.Equal(t, 1, s.TargetDifficulty)
	assert.Equal(t, 36, s.TopicStats["math"].Score)
}

func TestAnswer_TimeoutIsIncorrect(t *testing.T) {
	e := NewEngine(nil, nil)
	bank := bankOf(2)
	bank[0].AnswerIndex = 0
	s := newTestState(t, bank, 5)
	p := e.Next(s)
	require.NotNil(t, p)

	fb, err := e.Answer(s, p.Question.ID, Timeout)
	require.NoError(t, err)
	assert.False(t, fb.Correct)
	assert.Equal(t, 42, s.OverallSkill)
}

func TestAnswer_OutOfRangeChoiceIsIncorrect(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(1), 5)
	p := e.Next(s)
	require.NotNil(t, p)

	fb, err := e.Answer(s, p.Question.ID, 99)
	require.NoError(t, err)
	assert.False(t, fb.Correct)
}

func TestAnswer_StaleQuestion(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(1, 2), 5)

	_, err := e.Answer(s, 1, 0)
	assert.ErrorIs(t, err, ErrStaleQuestion, "nothing presented yet")

	p := e.Next(s)
	require.NotNil(t, p)
	_, err = e.Answer(s, p.Question.ID+100, 0)
	assert.ErrorIs(t, err, ErrStaleQuestion)

	_, err = e.Answer(s, p.Question.ID, 1)
	require.NoError(t, err)
	_, err = e.Answer(s, p.Question.ID, 1)
	assert.ErrorIs(t, err, ErrStaleQuestion, "double submit")
}

func TestUpdateSkill(t *testing.T) {
	assert.Equal(t, 60, UpdateSkill(50, 3, true))
	assert.Equal(t, 0, UpdateSkill(10, 5, false))
	assert.Equal(t, 100, UpdateSkill(95, 5, true))
	assert.Equal(t, 44, UpdateSkill(50, 1, false))
}

func TestSession_InvariantsHoldOverRandomRuns(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 99))
	e := NewEngine(rng, nil)

	for run := 0; run < 200; run++ {
		difficulties := make([]int, 1+rng.IntN(30))
		for i := range difficulties {
			difficulties[i] = 1 + rng.IntN(5)
		}
		bank := bankOf(difficulties...)
		for i := range bank {
			bank[i].Topic = []string{"math", "history", "art"}[rng.IntN(3)]
		}
		s, err := NewState(1, bank, Settings{TotalQuestions: 3 + rng.IntN(40)})
		require.NoError(t, err)

		seen := map[uint]bool{}
		for {
			p := e.Next(s)
			if p == nil {
				break
			}
			require.False(t, seen[p.Question.ID], "question %d presented twice", p.Question.ID)
			seen[p.Question.ID] = true

			choice := rng.IntN(4) - 1
			_, err := e.Answer(s, p.Question.ID, choice)
			require.NoError(t, err)

			require.GreaterOrEqual(t, s.OverallSkill, MinSkill)
			require.LessOrEqual(t, s.OverallSkill, MaxSkill)
			require.GreaterOrEqual(t, s.TargetDifficulty, MinDifficulty)
			require.LessOrEqual(t, s.TargetDifficulty, MaxDifficulty)
			for _, ts := range s.TopicStats {
				require.GreaterOrEqual(t, ts.Score, MinSkill)
				require.LessOrEqual(t, ts.Score, MaxSkill)
			}
			require.LessOrEqual(t, len(s.Asked), s.TotalQuestions)
		}
		assert.Equal(t, min(len(bank), s.TotalQuestions), len(s.Asked))
	}
}

func TestFinish_Breakdown(t *testing.T) {
	e := NewEngine(nil, nil)
	s := newTestState(t, bankOf(1), 5)
	s.OverallSkill = 62
	s.TopicStats = map[string]*TopicStat{
		"math":    {Attempts: 4, Correct: 3, Score: 62},
		"history": {Attempts: 3, Correct: 1, Score: 40},
		"art":     {Attempts: 3, Correct: 2, Score: 70},
	}

	res := e.Finish(s)

	assert.Equal(t, 62, res.FinalScore)
	assert.Equal(t, "Intermediate", res.FinalLevel)
	require.Len(t, res.Topics, 3)
	assert.Equal(t, "art", res.Topics[0].Topic)
	assert.Equal(t, TopicResult{Topic: "math", Attempts: 4, Correct: 3, Accuracy: 75, Score: 62}, res.Topics[1])
	assert.Equal(t, "history", res.Topics[2].Topic)
	assert.Equal(t, 33, res.Topics[2].Accuracy)
}

func TestEngineStart_ResolvesScheme(t *testing.T) {
	e := NewEngine(nil, nil)

	s, err := e.Start(1, bankOf(1), Settings{Scheme: "nope"})
	require.NoError(t, err)
	assert.Equal(t, DefaultScheme, s.Scheme)

	s, err = e.Start(1, bankOf(1), Settings{Scheme: "language-cefr"})
	require.NoError(t, err)
	assert.Equal(t, "language-cefr", s.Scheme)
}
