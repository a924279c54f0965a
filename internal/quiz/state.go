package quiz

import (
	"time"

	"github.com/google/uuid"
)

const (
	ModePractice = "practice"
	ModeExam     = "exam"
)

const (
	MinQuestions          = 3
	MaxQuestions          = 100
	DefaultQuestions      = 12
	MinSecondsPerQuestion = 10
	MaxSecondsPerQuestion = 300
	DefaultSeconds        = 30

	InitialSkill      = 50
	InitialDifficulty = 2
	MinSkill          = 0
	MaxSkill          = 100
	MinDifficulty     = 1
	MaxDifficulty     = 5
)

// Question is a bank entry as loaded into a session.
type Question struct {
	ID          uint     `json:"id"`
	Topic       string   `json:"topic"`
	Difficulty  int      `json:"difficulty"`
	Prompt      string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explain,omitempty"`
}

type TopicStat struct {
	Attempts int `json:"total"`
	Correct  int `json:"correct"`
	Score    int `json:"score"`
}

// State is the mutable state of one quiz session.
type State struct {
	ID                 string                `json:"id"`
	UserID             uint                  `json:"userId"`
	AttemptID          uint                  `json:"attemptId"`
	Mode               string                `json:"mode"`
	Scheme             string                `json:"educationSystem"`
	TotalQuestions     int                   `json:"numQuestions"`
	SecondsPerQuestion int                   `json:"secondsPerQuestion"`
	OverallSkill       int                   `json:"overallSkill"`
	TargetDifficulty   int                   `json:"targetDifficulty"`
	Asked              []uint                `json:"asked"`
	TopicStats         map[string]*TopicStat `json:"topicStats"`
	Index              int                   `json:"index"`
	CurrentQuestionID  uint                  `json:"currentQuestionId,omitempty"`
	Bank               []Question            `json:"bank"`
	StartedAt          time.Time             `json:"startedAt"`
}

// Settings are the caller supplied options for a new session. Zero values
// select the defaults.
type Settings struct {
	Mode               string
	Scheme             string
	TotalQuestions     int
	SecondsPerQuestion int
}

// Normalize clamps the numeric settings and resolves mode. Scheme resolution
// is left to the Levels registry.
func (s Settings) Normalize() Settings {
	if s.Mode != ModeExam {
		s.Mode = ModePractice
	}
	if s.TotalQuestions == 0 {
		s.TotalQuestions = DefaultQuestions
	}
	if s.SecondsPerQuestion == 0 {
		s.SecondsPerQuestion = DefaultSeconds
	}
	s.TotalQuestions = clamp(s.TotalQuestions, MinQuestions, MaxQuestions)
	s.SecondsPerQuestion = clamp(s.SecondsPerQuestion, MinSecondsPerQuestion, MaxSecondsPerQuestion)
	return s
}

// NewState builds a fresh session over bank. The bank must already be
// filtered by topic.
func NewState(userID uint, bank []Question, settings Settings) (*State, error) {
	if len(bank) == 0 {
		return nil, ErrNoQuestionsAvailable
	}
	settings = settings.Normalize()

	loaded := make([]Question, len(bank))
	copy(loaded, bank)

	return &State{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Mode:               settings.Mode,
		Scheme:             settings.Scheme,
		TotalQuestions:     settings.TotalQuestions,
		SecondsPerQuestion: settings.SecondsPerQuestion,
		OverallSkill:       InitialSkill,
		TargetDifficulty:   InitialDifficulty,
		Asked:              []uint{},
		TopicStats:         map[string]*TopicStat{},
		Index:              1,
		Bank:               loaded,
		StartedAt:          time.Now(),
	}, nil
}

func (s *State) hasAsked(id uint) bool {
	for _, a := range s.Asked {
		if a == id {
			return true
		}
	}
	return false
}

func (s *State) question(id uint) (Question, bool) {
	for _, q := range s.Bank {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Asked = append([]uint(nil), s.Asked...)
	c.Bank = make([]Question, len(s.Bank))
	for i, q := range s.Bank {
		q.Choices = append([]string(nil), q.Choices...)
		c.Bank[i] = q
	}
	c.TopicStats = make(map[string]*TopicStat, len(s.TopicStats))
	for k, v := range s.TopicStats {
		stat := *v
		c.TopicStats[k] = &stat
	}
	return &c
}
