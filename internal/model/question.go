package model

import (
	"adaptive_quiz/internal/quiz"

	"gorm.io/datatypes"
)

// swagger:model Question
type Question struct {
	BaseModel
	Topic       string                      `gorm:"size:100;index;not null" json:"topic"`
	Difficulty  int                         `gorm:"not null;default:1" json:"difficulty"`
	Prompt      string                      `gorm:"column:question;type:text;not null" json:"question"`
	Choices     datatypes.JSONSlice[string] `gorm:"type:json;not null" json:"choices"`
	AnswerIndex int                         `gorm:"not null" json:"answerIndex"`
	Explanation string                      `gorm:"column:explanation;type:text" json:"explain"`
}

func (Question) TableName() string {
	return "questions"
}

// ToQuiz converts the row into the immutable form loaded into a session.
func (q Question) ToQuiz() quiz.Question {
	return quiz.Question{
		ID:          q.ID,
		Topic:       q.Topic,
		Difficulty:  q.Difficulty,
		Prompt:      q.Prompt,
		Choices:     append([]string(nil), q.Choices...),
		AnswerIndex: q.AnswerIndex,
		Explanation: q.Explanation,
	}
}
