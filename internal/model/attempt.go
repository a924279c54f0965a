package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Attempt
type Attempt struct {
	BaseModel
	UserID             uint           `gorm:"index;not null" json:"userId"`
	SessionID          string         `gorm:"size:36;index" json:"sessionId"`
	Mode               string         `gorm:"size:20;not null" json:"mode"`
	EducationSystem    string         `gorm:"size:50;not null" json:"education_system"`
	NumQuestions       int            `gorm:"not null" json:"num_questions"`
	SecondsPerQuestion int            `gorm:"not null" json:"seconds_per_question"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         *time.Time     `json:"finished_at"`
	FinalScore         *int           `json:"final_score"`
	FinalLevel         *string        `gorm:"size:50" json:"final_level"`
	Details            datatypes.JSON `gorm:"type:json" json:"details,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// AttemptDetails is stored in Attempt.Details on finish.
type AttemptDetails struct {
	TopicStats map[string]TopicStatDetail `json:"topicStats"`
	Asked      []uint                     `json:"asked"`
	Mode       string                     `json:"mode"`
}

type TopicStatDetail struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
	Score   int `json:"score"`
}

// All lists the models managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Question{},
		&Attempt{},
	}
}
