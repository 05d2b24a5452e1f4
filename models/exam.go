package models

import (
	"time"

	"github.com/krshsl/prepmate/analysis"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ExamStatusInProgress = "in_progress"
	ExamStatusSubmitted  = "submitted" // answers stored, evaluation pending
	ExamStatusEvaluated  = "evaluated"
)

// ExamQuestion is one written question of an exam interview
type ExamQuestion struct {
	Text     string  `json:"text"`
	Answer   string  `json:"answer,omitempty"`
	Score    float64 `json:"score"` // 0-10
	Feedback string  `json:"feedback,omitempty"`
}

// ExamInterview is a timed written exam on a topic with webcam analysis
type ExamInterview struct {
	ID               string                               `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID           string                               `gorm:"type:uuid;not null;index" json:"user_id"`
	Topic            string                               `gorm:"size:255;not null" json:"topic"`
	Difficulty       string                               `gorm:"size:20;not null" json:"difficulty"`
	Questions        datatypes.JSONSlice[ExamQuestion]    `gorm:"type:jsonb" json:"questions"`
	TimeLimitMinutes int                                  `gorm:"not null" json:"time_limit_minutes"`
	Status           string                               `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	StartedAt        time.Time                            `gorm:"not null" json:"started_at"`
	SubmittedAt      *time.Time                           `json:"submitted_at,omitempty"`
	Late             bool                                 `gorm:"default:false" json:"late"`
	Frames           datatypes.JSONSlice[analysis.Frame]  `gorm:"type:jsonb" json:"-"`
	FaceAnalysis     datatypes.JSONType[analysis.Summary] `gorm:"type:jsonb" json:"face_analysis"`
	Score            float64                              `gorm:"type:decimal(5,2)" json:"score"` // 0-100
	Summary          string                               `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt        time.Time                            `json:"created_at"`
	UpdatedAt        time.Time                            `json:"updated_at"`
	DeletedAt        gorm.DeletedAt                       `gorm:"index" json:"-"`
}

// Deadline is when answers stop counting as on time
func (e *ExamInterview) Deadline() time.Time {
	return e.StartedAt.Add(time.Duration(e.TimeLimitMinutes) * time.Minute)
}
