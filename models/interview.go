package models

import (
	"time"

	"github.com/krshsl/prepmate/analysis"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"

	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// Interview is an interviewer persona for the live voice flow. Public
// interviews have a NULL user_id; private ones belong to their creator.
type Interview struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      *string        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	Role        string         `gorm:"size:255" json:"role,omitempty"` // position being interviewed for
	Description string         `gorm:"type:text" json:"description"`
	Personality string         `gorm:"type:text;not null" json:"personality"`
	Industry    string         `gorm:"size:100" json:"industry,omitempty"`
	Level       string         `gorm:"size:50" json:"level,omitempty"` // junior, mid, senior, executive
	Gender      string         `gorm:"size:20" json:"gender,omitempty"` // drives the TTS voice
	IsPublic    bool           `gorm:"default:false" json:"is_public"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User              *User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	InterviewSessions []InterviewSession `gorm:"foreignKey:InterviewID" json:"interview_sessions,omitempty"`
}

// InterviewSession is one attempt at a voice interview
type InterviewSession struct {
	ID          string                              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string                              `gorm:"type:uuid;not null;index" json:"user_id"`
	InterviewID string                              `gorm:"type:uuid;not null;index" json:"interview_id"`
	Status      string                              `gorm:"not null;default:'active';check:status IN ('active', 'completed', 'abandoned')" json:"status"`
	StartedAt   time.Time                           `gorm:"not null" json:"started_at"`
	EndedAt     *time.Time                          `json:"ended_at,omitempty"`
	Duration    int                                 `json:"duration"` // seconds
	Frames      datatypes.JSONSlice[analysis.Frame] `gorm:"type:jsonb" json:"-"`
	CreatedAt   time.Time                           `json:"created_at"`
	UpdatedAt   time.Time                           `json:"updated_at"`
	DeletedAt   gorm.DeletedAt                      `gorm:"index" json:"-"`

	// Relationships
	User              User                  `gorm:"foreignKey:UserID" json:"-"`
	Interview         Interview             `gorm:"foreignKey:InterviewID" json:"interview"`
	Transcripts       []InterviewTranscript `gorm:"foreignKey:SessionID" json:"transcripts,omitempty"`
	Report            *InterviewReport      `gorm:"foreignKey:SessionID" json:"report,omitempty"`
	PerformanceScores []PerformanceScore    `gorm:"foreignKey:SessionID" json:"performance_scores,omitempty"`
}

// InterviewTranscript stores the ordered, turn-by-turn text of the conversation
type InterviewTranscript struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string         `gorm:"type:uuid;not null;index" json:"session_id"`
	TurnOrder int            `gorm:"not null" json:"turn_order"`
	Speaker   string         `gorm:"not null;check:speaker IN ('user', 'agent')" json:"speaker"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time      `gorm:"not null" json:"timestamp"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// InterviewReport stores the final AI-generated analysis of a voice session
// together with the face-analysis aggregate.
type InterviewReport struct {
	ID              string                               `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID       string                               `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	Summary         string                               `gorm:"type:text;not null" json:"summary"`
	Strengths       string                               `gorm:"type:text" json:"strengths,omitempty"`
	Weaknesses      string                               `gorm:"type:text" json:"weaknesses,omitempty"`
	Recommendations string                               `gorm:"type:text" json:"recommendations,omitempty"`
	OverallScore    float64                              `gorm:"type:decimal(5,2)" json:"overall_score"` // 0.00 to 100.00
	FaceAnalysis    datatypes.JSONType[analysis.Summary] `gorm:"type:jsonb" json:"face_analysis"`
	CreatedAt       time.Time                            `json:"created_at"`
	UpdatedAt       time.Time                            `json:"updated_at"`
	DeletedAt       gorm.DeletedAt                       `gorm:"index" json:"-"`
}

// PerformanceScore is a key-value table of per-metric scores
type PerformanceScore struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string         `gorm:"type:uuid;not null;index" json:"session_id"`
	Metric    string         `gorm:"not null" json:"metric"`
	Score     float64        `gorm:"type:decimal(5,2);not null" json:"score"`
	MaxScore  float64        `gorm:"type:decimal(5,2);not null;default:100.00" json:"max_score"`
	Weight    float64        `gorm:"type:decimal(3,2);not null;default:1.00" json:"weight"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
