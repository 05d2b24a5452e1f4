package models

import (
	"strings"
	"time"

	"github.com/krshsl/prepmate/analysis"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
)

// JobQuestion is a question inside a round. Cross-questions are follow-ups
// generated from a weak answer and point at the question they follow.
type JobQuestion struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Answer     string     `json:"answer,omitempty"`
	Score      float64    `json:"score"` // 0-10
	Feedback   string     `json:"feedback,omitempty"`
	IsCross    bool       `json:"is_cross"`
	ParentID   string     `json:"parent_id,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// Answered reports whether a non-blank answer was recorded
func (q JobQuestion) Answered() bool {
	return strings.TrimSpace(q.Answer) != ""
}

// Round is an ordered group of questions, e.g. "Technical" or "HR"
type Round struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Questions []JobQuestion `json:"questions"`
}

// JobInterview is a multi-round mock interview for a specific job posting
type JobInterview struct {
	ID                 string                               `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID             string                               `gorm:"type:uuid;not null;index" json:"user_id"`
	JobTitle           string                               `gorm:"size:255;not null" json:"job_title"`
	Company            string                               `gorm:"size:255" json:"company,omitempty"`
	JobDescription     string                               `gorm:"type:text;not null" json:"job_description"`
	ResumeText         string                               `gorm:"type:text" json:"-"`
	Rounds             datatypes.JSONSlice[Round]           `gorm:"type:jsonb" json:"rounds"`
	CrossQuestionCount int                                  `gorm:"not null;default:0" json:"cross_question_count"`
	Status             string                               `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	Frames             datatypes.JSONSlice[analysis.Frame]  `gorm:"type:jsonb" json:"-"`
	Metrics            datatypes.JSONType[analysis.Summary] `gorm:"type:jsonb" json:"metrics"`
	OverallScore       float64                              `gorm:"type:decimal(5,2)" json:"overall_score"` // 0-100
	Summary            string                               `gorm:"type:text" json:"summary,omitempty"`
	Strengths          string                               `gorm:"type:text" json:"strengths,omitempty"`
	Improvements       string                               `gorm:"type:text" json:"improvements,omitempty"`
	CompletedAt        *time.Time                           `json:"completed_at,omitempty"`
	CreatedAt          time.Time                            `json:"created_at"`
	UpdatedAt          time.Time                            `json:"updated_at"`
	DeletedAt          gorm.DeletedAt                       `gorm:"index" json:"-"`
}

// Locate returns the round and question index of a question, or -1, -1.
func (j *JobInterview) Locate(questionID string) (int, int) {
	for ri, round := range j.Rounds {
		for qi, q := range round.Questions {
			if q.ID == questionID {
				return ri, qi
			}
		}
	}
	return -1, -1
}

// NextUnanswered returns the position of the first question without an
// answer, walking rounds and questions in order. ok is false when every
// question has been answered.
func (j *JobInterview) NextUnanswered() (round, question int, ok bool) {
	for ri, r := range j.Rounds {
		for qi, q := range r.Questions {
			if !q.Answered() {
				return ri, qi, true
			}
		}
	}
	return -1, -1, false
}

// AllAnswered reports whether every question, cross-questions included, has
// an answer. An interview with no questions is never complete.
func (j *JobInterview) AllAnswered() bool {
	if j.QuestionCount() == 0 {
		return false
	}
	_, _, pending := j.NextUnanswered()
	return !pending
}

// QuestionCount counts every question across rounds
func (j *JobInterview) QuestionCount() int {
	n := 0
	for _, r := range j.Rounds {
		n += len(r.Questions)
	}
	return n
}

// InsertAfter places q directly after the question at (round, question).
func (j *JobInterview) InsertAfter(round, question int, q JobQuestion) {
	qs := j.Rounds[round].Questions
	qs = append(qs, JobQuestion{})
	copy(qs[question+2:], qs[question+1:])
	qs[question+1] = q
	j.Rounds[round].Questions = qs
}
