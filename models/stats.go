package models

import "time"

// UserStats represents aggregated statistics for a user across all flows
type UserStats struct {
	TotalSessions          int64      `json:"total_sessions"`
	CompletedSessions      int64      `json:"completed_sessions"`
	AverageSessionScore    float64    `json:"average_session_score"`
	TotalExams             int64      `json:"total_exams"`
	EvaluatedExams         int64      `json:"evaluated_exams"`
	AverageExamScore       float64    `json:"average_exam_score"`
	TotalJobInterviews     int64      `json:"total_job_interviews"`
	CompletedJobInterviews int64      `json:"completed_job_interviews"`
	AverageJobScore        float64    `json:"average_job_score"`
	LastActivity           *time.Time `json:"last_activity"`
}
