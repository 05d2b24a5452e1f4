package repository

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/krshsl/prepmate/models"
)

// GetUserStats returns counts and average scores of every interview flow for a user
func (r *GORMRepository) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalSessions).Error; err != nil {
		slog.Error("Failed to count interview sessions", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count interview sessions: %w", err)
	}
	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ? AND status = ?", userID, models.SessionStatusCompleted).
		Count(&stats.CompletedSessions).Error; err != nil {
		slog.Error("Failed to count completed sessions", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count completed sessions: %w", err)
	}

	var sessionAvg *float64
	if err := db.Model(&models.InterviewReport{}).
		Joins("JOIN interview_sessions ON interview_sessions.id = interview_reports.session_id").
		Where("interview_sessions.user_id = ? AND interview_sessions.deleted_at IS NULL", userID).
		Select("AVG(interview_reports.overall_score)").
		Scan(&sessionAvg).Error; err != nil {
		slog.Error("Failed to average report scores", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to average report scores: %w", err)
	}
	stats.AverageSessionScore = roundScore(sessionAvg)

	if err := db.Model(&models.ExamInterview{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalExams).Error; err != nil {
		slog.Error("Failed to count exams", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count exams: %w", err)
	}
	evaluated, examAvg, err := r.countAndAverage(ctx, &models.ExamInterview{}, "score", userID, models.ExamStatusEvaluated)
	if err != nil {
		slog.Error("Failed to aggregate exam scores", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to aggregate exam scores: %w", err)
	}
	stats.EvaluatedExams, stats.AverageExamScore = evaluated, examAvg

	if err := db.Model(&models.JobInterview{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalJobInterviews).Error; err != nil {
		slog.Error("Failed to count job interviews", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count job interviews: %w", err)
	}
	completed, jobAvg, err := r.countAndAverage(ctx, &models.JobInterview{}, "overall_score", userID, models.JobStatusCompleted)
	if err != nil {
		slog.Error("Failed to aggregate job interview scores", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to aggregate job interview scores: %w", err)
	}
	stats.CompletedJobInterviews, stats.AverageJobScore = completed, jobAvg

	stats.LastActivity = latest(
		r.lastUpdate(ctx, &models.InterviewSession{}, userID),
		r.lastUpdate(ctx, &models.ExamInterview{}, userID),
		r.lastUpdate(ctx, &models.JobInterview{}, userID),
	)

	slog.Info("User stats retrieved", "user_id", userID, "sessions", stats.TotalSessions, "exams", stats.TotalExams, "job_interviews", stats.TotalJobInterviews)
	return &stats, nil
}

// countAndAverage counts a user's rows in the given status and averages column over them
func (r *GORMRepository) countAndAverage(ctx context.Context, model any, column, userID, status string) (int64, float64, error) {
	var row struct {
		Count   int64
		Average *float64
	}
	err := r.db.WithContext(ctx).Model(model).
		Where("user_id = ? AND status = ?", userID, status).
		Select("COUNT(*) AS count, AVG(" + column + ") AS average").
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Count, roundScore(row.Average), nil
}

func (r *GORMRepository) lastUpdate(ctx context.Context, model any, userID string) *time.Time {
	var last *time.Time
	if err := r.db.WithContext(ctx).Model(model).
		Where("user_id = ?", userID).
		Select("MAX(updated_at)").
		Scan(&last).Error; err != nil {
		slog.Warn("Failed to get last activity", "error", err, "user_id", userID)
		return nil
	}
	return last
}

func latest(times ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range times {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return out
}

func roundScore(v *float64) float64 {
	if v == nil {
		return 0
	}
	return math.Round(*v*100) / 100
}
