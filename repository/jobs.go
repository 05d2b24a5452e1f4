package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/krshsl/prepmate/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) CreateJobInterview(ctx context.Context, job *models.JobInterview) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		slog.Error("Failed to create job interview", "error", err, "user_id", job.UserID)
		return err
	}
	slog.Info("Job interview created", "job_interview_id", job.ID, "user_id", job.UserID, "job_title", job.JobTitle)
	return nil
}

// GetJobInterview returns the interview only when it belongs to userID
func (r *GORMRepository) GetJobInterview(ctx context.Context, jobID, userID string) (*models.JobInterview, error) {
	var job models.JobInterview
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", jobID, userID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get job interview", "error", err, "job_interview_id", jobID, "user_id", userID)
		return nil, err
	}
	return &job, nil
}

func (r *GORMRepository) ListJobInterviews(ctx context.Context, userID string) ([]models.JobInterview, error) {
	var jobs []models.JobInterview
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&jobs).Error
	if err != nil {
		slog.Error("Failed to list job interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return jobs, nil
}

func (r *GORMRepository) UpdateJobInterview(ctx context.Context, job *models.JobInterview) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		slog.Error("Failed to update job interview", "error", err, "job_interview_id", job.ID)
		return err
	}
	return nil
}

// DeleteJobInterview reports whether a row owned by userID was deleted
func (r *GORMRepository) DeleteJobInterview(ctx context.Context, jobID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", jobID, userID).Delete(&models.JobInterview{})
	if res.Error != nil {
		slog.Error("Failed to delete job interview", "error", res.Error, "job_interview_id", jobID)
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		slog.Info("Job interview deleted", "job_interview_id", jobID, "user_id", userID)
	}
	return res.RowsAffected > 0, nil
}
