package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/krshsl/prepmate/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) CreateExamInterview(ctx context.Context, exam *models.ExamInterview) error {
	if err := r.db.WithContext(ctx).Create(exam).Error; err != nil {
		slog.Error("Failed to create exam interview", "error", err, "user_id", exam.UserID)
		return err
	}
	slog.Info("Exam interview created", "exam_id", exam.ID, "user_id", exam.UserID, "topic", exam.Topic)
	return nil
}

// GetExamInterview returns the exam only when it belongs to userID
func (r *GORMRepository) GetExamInterview(ctx context.Context, examID, userID string) (*models.ExamInterview, error) {
	var exam models.ExamInterview
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", examID, userID).First(&exam).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get exam interview", "error", err, "exam_id", examID, "user_id", userID)
		return nil, err
	}
	return &exam, nil
}

func (r *GORMRepository) ListExamInterviews(ctx context.Context, userID string) ([]models.ExamInterview, error) {
	var exams []models.ExamInterview
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&exams).Error
	if err != nil {
		slog.Error("Failed to list exam interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return exams, nil
}

func (r *GORMRepository) UpdateExamInterview(ctx context.Context, exam *models.ExamInterview) error {
	if err := r.db.WithContext(ctx).Save(exam).Error; err != nil {
		slog.Error("Failed to update exam interview", "error", err, "exam_id", exam.ID)
		return err
	}
	return nil
}

// DeleteExamInterview reports whether a row owned by userID was deleted
func (r *GORMRepository) DeleteExamInterview(ctx context.Context, examID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", examID, userID).Delete(&models.ExamInterview{})
	if res.Error != nil {
		slog.Error("Failed to delete exam interview", "error", res.Error, "exam_id", examID)
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		slog.Info("Exam interview deleted", "exam_id", examID, "user_id", userID)
	}
	return res.RowsAffected > 0, nil
}
