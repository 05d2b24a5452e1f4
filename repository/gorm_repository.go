package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/prepmate/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.PermanentToken{},
		&models.WaitlistEntry{},
		&models.Interview{},
		&models.InterviewSession{},
		&models.InterviewTranscript{},
		&models.InterviewReport{},
		&models.PerformanceScore{},
		&models.ExamInterview{},
		&models.JobInterview{},
	)
}

// Ping checks that the database is reachable
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("google_id = ?", googleID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by Google ID", "error", err)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return err
	}
	slog.Info("User updated", "user_id", user.ID)
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	var permanentToken models.PermanentToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&permanentToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get permanent token", "error", err)
		return nil, err
	}
	return &permanentToken, nil
}

func (r *GORMRepository) DeletePermanentToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.PermanentToken{}).Error; err != nil {
		slog.Error("Failed to delete permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PermanentToken{}).Error; err != nil {
		slog.Error("Failed to delete user permanent tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Interview persona operations
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err)
		return err
	}
	slog.Info("Interview created", "interview_id", interview.ID, "name", interview.Name)
	return nil
}

func (r *GORMRepository) GetInterviews(ctx context.Context, userID string, includePublic bool) ([]models.Interview, error) {
	var interviews []models.Interview
	query := r.db.WithContext(ctx).Where("is_active = ?", true)

	if includePublic {
		if userID == "" {
			query = query.Where("user_id IS NULL")
		} else {
			query = query.Where("(user_id IS NULL OR user_id = ?)", userID)
		}
	} else {
		if userID == "" {
			return interviews, nil
		}
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Order("created_at").Find(&interviews).Error; err != nil {
		slog.Error("Failed to get interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return interviews, nil
}

// GetInterviewByID returns an interview that is public or owned by userID
func (r *GORMRepository) GetInterviewByID(ctx context.Context, interviewID string, userID string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).Where("id = ? AND (user_id IS NULL OR user_id = ?)", interviewID, userID).First(&interview).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview by ID", "error", err, "interview_id", interviewID, "user_id", userID)
		return nil, err
	}
	return &interview, nil
}

// GetInterview gets an interview by ID without an ownership check
func (r *GORMRepository) GetInterview(ctx context.Context, interviewID string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).Where("id = ?", interviewID).First(&interview).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview", "error", err, "interview_id", interviewID)
		return nil, err
	}
	return &interview, nil
}

func (r *GORMRepository) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Save(interview).Error; err != nil {
		slog.Error("Failed to update interview", "error", err, "interview_id", interview.ID)
		return err
	}
	slog.Info("Interview updated", "interview_id", interview.ID, "name", interview.Name)
	return nil
}

func (r *GORMRepository) DeleteInterview(ctx context.Context, interviewID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", interviewID).Delete(&models.Interview{}).Error; err != nil {
		slog.Error("Failed to delete interview", "error", err, "interview_id", interviewID)
		return err
	}
	slog.Info("Interview deleted", "interview_id", interviewID)
	return nil
}

// Interview session operations
func (r *GORMRepository) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		slog.Error("Failed to create interview session", "error", err)
		return err
	}
	slog.Info("Interview session created", "session_id", session.ID, "user_id", session.UserID)
	return nil
}

func (r *GORMRepository) GetInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Interview").
		Preload("Report").
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to get interview sessions", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

func (r *GORMRepository) GetInterviewSessionWithDetails(ctx context.Context, sessionID string, userID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Preload("Interview").
		Preload("Transcripts", func(db *gorm.DB) *gorm.DB { return db.Order("turn_order") }).
		Preload("Report").
		Preload("PerformanceScores").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview session with details", "error", err, "session_id", sessionID, "user_id", userID)
		return nil, err
	}
	return &session, nil
}

// GetInterviewSession gets an interview session by ID without user check
func (r *GORMRepository) GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) UpdateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	err := r.db.WithContext(ctx).
		Model(session).
		Select("Status", "EndedAt", "Duration", "Frames").
		Updates(session).Error
	if err != nil {
		slog.Error("Failed to update interview session", "error", err, "session_id", session.ID)
		return err
	}
	return nil
}

// DeleteInterviewSession soft-deletes a session together with its transcripts, report and scores
func (r *GORMRepository) DeleteInterviewSession(ctx context.Context, sessionID string) error {
	_, err := r.BulkDeleteInterviewSessions(ctx, []string{sessionID})
	return err
}

func (r *GORMRepository) BulkDeleteInterviewSessions(ctx context.Context, sessionIDs []string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.InterviewTranscript{}, &models.InterviewReport{}, &models.PerformanceScore{}} {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id IN ?", sessionIDs).Delete(&models.InterviewSession{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		slog.Error("Failed to delete interview sessions", "error", err, "count", len(sessionIDs))
		return 0, err
	}
	slog.Info("Interview sessions deleted", "count", deleted)
	return deleted, nil
}

// Transcript operations
func (r *GORMRepository) CreateInterviewTranscript(ctx context.Context, transcript *models.InterviewTranscript) error {
	if err := r.db.WithContext(ctx).Create(transcript).Error; err != nil {
		slog.Error("Failed to create interview transcript", "error", err)
		return err
	}
	slog.Debug("Interview transcript created", "transcript_id", transcript.ID, "session_id", transcript.SessionID)
	return nil
}

func (r *GORMRepository) GetInterviewTranscripts(ctx context.Context, sessionID string) ([]models.InterviewTranscript, error) {
	var transcripts []models.InterviewTranscript
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("turn_order").Find(&transcripts).Error
	if err != nil {
		slog.Error("Failed to get interview transcripts", "error", err, "session_id", sessionID)
		return nil, err
	}
	return transcripts, nil
}

// Report operations

// SaveInterviewReport inserts the report or overwrites the existing one for the session
func (r *GORMRepository) SaveInterviewReport(ctx context.Context, report *models.InterviewReport) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "strengths", "weaknesses", "recommendations", "overall_score", "face_analysis", "updated_at"}),
	}).Create(report).Error
	if err != nil {
		slog.Error("Failed to save interview report", "error", err, "session_id", report.SessionID)
		return err
	}
	slog.Info("Interview report saved", "report_id", report.ID, "session_id", report.SessionID)
	return nil
}

func (r *GORMRepository) GetInterviewReport(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	var report models.InterviewReport
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview report", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &report, nil
}

// ReplacePerformanceScores swaps the per-metric scores of a session in one transaction
func (r *GORMRepository) ReplacePerformanceScores(ctx context.Context, sessionID string, scores []models.PerformanceScore) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.PerformanceScore{}).Error; err != nil {
			return err
		}
		if len(scores) == 0 {
			return nil
		}
		return tx.Create(&scores).Error
	})
	if err != nil {
		slog.Error("Failed to save performance scores", "error", err, "session_id", sessionID)
		return err
	}
	slog.Info("Performance scores saved", "session_id", sessionID, "count", len(scores))
	return nil
}

func (r *GORMRepository) GetPerformanceScores(ctx context.Context, sessionID string) ([]models.PerformanceScore, error) {
	var scores []models.PerformanceScore
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Find(&scores).Error
	if err != nil {
		slog.Error("Failed to get performance scores", "error", err, "session_id", sessionID)
		return nil, err
	}
	return scores, nil
}
