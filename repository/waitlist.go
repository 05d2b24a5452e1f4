package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/krshsl/prepmate/models"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when a unique constraint rejects a write
var ErrDuplicate = errors.New("duplicate record")

func (r *GORMRepository) CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		slog.Error("Failed to create waitlist entry", "error", err)
		return err
	}
	slog.Info("Waitlist entry created", "entry_id", entry.ID, "source", entry.Source)
	return nil
}

func (r *GORMRepository) GetWaitlistEntryByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get waitlist entry", "error", err)
		return nil, err
	}
	return &entry, nil
}

func (r *GORMRepository) CountWaitlistEntries(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&count).Error; err != nil {
		slog.Error("Failed to count waitlist entries", "error", err)
		return 0, err
	}
	return count, nil
}

func (r *GORMRepository) ListWaitlistEntries(ctx context.Context, limit, offset int) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		slog.Error("Failed to list waitlist entries", "error", err)
		return nil, err
	}
	return entries, nil
}
