package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/krshsl/prepmate/models"
	"gorm.io/datatypes"
)

// ProfileStore is the persistence the profile endpoints need
type ProfileStore interface {
	UpdateUser(ctx context.Context, user *models.User) error
	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)
}

type ProfileEndpoints struct {
	store  ProfileStore
	reader DocumentReader
	cfg    UploadConfig
}

func NewProfileEndpoints(store ProfileStore, reader DocumentReader, cfg UploadConfig) *ProfileEndpoints {
	return &ProfileEndpoints{store: store, reader: reader, cfg: cfg}
}

type UpdateProfileRequest struct {
	FullName        *string  `json:"full_name" validate:"omitempty,max=255"`
	AvatarURL       *string  `json:"avatar_url" validate:"omitempty,url,max=500"`
	Phone           *string  `json:"phone" validate:"omitempty,e164"`
	Headline        *string  `json:"headline" validate:"omitempty,max=255"`
	Bio             *string  `json:"bio" validate:"omitempty,max=5000"`
	ExperienceLevel *string  `json:"experience_level" validate:"omitempty,oneof=student junior mid senior executive"`
	TargetRole      *string  `json:"target_role" validate:"omitempty,max=255"`
	Skills          []string `json:"skills" validate:"omitempty,max=50,dive,required,max=64"`
}

// apply copies the fields present in the request onto user
func (req UpdateProfileRequest) apply(user *models.User) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&user.FullName, req.FullName)
	set(&user.AvatarURL, req.AvatarURL)
	set(&user.Phone, req.Phone)
	set(&user.Headline, req.Headline)
	set(&user.Bio, req.Bio)
	set(&user.ExperienceLevel, req.ExperienceLevel)
	set(&user.TargetRole, req.TargetRole)

	if req.Skills != nil {
		raw, err := json.Marshal(req.Skills)
		if err != nil {
			return fmt.Errorf("failed to encode skills: %w", err)
		}
		user.Skills = datatypes.JSON(raw)
	}
	return nil
}

func (e *ProfileEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/profile", func(r chi.Router) {
		r.Get("/", e.GetHandler)
		r.Put("/", e.UpdateHandler)
		r.Post("/resume", e.ResumeHandler)
		r.Get("/stats", e.StatsHandler)
	})
}

func profilePayload(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"user":       user,
		"has_resume": user.HasResume(),
	}
}

func (e *ProfileEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}
	writeJSON(w, http.StatusOK, profilePayload(user))
}

func (e *ProfileEndpoints) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := req.apply(user); err != nil {
		writeError(w, err, nil)
		return
	}
	if err := e.store.UpdateUser(r.Context(), user); err != nil {
		writeError(w, fmt.Errorf("failed to update profile: %w", err), nil)
		return
	}

	slog.Info("Profile updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, profilePayload(user))
}

// ResumeHandler stores an uploaded resume and its extracted text
func (e *ProfileEndpoints) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	maxBytes := e.cfg.MaxSizeMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: resume larger than %d MB", ErrInvalidArgument, e.cfg.MaxSizeMB), nil)
			return
		}
		writeError(w, fmt.Errorf("%w: invalid multipart form", ErrInvalidArgument), nil)
		return
	}
	file, header, err := r.FormFile("resume")
	if err != nil {
		writeError(w, fmt.Errorf("%w: resume file is required", ErrInvalidArgument), nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, fmt.Errorf("failed to read resume: %w", err), nil)
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(w, fmt.Errorf("%w: resume larger than %d MB", ErrInvalidArgument, e.cfg.MaxSizeMB), nil)
		return
	}
	if len(data) == 0 {
		writeError(w, fmt.Errorf("%w: resume file is empty", ErrInvalidArgument), nil)
		return
	}

	mimeType, allowed := detectResumeType(data)
	if !allowed {
		writeError(w, fmt.Errorf("%w: unsupported resume type %s, use PDF, DOCX or plain text", ErrInvalidArgument, mimeType), nil)
		return
	}

	text, err := extractResumeText(r.Context(), e.reader, data, mimeType)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	path, err := e.save(user.ID, data, mimeType)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	previous := user.ResumePath

	user.ResumePath = path
	user.ResumeMIME = mimeType
	user.ResumeText = text
	if err := e.store.UpdateUser(r.Context(), user); err != nil {
		os.Remove(path)
		writeError(w, fmt.Errorf("failed to store resume: %w", err), nil)
		return
	}
	if previous != "" && previous != path {
		if err := os.Remove(previous); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove previous resume", "error", err, "path", previous)
		}
	}

	slog.Info("Resume uploaded", "user_id", user.ID, "file_name", header.Filename, "mime", mimeType, "size", len(data))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Resume uploaded successfully",
		"resume_mime": mimeType,
		"text_length": len([]rune(text)),
		"preview":     preview(text, 300),
	})
}

var resumeExtensions = map[string]string{
	mimePDF:  ".pdf",
	mimeDOCX: ".docx",
	mimeText: ".txt",
}

// save writes the resume under the uploads dir with a generated name
func (e *ProfileEndpoints) save(userID string, data []byte, mimeType string) (string, error) {
	dir := filepath.Join(e.cfg.Dir, "resumes", userID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+resumeExtensions[mimeType])
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to save resume: %w", err)
	}
	return path, nil
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func (e *ProfileEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	stats, err := e.store.GetUserStats(r.Context(), user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get stats: %w", err), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
