package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Password     string         `gorm:"size:255" json:"-"` // bcrypt hash, empty for OAuth-only accounts
	FullName     string         `gorm:"size:255" json:"full_name,omitempty"`
	AvatarURL    string         `gorm:"size:500" json:"avatar_url,omitempty"`
	Role         string         `gorm:"default:'user'" json:"role"`
	GoogleID     *string        `gorm:"uniqueIndex;size:64" json:"-"`
	AuthProvider string         `gorm:"size:20;default:'local'" json:"auth_provider"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Profile
	Phone           string         `gorm:"size:32" json:"phone,omitempty"`
	Headline        string         `gorm:"size:255" json:"headline,omitempty"`
	Bio             string         `gorm:"type:text" json:"bio,omitempty"`
	ExperienceLevel string         `gorm:"size:50" json:"experience_level,omitempty"`
	TargetRole      string         `gorm:"size:255" json:"target_role,omitempty"`
	Skills          datatypes.JSON `gorm:"type:jsonb" json:"skills,omitempty"` // []string
	ResumePath      string         `gorm:"size:500" json:"-"`
	ResumeMIME      string         `gorm:"size:100" json:"resume_mime,omitempty"`
	ResumeText      string         `gorm:"type:text" json:"-"`

	// Relationships
	Interviews        []Interview        `gorm:"foreignKey:UserID" json:"interviews,omitempty"`
	InterviewSessions []InterviewSession `gorm:"foreignKey:UserID" json:"interview_sessions,omitempty"`
	RefreshTokens     []RefreshToken     `gorm:"foreignKey:UserID" json:"refresh_tokens,omitempty"`
}

// HasResume reports whether extracted resume text is available for prompts.
func (u *User) HasResume() bool {
	return u.ResumeText != ""
}

type RefreshToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type PermanentToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// WaitlistEntry is a pre-launch signup
type WaitlistEntry struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Source    string    `gorm:"size:100" json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
