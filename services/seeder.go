package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krshsl/prepmate/models"
)

// SeedStore is the persistence the seeder needs
type SeedStore interface {
	GetInterviews(ctx context.Context, userID string, includePublic bool) ([]models.Interview, error)
	CreateInterview(ctx context.Context, interview *models.Interview) error
}

// DatabaseSeeder creates the public interviewer personas
type DatabaseSeeder struct {
	repo SeedStore
}

func NewDatabaseSeeder(repo SeedStore) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

var defaultInterviews = []models.Interview{
	{
		Name:        "Sarah Chen",
		Role:        "Software Engineer",
		Description: "Experienced technical recruiter specializing in software engineering roles",
		Personality: "Professional, encouraging, and detail-oriented. Asks thoughtful technical questions and provides constructive feedback.",
		Industry:    "Technology",
		Level:       "senior",
		Gender:      "female",
	},
	{
		Name:        "Marcus Johnson",
		Role:        "Product Manager",
		Description: "Senior product manager with expertise in product strategy and team leadership",
		Personality: "Strategic thinker who focuses on product vision, user experience, and cross-functional collaboration.",
		Industry:    "Product Management",
		Level:       "senior",
		Gender:      "male",
	},
	{
		Name:        "Dr. Emily Rodriguez",
		Role:        "Data Scientist",
		Description: "Lead data scientist with expertise in machine learning and statistical analysis",
		Personality: "Analytical and methodical, focuses on problem-solving approach and technical depth in data science.",
		Industry:    "Data Science",
		Level:       "senior",
		Gender:      "female",
	},
	{
		Name:        "Alex Thompson",
		Role:        "Frontend Developer",
		Description: "Senior frontend developer with expertise in React, Vue, and modern web technologies",
		Personality: "Creative and technically focused, emphasizes clean code, user experience, and modern development practices.",
		Industry:    "Frontend Development",
		Level:       "mid",
		Gender:      "male",
	},
	{
		Name:        "Lisa Wang",
		Role:        "Backend Engineer",
		Description: "Senior backend engineer specializing in distributed systems and cloud architecture",
		Personality: "Strict and performance-oriented, focuses on scalability, security, and system design principles.",
		Industry:    "Backend Development",
		Level:       "senior",
		Gender:      "female",
	},
	{
		Name:        "Priya Nair",
		Role:        "HR Generalist",
		Description: "People partner running culture-fit and behavioral screens for early-career candidates",
		Personality: "Friendly and supportive, puts candidates at ease and asks about motivation, teamwork and growth.",
		Industry:    "Human Resources",
		Level:       "junior",
		Gender:      "female",
	},
}

// SeedDatabase creates every missing public persona. It is safe to run on each start.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	existing, err := s.repo.GetInterviews(ctx, "", true)
	if err != nil {
		return fmt.Errorf("failed to list public interviews: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, interview := range existing {
		seen[interview.Name] = true
	}

	created := 0
	for _, tmpl := range defaultInterviews {
		if seen[tmpl.Name] {
			continue
		}
		interview := tmpl
		interview.UserID = nil
		interview.IsPublic = true
		interview.IsActive = true
		if err := s.repo.CreateInterview(ctx, &interview); err != nil {
			slog.Error("Failed to seed interview", "name", interview.Name, "error", err)
			continue
		}
		created++
	}

	slog.Info("Database seeding completed", "created", created, "existing", len(existing))
	return nil
}
