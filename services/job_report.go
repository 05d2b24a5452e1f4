package services

import (
	"context"
	"fmt"
	"io"

	"github.com/krshsl/prepmate/analysis"
	"github.com/krshsl/prepmate/models"
	"github.com/xuri/excelize/v2"
)

// JobReport is the read model of a finished or running job interview
type JobReport struct {
	ID           string           `json:"id"`
	JobTitle     string           `json:"job_title"`
	Company      string           `json:"company,omitempty"`
	Status       string           `json:"status"`
	OverallScore float64          `json:"overall_score"`
	Summary      string           `json:"summary,omitempty"`
	Strengths    string           `json:"strengths,omitempty"`
	Improvements string           `json:"improvements,omitempty"`
	Rounds       []RoundReport    `json:"rounds"`
	Metrics      analysis.Summary `json:"metrics"`
	Answered     int              `json:"answered"`
	Total        int              `json:"total"`
}

type RoundReport struct {
	Name         string               `json:"name"`
	AverageScore float64              `json:"average_score"`
	Questions    []models.JobQuestion `json:"questions"`
}

// Report builds the report of a job interview
func (s *JobService) Report(ctx context.Context, userID, jobID string) (*JobReport, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return buildJobReport(job), nil
}

func buildJobReport(job *models.JobInterview) *JobReport {
	report := &JobReport{
		ID:           job.ID,
		JobTitle:     job.JobTitle,
		Company:      job.Company,
		Status:       job.Status,
		OverallScore: job.OverallScore,
		Summary:      job.Summary,
		Strengths:    job.Strengths,
		Improvements: job.Improvements,
		Metrics:      job.Metrics.Data(),
		Answered:     answeredCount(job),
		Total:        job.QuestionCount(),
	}
	for _, r := range job.Rounds {
		rr := RoundReport{Name: r.Name, Questions: r.Questions}
		var sum float64
		var n int
		for _, q := range r.Questions {
			if q.Answered() {
				sum += q.Score
				n++
			}
		}
		if n > 0 {
			rr.AverageScore = round1(sum / float64(n))
		}
		report.Rounds = append(report.Rounds, rr)
	}
	return report
}

// WriteXLSX writes the report as a workbook with a Summary and a Questions sheet
func (r *JobReport) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary, questions = "Summary", "Questions"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Job title", r.JobTitle},
		{"Company", r.Company},
		{"Status", r.Status},
		{"Overall score", r.OverallScore},
		{"Answered", fmt.Sprintf("%d/%d", r.Answered, r.Total)},
		{"Summary", r.Summary},
		{"Strengths", r.Strengths},
		{"Improvements", r.Improvements},
		{"Face presence %", r.Metrics.FacePresence},
		{"Eye contact %", r.Metrics.EyeContact},
		{"Dominant emotion", r.Metrics.DominantEmotion},
	}
	for _, rr := range r.Rounds {
		rows = append(rows, []interface{}{rr.Name + " average", rr.AverageScore})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	if err := f.SetColWidth(summary, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(summary, "B", "B", 80); err != nil {
		return err
	}

	if _, err := f.NewSheet(questions); err != nil {
		return fmt.Errorf("failed to create questions sheet: %w", err)
	}
	header := []interface{}{"Round", "Follow-up", "Question", "Answer", "Score", "Feedback"}
	if err := f.SetSheetRow(questions, "A1", &header); err != nil {
		return fmt.Errorf("failed to write questions header: %w", err)
	}
	line := 2
	for _, rr := range r.Rounds {
		for _, q := range rr.Questions {
			cell, _ := excelize.CoordinatesToCellName(1, line)
			row := []interface{}{rr.Name, q.IsCross, q.Text, q.Answer, q.Score, q.Feedback}
			if err := f.SetSheetRow(questions, cell, &row); err != nil {
				return fmt.Errorf("failed to write question row: %w", err)
			}
			line++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
