package services

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompt names
const (
	PromptJobRounds        = "job_rounds"
	PromptAnswerEvaluation = "answer_evaluation"
	PromptCrossQuestion    = "cross_question"
	PromptJobSummary       = "job_summary"
	PromptExamQuestions    = "exam_questions"
	PromptExamEvaluation   = "exam_evaluation"
	PromptSessionReport    = "session_report"
	PromptResumeExtract    = "resume_extract"
	PromptTranscribe       = "transcribe"
	PromptInterviewer      = "interviewer"
)

// Prompts is a set of named text templates
type Prompts struct {
	templates map[string]*template.Template
}

var (
	defaultPromptsOnce sync.Once
	defaultPrompts     *Prompts
	defaultPromptsErr  error
)

// DefaultPrompts returns the prompts embedded in the binary, parsed once
func DefaultPrompts() (*Prompts, error) {
	defaultPromptsOnce.Do(func() {
		defaultPrompts, defaultPromptsErr = ParsePrompts(promptsYAML)
	})
	return defaultPrompts, defaultPromptsErr
}

// ParsePrompts parses a YAML mapping of prompt name to template text
func ParsePrompts(data []byte) (*Prompts, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	funcs := template.FuncMap{"join": strings.Join}
	p := &Prompts{templates: make(map[string]*template.Template, len(raw))}
	for name, text := range raw {
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %q: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

// Render executes the named prompt with data
func (p *Prompts) Render(name string, data interface{}) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %q: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
