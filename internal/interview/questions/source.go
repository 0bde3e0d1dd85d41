// Package questions produces the ordered question list for a new interview
// session, generated from a job description or taken from a fixed fallback
// set.
package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/leep66666/smart-job-assistant-backend/internal/ai"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"
	"github.com/leep66666/smart-job-assistant-backend/internal/logger"

	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	// maxQuestions bounds a generated batch; extra entries are truncated.
	maxQuestions = 10

	systemPrompt = "You are a senior technical interviewer. You design sharp, " +
		"role-specific interview questions and respond with JSON only."
)

var fallbackQuestions = []string{
	"Walk me through the most challenging project in your last role and the part you played in it.",
	"When facing a tight deadline, how do you balance quality against speed? Give a concrete example.",
	"Describe a time you worked with a cross-functional team. How did you resolve disagreements?",
	"If you joined our team, where do you think you could add unique value?",
	"Share a case where you proactively learned a new skill and applied it successfully at work.",
}

type contentGenerator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// Source generates interview questions. A nil generator degrades to the
// fallback set; Generate never fails.
type Source struct {
	generator       contentGenerator
	defaultDuration int
	logger          *zap.Logger
}

// NewSource builds a question source. defaultDuration applies to every
// question; zero or negative selects the standard allotment.
func NewSource(generator contentGenerator, defaultDuration int, log *zap.Logger) *Source {
	if defaultDuration <= 0 {
		defaultDuration = interview.DefaultQuestionDuration
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{generator: generator, defaultDuration: defaultDuration, logger: log}
}

// Generate returns an ordered question list for the given job description.
// A blank description, a missing generator or any generation failure falls
// back to the fixed five questions with an explanatory warning.
func (s *Source) Generate(ctx context.Context, jobDescription string) ([]interview.Question, []string) {
	var warnings []string

	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		warnings = append(warnings, "No job description supplied; using the standard question set.")
		return s.fallback(), warnings
	}
	if s.generator == nil {
		warnings = append(warnings, "Question generation model is not configured; using the standard question set.")
		return s.fallback(), warnings
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_DESCRIPTION}}", jobDescription)

	raw, err := s.generator.Generate(ctx, ai.Request{
		System:      systemPrompt,
		User:        prompt,
		Temperature: 0.7,
	})
	if err != nil {
		s.logger.Warn("question generation failed", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("Question generation failed (%v); using the standard question set.", err))
		return s.fallback(), warnings
	}

	texts := parseQuestionTexts(raw)
	if len(texts) == 0 {
		s.logger.Warn("question generation returned no usable questions",
			zap.String("response_preview", logger.TruncateForLog(raw, 200)),
		)
		warnings = append(warnings, "The model returned no usable questions; using the standard question set.")
		return s.fallback(), warnings
	}

	if len(texts) > maxQuestions {
		warnings = append(warnings, fmt.Sprintf("The model returned %d questions; truncated to %d.", len(texts), maxQuestions))
		texts = texts[:maxQuestions]
	} else if len(texts) < maxQuestions {
		warnings = append(warnings, fmt.Sprintf("The model returned only %d of %d requested questions.", len(texts), maxQuestions))
	}

	result := make([]interview.Question, 0, len(texts))
	for i, text := range texts {
		result = append(result, interview.Question{
			ID:              fmt.Sprintf("q%d", i+1),
			Text:            text,
			DurationSeconds: s.defaultDuration,
		})
	}
	return result, warnings
}

func (s *Source) fallback() []interview.Question {
	result := make([]interview.Question, 0, len(fallbackQuestions))
	for i, text := range fallbackQuestions {
		result = append(result, interview.Question{
			ID:              fmt.Sprintf("q%d", i+1),
			Text:            text,
			DurationSeconds: s.defaultDuration,
		})
	}
	return result
}

// parseQuestionTexts extracts question strings from a model response,
// tolerating code fences, prose around the JSON array and individually
// malformed entries.
func parseQuestionTexts(raw string) []string {
	cleaned := extractJSONArray(raw)
	if cleaned == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil
	}

	texts := make([]string, 0, len(items))
	for _, item := range items {
		var entry struct {
			Question  string   `json:"question"`
			Followups []string `json:"followups"`
		}
		if err := json.Unmarshal(item, &entry); err != nil {
			// Some models emit bare strings instead of objects.
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				continue
			}
			entry.Question = text
		}
		question := strings.TrimSpace(entry.Question)
		if question == "" {
			continue
		}
		texts = append(texts, question)
	}
	return texts
}

// extractJSONArray strips markdown fences and locates the outermost JSON
// array inside the response.
func extractJSONArray(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
