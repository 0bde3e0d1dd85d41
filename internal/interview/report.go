package interview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReportSummary aggregates a session for the report header.
type ReportSummary struct {
	SessionID     string   `json:"sessionId"`
	QuestionCount int      `json:"questionCount"`
	AnsweredCount int      `json:"answeredCount"`
	AverageScore  *float64 `json:"averageScore"`
	GeneratedAt   string   `json:"generatedAt"`
}

// ReportItem covers one question, answered or not. Unanswered questions keep
// nil transcript/evaluation/duration so the report spans the full question
// set.
type ReportItem struct {
	QuestionID      string      `json:"questionId"`
	Question        string      `json:"question"`
	Answered        bool        `json:"answered"`
	DurationSeconds *float64    `json:"durationSeconds"`
	Transcript      *string     `json:"transcript"`
	Evaluation      *Evaluation `json:"evaluation"`
	Warnings        []string    `json:"warnings"`
}

// Report is the assembled result of a completed or partial session.
type Report struct {
	Summary      ReportSummary `json:"summary"`
	Items        []ReportItem  `json:"items"`
	DownloadName string        `json:"downloadName"`
	Markdown     string        `json:"-"`
}

// ReportBuilder folds sessions into structured reports and persists the
// rendered Markdown document.
type ReportBuilder struct {
	store     *Store
	reportDir string
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportBuilder creates a builder writing documents into reportDir.
func NewReportBuilder(store *Store, reportDir string, log *zap.Logger) *ReportBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportBuilder{store: store, reportDir: reportDir, logger: log, now: time.Now}
}

// Build assembles the report for the given session and writes the Markdown
// document under a deterministic filename derived from the session id.
func (b *ReportBuilder) Build(sessionID string) (*Report, error) {
	b.store.mu.Lock()
	session, ok := b.store.sessions[sessionID]
	if !ok {
		b.store.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	items := make([]ReportItem, 0, len(session.Questions))
	total := 0.0
	answered := 0

	for _, question := range session.Questions {
		item := ReportItem{
			QuestionID: question.ID,
			Question:   question.Text,
			Warnings:   []string{},
		}
		if answer, ok := session.Answers[question.ID]; ok {
			duration := answer.DurationSeconds
			transcript := answer.Transcript
			evaluation := answer.Evaluation
			item.Answered = true
			item.DurationSeconds = &duration
			item.Transcript = &transcript
			item.Evaluation = &evaluation
			item.Warnings = answer.Warnings

			total += evaluation.OverallScore
			answered++
		}
		items = append(items, item)
	}
	questionCount := len(session.Questions)
	b.store.mu.Unlock()

	summary := ReportSummary{
		SessionID:     sessionID,
		QuestionCount: questionCount,
		AnsweredCount: answered,
		GeneratedAt:   b.now().Format("2006-01-02 15:04:05"),
	}
	if answered > 0 {
		avg := total / float64(answered)
		summary.AverageScore = &avg
	}

	report := &Report{
		Summary:      summary,
		Items:        items,
		DownloadName: sessionID + "-report.md",
	}
	report.Markdown = renderMarkdown(report)

	if err := os.MkdirAll(b.reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(b.reportDir, report.DownloadName)
	if err := os.WriteFile(path, []byte(report.Markdown), 0o644); err != nil {
		return nil, fmt.Errorf("write report document: %w", err)
	}

	b.logger.Info("interview report generated",
		zap.String("session_id", sessionID),
		zap.Int("answered", answered),
		zap.String("document", path),
	)

	return report, nil
}

func renderMarkdown(report *Report) string {
	var md strings.Builder

	md.WriteString("# Interview Assessment Report\n")
	md.WriteString(fmt.Sprintf("- Session ID: %s\n", report.Summary.SessionID))
	md.WriteString(fmt.Sprintf("- Question count: %d\n", report.Summary.QuestionCount))
	if report.Summary.AverageScore != nil {
		md.WriteString(fmt.Sprintf("- Average score: %.1f\n", *report.Summary.AverageScore))
	} else {
		md.WriteString("- Average score: N/A\n")
	}
	md.WriteString(fmt.Sprintf("- Generated at: %s\n\n", report.Summary.GeneratedAt))

	for _, item := range report.Items {
		md.WriteString(fmt.Sprintf("## Question: %s\n", item.Question))
		if !item.Answered {
			md.WriteString("- (not answered)\n\n")
			continue
		}

		md.WriteString(fmt.Sprintf("- Answer duration: %.1f seconds\n", *item.DurationSeconds))
		transcript := *item.Transcript
		if transcript == "" {
			transcript = "(no content)"
		}
		md.WriteString(fmt.Sprintf("- Transcript:\n\n%s\n\n", transcript))
		md.WriteString(fmt.Sprintf("- Score: %.1f\n", item.Evaluation.OverallScore))
		if item.Evaluation.Summary != "" {
			md.WriteString(fmt.Sprintf("- Assessment summary: %s\n", item.Evaluation.Summary))
		}
		if len(item.Evaluation.Strengths) > 0 {
			md.WriteString("- Strengths:\n")
			for _, entry := range item.Evaluation.Strengths {
				md.WriteString(fmt.Sprintf("  - %s\n", entry))
			}
		}
		if len(item.Evaluation.Improvements) > 0 {
			md.WriteString("- Improvements:\n")
			for _, entry := range item.Evaluation.Improvements {
				md.WriteString(fmt.Sprintf("  - %s\n", entry))
			}
		}
		md.WriteString("\n")
	}

	return strings.TrimRight(md.String(), "\n") + "\n"
}
