package interview

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildReportUnknownSession(t *testing.T) {
	store := newTestStore(nil)
	builder := NewReportBuilder(store, t.TempDir(), nil)

	if _, err := builder.Build("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestBuildReportPartialSession(t *testing.T) {
	store := newTestStore(nil)
	session := store.Create(testQuestions(5), nil)

	if _, err := submit(store, session.ID, "q1"); err != nil {
		t.Fatalf("submitting the first answer: %v", err)
	}

	dir := t.TempDir()
	builder := NewReportBuilder(store, dir, nil)
	report, err := builder.Build(session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Items) != 5 {
		t.Fatalf("expected all 5 questions in the report, got %d", len(report.Items))
	}
	answered := 0
	for _, item := range report.Items {
		if item.Answered {
			answered++
			if item.Transcript == nil || item.Evaluation == nil || item.DurationSeconds == nil {
				t.Fatalf("answered item %s missing details", item.QuestionID)
			}
		} else {
			if item.Transcript != nil || item.Evaluation != nil || item.DurationSeconds != nil {
				t.Fatalf("unanswered item %s must carry null details", item.QuestionID)
			}
		}
	}
	if answered != 1 {
		t.Fatalf("expected exactly one answered item, got %d", answered)
	}

	if report.Summary.AnsweredCount != 1 || report.Summary.QuestionCount != 5 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
	// The average spans answered questions only.
	if report.Summary.AverageScore == nil || *report.Summary.AverageScore != 80 {
		t.Fatalf("expected average 80 over the single answer, got %v", report.Summary.AverageScore)
	}

	path := filepath.Join(dir, report.DownloadName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected the rendered document on disk: %v", err)
	}
	markdown := string(data)
	if !strings.Contains(markdown, "(not answered)") {
		t.Fatalf("expected a not-answered marker in the document")
	}
	if !strings.Contains(markdown, "an answer") {
		t.Fatalf("expected the transcript in the document")
	}
	if report.DownloadName != session.ID+"-report.md" {
		t.Fatalf("expected a deterministic document name, got %s", report.DownloadName)
	}
}

func TestBuildReportNoAnswers(t *testing.T) {
	store := newTestStore(nil)
	session := store.Create(testQuestions(2), nil)

	builder := NewReportBuilder(store, t.TempDir(), nil)
	report, err := builder.Build(session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.AverageScore != nil {
		t.Fatalf("expected a nil average with no answers, got %v", *report.Summary.AverageScore)
	}
	if !strings.Contains(report.Markdown, "N/A") {
		t.Fatalf("expected the average marked unavailable")
	}
}

func TestBuildReportFullSession(t *testing.T) {
	store := newTestStore(nil)
	session := store.Create(testQuestions(3), nil)

	for _, id := range []string{"q1", "q2", "q3"} {
		if _, err := submit(store, session.ID, id); err != nil {
			t.Fatalf("answering %s: %v", id, err)
		}
	}

	builder := NewReportBuilder(store, t.TempDir(), nil)
	report, err := builder.Build(session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.AnsweredCount != 3 {
		t.Fatalf("expected 3 answered, got %d", report.Summary.AnsweredCount)
	}
	if report.Summary.AverageScore == nil || *report.Summary.AverageScore != 80 {
		t.Fatalf("expected average 80, got %v", report.Summary.AverageScore)
	}
}
