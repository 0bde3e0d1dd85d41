// Package interview holds the mock-interview session engine: question and
// answer types, the concurrency-guarded session store and report building.
package interview

import (
	"context"
	"io"
	"time"
)

// DefaultQuestionDuration is the answer time allotted to a question unless
// configured otherwise.
const DefaultQuestionDuration = 180

// Question is one interview question issued to a session. Immutable once
// created.
type Question struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Evaluation is the normalized scoring result for a single answer.
type Evaluation struct {
	OverallScore float64  `json:"overallScore" mapstructure:"overallScore"`
	Summary      string   `json:"summary" mapstructure:"summary"`
	Strengths    []string `json:"strengths" mapstructure:"strengths"`
	Improvements []string `json:"improvements" mapstructure:"improvements"`
}

// Answer records one processed submission. Created exactly once per question
// and immutable thereafter.
type Answer struct {
	QuestionID      string     `json:"questionId"`
	QuestionText    string     `json:"questionText"`
	Transcript      string     `json:"transcript"`
	AudioPath       string     `json:"audioPath"`
	Evaluation      Evaluation `json:"evaluation"`
	DurationSeconds float64    `json:"durationSeconds"`
	Warnings        []string   `json:"warnings"`
}

// Session is one end-to-end interview attempt: an ordered question list plus
// accumulated answers and a cursor. All mutable fields are guarded by the
// owning Store's lock.
type Session struct {
	ID                string
	Questions         []Question
	CurrentIndex      int
	CreatedAt         time.Time
	QuestionStartedAt *time.Time
	Answers           map[string]Answer
	Metadata          map[string]any

	// pending holds the id of a question whose submission is being
	// processed outside the lock. It blocks a second concurrent
	// submission for the same slot.
	pending string
}

// Exhausted reports whether every question has been answered.
func (s *Session) Exhausted() bool {
	return s.CurrentIndex >= len(s.Questions)
}

// CurrentQuestion returns the pending question, or nil when the session is
// exhausted.
func (s *Session) CurrentQuestion() *Question {
	if s.Exhausted() {
		return nil
	}
	q := s.Questions[s.CurrentIndex]
	return &q
}

// AudioStore persists and normalizes submitted answer audio.
type AudioStore interface {
	// Store writes the raw blob under a collision-resistant name and
	// returns the absolute path.
	Store(sessionID, questionID string, r io.Reader, originalFilename string) (string, error)
	// Normalize converts the stored file to mono 16 kHz 16-bit PCM.
	// A missing or failing decode tool yields an empty path plus
	// warnings, never an error.
	Normalize(ctx context.Context, audioPath string) (string, []string)
}

// Transcriber turns a normalized PCM file into a transcript. It owns the PCM
// file and removes it on every exit path. Failures degrade to an empty
// transcript with warnings.
type Transcriber interface {
	Transcribe(ctx context.Context, pcmPath string) (string, []string)
}

// Evaluator scores a transcript against its question. Total over its input
// domain: it always returns a well-formed result.
type Evaluator interface {
	Evaluate(ctx context.Context, questionText, transcript string) (Evaluation, []string)
}
