package interview

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps aggregates the collaborators a Store orchestrates per submission. The
// expensive ones (audio decode, transcription, evaluation) run outside the
// store lock.
type Deps struct {
	Audio       AudioStore
	Transcriber Transcriber
	Evaluator   Evaluator
	Logger      *zap.Logger
}

// Store is the process-wide registry of active interview sessions. A single
// mutex guards the map and every session's mutable fields; the protected
// sections are O(1) so sessions do not serialize on each other's network I/O.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	now      func() time.Time
}

// NewStore builds an empty session store.
func NewStore(deps Deps) *Store {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Session),
		deps:     deps,
		now:      time.Now,
	}
}

// Create registers a new session over the provided questions and returns it.
func (s *Store) Create(questions []Question, metadata map[string]any) *Session {
	now := s.now()
	started := now
	session := &Session{
		ID:                uuid.New().String(),
		Questions:         questions,
		CreatedAt:         now,
		QuestionStartedAt: &started,
		Answers:           make(map[string]Answer),
		Metadata:          metadata,
	}
	if len(questions) == 0 {
		session.QuestionStartedAt = nil
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.deps.Logger.Info("interview session created",
		zap.String("session_id", session.ID),
		zap.Int("question_count", len(questions)),
	)

	return session
}

// Snapshot describes a session's progress at a point in time.
type Snapshot struct {
	SessionID      string
	CurrentIndex   int
	QuestionCount  int
	NextQuestionID string
}

// Get returns the session progress for the given id.
func (s *Store) Get(sessionID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	snap := Snapshot{
		SessionID:     session.ID,
		CurrentIndex:  session.CurrentIndex,
		QuestionCount: len(session.Questions),
	}
	if q := session.CurrentQuestion(); q != nil {
		snap.NextQuestionID = q.ID
	}
	return snap, nil
}

// SubmitRequest carries one answer submission.
type SubmitRequest struct {
	SessionID        string
	QuestionID       string
	Audio            io.Reader
	OriginalFilename string
	// ElapsedSeconds overrides the computed answer duration when the
	// caller measured it; nil means derive from the question start time.
	ElapsedSeconds *float64
}

// SubmitResult is the outcome of a processed answer.
type SubmitResult struct {
	Answer           Answer
	NextQuestionID   string
	NextQuestionText string
	HasMoreQuestions bool
	Warnings         []string
}

// SubmitAnswer processes one answer: it verifies order and reserves the
// current question under the lock, runs persistence, transcription and
// evaluation outside it, then advances the cursor. Two concurrent calls for
// the same question cannot both succeed.
func (s *Store) SubmitAnswer(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	s.mu.Lock()
	session, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	if session.Exhausted() {
		s.mu.Unlock()
		return nil, ErrSessionExhausted
	}

	expected := session.Questions[session.CurrentIndex]
	if expected.ID != req.QuestionID {
		s.mu.Unlock()
		return nil, ErrOutOfOrder
	}

	if session.pending == expected.ID {
		s.mu.Unlock()
		return nil, ErrAnswerInFlight
	}
	session.pending = expected.ID

	startedAt := s.now()
	if session.QuestionStartedAt != nil {
		startedAt = *session.QuestionStartedAt
	}
	s.mu.Unlock()

	result, err := s.processAnswer(ctx, session.ID, expected, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	session.pending = ""
	if err != nil {
		return nil, err
	}

	duration := s.answerDuration(req.ElapsedSeconds, startedAt)
	record := Answer{
		QuestionID:      expected.ID,
		QuestionText:    expected.Text,
		Transcript:      result.transcript,
		AudioPath:       result.audioPath,
		Evaluation:      result.evaluation,
		DurationSeconds: duration,
		Warnings:        result.warnings,
	}

	session.Answers[expected.ID] = record
	session.CurrentIndex++
	if session.Exhausted() {
		session.QuestionStartedAt = nil
	} else {
		next := s.now()
		session.QuestionStartedAt = &next
	}

	out := &SubmitResult{
		Answer:   record,
		Warnings: result.warnings,
	}
	if next := session.CurrentQuestion(); next != nil {
		out.NextQuestionID = next.ID
		out.NextQuestionText = next.Text
		out.HasMoreQuestions = true
	}

	s.deps.Logger.Info("interview answer recorded",
		zap.String("session_id", session.ID),
		zap.String("question_id", expected.ID),
		zap.Float64("duration_seconds", duration),
		zap.Int("warning_count", len(result.warnings)),
	)

	return out, nil
}

type processedAnswer struct {
	audioPath  string
	transcript string
	evaluation Evaluation
	warnings   []string
}

// processAnswer runs the slow pipeline without holding the store lock.
func (s *Store) processAnswer(ctx context.Context, sessionID string, question Question, req SubmitRequest) (processedAnswer, error) {
	var out processedAnswer

	audioPath, err := s.deps.Audio.Store(sessionID, question.ID, req.Audio, req.OriginalFilename)
	if err != nil {
		return out, err
	}
	out.audioPath = audioPath

	pcmPath, normWarnings := s.deps.Audio.Normalize(ctx, audioPath)
	out.warnings = append(out.warnings, normWarnings...)

	if pcmPath != "" {
		transcript, asrWarnings := s.deps.Transcriber.Transcribe(ctx, pcmPath)
		out.transcript = transcript
		out.warnings = append(out.warnings, asrWarnings...)
	}

	evaluation, evalWarnings := s.deps.Evaluator.Evaluate(ctx, question.Text, out.transcript)
	out.evaluation = evaluation
	out.warnings = append(out.warnings, evalWarnings...)

	return out, nil
}

func (s *Store) answerDuration(elapsed *float64, startedAt time.Time) float64 {
	duration := s.now().Sub(startedAt).Seconds()
	if elapsed != nil {
		duration = *elapsed
	}
	if duration < 0 {
		return 0
	}
	return duration
}

// Reset removes a single session. Removing an unknown id is not an error.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// ResetAll drops every session.
func (s *Store) ResetAll() {
	s.mu.Lock()
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
}

// EvictBefore removes sessions created before the cutoff and reports how many
// were dropped.
func (s *Store) EvictBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) && session.pending == "" {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
