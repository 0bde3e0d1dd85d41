package interview

import "errors"

var (
	// ErrSessionNotFound reports an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found or expired")

	// ErrSessionExhausted reports a submission after every question has
	// been answered.
	ErrSessionExhausted = errors.New("all interview questions have been answered")

	// ErrOutOfOrder reports a submission for a question other than the
	// current one. Answers must arrive in the order questions were issued.
	ErrOutOfOrder = errors.New("answer does not match the current question")

	// ErrAnswerInFlight reports a second concurrent submission for the
	// question that is already being processed.
	ErrAnswerInFlight = errors.New("an answer for this question is already being processed")
)
