package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leep66666/smart-job-assistant-backend/internal/history"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// jobDescriptionExts are the upload types read as plain text. Rich formats
// need an extraction pipeline this service does not carry.
var jobDescriptionExts = map[string]bool{
	".txt": true,
	".md":  true,
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "message": "Service is running"})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	warnings := []string{}

	jobText := strings.TrimSpace(c.FormValue("jobDescriptionText"))
	if jobText == "" {
		text, jdWarnings, err := s.readJobDescriptionFile(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, failure(err.Error()))
		}
		jobText = text
		warnings = append(warnings, jdWarnings...)
	}

	questions, genWarnings := s.deps.Questions.Generate(c.Request().Context(), jobText)
	warnings = append(warnings, genWarnings...)

	metadata := map[string]any{}
	if jobText != "" {
		metadata["jobDescription"] = jobText
	}
	session := s.deps.Store.Create(questions, metadata)

	payload := make([]echo.Map, 0, len(questions))
	for _, q := range questions {
		payload = append(payload, echo.Map{
			"id":              q.ID,
			"text":            q.Text,
			"durationSeconds": q.DurationSeconds,
		})
	}

	var currentQuestionID any
	if len(questions) > 0 {
		currentQuestionID = questions[0].ID
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":           true,
		"sessionId":         session.ID,
		"questions":         payload,
		"currentQuestionId": currentQuestionID,
		"warnings":          warnings,
	})
}

func (s *Server) readJobDescriptionFile(c echo.Context) (string, []string, error) {
	fh, err := c.FormFile("jobDescription")
	if err != nil {
		// The job description is optional; absence selects the
		// fallback question set.
		return "", nil, nil
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !jobDescriptionExts[ext] {
		return "", nil, fmt.Errorf("unsupported job description file type %q", ext)
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("reading job description: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("reading job description: %w", err)
	}

	var warnings []string
	text := string(data)
	if runes := []rune(text); len(runes) > s.deps.MaxInputChars {
		text = string(runes[:s.deps.MaxInputChars])
		warnings = append(warnings, fmt.Sprintf("Job description was truncated to %d characters.", s.deps.MaxInputChars))
	}
	return text, warnings, nil
}

func (s *Server) handleSubmitAnswer(c echo.Context) error {
	sessionID := c.FormValue("sessionId")
	questionID := c.FormValue("questionId")
	if sessionID == "" || questionID == "" {
		return c.JSON(http.StatusBadRequest, failure("Missing sessionId or questionId"))
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure("Audio file is required."))
	}

	var elapsed *float64
	if raw := c.FormValue("elapsedSeconds"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, failure("Invalid elapsedSeconds value."))
		}
		elapsed = &value
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure("Audio file could not be read."))
	}
	defer f.Close()

	result, err := s.deps.Store.SubmitAnswer(c.Request().Context(), interview.SubmitRequest{
		SessionID:        sessionID,
		QuestionID:       questionID,
		Audio:            f,
		OriginalFilename: fh.Filename,
		ElapsedSeconds:   elapsed,
	})
	if err != nil {
		return s.sessionError(c, err)
	}

	var nextID, nextText any
	if result.HasMoreQuestions {
		nextID = result.NextQuestionID
		nextText = result.NextQuestionText
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":          true,
		"questionId":       result.Answer.QuestionID,
		"transcript":       result.Answer.Transcript,
		"evaluation":       result.Answer.Evaluation,
		"durationSeconds":  result.Answer.DurationSeconds,
		"nextQuestionId":   nextID,
		"nextQuestionText": nextText,
		"hasMoreQuestions": result.HasMoreQuestions,
		"warnings":         result.Warnings,
	})
}

func (s *Server) handleSessionStatus(c echo.Context) error {
	snap, err := s.deps.Store.Get(c.Param("id"))
	if err != nil {
		return s.sessionError(c, err)
	}

	var nextID any
	if snap.NextQuestionID != "" {
		nextID = snap.NextQuestionID
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"sessionId":      snap.SessionID,
		"currentIndex":   snap.CurrentIndex,
		"questionCount":  snap.QuestionCount,
		"nextQuestionId": nextID,
	})
}

func (s *Server) handleReport(c echo.Context) error {
	report, err := s.deps.Reports.Build(c.Param("id"))
	if err != nil {
		return s.sessionError(c, err)
	}

	if s.deps.History != nil {
		rec := history.Record{
			SessionID:     report.Summary.SessionID,
			QuestionCount: report.Summary.QuestionCount,
			AnsweredCount: report.Summary.AnsweredCount,
			AverageScore:  report.Summary.AverageScore,
			DownloadName:  report.DownloadName,
		}
		if _, err := s.deps.History.Insert(c.Request().Context(), rec); err != nil {
			s.deps.Logger.Warn("recording report history failed", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"report":      report,
		"markdown":    report.Markdown,
		"downloadUrl": "/api/files/" + report.DownloadName,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.deps.History == nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "reports": []any{}})
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			limit = value
		}
	}

	records, err := s.deps.History.ListRecent(c.Request().Context(), limit)
	if err != nil {
		s.deps.Logger.Error("listing report history failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, failure("Listing report history failed."))
	}

	payload := make([]echo.Map, 0, len(records))
	for _, rec := range records {
		payload = append(payload, echo.Map{
			"sessionId":     rec.SessionID,
			"questionCount": rec.QuestionCount,
			"answeredCount": rec.AnsweredCount,
			"averageScore":  rec.AverageScore,
			"downloadName":  rec.DownloadName,
			"createdAt":     rec.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "reports": payload})
}

func (s *Server) handleDownload(c echo.Context) error {
	name := c.Param("name")
	path, ok := s.deps.Layout.Resolve(name)
	if !ok {
		return c.JSON(http.StatusNotFound, failure(fmt.Sprintf("file not found: %s", name)))
	}
	return c.Attachment(path, filepath.Base(name))
}

// sessionError maps the engine's failure kinds onto HTTP statuses.
func (s *Server) sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, failure(err.Error()))
	case errors.Is(err, interview.ErrAnswerInFlight):
		return c.JSON(http.StatusConflict, failure(err.Error()))
	case errors.Is(err, interview.ErrSessionExhausted), errors.Is(err, interview.ErrOutOfOrder):
		return c.JSON(http.StatusBadRequest, failure(err.Error()))
	default:
		s.deps.Logger.Error("answer submission failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, failure("Processing the request failed."))
	}
}

func failure(message string) echo.Map {
	return echo.Map{"success": false, "message": message}
}
