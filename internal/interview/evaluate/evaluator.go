// Package evaluate scores a transcribed interview answer against its
// question, with a deterministic heuristic when the scoring model is
// unavailable.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/leep66666/smart-job-assistant-backend/internal/ai"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"
	"github.com/leep66666/smart-job-assistant-backend/internal/logger"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const systemPrompt = "You are an experienced interview coach. " +
	"Return strict JSON with keys overallScore (0-100), summary (string), " +
	"strengths (array of strings), improvements (array of strings). " +
	"Focus on relevance, structure, and communication."

type contentGenerator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// Evaluator scores answers. A nil generator pins the heuristic path;
// Evaluate is total and never raises.
type Evaluator struct {
	generator contentGenerator
	logger    *zap.Logger
}

// NewEvaluator builds an evaluator. generator may be nil.
func NewEvaluator(generator contentGenerator, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{generator: generator, logger: log}
}

// Evaluate scores the transcript for the given question. An empty transcript
// short-circuits to a zero-score result; model failures degrade to a
// word-count heuristic, each path attaching an explanatory warning.
func (e *Evaluator) Evaluate(ctx context.Context, questionText, transcript string) (interview.Evaluation, []string) {
	var warnings []string

	if strings.TrimSpace(transcript) == "" {
		warnings = append(warnings, "No usable transcript was captured; consider re-recording the answer.")
		return interview.Evaluation{
			OverallScore: 0,
			Summary:      "No answer content was recognized.",
			Strengths:    []string{},
			Improvements: []string{"Make sure the microphone works and record the answer again."},
		}, warnings
	}

	if e.generator != nil {
		result, err := e.evaluateWithModel(ctx, questionText, transcript)
		if err == nil {
			return result, warnings
		}
		e.logger.Warn("model evaluation failed, falling back to heuristic", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("Scoring model call failed (%v); a heuristic score was used instead.", err))
	} else {
		warnings = append(warnings, "Scoring model is not configured; a heuristic score was used instead.")
	}

	return heuristicEvaluation(transcript), warnings
}

func (e *Evaluator) evaluateWithModel(ctx context.Context, questionText, transcript string) (interview.Evaluation, error) {
	payload, err := json.Marshal(map[string]string{
		"question":         questionText,
		"answerTranscript": transcript,
	})
	if err != nil {
		return interview.Evaluation{}, fmt.Errorf("marshal evaluation payload: %w", err)
	}

	raw, err := e.generator.Generate(ctx, ai.Request{
		System:      systemPrompt,
		User:        string(payload),
		Temperature: 0.3,
	})
	if err != nil {
		return interview.Evaluation{}, err
	}

	result, err := parseEvaluation(raw)
	if err != nil {
		e.logger.Warn("unparsable evaluation response",
			zap.String("response_preview", logger.TruncateForLog(raw, 200)),
		)
		return interview.Evaluation{}, err
	}
	return result, nil
}

// parseEvaluation decodes the model response, requiring a JSON object. The
// loosely-typed map is normalized into the fixed schema with weak typing so
// a score transmitted as a string still decodes.
func parseEvaluation(raw string) (interview.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return interview.Evaluation{}, fmt.Errorf("parse evaluation response: %w", err)
	}

	var result interview.Evaluation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return interview.Evaluation{}, err
	}
	if err := decoder.Decode(data); err != nil {
		return interview.Evaluation{}, fmt.Errorf("decode evaluation response: %w", err)
	}

	result.OverallScore = clampScore(result.OverallScore)
	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.Improvements == nil {
		result.Improvements = []string{}
	}
	return result, nil
}

// heuristicEvaluation derives a score from the answer length with tiered
// canned feedback, guaranteeing a result without any external service.
func heuristicEvaluation(transcript string) interview.Evaluation {
	wordCount := len(strings.Fields(transcript))
	score := math.Min(100, 40+1.5*float64(wordCount))
	score = math.Round(score*10) / 10

	var feedback string
	switch {
	case wordCount < 20:
		feedback = "The answer is quite brief; add details and concrete examples."
	case wordCount < 60:
		feedback = "The answer covers the key points; highlight outcomes and quantified results further."
	default:
		feedback = "The answer is fairly complete; keep the structure clear and the key points prominent."
	}

	return interview.Evaluation{
		OverallScore: score,
		Summary:      feedback,
		Strengths: []string{
			fmt.Sprintf("Automatic assessment: the answer contains %d words, indicating a reasonably complete response.", wordCount),
		},
		Improvements: []string{
			"Connect a real scoring model for more detailed feedback.",
		},
	}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// extractJSON strips markdown code fences around a model response.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
