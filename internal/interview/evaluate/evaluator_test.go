package evaluate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/leep66666/smart-job-assistant-backend/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	s.calls++
	s.lastPrompt = req.User
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestEvaluateEmptyTranscriptShortCircuits(t *testing.T) {
	stub := &stubGenerator{response: `{"overallScore": 90}`}
	evaluator := NewEvaluator(stub, nil)

	result, warnings := evaluator.Evaluate(context.Background(), "Tell me about yourself.", "   \n\t ")
	if result.OverallScore != 0 {
		t.Fatalf("expected zero score, got %v", result.OverallScore)
	}
	if len(result.Improvements) == 0 {
		t.Fatalf("expected actionable improvements on an empty transcript")
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a warning about the missing transcript")
	}
	if stub.calls != 0 {
		t.Fatalf("expected no model call for an empty transcript")
	}
}

func TestEvaluateModelResponse(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `{
		"overallScore": "87.5",
		"summary": "Strong answer",
		"strengths": ["clear structure"],
		"improvements": ["add metrics"]
	}` + "\n```"}
	evaluator := NewEvaluator(stub, nil)

	result, warnings := evaluator.Evaluate(context.Background(), "Q", "I led the migration of our billing system.")
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	// The score arrives as a string and must still decode.
	if result.OverallScore != 87.5 {
		t.Fatalf("expected score 87.5, got %v", result.OverallScore)
	}
	if result.Summary != "Strong answer" {
		t.Fatalf("unexpected summary: %s", result.Summary)
	}
	if len(result.Strengths) != 1 || len(result.Improvements) != 1 {
		t.Fatalf("expected strengths and improvements to survive decoding")
	}
	if !strings.Contains(stub.lastPrompt, "billing system") {
		t.Fatalf("expected the transcript inside the prompt")
	}
}

func TestEvaluateClampsScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		response string
		want     float64
	}{
		{`{"overallScore": 250}`, 100},
		{`{"overallScore": -5}`, 0},
	}
	for _, tc := range cases {
		evaluator := NewEvaluator(&stubGenerator{response: tc.response}, nil)
		result, _ := evaluator.Evaluate(context.Background(), "Q", "an answer with content")
		if result.OverallScore != tc.want {
			t.Fatalf("response %s: expected score %v, got %v", tc.response, tc.want, result.OverallScore)
		}
	}
}

func TestEvaluateFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		stub *stubGenerator
	}{
		{name: "model error", stub: &stubGenerator{err: errors.New("boom")}},
		{name: "not an object", stub: &stubGenerator{response: `["nope"]`}},
		{name: "not json", stub: &stubGenerator{response: "I think the answer was fine."}},
	}

	transcript := strings.Repeat("word ", 30)
	want := 40 + 1.5*30

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evaluator := NewEvaluator(tc.stub, nil)
			result, warnings := evaluator.Evaluate(context.Background(), "Q", transcript)
			if result.OverallScore != want {
				t.Fatalf("expected heuristic score %v, got %v", want, result.OverallScore)
			}
			if len(warnings) == 0 {
				t.Fatalf("expected a fallback warning")
			}
		})
	}
}

func TestEvaluateNilGeneratorUsesHeuristic(t *testing.T) {
	evaluator := NewEvaluator(nil, nil)

	result, warnings := evaluator.Evaluate(context.Background(), "Q", strings.Repeat("word ", 100))
	if result.OverallScore != 100 {
		t.Fatalf("expected the heuristic to cap at 100, got %v", result.OverallScore)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a configuration warning")
	}
}

func TestEvaluateIsTotal(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(&stubGenerator{err: errors.New("down")}, nil)
	for _, transcript := range []string{"", "one", strings.Repeat("many words here ", 50), "标准的中文回答内容"} {
		result, _ := evaluator.Evaluate(context.Background(), "Q", transcript)
		if result.OverallScore < 0 || result.OverallScore > 100 {
			t.Fatalf("transcript %q: score %v out of range", transcript, result.OverallScore)
		}
		if result.Strengths == nil || result.Improvements == nil {
			t.Fatalf("transcript %q: expected non-nil feedback lists", transcript)
		}
	}
}
