package rtasr

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	_ "embed"

	"github.com/leep66666/smart-job-assistant-backend/internal/ai"

	"go.uber.org/zap"
)

//go:embed merge_prompt.md
var mergePromptTemplate string

const mergeSystemPrompt = "You are a precise text-consolidation assistant. You merge the " +
	"growing partial outputs of a real-time speech recognizer into one complete, fluent " +
	"passage. Remove duplicated content, keep the most complete information, preserve " +
	"chronological order and never invent content. Reply with the merged passage only, " +
	"without explanations or markup."

// minFragmentRunes filters out stray punctuation and noise the recognizer
// emits as standalone results. The service's finality flag is applied the
// same bar: a too-short final is not trusted.
const minFragmentRunes = 3

type contentGenerator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// Reconciler resolves the overlapping partial transcripts of one utterance
// into a single best transcript. With a generator configured it delegates the
// merge to the text-generation collaborator; without one (or when the call
// fails) it falls back to a deterministic longest-fragment heuristic. It
// never concatenates fragments naively.
type Reconciler struct {
	generator contentGenerator
	logger    *zap.Logger
}

// NewReconciler builds a reconciler. generator may be nil, which pins the
// deterministic heuristic.
func NewReconciler(generator contentGenerator, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{generator: generator, logger: log}
}

// Reconcile picks one transcript out of the collected partials. final is the
// fragment the service flagged as utterance-final, empty when none arrived.
func (r *Reconciler) Reconcile(ctx context.Context, partials []string, final string) (string, []string) {
	var warnings []string

	valid := make([]string, 0, len(partials))
	for _, partial := range partials {
		trimmed := strings.TrimSpace(partial)
		if utf8.RuneCountInString(trimmed) < minFragmentRunes {
			continue
		}
		valid = append(valid, trimmed)
	}

	final = strings.TrimSpace(final)
	if utf8.RuneCountInString(final) >= minFragmentRunes && !contains(valid, final) {
		valid = append(valid, final)
	}

	switch len(valid) {
	case 0:
		warnings = append(warnings, "The transcription service returned no usable text; the recording may be silent or too noisy.")
		return "", warnings
	case 1:
		return valid[0], warnings
	}

	if merged := r.merge(ctx, valid); merged != "" {
		return merged, warnings
	}

	return longestFragment(valid), warnings
}

// merge asks the text-generation collaborator to consolidate the fragments.
// Any failure yields an empty string so the caller falls back.
func (r *Reconciler) merge(ctx context.Context, fragments []string) string {
	if r.generator == nil {
		return ""
	}

	var list strings.Builder
	for i, fragment := range fragments {
		fmt.Fprintf(&list, "Fragment %d: %s\n", i+1, fragment)
	}
	prompt := strings.ReplaceAll(mergePromptTemplate, "{{FRAGMENTS}}", strings.TrimRight(list.String(), "\n"))

	merged, err := r.generator.Generate(ctx, ai.Request{
		System:      mergeSystemPrompt,
		User:        prompt,
		Temperature: 0,
	})
	if err != nil {
		r.logger.Warn("transcript merge via model failed, falling back to longest fragment", zap.Error(err))
		return ""
	}

	merged = strings.TrimSpace(merged)
	if merged == "" {
		return ""
	}

	r.logger.Debug("transcript fragments merged via model",
		zap.Int("fragment_count", len(fragments)),
		zap.Int("merged_length", utf8.RuneCountInString(merged)),
	)
	return merged
}

// longestFragment returns the fragment with the most letter or digit runes
// (covering CJK), a length proxy that is robust to punctuation-only noise.
func longestFragment(fragments []string) string {
	best := fragments[0]
	bestWeight := contentWeight(best)
	for _, fragment := range fragments[1:] {
		if weight := contentWeight(fragment); weight > bestWeight {
			best = fragment
			bestWeight = weight
		}
	}
	return best
}

func contentWeight(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			count++
		}
	}
	return count
}

func contains(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}
