package session

import (
	"strings"
	"unicode"
)

// InteractionResult reports the stage counter after an accepted question.
type InteractionResult struct {
	Stage     string `json:"stage"`
	Count     int    `json:"count"`
	Minimum   int    `json:"minimum"`
	Remaining int    `json:"remaining_to_minimum"`
}

// normalizeQuestion lowercases, trims and strips trailing punctuation.
func normalizeQuestion(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return strings.Join(strings.Fields(s), " ")
}

// RecordInteraction counts a question against the current stage. Questions that equal,
// contain, or are contained by any earlier question in the session are rejected.
func (e *Engine) RecordInteraction(text string) (InteractionResult, error) {
	if e.st.ended {
		return InteractionResult{}, ErrSessionEnded
	}
	norm := normalizeQuestion(text)
	if norm == "" {
		return InteractionResult{}, ErrEmptyInteraction
	}
	for _, prev := range e.st.interactions {
		if prev.Normalized == norm || strings.Contains(prev.Normalized, norm) || strings.Contains(norm, prev.Normalized) {
			e.log.Debug().Str("text", text).Str("previous", prev.Text).Msg("duplicate question rejected")
			return InteractionResult{}, &DuplicateInteractionError{Text: text, Previous: prev.Text}
		}
	}

	e.st.interactions = append(e.st.interactions, Interaction{
		Text:       strings.TrimSpace(text),
		Normalized: norm,
		Stage:      e.st.stage,
		At:         e.clock.Now(),
	})
	e.st.interactionsPerStage[e.st.stage]++

	qs := e.QuestionStatus()
	return InteractionResult{
		Stage:     e.st.stage,
		Count:     qs.Asked,
		Minimum:   qs.Minimum,
		Remaining: qs.RemainingToMinimum,
	}, nil
}

// Interactions returns the ordered question log.
func (e *Engine) Interactions() []Interaction {
	return append([]Interaction(nil), e.st.interactions...)
}
