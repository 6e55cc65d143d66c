package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLimit returns the current limit as a duration.
func (q *LiveQuestion) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitSeconds) * time.Second
}

// Remaining is max(0, limit - elapsed), always derived from startedAt and the current limit.
func (q *LiveQuestion) Remaining(now time.Time) time.Duration {
	left := q.TimeLimit() - now.Sub(q.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds rounds up so a client countdown never shows 0 while time is left.
func (q *LiveQuestion) RemainingSeconds(now time.Time) int {
	return int(math.Ceil(q.Remaining(now).Seconds()))
}

// Expired reports whether the limit has elapsed. A zero limit means untimed.
func (q *LiveQuestion) Expired(now time.Time) bool {
	if q.TimeLimitSeconds <= 0 {
		return false
	}
	return q.Remaining(now) == 0
}

// OptionLabel returns the display identifier for a zero-based option position: A..Z, then AA, AB...
func OptionLabel(i int) string {
	if i < 0 {
		return ""
	}
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}

// LabelIndex is the inverse of OptionLabel. Letters are case-insensitive.
func LabelIndex(label string) (int, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" || len(label) > 3 {
		return -1, false
	}
	idx := 0
	for _, r := range label {
		if r < 'A' || r > 'Z' {
			return -1, false
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1, true
}

// LabeledOption pairs a display label with option text.
type LabeledOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// LabelOptions derives labels by ordinal position at read time.
func LabelOptions(options []string) []LabeledOption {
	out := make([]LabeledOption, len(options))
	for i, text := range options {
		out[i] = LabeledOption{Label: OptionLabel(i), Text: text}
	}
	return out
}

// LabelFor renders an answer as the label students saw, falling back to its text form.
func LabelFor(a AnswerValue, options []string) string {
	if a.IsIndex() && a.Index >= 0 && a.Index < len(options) {
		return OptionLabel(a.Index)
	}
	if a.IsIndex() {
		return strconv.Itoa(a.Index)
	}
	return a.String()
}
