// Package answer decides whether a submitted answer matches a question's canonical answer.
package answer

import (
	"strconv"
	"strings"

	"live-session-engine/internal/domain"
)

// strategy compares one question type. ok=false means the submission could not be normalized.
type strategy func(submitted, correct domain.AnswerValue, options []string) (match bool, ok bool)

var strategies = map[domain.QuestionType]strategy{
	domain.QuestionMultipleChoice: compareMultipleChoice,
	domain.QuestionTrueFalse:      compareTrueFalse,
	domain.QuestionNumeric:        compareNumeric,
}

// Compare reports whether submitted matches correct for the question type.
// A non-nil error is always domain.ErrInvalidAnswerShape and the answer counts as incorrect.
func Compare(submitted, correct domain.AnswerValue, qType domain.QuestionType, options []string) (bool, error) {
	if submitted.IsZero() || correct.IsZero() {
		return false, domain.ErrInvalidAnswerShape
	}
	cmp, found := strategies[qType]
	if !found {
		cmp = compareText
	}
	match, ok := cmp(submitted, correct, options)
	if !ok {
		return false, domain.ErrInvalidAnswerShape
	}
	return match, nil
}

// IsCorrect is Compare with shape errors folded into "incorrect".
func IsCorrect(submitted, correct domain.AnswerValue, qType domain.QuestionType, options []string) bool {
	match, _ := Compare(submitted, correct, qType, options)
	return match
}

func compareMultipleChoice(submitted, correct domain.AnswerValue, options []string) (bool, bool) {
	want, indexed := correctIndex(correct, options)
	if indexed {
		got, ok := optionIndex(submitted, options)
		if !ok {
			return false, submitted.IsLabel()
		}
		return got == want, true
	}
	if correct.IsBool() {
		return compareTrueFalse(submitted, correct, options)
	}
	return textMatches(submitted, correct, options), true
}

// correctIndex resolves the canonical answer to an option position when it names one.
func correctIndex(correct domain.AnswerValue, options []string) (int, bool) {
	switch {
	case correct.IsIndex():
		return indexOrText(correct.Index, options)
	case correct.IsLabel():
		if idx, ok := labelInRange(correct.Label, options); ok {
			return idx, true
		}
		if idx, ok := optionTextIndex(correct.Label, options); ok {
			return idx, true
		}
	}
	return -1, false
}

// optionIndex maps a submission to an option position: index, display label, or literal option text.
func optionIndex(submitted domain.AnswerValue, options []string) (int, bool) {
	switch {
	case submitted.IsIndex():
		return indexOrText(submitted.Index, options)
	case submitted.IsLabel():
		if idx, ok := labelInRange(submitted.Label, options); ok {
			return idx, true
		}
		return optionTextIndex(submitted.Label, options)
	}
	return -1, false
}

// indexOrText keeps an in-range index. Numeric option text such as "20" parses as an index,
// so an out-of-range value is retried as literal option text.
func indexOrText(idx int, options []string) (int, bool) {
	if idx >= 0 && idx < len(options) {
		return idx, true
	}
	if textIdx, ok := optionTextIndex(strconv.Itoa(idx), options); ok {
		return textIdx, true
	}
	return idx, idx >= 0
}

// labelInRange accepts a letter label when it names an existing option.
// Without options only single letters are trusted.
func labelInRange(label string, options []string) (int, bool) {
	label = strings.TrimSpace(label)
	if len(options) == 0 && len(label) != 1 {
		return -1, false
	}
	idx, ok := domain.LabelIndex(label)
	if !ok {
		return -1, false
	}
	if len(options) > 0 && idx >= len(options) {
		return -1, false
	}
	return idx, true
}

func optionTextIndex(text string, options []string) (int, bool) {
	text = normalize(text)
	for i, opt := range options {
		if normalize(opt) == text {
			return i, true
		}
	}
	return -1, false
}

func compareTrueFalse(submitted, correct domain.AnswerValue, _ []string) (bool, bool) {
	want, ok := truthValue(correct)
	if !ok {
		return false, false
	}
	got, ok := truthValue(submitted)
	if !ok {
		return false, false
	}
	return got == want, true
}

func truthValue(v domain.AnswerValue) (bool, bool) {
	switch {
	case v.IsBool():
		return v.Bool, true
	case v.IsIndex():
		switch v.Index {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	case v.IsLabel():
		switch normalize(v.Label) {
		case "false":
			return false, true
		case "true":
			return true, true
		}
	}
	return false, false
}

func compareNumeric(submitted, correct domain.AnswerValue, options []string) (bool, bool) {
	a, aok := parseNumber(submitted)
	b, bok := parseNumber(correct)
	if aok && bok {
		return a == b, true
	}
	return compareText(submitted, correct, options)
}

func parseNumber(v domain.AnswerValue) (float64, bool) {
	if v.IsIndex() {
		return float64(v.Index), true
	}
	if v.IsLabel() {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Label), 64)
		return f, err == nil
	}
	return 0, false
}

func compareText(submitted, correct domain.AnswerValue, options []string) (bool, bool) {
	return textMatches(submitted, correct, options), true
}

// textMatches is trimmed case-insensitive equality. An index submission is also tried as its
// display label and option text.
func textMatches(submitted, correct domain.AnswerValue, options []string) bool {
	want := normalize(correct.String())
	candidates := []string{submitted.String()}
	if submitted.IsIndex() && submitted.Index >= 0 {
		candidates = append(candidates, domain.OptionLabel(submitted.Index))
		if submitted.Index < len(options) {
			candidates = append(candidates, options[submitted.Index])
		}
	}
	for _, c := range candidates {
		if normalize(c) == want {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
