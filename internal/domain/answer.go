package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnswerKind tags which member of AnswerValue is set.
type AnswerKind string

const (
	AnswerIndex AnswerKind = "index"
	AnswerLabel AnswerKind = "label"
	AnswerBool  AnswerKind = "bool"
)

// AnswerValue is a submitted or canonical answer decoded once at ingestion.
// Authoring tools encode answers as option indexes, letters, literal strings or
// booleans; the shape is decided here so comparisons never sniff raw data.
type AnswerValue struct {
	Kind  AnswerKind
	Index int
	Label string
	Bool  bool
}

func IndexAnswer(i int) AnswerValue { return AnswerValue{Kind: AnswerIndex, Index: i} }
func LabelAnswer(s string) AnswerValue { return AnswerValue{Kind: AnswerLabel, Label: s} }
func BoolAnswer(b bool) AnswerValue { return AnswerValue{Kind: AnswerBool, Bool: b} }
func (a AnswerValue) IsZero() bool { return a.Kind == "" }
func (a AnswerValue) IsIndex() bool { return a.Kind == AnswerIndex }
func (a AnswerValue) IsBool() bool { return a.Kind == AnswerBool }
func (a AnswerValue) IsLabel() bool { return a.Kind == AnswerLabel }

// ParseAnswer decodes an untyped value (typically from JSON) into an AnswerValue.
// Integral numbers and integral numeric strings become indexes.
func ParseAnswer(raw any) (AnswerValue, error) {
	switch v := raw.(type) {
	case nil:
		return AnswerValue{}, ErrInvalidAnswerShape
	case AnswerValue:
		if v.IsZero() {
			return AnswerValue{}, ErrInvalidAnswerShape
		}
		return v, nil
	case bool:
		return BoolAnswer(v), nil
	case int:
		return IndexAnswer(v), nil
	case int32:
		return IndexAnswer(int(v)), nil
	case int64:
		return IndexAnswer(int(v)), nil
	case float32:
		return parseFloatAnswer(float64(v)), nil
	case float64:
		return parseFloatAnswer(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return IndexAnswer(int(i)), nil
		}
		return LabelAnswer(v.String()), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return AnswerValue{}, ErrInvalidAnswerShape
		}
		if i, err := strconv.Atoi(s); err == nil {
			return IndexAnswer(i), nil
		}
		return LabelAnswer(s), nil
	default:
		return AnswerValue{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidAnswerShape, raw)
	}
}

func parseFloatAnswer(f float64) AnswerValue {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return IndexAnswer(int(f))
	}
	return LabelAnswer(strconv.FormatFloat(f, 'f', -1, 64))
}

// String renders the value the way a text comparison sees it.
func (a AnswerValue) String() string {
	switch a.Kind {
	case AnswerIndex:
		return strconv.Itoa(a.Index)
	case AnswerBool:
		return strconv.FormatBool(a.Bool)
	default:
		return a.Label
	}
}

// Raw returns the plain Go value for serialization.
func (a AnswerValue) Raw() any {
	switch a.Kind {
	case AnswerIndex:
		return a.Index
	case AnswerBool:
		return a.Bool
	case AnswerLabel:
		return a.Label
	default:
		return nil
	}
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Raw())
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*a = AnswerValue{}
		return nil
	}
	v, err := ParseAnswer(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
