package scoring

import (
	"strings"

	"live-session-engine/internal/domain"
)

// QuestionSummary is the live feedback shown when a question closes.
type QuestionSummary struct {
	QuestionID   string              `json:"questionId"`
	Text         string              `json:"text"`
	Type         domain.QuestionType `json:"type"`
	Responses    int                 `json:"responses"`
	Correct      int                 `json:"correct"`
	Distribution map[string]int      `json:"distribution"`
	// CorrectAnswer is the display form of the canonical answer.
	CorrectAnswer string                    `json:"correctAnswer"`
	Outcomes      map[string]domain.Outcome `json:"outcomes"`
}

// CorrectRate is correct/responses, 0 with no responses.
func (q QuestionSummary) CorrectRate() float64 {
	if q.Responses == 0 {
		return 0
	}
	return float64(q.Correct) / float64(q.Responses)
}

// SummarizeQuestion scores one question in the context of the whole session so streak bonuses
// match what the final tally will award. Outcomes are keyed by participant id.
func SummarizeQuestion(s *domain.Session, questionID string, responses []domain.Response, settings domain.PointSettings) (QuestionSummary, error) {
	var (
		snap  domain.QuestionSnapshot
		found bool
	)
	// latest broadcast for display purposes
	for _, q := range s.QuestionsSent {
		if q.QuestionID == questionID {
			snap, found = q, true
		}
	}
	if !found {
		return QuestionSummary{}, domain.ErrQuestionNotFound
	}

	sum := QuestionSummary{
		QuestionID:    questionID,
		Text:          snap.Text,
		Type:          snap.Type,
		Distribution:  Distribution(snap, LatestAnswers(responses, questionID)),
		CorrectAnswer: domain.LabelFor(snap.CorrectAnswer, snap.Options),
		Outcomes:      make(map[string]domain.Outcome),
	}
	for _, res := range Score(s, responses, settings) {
		for _, out := range res.Outcomes {
			if out.QuestionID != questionID {
				continue
			}
			sum.Outcomes[res.ParticipantID] = out
			sum.Responses++
			if out.Correct {
				sum.Correct++
			}
		}
	}
	return sum, nil
}

// LatestAnswers returns each participant's latest answer to questionID.
func LatestAnswers(responses []domain.Response, questionID string) map[string]domain.Response {
	out := make(map[string]domain.Response)
	for _, r := range responses {
		if r.QuestionID != questionID {
			continue
		}
		if cur, ok := out[r.ParticipantID]; ok && r.SubmittedAt.Before(cur.SubmittedAt) {
			continue
		}
		out[r.ParticipantID] = r
	}
	return out
}

// Distribution counts answers by the label students saw. Every option label is present even at zero.
func Distribution(snap domain.QuestionSnapshot, answers map[string]domain.Response) map[string]int {
	dist := make(map[string]int, len(snap.Options))
	for i := range snap.Options {
		dist[domain.OptionLabel(i)] = 0
	}
	for _, r := range answers {
		dist[displayKey(snap, r.Answer)]++
	}
	return dist
}

func displayKey(snap domain.QuestionSnapshot, a domain.AnswerValue) string {
	if snap.Type == domain.QuestionMultipleChoice && a.IsLabel() {
		if idx, ok := domain.LabelIndex(a.Label); ok && idx < len(snap.Options) {
			return domain.OptionLabel(idx)
		}
		for i, opt := range snap.Options {
			if strings.EqualFold(strings.TrimSpace(opt), a.Label) {
				return domain.OptionLabel(i)
			}
		}
	}
	return domain.LabelFor(a, snap.Options)
}
