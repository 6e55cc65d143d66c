// Package scoring turns a session's response log into per-participant outcomes.
package scoring

import (
	"sort"
	"time"

	"live-session-engine/internal/answer"
	"live-session-engine/internal/domain"
)

// Result is one participant's scored session.
type Result struct {
	ParticipantID string           `json:"participantId"`
	StudentID     string           `json:"studentId,omitempty"`
	DisplayName   string           `json:"displayName"`
	Points        int              `json:"points"`
	Answered      int              `json:"answered"`
	Correct       int              `json:"correct"`
	CurrentStreak int              `json:"currentStreak"`
	BestStreak    int              `json:"bestStreak"`
	Outcomes      []domain.Outcome `json:"outcomes"`
}

// Accuracy is correct/answered, 0 when nothing was answered.
func (r Result) Accuracy() float64 {
	if r.Answered == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Answered)
}

// Perfect reports an all-correct session with at least minAnswers answers.
func (r Result) Perfect(minAnswers int) bool {
	return r.Answered >= minAnswers && r.Correct == r.Answered
}

// Evaluate scores one response against the snapshot it answered. streak is the participant's
// session streak before this response; the returned int is the streak after it.
func Evaluate(snap domain.QuestionSnapshot, resp domain.Response, attempts, streak int, settings domain.PointSettings) (domain.Outcome, int) {
	out := domain.Outcome{
		QuestionID:  snap.QuestionID,
		Attempts:    attempts,
		SubmittedAt: resp.SubmittedAt,
		Correct:     answer.IsCorrect(resp.Answer, snap.CorrectAnswer, snap.Type, snap.Options),
	}

	if !out.Correct {
		out.Points = -settings.IncorrectPenalty
		if settings.ResetStreakOnIncorrect {
			streak = 0
		}
		return out, streak
	}

	streak++
	out.BasePoints = snap.Points
	if out.BasePoints <= 0 {
		out.BasePoints = settings.PointsPerCorrect
	}
	threshold := time.Duration(settings.SpeedThresholdMs) * time.Millisecond
	if settings.SpeedBonus > 0 && resp.SubmittedAt.Sub(snap.SentAt) < threshold {
		out.SpeedBonus = settings.SpeedBonus
	}
	if attempts == 1 {
		out.FirstTryBonus = settings.FirstTryBonus
	}
	if settings.StreakBonus > 0 && streak >= settings.StreakBonusMinStreak {
		out.StreakBonus = settings.StreakBonus
	}
	out.Points = out.BasePoints + out.SpeedBonus + out.FirstTryBonus + out.StreakBonus
	return out, streak
}

type responseKey struct {
	participant string
	question    string
}

type latest struct {
	resp     domain.Response
	attempts int
}

// Score computes results for every participant of the session. Only the latest response per
// (participant, question) counts; responses to questions never broadcast are dropped.
// Questions are scored in broadcast order so streaks follow what participants saw.
func Score(s *domain.Session, responses []domain.Response, settings domain.PointSettings) []Result {
	picked := make(map[responseKey]*latest, len(responses))
	for _, r := range responses {
		if !s.WasSent(r.QuestionID) {
			continue
		}
		k := responseKey{participant: r.ParticipantID, question: r.QuestionID}
		cur, ok := picked[k]
		if !ok {
			picked[k] = &latest{resp: r, attempts: 1}
			continue
		}
		cur.attempts++
		if !r.SubmittedAt.Before(cur.resp.SubmittedAt) {
			cur.resp = r
		}
	}

	order := questionOrder(s)
	results := make([]Result, 0, len(s.Participants))
	for _, p := range s.SortedParticipants() {
		res := Result{
			ParticipantID: p.ParticipantID,
			StudentID:     p.StudentID,
			DisplayName:   p.DisplayName,
			Outcomes:      []domain.Outcome{},
		}
		streak := 0
		for _, qid := range order {
			l, ok := picked[responseKey{participant: p.ParticipantID, question: qid}]
			if !ok {
				continue
			}
			snap, _ := s.Snapshot(qid, l.resp.SubmittedAt)
			var out domain.Outcome
			out, streak = Evaluate(snap, l.resp, l.attempts, streak, settings)

			res.Outcomes = append(res.Outcomes, out)
			res.Points += out.Points
			res.Answered++
			if out.Correct {
				res.Correct++
			}
			if streak > res.BestStreak {
				res.BestStreak = streak
			}
		}
		res.CurrentStreak = streak
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Points > results[j].Points
	})
	return results
}

// questionOrder lists distinct question ids by first broadcast.
func questionOrder(s *domain.Session) []string {
	seen := make(map[string]struct{}, len(s.QuestionsSent))
	order := make([]string, 0, len(s.QuestionsSent))
	for _, q := range s.QuestionsSent {
		if _, ok := seen[q.QuestionID]; ok {
			continue
		}
		seen[q.QuestionID] = struct{}{}
		order = append(order, q.QuestionID)
	}
	return order
}
