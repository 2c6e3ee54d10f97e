package app

import (
	"context"
	"fmt"
	"math"

	"timed-quiz-service/internal/domain"
)

const (
	pointsCorrect    = 2
	penaltyIncorrect = 1
)

// CalculateScore derives a user's summary from their stored answers and the question bank.
// When several rows exist for one question only the latest (highest id) counts. Rows whose
// question no longer exists are ignored entirely, so correct+incorrect+skipped always equals
// the number of questions. Explicit skips add their response time to the total but not to
// the average's denominator.
func CalculateScore(answers []domain.QuizAnswer, questions []domain.Question) domain.ScoreSummary {
	byID := make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	latest := make(map[int64]domain.QuizAnswer, len(answers))
	order := make([]int64, 0, len(answers))
	for _, a := range answers {
		if _, ok := byID[a.QuestionID]; !ok {
			continue
		}
		prev, seen := latest[a.QuestionID]
		if !seen {
			order = append(order, a.QuestionID)
		}
		if !seen || a.ID > prev.ID {
			latest[a.QuestionID] = a
		}
	}

	var sum domain.ScoreSummary
	sum.SkippedAnswers = len(questions) - len(latest)

	var totalTime float64
	for _, qid := range order {
		a := latest[qid]
		if a.ResponseTimeSeconds != nil {
			totalTime += *a.ResponseTimeSeconds
		}
		switch {
		case a.UserAnswer == nil:
			sum.SkippedAnswers++
		case *a.UserAnswer == byID[qid].CorrectAnswer:
			sum.CorrectAnswers++
		default:
			sum.IncorrectAnswers++
		}
	}

	sum.Score = sum.CorrectAnswers*pointsCorrect - sum.IncorrectAnswers*penaltyIncorrect
	if answered := sum.CorrectAnswers + sum.IncorrectAnswers; answered > 0 {
		sum.AverageResponseTime = int(math.Round(totalTime / float64(answered)))
	}
	return sum
}

// CalculateScore recomputes userID's summary from what is stored right now.
func (s *QuizService) CalculateScore(ctx context.Context, userID int64) (domain.ScoreSummary, error) {
	answers, err := s.store.ListAnswersByUser(ctx, userID)
	if err != nil {
		return domain.ScoreSummary{}, fmt.Errorf("list answers: %w", err)
	}
	questions, err := s.questions.Questions(ctx)
	if err != nil {
		return domain.ScoreSummary{}, fmt.Errorf("load questions: %w", err)
	}
	return CalculateScore(answers, questions), nil
}

// ScoreForUser returns a live summary. Students may only read their own, and not
// while the quiz is running, since a running score reveals which answers were right.
func (s *QuizService) ScoreForUser(ctx context.Context, actor domain.Identity, userID int64) (domain.ScoreSummary, error) {
	if actor.Role.AtLeast(domain.RoleAdmin) {
		return s.CalculateScore(ctx, userID)
	}
	if actor.UserID == 0 || actor.UserID != userID {
		return domain.ScoreSummary{}, domain.ErrForbidden
	}
	st, err := s.Settings(ctx)
	if err != nil {
		return domain.ScoreSummary{}, err
	}
	if st.State == domain.PhaseStarted {
		return domain.ScoreSummary{}, fmt.Errorf("%w: scores are hidden while the quiz is running", domain.ErrForbidden)
	}
	return s.CalculateScore(ctx, userID)
}
