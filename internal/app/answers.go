package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
)

// AnswerSubmission is one answer as sent by a client. A nil UserAnswer is an explicit skip.
type AnswerSubmission struct {
	UserID              int64
	QuestionID          int64
	UserAnswer          *string
	ResponseTimeSeconds *float64
}

// SubmitAnswer records the caller's answer to one question. Correctness is judged
// against the question as it is right now and is not re-evaluated later. A repeat
// submission for the same question replaces the earlier one.
func (s *QuizService) SubmitAnswer(ctx context.Context, actor domain.Identity, sub AnswerSubmission) (domain.QuizAnswer, error) {
	if actor.UserID == 0 || actor.UserID != sub.UserID {
		return domain.QuizAnswer{}, domain.ErrForbidden
	}
	if sub.UserAnswer != nil && !domain.ValidAnswer(*sub.UserAnswer) {
		return domain.QuizAnswer{}, fmt.Errorf("%w: userAnswer must be one of A, B, C, D or null", domain.ErrValidation)
	}
	if sub.ResponseTimeSeconds != nil && *sub.ResponseTimeSeconds < 0 {
		return domain.QuizAnswer{}, fmt.Errorf("%w: responseTime must not be negative", domain.ErrValidation)
	}

	st, err := s.Settings(ctx)
	if err != nil {
		return domain.QuizAnswer{}, err
	}
	if st.State != domain.PhaseStarted {
		return domain.QuizAnswer{}, fmt.Errorf("%w: answers are accepted only while the quiz is started", domain.ErrQuizNotActive)
	}

	question, err := s.findQuestion(ctx, sub.QuestionID)
	if err != nil {
		return domain.QuizAnswer{}, err
	}

	answer := domain.QuizAnswer{
		UserID:              sub.UserID,
		QuestionID:          sub.QuestionID,
		UserAnswer:          sub.UserAnswer,
		ResponseTimeSeconds: sub.ResponseTimeSeconds,
		IsCorrect:           sub.UserAnswer != nil && *sub.UserAnswer == question.CorrectAnswer,
		CreatedAt:           s.now(),
	}
	if err := s.store.UpsertAnswer(ctx, &answer); err != nil {
		return domain.QuizAnswer{}, fmt.Errorf("save answer: %w", err)
	}

	outcome := "incorrect"
	switch {
	case answer.UserAnswer == nil:
		outcome = "skipped"
	case answer.IsCorrect:
		outcome = "correct"
	}
	s.metrics.Answer(outcome)
	s.logger.Debug("answer recorded",
		zap.Int64("user", answer.UserID),
		zap.Int64("question", answer.QuestionID),
		zap.String("outcome", outcome),
	)
	return answer, nil
}

func (s *QuizService) findQuestion(ctx context.Context, id int64) (domain.Question, error) {
	questions, err := s.questions.Questions(ctx)
	if err != nil {
		return domain.Question{}, fmt.Errorf("load questions: %w", err)
	}
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
