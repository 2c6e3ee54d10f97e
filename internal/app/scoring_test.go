package app_test

import (
	"testing"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func bank(n int, correct string) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{ID: int64(i + 1), CorrectAnswer: correct}
	}
	return qs
}

func answer(id, question int64, choice string, seconds float64) domain.QuizAnswer {
	a := domain.QuizAnswer{ID: id, UserID: 1, QuestionID: question, ResponseTimeSeconds: &seconds}
	if choice != "" {
		a.UserAnswer = &choice
	}
	return a
}

func TestCalculateScoreMixedAnswers(t *testing.T) {
	got := app.CalculateScore([]domain.QuizAnswer{
		answer(1, 1, "A", 4),
		answer(2, 2, "C", 6),
	}, bank(3, "A"))

	want := domain.ScoreSummary{Score: 1, CorrectAnswers: 1, IncorrectAnswers: 1, SkippedAnswers: 1, AverageResponseTime: 5}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestCalculateScoreInvariants(t *testing.T) {
	questions := bank(6, "B")
	answerSets := [][]domain.QuizAnswer{
		nil,
		{answer(1, 1, "B", 1)},
		{answer(1, 1, "A", 1), answer(2, 2, "", 3), answer(3, 3, "B", 2)},
		{answer(1, 1, "B", 1), answer(2, 2, "B", 1), answer(3, 3, "B", 1), answer(4, 4, "B", 1), answer(5, 5, "B", 1), answer(6, 6, "B", 1)},
		{answer(1, 1, "C", 1), answer(2, 2, "D", 1), answer(3, 3, "A", 1)},
	}
	for i, answers := range answerSets {
		got := app.CalculateScore(answers, questions)
		if got.Score != 2*got.CorrectAnswers-got.IncorrectAnswers {
			t.Fatalf("set %d: score %d does not match 2*%d-%d", i, got.Score, got.CorrectAnswers, got.IncorrectAnswers)
		}
		if sum := got.CorrectAnswers + got.IncorrectAnswers + got.SkippedAnswers; sum != len(questions) {
			t.Fatalf("set %d: buckets sum to %d, want %d", i, sum, len(questions))
		}
		if again := app.CalculateScore(answers, questions); again != got {
			t.Fatalf("set %d: not deterministic: %+v vs %+v", i, got, again)
		}
	}
}

func TestCalculateScoreIgnoresDeletedQuestions(t *testing.T) {
	got := app.CalculateScore([]domain.QuizAnswer{
		answer(1, 1, "A", 2),
		answer(2, 99, "A", 100),
	}, bank(2, "A"))

	want := domain.ScoreSummary{Score: 2, CorrectAnswers: 1, SkippedAnswers: 1, AverageResponseTime: 2}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestCalculateScoreUsesLatestRowPerQuestion(t *testing.T) {
	got := app.CalculateScore([]domain.QuizAnswer{
		answer(3, 1, "A", 2),
		answer(1, 1, "D", 8),
	}, bank(1, "A"))

	if got.CorrectAnswers != 1 || got.IncorrectAnswers != 0 || got.AverageResponseTime != 2 {
		t.Fatalf("expected only the latest row to count, got %+v", got)
	}
}

func TestCalculateScoreAverageExcludesSkipsFromDenominator(t *testing.T) {
	got := app.CalculateScore([]domain.QuizAnswer{
		answer(1, 1, "A", 3),
		answer(2, 2, "", 4),
	}, bank(2, "A"))

	// skip time counts in the total but not in the denominator: round(7/1)
	if got.AverageResponseTime != 7 || got.SkippedAnswers != 1 {
		t.Fatalf("unexpected summary %+v", got)
	}

	none := app.CalculateScore([]domain.QuizAnswer{answer(1, 1, "", 9)}, bank(2, "A"))
	if none.AverageResponseTime != 0 || none.Score != 0 || none.SkippedAnswers != 2 {
		t.Fatalf("expected zero average with nothing answered, got %+v", none)
	}
}

func TestCalculateScoreRoundsAverage(t *testing.T) {
	got := app.CalculateScore([]domain.QuizAnswer{
		answer(1, 1, "A", 1),
		answer(2, 2, "A", 2),
	}, bank(2, "A"))
	if got.AverageResponseTime != 2 {
		t.Fatalf("expected round(1.5)=2, got %d", got.AverageResponseTime)
	}
}
