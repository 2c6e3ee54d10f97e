package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
)

// ResultSubmission is what a client sends when it finishes. Only UserID and
// CompletionTime are read; the score fields are advisory and always recomputed.
type ResultSubmission struct {
	UserID         int64
	Claimed        domain.ScoreSummary
	CompletionTime *int
}

// SaveResult stores the caller's authoritative result and re-ranks everyone.
func (s *QuizService) SaveResult(ctx context.Context, actor domain.Identity, sub ResultSubmission) (domain.Result, error) {
	if actor.UserID == 0 || actor.UserID != sub.UserID {
		return domain.Result{}, domain.ErrForbidden
	}
	if sub.CompletionTime != nil && *sub.CompletionTime < 0 {
		return domain.Result{}, fmt.Errorf("%w: completionTime must not be negative", domain.ErrValidation)
	}

	st, err := s.Settings(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	if st.State == domain.PhaseWaiting {
		return domain.Result{}, fmt.Errorf("%w: results are accepted only after the quiz has started", domain.ErrQuizNotActive)
	}

	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()

	summary, err := s.CalculateScore(ctx, sub.UserID)
	if err != nil {
		return domain.Result{}, err
	}
	if summary != sub.Claimed {
		s.logger.Info("client score discarded",
			zap.Int64("user", sub.UserID),
			zap.Int("claimed", sub.Claimed.Score),
			zap.Int("computed", summary.Score),
		)
	}

	now := s.now()
	completion := sub.CompletionTime
	if st.StartTime != nil {
		until := now
		if st.EndTime != nil && st.EndTime.Before(now) {
			until = *st.EndTime
		}
		elapsed := int(until.Sub(*st.StartTime).Seconds())
		completion = &elapsed
	}

	result, err := s.store.GetResultByUser(ctx, sub.UserID)
	switch {
	case errors.Is(err, domain.ErrResultNotFound):
		result = domain.Result{
			UserID:         sub.UserID,
			ScoreSummary:   summary,
			CompletionTime: completion,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.CreateResult(ctx, &result); err != nil {
			return domain.Result{}, fmt.Errorf("create result: %w", err)
		}
	case err != nil:
		return domain.Result{}, fmt.Errorf("get result: %w", err)
	default:
		result.ScoreSummary = summary
		result.CompletionTime = completion
		result.UpdatedAt = now
		if err := s.store.UpdateResult(ctx, result); err != nil {
			return domain.Result{}, fmt.Errorf("update result: %w", err)
		}
	}

	ranked, err := s.recalculateRankings(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	for _, r := range ranked {
		if r.ID == result.ID {
			result.Rank = r.Rank
			break
		}
	}
	return result, nil
}

// ResultForUser returns a stored result. Students may only read their own.
func (s *QuizService) ResultForUser(ctx context.Context, actor domain.Identity, userID int64) (domain.Result, error) {
	if actor.UserID != userID && !actor.Role.AtLeast(domain.RoleAdmin) {
		return domain.Result{}, domain.ErrForbidden
	}
	return s.store.GetResultByUser(ctx, userID)
}

// Leaderboard lists all results in rank order with the users' display fields.
func (s *QuizService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	results, err := s.store.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	byID := make(map[int64]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for _, r := range RankResults(results) {
		u := byID[r.UserID]
		entries = append(entries, domain.LeaderboardEntry{
			Rank:           *r.Rank,
			UserID:         r.UserID,
			Username:       u.Username,
			School:         u.School,
			ScoreSummary:   r.ScoreSummary,
			CompletionTime: r.CompletionTime,
		})
	}
	return entries, nil
}
