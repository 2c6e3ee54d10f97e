package app

import (
	"context"
	"fmt"
	"sort"

	"timed-quiz-service/internal/domain"
)

// RankResults orders results by score, highest first, and numbers them 1..n.
// Equal scores keep their input order and still get distinct ranks.
func RankResults(results []domain.Result) []domain.Result {
	ranked := make([]domain.Result, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		rank := i + 1
		ranked[i].Rank = &rank
	}
	return ranked
}

// recalculateRankings re-ranks every stored result. Callers hold resultsMu.
func (s *QuizService) recalculateRankings(ctx context.Context) ([]domain.Result, error) {
	results, err := s.store.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	ranked := RankResults(results)
	ranks := make(map[int64]int, len(ranked))
	for _, r := range ranked {
		ranks[r.ID] = *r.Rank
	}
	if err := s.store.SaveRanks(ctx, ranks); err != nil {
		return nil, fmt.Errorf("save ranks: %w", err)
	}
	return ranked, nil
}
