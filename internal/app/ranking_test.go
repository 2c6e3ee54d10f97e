package app_test

import (
	"testing"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func result(id int64, score int) domain.Result {
	return domain.Result{ID: id, UserID: id, ScoreSummary: domain.ScoreSummary{Score: score}}
}

func TestRankResultsOrdersByScore(t *testing.T) {
	ranked := app.RankResults([]domain.Result{result(1, 3), result(2, 10), result(3, -1), result(4, 7)})

	wantOrder := []int64{2, 4, 1, 3}
	for i, r := range ranked {
		if r.ID != wantOrder[i] || *r.Rank != i+1 {
			t.Fatalf("position %d: got id=%d rank=%d, want id=%d rank=%d", i, r.ID, *r.Rank, wantOrder[i], i+1)
		}
	}
}

func TestRankResultsTiesDoNotShareRanks(t *testing.T) {
	ranked := app.RankResults([]domain.Result{result(1, 5), result(2, 8), result(3, 5), result(4, 5)})

	want := []struct {
		id   int64
		rank int
	}{{2, 1}, {1, 2}, {3, 3}, {4, 4}}
	for i, w := range want {
		if ranked[i].ID != w.id || *ranked[i].Rank != w.rank {
			t.Fatalf("position %d: got id=%d rank=%d, want id=%d rank=%d", i, ranked[i].ID, *ranked[i].Rank, w.id, w.rank)
		}
	}
}

func TestRankResultsDoesNotMutateInput(t *testing.T) {
	in := []domain.Result{result(1, 1), result(2, 2)}
	_ = app.RankResults(in)
	if in[0].ID != 1 || in[0].Rank != nil {
		t.Fatalf("input was modified: %+v", in)
	}
}
