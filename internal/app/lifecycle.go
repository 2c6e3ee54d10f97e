package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
)

// Settings returns the current quiz phase, synthesising the default when nothing is stored yet.
func (s *QuizService) Settings(ctx context.Context) (domain.QuizSetting, error) {
	st, ok, err := s.store.GetSettings(ctx)
	if err != nil {
		return domain.QuizSetting{}, fmt.Errorf("get settings: %w", err)
	}
	if !ok {
		return domain.DefaultSettings(s.now()), nil
	}
	return st, nil
}

// EnsureSettings persists the default singleton on first boot.
func (s *QuizService) EnsureSettings(ctx context.Context) (domain.QuizSetting, error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	st, ok, err := s.store.GetSettings(ctx)
	if err != nil {
		return domain.QuizSetting{}, fmt.Errorf("get settings: %w", err)
	}
	if ok {
		return st, nil
	}
	st = domain.DefaultSettings(s.now())
	if err := s.store.SaveSettings(ctx, st); err != nil {
		return domain.QuizSetting{}, fmt.Errorf("save settings: %w", err)
	}
	s.logger.Info("quiz settings initialised", zap.String("state", string(st.State)))
	return st, nil
}

// StartQuiz moves a waiting quiz to started. Admins and above only.
func (s *QuizService) StartQuiz(ctx context.Context, actor domain.Identity) (domain.QuizSetting, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.QuizSetting{}, err
	}

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	current, err := s.Settings(ctx)
	if err != nil {
		return domain.QuizSetting{}, err
	}
	if current.State != domain.PhaseWaiting {
		return domain.QuizSetting{}, fmt.Errorf("%w: cannot start from %s", domain.ErrInvalidTransition, current.State)
	}

	now := s.now()
	next := current
	next.ID = domain.SettingsID
	next.State = domain.PhaseStarted
	next.StartTime = &now
	next.EndTime = nil
	if s.duration > 0 {
		end := now.Add(s.duration)
		next.EndTime = &end
	}
	next.UpdatedAt = now
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return domain.QuizSetting{}, fmt.Errorf("save settings: %w", err)
	}

	s.armTimerLocked(next)
	s.announceLocked(ctx, next, actor)
	return next, nil
}

// FinishQuiz completes a started quiz ahead of its time limit. Admins and above only.
func (s *QuizService) FinishQuiz(ctx context.Context, actor domain.Identity) (domain.QuizSetting, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.QuizSetting{}, err
	}
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.finishLocked(ctx, nil, actor)
}

// ResetQuiz wipes every answer and result and returns the quiz to waiting.
// This is destructive and restricted to superadmins.
func (s *QuizService) ResetQuiz(ctx context.Context, actor domain.Identity) (domain.QuizSetting, error) {
	if err := requireRole(actor, domain.RoleSuperAdmin); err != nil {
		return domain.QuizSetting{}, err
	}

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()

	now := s.now()
	next := domain.QuizSetting{
		ID:        domain.SettingsID,
		State:     domain.PhaseWaiting,
		LastReset: &now,
		UpdatedAt: now,
	}
	if err := s.store.ResetCompetition(ctx, next); err != nil {
		return domain.QuizSetting{}, fmt.Errorf("reset competition: %w", err)
	}

	s.stopTimerLocked()
	s.announceLocked(ctx, next, actor)
	return next, nil
}

// Resume re-arms the completion timer after a restart, completing the quiz
// straight away if its time ran out while the process was down.
func (s *QuizService) Resume(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	current, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if current.State != domain.PhaseStarted || current.EndTime == nil {
		return nil
	}
	if !s.now().Before(*current.EndTime) {
		_, err := s.finishLocked(ctx, current.StartTime, systemIdentity)
		return err
	}
	s.armTimerLocked(current)
	return nil
}

// Stop cancels the pending completion timer.
func (s *QuizService) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.stopTimerLocked()
}

// systemIdentity marks transitions driven by the timer rather than a user.
var systemIdentity = domain.Identity{Role: domain.RoleSuperAdmin}

// finishLocked completes the quiz. A non-nil startedAt must match the stored start
// time, so a timer armed for an earlier round cannot end a later one.
func (s *QuizService) finishLocked(ctx context.Context, startedAt *time.Time, actor domain.Identity) (domain.QuizSetting, error) {
	current, err := s.Settings(ctx)
	if err != nil {
		return domain.QuizSetting{}, err
	}
	if current.State != domain.PhaseStarted {
		return domain.QuizSetting{}, fmt.Errorf("%w: cannot finish from %s", domain.ErrInvalidTransition, current.State)
	}
	if startedAt != nil && (current.StartTime == nil || !sameInstant(*current.StartTime, *startedAt)) {
		return domain.QuizSetting{}, fmt.Errorf("%w: timer belongs to a previous round", domain.ErrInvalidTransition)
	}

	now := s.now()
	next := current
	next.State = domain.PhaseCompleted
	next.EndTime = &now
	next.UpdatedAt = now
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return domain.QuizSetting{}, fmt.Errorf("save settings: %w", err)
	}

	s.stopTimerLocked()
	s.announceLocked(ctx, next, actor)
	return next, nil
}

func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

func (s *QuizService) armTimerLocked(st domain.QuizSetting) {
	s.stopTimerLocked()
	if st.State != domain.PhaseStarted || st.EndTime == nil || st.StartTime == nil {
		return
	}
	wait := st.EndTime.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	startedAt := *st.StartTime
	s.timer = time.AfterFunc(wait, func() { s.expire(startedAt) })
}

func (s *QuizService) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *QuizService) expire(startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if _, err := s.finishLocked(ctx, &startedAt, systemIdentity); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		s.logger.Error("quiz time limit: completing quiz failed", zap.Error(err))
	}
}

// announceLocked broadcasts a committed transition. It runs under lifecycleMu so
// clients observe transitions in the order they were applied.
func (s *QuizService) announceLocked(ctx context.Context, st domain.QuizSetting, actor domain.Identity) {
	s.metrics.Transition(string(st.State))
	s.logger.Info("quiz state changed",
		zap.String("state", string(st.State)),
		zap.Int64("actor", actor.UserID),
	)
	if s.publisher != nil {
		s.publisher.PublishSettings(ctx, st)
	}
}
