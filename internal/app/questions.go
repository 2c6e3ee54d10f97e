package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
)

// ImageUpload is an image attached to a question create or update.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ListQuestions returns the full bank.
func (s *QuizService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.store.ListQuestions(ctx)
}

// CreateQuestion validates and stores a new question. Admins and above only.
func (s *QuizService) CreateQuestion(ctx context.Context, actor domain.Identity, in domain.QuestionInput, image *ImageUpload) (domain.Question, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Question{}, err
	}
	if err := s.attachImage(ctx, &in, image); err != nil {
		return domain.Question{}, err
	}
	q, err := domain.NewQuestion(in, actor.UserID, s.now())
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.store.CreateQuestion(ctx, &q); err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	s.invalidateBank(ctx)
	return q, nil
}

// UpdateQuestion replaces a question's content. Answers already recorded keep
// the correctness they were judged with.
func (s *QuizService) UpdateQuestion(ctx context.Context, actor domain.Identity, id int64, in domain.QuestionInput, image *ImageUpload) (domain.Question, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Question{}, err
	}
	existing, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.attachImage(ctx, &in, image); err != nil {
		return domain.Question{}, err
	}
	q, err := domain.NewQuestion(in, existing.CreatedBy, existing.CreatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	q.ID = existing.ID
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	s.invalidateBank(ctx)
	return q, nil
}

// DeleteQuestion removes a question. Stored answers to it stop counting towards scores.
func (s *QuizService) DeleteQuestion(ctx context.Context, actor domain.Identity, id int64) error {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidateBank(ctx)
	return nil
}

func (s *QuizService) attachImage(ctx context.Context, in *domain.QuestionInput, image *ImageUpload) error {
	if image == nil {
		return nil
	}
	if s.images == nil {
		return fmt.Errorf("%w: image uploads are not configured", domain.ErrValidation)
	}
	if !strings.HasPrefix(image.ContentType, "image/") {
		return fmt.Errorf("%w: questionImage must be an image", domain.ErrValidation)
	}
	name := uuid.NewString() + strings.ToLower(path.Ext(image.Filename))
	ref, err := s.images.Put(ctx, name, image.Body, image.Size, image.ContentType)
	if err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	in.IsImage = true
	in.QuestionImage = &ref
	return nil
}

func (s *QuizService) invalidateBank(ctx context.Context) {
	if err := s.questions.Invalidate(ctx); err != nil {
		s.logger.Warn("question bank invalidation failed", zap.Error(err))
	}
}
