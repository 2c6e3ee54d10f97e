package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"timed-quiz-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64      `bun:"id,pk,autoincrement"`
	Username     string     `bun:"username,notnull"`
	PasswordHash string     `bun:"password_hash,notnull"`
	Role         string     `bun:"role,notnull"`
	School       *string    `bun:"school"`
	LastLogin    *time.Time `bun:"last_login"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newUserRow(u domain.User) userRow {
	return userRow{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		School:       u.School,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		School:       r.School,
		LastLogin:    r.LastLogin,
		CreatedAt:    r.CreatedAt,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int64     `bun:"id,pk,autoincrement"`
	QuestionText  *string   `bun:"question_text"`
	QuestionImage *string   `bun:"question_image"`
	IsImage       bool      `bun:"is_image,notnull"`
	OptionA       string    `bun:"option_a,notnull"`
	OptionB       string    `bun:"option_b,notnull"`
	OptionC       string    `bun:"option_c,notnull"`
	OptionD       string    `bun:"option_d,notnull"`
	CorrectAnswer string    `bun:"correct_answer,notnull"`
	Difficulty    string    `bun:"difficulty,notnull"`
	CreatedBy     int64     `bun:"created_by,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newQuestionRow(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		QuestionText:  q.QuestionText,
		QuestionImage: q.QuestionImage,
		IsImage:       q.IsImage,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectAnswer: q.CorrectAnswer,
		Difficulty:    string(q.Difficulty),
		CreatedBy:     q.CreatedBy,
		CreatedAt:     q.CreatedAt,
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		QuestionText:  r.QuestionText,
		QuestionImage: r.QuestionImage,
		IsImage:       r.IsImage,
		OptionA:       r.OptionA,
		OptionB:       r.OptionB,
		OptionC:       r.OptionC,
		OptionD:       r.OptionD,
		CorrectAnswer: r.CorrectAnswer,
		Difficulty:    domain.Difficulty(r.Difficulty),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers,alias:a"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       int64     `bun:"user_id,notnull"`
	QuestionID   int64     `bun:"question_id,notnull"`
	UserAnswer   *string   `bun:"user_answer"`
	ResponseTime *float64  `bun:"response_time"`
	IsCorrect    bool      `bun:"is_correct,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r answerRow) toDomain() domain.QuizAnswer {
	return domain.QuizAnswer{
		ID:                  r.ID,
		UserID:              r.UserID,
		QuestionID:          r.QuestionID,
		UserAnswer:          r.UserAnswer,
		ResponseTimeSeconds: r.ResponseTime,
		IsCorrect:           r.IsCorrect,
		CreatedAt:           r.CreatedAt,
	}
}

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID                  int64     `bun:"id,pk,autoincrement"`
	UserID              int64     `bun:"user_id,notnull"`
	Score               int       `bun:"score,notnull"`
	CorrectAnswers      int       `bun:"correct_answers,notnull"`
	IncorrectAnswers    int       `bun:"incorrect_answers,notnull"`
	SkippedAnswers      int       `bun:"skipped_answers,notnull"`
	AverageResponseTime int       `bun:"average_response_time,notnull"`
	CompletionTime      *int      `bun:"completion_time"`
	Rank                *int      `bun:"rank"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newResultRow(r domain.Result) resultRow {
	return resultRow{
		ID:                  r.ID,
		UserID:              r.UserID,
		Score:               r.Score,
		CorrectAnswers:      r.CorrectAnswers,
		IncorrectAnswers:    r.IncorrectAnswers,
		SkippedAnswers:      r.SkippedAnswers,
		AverageResponseTime: r.AverageResponseTime,
		CompletionTime:      r.CompletionTime,
		Rank:                r.Rank,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (r resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:     r.ID,
		UserID: r.UserID,
		ScoreSummary: domain.ScoreSummary{
			Score:               r.Score,
			CorrectAnswers:      r.CorrectAnswers,
			IncorrectAnswers:    r.IncorrectAnswers,
			SkippedAnswers:      r.SkippedAnswers,
			AverageResponseTime: r.AverageResponseTime,
		},
		CompletionTime: r.CompletionTime,
		Rank:           r.Rank,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type settingsRow struct {
	bun.BaseModel `bun:"table:quiz_settings,alias:s"`

	ID        int64      `bun:"id,pk"`
	State     string     `bun:"state,notnull"`
	StartTime *time.Time `bun:"start_time"`
	EndTime   *time.Time `bun:"end_time"`
	LastReset *time.Time `bun:"last_reset"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r settingsRow) toDomain() domain.QuizSetting {
	return domain.QuizSetting{
		ID:        r.ID,
		State:     domain.Phase(r.State),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		LastReset: r.LastReset,
		UpdatedAt: r.UpdatedAt,
	}
}
