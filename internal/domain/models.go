package domain

import "time"

// Role is the privilege level attached to a user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) level() int {
	switch r {
	case RoleStudent:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.level() > 0 }

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.level() >= min.level()
}

// Identity is the authenticated caller as resolved by the auth layer.
type Identity struct {
	UserID int64
	Role   Role
}

// User is a quiz participant or administrator.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	School       *string    `json:"school"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Identity returns the identity carried by tokens issued for u.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Role: u.Role}
}

// Difficulty grades a question. It does not affect scoring.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a four-option multiple-choice question whose content is either text or an image.
type Question struct {
	ID            int64      `json:"id"`
	QuestionText  *string    `json:"questionText"`
	QuestionImage *string    `json:"questionImage"`
	IsImage       bool       `json:"isImage"`
	OptionA       string     `json:"optionA"`
	OptionB       string     `json:"optionB"`
	OptionC       string     `json:"optionC"`
	OptionD       string     `json:"optionD"`
	CorrectAnswer string     `json:"correctAnswer"`
	Difficulty    Difficulty `json:"difficulty"`
	CreatedBy     int64      `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Phase is the quiz lifecycle stage.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
)

// SettingsID is the fixed id of the QuizSetting singleton.
const SettingsID = 1

// QuizSetting is the authoritative quiz phase. Exactly one exists per process.
type QuizSetting struct {
	ID        int64      `json:"id"`
	State     Phase      `json:"state"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	LastReset *time.Time `json:"lastReset"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// DefaultSettings is the state a fresh installation starts in.
func DefaultSettings(now time.Time) QuizSetting {
	return QuizSetting{ID: SettingsID, State: PhaseWaiting, UpdatedAt: now}
}

// QuizAnswer is one user's answer to one question. A nil UserAnswer is an explicit skip.
type QuizAnswer struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"userId"`
	QuestionID          int64     `json:"questionId"`
	UserAnswer          *string   `json:"userAnswer"`
	ResponseTimeSeconds *float64  `json:"responseTime"`
	IsCorrect           bool      `json:"isCorrect"`
	CreatedAt           time.Time `json:"createdAt"`
}

// ScoreSummary is the server-derived part of a Result.
type ScoreSummary struct {
	Score               int `json:"score"`
	CorrectAnswers      int `json:"correctAnswers"`
	IncorrectAnswers    int `json:"incorrectAnswers"`
	SkippedAnswers      int `json:"skippedAnswers"`
	AverageResponseTime int `json:"averageResponseTime"`
}

// Result is a user's final standing. Score fields are always recomputed server-side.
type Result struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`
	ScoreSummary
	CompletionTime *int      `json:"completionTime"`
	Rank           *int      `json:"rank"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// LeaderboardEntry is a ranked result decorated with user display fields.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	UserID   int64   `json:"userId"`
	Username string  `json:"username"`
	School   *string `json:"school"`
	ScoreSummary
	CompletionTime *int `json:"completionTime"`
}
