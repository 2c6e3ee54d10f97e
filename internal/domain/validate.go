package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError turns validator output into a single ErrValidation-wrapped error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s violates %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// ValidAnswer reports whether s names one of the four options.
func ValidAnswer(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

// QuestionInput is the admin-supplied content of a question.
type QuestionInput struct {
	QuestionText  *string    `json:"questionText" form:"questionText"`
	QuestionImage *string    `json:"questionImage" form:"questionImage"`
	IsImage       bool       `json:"isImage" form:"isImage"`
	OptionA       string     `json:"optionA" form:"optionA" validate:"required"`
	OptionB       string     `json:"optionB" form:"optionB" validate:"required"`
	OptionC       string     `json:"optionC" form:"optionC" validate:"required"`
	OptionD       string     `json:"optionD" form:"optionD" validate:"required"`
	CorrectAnswer string     `json:"correctAnswer" form:"correctAnswer" validate:"required,oneof=A B C D"`
	Difficulty    Difficulty `json:"difficulty" form:"difficulty" validate:"required,oneof=easy medium hard"`
}

// NewQuestion validates in and builds a Question owned by createdBy.
func NewQuestion(in QuestionInput, createdBy int64, now time.Time) (Question, error) {
	in.OptionA = strings.TrimSpace(in.OptionA)
	in.OptionB = strings.TrimSpace(in.OptionB)
	in.OptionC = strings.TrimSpace(in.OptionC)
	in.OptionD = strings.TrimSpace(in.OptionD)
	in.QuestionText = trimmedOrNil(in.QuestionText)
	in.QuestionImage = trimmedOrNil(in.QuestionImage)

	if err := validate.Struct(in); err != nil {
		return Question{}, validationError(err)
	}
	if in.IsImage && in.QuestionImage == nil {
		return Question{}, fmt.Errorf("%w: questionImage is required for image questions", ErrValidation)
	}
	if !in.IsImage && in.QuestionText == nil {
		return Question{}, fmt.Errorf("%w: questionText is required for text questions", ErrValidation)
	}
	q := Question{
		IsImage:       in.IsImage,
		OptionA:       in.OptionA,
		OptionB:       in.OptionB,
		OptionC:       in.OptionC,
		OptionD:       in.OptionD,
		CorrectAnswer: in.CorrectAnswer,
		Difficulty:    in.Difficulty,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}
	// exactly one content mode is stored
	if in.IsImage {
		q.QuestionImage = in.QuestionImage
	} else {
		q.QuestionText = in.QuestionText
	}
	return q, nil
}

type userInput struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Role     Role   `json:"role" validate:"required,oneof=student admin superadmin"`
}

// NewUser validates the account fields. Students must name their school.
func NewUser(username, passwordHash string, role Role, school *string, now time.Time) (User, error) {
	username = strings.TrimSpace(username)
	if err := validate.Struct(userInput{Username: username, Role: role}); err != nil {
		return User{}, validationError(err)
	}
	if passwordHash == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrValidation)
	}
	school = trimmedOrNil(school)
	if role == RoleStudent && school == nil {
		return User{}, fmt.Errorf("%w: school is required for students", ErrValidation)
	}
	return User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		School:       school,
		CreatedAt:    now,
	}, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
