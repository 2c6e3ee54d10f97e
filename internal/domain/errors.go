package domain

import "errors"

var (
	// ErrValidation wraps every rejected payload; the wrapping message says what was wrong.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when no valid identity accompanies a request.
	ErrUnauthorized = errors.New("authentication required")
	// ErrInvalidCredentials is returned by login for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden is returned when the identity lacks the role or ownership an operation needs.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound indicates an unknown user id or username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates a case-insensitive username clash.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResultNotFound indicates the user has no saved result.
	ErrResultNotFound = errors.New("result not found")
	// ErrInvalidTransition is returned when a lifecycle transition is not allowed from the current phase.
	ErrInvalidTransition = errors.New("invalid quiz state transition")
	// ErrQuizNotActive is returned when answers or results arrive outside the phase that accepts them.
	ErrQuizNotActive = errors.New("quiz is not active")
)
