package models

import "errors"

// Общие ошибки
var (
	ErrNotFound       = errors.New("not found")
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
)

// Пользователи и аутентификация
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("username already exists")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("inactive user")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenMalformed     = errors.New("token is malformed")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenNotFound      = errors.New("token not found")
)

// Истории и страницы
var (
	ErrStoryNotFound        = errors.New("story not found")
	ErrPageNotFound         = errors.New("page not found")
	ErrPageNumberTaken      = errors.New("page number already exists in story")
	ErrGenerationInProgress = errors.New("story is already being generated")
	ErrUnsupportedLanguage  = errors.New("language not supported")
	ErrNoImagePrompt        = errors.New("no image prompt available for page")
	ErrContentNotEditable   = errors.New("content can only be edited on a completed story")
	ErrTaskQueueFull        = errors.New("background task capacity exhausted")
)

// Коды ошибок в ответах API.
const (
	ErrCodeBadRequest        = 40000
	ErrCodeValidation        = 40001
	ErrCodeGenerationRunning = 40002
	ErrCodeWrongCredentials  = 40100
	ErrCodeTokenInvalid      = 40101
	ErrCodeTokenExpired      = 40102
	ErrCodeForbidden         = 40300
	ErrCodeNotFound          = 40400
	ErrCodeUserNotFound      = 40401
	ErrCodeDuplicateUser     = 40900
	ErrCodeDuplicateEmail    = 40901
	ErrCodeConflict          = 40902
	ErrCodeTooManyRequests   = 42900
	ErrCodeInternal          = 50000
	ErrCodeUnavailable       = 50300
)

// ErrorResponse - тело ответа об ошибке.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DetailedError carries a caller-facing message next to a sentinel error,
// e.g. "Story 42 not found" wrapping ErrStoryNotFound.
type DetailedError struct {
	Err     error
	Message string
}

func (e *DetailedError) Error() string { return e.Message }

func (e *DetailedError) Unwrap() error { return e.Err }

// WithMessage wraps err with a message that is safe to show to API clients.
func WithMessage(err error, message string) error {
	return &DetailedError{Err: err, Message: message}
}
