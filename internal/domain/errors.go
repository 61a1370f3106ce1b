package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when the acting user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates a submitted answer ID is invalid.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrTrailNotFound indicates the trail does not exist.
	ErrTrailNotFound = errors.New("trail not found")
	// ErrRewardNotFound indicates the reward does not exist.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrAlreadyCompleted is returned once a question was answered correctly.
	ErrAlreadyCompleted = errors.New("question already answered correctly")
	// ErrMismatchedAnswer is returned when the answer belongs to another question.
	ErrMismatchedAnswer = errors.New("answer does not belong to this question")
	// ErrInsufficientBalance is returned when a purchase costs more than the balance.
	ErrInsufficientBalance = errors.New("insufficient points")
	// ErrInvalidQuestion rejects catalog writes without exactly one correct answer.
	ErrInvalidQuestion = errors.New("question must have exactly one correct answer")
)

// AlreadyCompletedError names the question that is locked for the user.
type AlreadyCompletedError struct {
	QuestionID string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("question %s already answered correctly", e.QuestionID)
}

func (e *AlreadyCompletedError) Is(target error) bool { return target == ErrAlreadyCompleted }

// InsufficientBalanceError carries what the client needs to render the refusal.
type InsufficientBalanceError struct {
	Balance int
	Cost    int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, cost %d", e.Balance, e.Cost)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// ErrorKind is the transport-neutral class of a failure.
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindConflict ErrorKind = "conflict"
	KindInvalid  ErrorKind = "invalid"
	KindInternal ErrorKind = "internal"
)

// Kind classifies err for the outer layers.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrAnswerNotFound),
		errors.Is(err, ErrTrailNotFound),
		errors.Is(err, ErrRewardNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrInsufficientBalance):
		return KindConflict
	case errors.Is(err, ErrMismatchedAnswer), errors.Is(err, ErrInvalidQuestion):
		return KindInvalid
	default:
		return KindInternal
	}
}

// ValidateQuestion enforces the write-time rule of one correct answer per question.
func ValidateQuestion(q Question) error {
	if q.Point < 0 {
		return fmt.Errorf("%w: negative point value", ErrInvalidQuestion)
	}
	correct := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuestion, correct)
	}
	return nil
}
