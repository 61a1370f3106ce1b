package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindClassifiesWrappedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("load: %w", ErrUserNotFound), KindNotFound},
		{&AlreadyCompletedError{QuestionID: "q1"}, KindConflict},
		{&InsufficientBalanceError{Balance: 10, Cost: 15}, KindConflict},
		{ErrMismatchedAnswer, KindInvalid},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestInsufficientBalanceCarriesDetails(t *testing.T) {
	var err error = &InsufficientBalanceError{Balance: 10, Cost: 15}
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	var detail *InsufficientBalanceError
	if !errors.As(err, &detail) || detail.Balance != 10 || detail.Cost != 15 {
		t.Fatalf("expected details, got %+v", detail)
	}
}

func TestCorrectAnswerPicksFirstFlagged(t *testing.T) {
	q := Question{Answers: []Answer{
		{ID: "a1"},
		{ID: "a2", IsCorrect: true},
		{ID: "a3", IsCorrect: true},
	}}
	if got := q.CorrectAnswer(); got == nil || got.ID != "a2" {
		t.Fatalf("expected a2, got %+v", got)
	}
	if (Question{Answers: []Answer{{ID: "a1"}}}).CorrectAnswer() != nil {
		t.Fatalf("expected nil when no answer is correct")
	}
}

func TestValidateQuestionRequiresSingleCorrectAnswer(t *testing.T) {
	ok := Question{Point: 5, Answers: []Answer{{IsCorrect: true}, {}}}
	if err := ValidateQuestion(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	none := Question{Answers: []Answer{{}, {}}}
	if err := ValidateQuestion(none); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
	two := Question{Answers: []Answer{{IsCorrect: true}, {IsCorrect: true}}}
	if err := ValidateQuestion(two); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
}
