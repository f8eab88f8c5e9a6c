package quizmanager

import (
	"fmt"

	"github.com/ggza/trivia-core/internal/domain/entity"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

// TransitionError — отклоненный переход статуса с причиной
type TransitionError struct {
	From   string
	To     string
	Reason string
	// MissingQuestions > 0, если не хватает вопросов для старта
	MissingQuestions int
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s rejected: %s", e.From, e.To, e.Reason)
}

// Unwrap позволяет errors.Is(err, apperrors.ErrConflict)
func (e *TransitionError) Unwrap() error {
	return apperrors.ErrConflict
}

// ValidateTransition проверяет допустимость перехода
// scheduled → live → completed, scheduled → cancelled.
// Повторный переход в текущий статус тоже отклоняется.
func ValidateTransition(from, to string, assigned, required int) error {
	reject := func(reason string) error {
		return &TransitionError{From: from, To: to, Reason: reason}
	}

	if from == entity.InstanceStatusCompleted || from == entity.InstanceStatusCancelled {
		return reject(fmt.Sprintf("instance is already %s", from))
	}

	switch to {
	case entity.InstanceStatusLive:
		if from != entity.InstanceStatusScheduled {
			return reject("only a scheduled instance can go live")
		}
		if assigned < required {
			missing := required - assigned
			return &TransitionError{
				From:             from,
				To:               to,
				Reason:           fmt.Sprintf("needs %d more questions (%d of %d assigned)", missing, assigned, required),
				MissingQuestions: missing,
			}
		}
	case entity.InstanceStatusCancelled:
		if from != entity.InstanceStatusScheduled {
			return reject("only a scheduled instance can be cancelled")
		}
	case entity.InstanceStatusCompleted:
		if from != entity.InstanceStatusLive {
			return reject("only a live instance can be completed")
		}
		if assigned < required {
			return &TransitionError{
				From:             from,
				To:               to,
				Reason:           fmt.Sprintf("needs %d more questions (%d of %d assigned)", required-assigned, assigned, required),
				MissingQuestions: required - assigned,
			}
		}
	default:
		return reject(fmt.Sprintf("unknown target status %q", to))
	}
	return nil
}
