package service

import (
	"fmt"

	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

// Ошибки сервисов; errors.Is работает и с ними, и с базовыми apperrors
var (
	ErrInstanceNotPlayable = fmt.Errorf("%w: instance is not accepting attempts", apperrors.ErrConflict)
	ErrInstanceClosed      = fmt.Errorf("%w: instance is no longer accepting responses", apperrors.ErrConflict)
	ErrAttemptCompleted    = fmt.Errorf("%w: attempt is already completed", apperrors.ErrConflict)
	ErrQuestionNotRevealed = fmt.Errorf("%w: question is not revealed yet", apperrors.ErrConflict)
	ErrNoMoreQuestions     = fmt.Errorf("%w: all questions are already revealed", apperrors.ErrConflict)
	ErrNotAttemptOwner     = fmt.Errorf("%w: attempt belongs to another user", apperrors.ErrForbidden)
	ErrForeignAssignment   = fmt.Errorf("%w: question does not belong to this instance", apperrors.ErrValidation)
)
