package errx

import (
	"errors"
	"net/http"

	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
)

// WrapStage maps session errors to AppError. The message is the domain error text, which is
// written to be shown to the interactive side as guidance. Errors that already carry an
// AppError are returned unchanged.
func WrapStage(err error) error {
	if err == nil {
		return nil
	}
	var app *AppError
	if errors.As(err, &app) {
		return err
	}
	var (
		stale *session.StaleStageError
		soon  *session.TooSoonError
		last  *session.NoNextStageError
		skip  *session.InvalidSkipError
		dup   *session.DuplicateInteractionError
	)
	switch {
	case errors.As(err, &stale), errors.As(err, &soon), errors.As(err, &last), errors.As(err, &dup):
		return New(err, http.StatusConflict, err.Error())
	case errors.As(err, &skip), errors.Is(err, session.ErrEmptyInteraction):
		return New(err, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		return New(err, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionEnded):
		return New(err, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrTooManySessions):
		return New(err, http.StatusServiceUnavailable, err.Error())
	default:
		return New(err, http.StatusInternalServerError, SystemErrorMessage)
	}
}
