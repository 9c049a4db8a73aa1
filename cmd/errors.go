package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/auth"
	"github.com/siahsang/beatpost/internal/gate"
	"github.com/siahsang/beatpost/internal/social"
)

type AppError struct {
	ErrorStack   error
	ErrorMessage string
	ErrorDetails map[string]string
}

// fieldErrors is implemented by the typed validation errors of every form.
type fieldErrors interface {
	Details() map[string]string
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, appError *AppError) {
	app.errorResponse(w, r, http.StatusBadRequest, appError)
}

// formErrorResponse answers a body that could not be read as a form.
func (app *application) formErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesError *http.MaxBytesError
	if errors.As(err, &maxBytesError) {
		app.errorResponse(w, r, http.StatusRequestEntityTooLarge, &AppError{
			ErrorMessage: "The request body must not be larger than " + humanize.IBytes(uint64(maxBytesError.Limit)) + ".",
		})
		return
	}
	app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
}

func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, details map[string]string) {
	app.errorResponse(w, r, http.StatusUnprocessableEntity, &AppError{
		ErrorMessage: "The submitted form has errors.",
		ErrorDetails: details,
	})
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, &AppError{
		ErrorMessage: "The requested view could not be found.",
	})
}

func (app *application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, &AppError{
		ErrorMessage: "The " + r.Method + " method is not supported for this view.",
	})
}

func (app *application) internalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusInternalServerError, &AppError{ErrorStack: err,
		ErrorMessage: "An internal server error occurred.",
	})
}

// actionErrorResponse answers a failed load or action. A 401 seen during the
// request wins over everything else and sends the client to the login view.
func (app *application) actionErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if target, ok := redirectTarget(r); ok {
		app.redirectResponse(w, r, target)
		return
	}

	var (
		validation fieldErrors
		apiErr     *apiclient.Error
	)
	switch {
	case errors.As(err, &validation):
		app.failedValidationResponse(w, r, validation.Details())
	case errors.Is(err, social.ErrNotAuthenticated), errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, apiclient.ErrUnauthorized):
		app.redirectResponse(w, r, gate.LoginPath)
	case errors.Is(err, social.ErrViewClosed), errors.Is(err, context.Canceled):
		app.errorResponse(w, r, http.StatusConflict, &AppError{
			ErrorMessage: "The view was closed before the response arrived.",
		})
	case errors.Is(err, social.ErrFollowInFlight), errors.Is(err, social.ErrRatingInFlight):
		app.errorResponse(w, r, http.StatusConflict, &AppError{ErrorMessage: err.Error()})
	case errors.Is(err, social.ErrSelfFollow), errors.Is(err, social.ErrInvalidRating):
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error()})
	case errors.Is(err, social.ErrNotAuthor), errors.Is(err, apiclient.ErrForbidden):
		app.errorResponse(w, r, http.StatusForbidden, &AppError{
			ErrorMessage: apiclient.Message(err, err.Error()),
		})
	case errors.Is(err, social.ErrCommentNotFound), errors.Is(err, social.ErrPostNotLoaded),
		errors.Is(err, apiclient.ErrNotFound):
		app.errorResponse(w, r, http.StatusNotFound, &AppError{
			ErrorMessage: apiclient.Message(err, err.Error()),
		})
	case errors.Is(err, apiclient.ErrNetwork):
		app.errorResponse(w, r, http.StatusBadGateway, &AppError{ErrorStack: err,
			ErrorMessage: apiclient.NetworkErrorMessage,
		})
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		app.errorResponse(w, r, apiErr.Status, &AppError{ErrorMessage: apiErr.Message})
	case errors.As(err, &apiErr):
		app.errorResponse(w, r, http.StatusBadGateway, &AppError{ErrorStack: err,
			ErrorMessage: apiErr.Message,
		})
	default:
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, appError *AppError) {
	var attrs []slog.Attr
	attrs = append(attrs, slog.String("request_url", r.URL.String()))
	attrs = append(attrs, slog.String("request_method", r.Method))
	attrs = append(attrs, slog.Int("status", status))
	if appError.ErrorStack != nil {
		attrs = append(attrs, slog.String("stack", xerrors.Sprint(appError.ErrorStack)))
	}

	for key, valueData := range appError.ErrorDetails {
		attrs = append(attrs, slog.Any(key, valueData))
	}

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	app.logger.LogAttrs(r.Context(), level, "error in handling request", attrs...)

	data := app.envelope(envelope{
		"errorMessage": appError.ErrorMessage,
		"errorDetails": appError.ErrorDetails,
	})
	app.writeJSON(w, r, status, data, nil)
}
