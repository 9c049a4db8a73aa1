package fakeapi

import (
	"log/slog"
	"net/http"

	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/web"
)

type AppError struct {
	ErrorStack   error
	ErrorMessage string
	ErrorDetails map[string]string
}

// validationIssue mirrors one entry of a 422 "detail" list.
type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (s *Server) badRequestResponse(w http.ResponseWriter, r *http.Request, message string) {
	s.errorResponse(w, r, http.StatusBadRequest, &AppError{ErrorMessage: message})
}

func (s *Server) notFoundResponse(w http.ResponseWriter, r *http.Request, message string) {
	s.errorResponse(w, r, http.StatusNotFound, &AppError{ErrorMessage: message})
}

func (s *Server) forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	s.errorResponse(w, r, http.StatusForbidden, &AppError{ErrorMessage: message})
}

func (s *Server) invalidCredentialsResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.errorResponse(w, r, http.StatusUnauthorized, &AppError{
		ErrorStack:   err,
		ErrorMessage: "Could not validate credentials",
	})
}

func (s *Server) internalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.errorResponse(w, r, http.StatusInternalServerError, &AppError{
		ErrorStack:   err,
		ErrorMessage: "Internal server error",
	})
}

// failedValidationResponse answers 422 with one issue per field.
func (s *Server) failedValidationResponse(w http.ResponseWriter, r *http.Request, details map[string]string) {
	issues := make([]validationIssue, 0, len(details))
	for field, msg := range details {
		issues = append(issues, validationIssue{Loc: []string{"body", field}, Msg: msg, Type: "value_error"})
	}
	s.logger.LogAttrs(r.Context(), slog.LevelDebug, "request failed validation",
		slog.String("request_url", r.URL.String()),
		slog.Any("details", details),
	)
	if err := web.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": issues}, nil); err != nil {
		s.logger.Error(err.Error())
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, appError *AppError) {
	var attrs []slog.Attr
	attrs = append(attrs, slog.String("request_url", r.URL.String()))
	attrs = append(attrs, slog.String("request_method", r.Method))
	attrs = append(attrs, slog.Int("status", status))
	if appError.ErrorStack != nil {
		attrs = append(attrs, slog.String("stack", xerrors.Sprint(appError.ErrorStack)))
	}
	for key, value := range appError.ErrorDetails {
		attrs = append(attrs, slog.String(key, value))
	}

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.LogAttrs(r.Context(), level, appError.ErrorMessage, attrs...)

	if err := web.WriteJSON(w, status, map[string]any{"detail": appError.ErrorMessage}, nil); err != nil {
		s.logger.Error(err.Error())
		w.WriteHeader(http.StatusInternalServerError)
	}
}
