package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/siahsang/beatpost/internal/gate"
	"github.com/siahsang/beatpost/internal/navigation"
)

// enterView makes the request the client's current view. Whatever view was
// still loading is cancelled and its late results are dropped.
func (app *application) enterView(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := app.navigator.Enter(r.Context(), r.URL.Path)
		defer app.navigator.Leave(scope)

		next(w, r.WithContext(scope.Context()))
	}
}

// actionScope gives an action on the current view its own scope, so a 401
// seen by the action can redirect it without closing the view.
func (app *application) actionScope(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := navigation.NewScope(r.Context(), r.URL.Path)
		defer scope.Close()

		next(w, r.WithContext(scope.Context()))
	}
}

// requireIdentity evaluates the gate on every request. Nothing is cached
// between requests.
func (app *application) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, snapshot, err := app.gate.Evaluate(r.Context())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			app.internalErrorResponse(w, r, err)
			return
		}

		app.logger.Debug("gate decision",
			slog.String("path", r.URL.Path),
			slog.String("decision", decision.String()),
			slog.String("state", snapshot.State.String()))

		switch decision {
		case gate.Render:
			next(w, r)
		case gate.Redirect:
			app.redirectResponse(w, r, gate.LoginPath)
		default:
			app.loadingResponse(w, r)
		}
	}
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.internalErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
