// Package web holds the HTTP plumbing shared by the view server and the
// in-memory backend.
package web

import (
	"context"
	"net/http"
)

type ContextKey string

func AddValueToContext[T any](r *http.Request, key ContextKey, value T) *http.Request {
	ctx := context.WithValue(r.Context(), key, value)
	return r.WithContext(ctx)
}

func GetValueFromContext[T any](r *http.Request, key ContextKey) (T, bool) {
	val, ok := r.Context().Value(key).(T)
	if !ok {
		var zero T
		return zero, false
	}
	return val, true
}
