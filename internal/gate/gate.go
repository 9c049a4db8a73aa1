// Package gate decides whether a view that needs an identity may render.
package gate

import (
	"context"
	"errors"
	"time"

	"github.com/siahsang/beatpost/internal/auth"
)

type Decision int

const (
	// Defer means the identity is still being resolved: show a neutral
	// loading state, never the protected content.
	Defer Decision = iota
	Redirect
	Render
)

func (d Decision) String() string {
	switch d {
	case Defer:
		return "defer"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	}
	return "unknown"
}

const LoginPath = "/login"

// Decide maps an auth state to a decision. It holds no memory of earlier calls.
func Decide(state auth.State) Decision {
	switch state {
	case auth.Authenticated:
		return Render
	case auth.Anonymous:
		return Redirect
	}
	return Defer
}

type StateSource interface {
	Wait(ctx context.Context) (auth.Snapshot, error)
}

// Gate evaluates navigations to protected views. An Unresolved state is
// waited out for at most timeout.
type Gate struct {
	source  StateSource
	timeout time.Duration
}

func New(source StateSource, timeout time.Duration) *Gate {
	return &Gate{source: source, timeout: timeout}
}

// Evaluate is called on every navigation to a protected view.
func (g *Gate) Evaluate(ctx context.Context) (Decision, auth.Snapshot, error) {
	waitCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	snapshot, err := g.source.Wait(waitCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return Defer, snapshot, err
	}
	return Decide(snapshot.State), snapshot, nil
}
