// Package navigation tracks the client's current view.
//
// Each view instance owns a Scope. Navigating to another view closes the
// previous scope: its in-flight requests are cancelled and results that still
// arrive are dropped instead of being applied to a view nobody sees.
package navigation

import (
	"context"
	"log/slog"
	"sync"
)

const LoginPath = "/login"

type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	path   string

	mutex    sync.Mutex
	closed   bool
	redirect string
}

func NewScope(parent context.Context, path string) *Scope {
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{cancel: cancel, path: path}
	s.ctx = WithScope(ctx, s)
	return s
}

// Context is cancelled when the scope closes. It carries the scope itself.
func (s *Scope) Context() context.Context {
	return s.ctx
}

func (s *Scope) Path() string {
	return s.path
}

func (s *Scope) Close() {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()
	s.cancel()
}

func (s *Scope) Alive() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return !s.closed
}

// Apply runs fn only while the scope is alive and reports whether it ran.
// Close waits for a running fn to finish.
func (s *Scope) Apply(fn func()) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

// Redirect asks the view to send the user to target instead of rendering.
func (s *Scope) Redirect(target string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.redirect = target
}

func (s *Scope) RedirectTarget() (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.redirect, s.redirect != ""
}

type scopeKey struct{}

func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

// Navigator owns the single active view scope of the client.
type Navigator struct {
	log *slog.Logger

	mutex   sync.Mutex
	current *Scope
	path    string
}

func NewNavigator(log *slog.Logger) *Navigator {
	if log == nil {
		log = slog.Default()
	}
	return &Navigator{log: log, path: "/"}
}

// Enter makes path the current view and closes the previous view's scope.
func (n *Navigator) Enter(parent context.Context, path string) *Scope {
	scope := NewScope(parent, path)

	n.mutex.Lock()
	previous := n.current
	n.current = scope
	n.path = path
	n.mutex.Unlock()

	if previous != nil {
		previous.Close()
	}
	return scope
}

// Leave closes scope if it is still the current view. The path stays, so the
// client keeps showing the last rendered view.
func (n *Navigator) Leave(scope *Scope) {
	n.mutex.Lock()
	if n.current == scope {
		n.current = nil
	}
	n.mutex.Unlock()
	scope.Close()
}

func (n *Navigator) CurrentPath() string {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.path
}

// ForceLogin replaces whatever view is showing with the login view. It is
// registered as the API client's unauthorized handler, so the attempted view
// is discarded rather than remembered.
func (n *Navigator) ForceLogin(ctx context.Context) {
	if scope, ok := FromContext(ctx); ok {
		scope.Redirect(LoginPath)
	}

	n.mutex.Lock()
	previous := n.current
	n.current = nil
	from := n.path
	n.path = LoginPath
	n.mutex.Unlock()

	if previous != nil {
		previous.Close()
	}
	n.log.Info("forcing login view", slog.String("from", from))
}
