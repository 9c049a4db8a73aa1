// Package auth owns the client's notion of who is signed in.
//
// The Manager is the single writer of the identity. It starts Unresolved,
// settles on Anonymous or Authenticated once the stored credential has been
// checked, and from then on moves between those two.
package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/models"
)

var ErrNotAuthenticated = xerrors.Message("not authenticated")

type Backend interface {
	Login(ctx context.Context, email, password string) (*models.Token, error)
	Register(ctx context.Context, request models.RegisterRequest) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

type CredentialStore interface {
	Save(ctx context.Context, credential string) error
	Read(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

type Manager struct {
	backend  Backend
	store    CredentialStore
	notifier notify.Notifier
	log      *slog.Logger

	mutex    sync.RWMutex
	state    State
	identity *models.User
	// generation increases on every transition, so a slow Start cannot
	// overwrite a login or logout that happened while it was waiting.
	generation uint64

	resolved    chan struct{}
	resolveOnce sync.Once
}

func NewManager(backend Backend, store CredentialStore, notifier notify.Notifier, log *slog.Logger) *Manager {
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend:  backend,
		store:    store,
		notifier: notifier,
		log:      log,
		state:    Unresolved,
		resolved: make(chan struct{}),
	}
}

// Start resolves the stored credential. A present credential is checked
// against /users/me; any failure discards it. Start is meant to run once, in
// the background, right after the manager is created.
func (m *Manager) Start(ctx context.Context) {
	m.mutex.RLock()
	generation := m.generation
	m.mutex.RUnlock()

	credential, ok, err := m.store.Read(ctx)
	if err != nil {
		m.log.Error("reading stored credential failed", slog.String("stack", xerrors.Sprint(err)))
	}
	if err != nil || !ok || credential == "" {
		m.settle(generation, Anonymous, nil, nil)
		return
	}

	user, err := m.backend.CurrentUser(ctx)
	if err != nil {
		m.log.Info("stored credential rejected", slog.String("error", err.Error()))
		applied := m.settle(generation, Anonymous, nil, func() {
			m.clearCredential(ctx)
		})
		if applied {
			m.notifier.Notify(notify.LevelInfo, "Your session has expired, please log in again")
		}
		return
	}

	if m.settle(generation, Authenticated, user, nil) {
		m.log.Info("session resumed", slog.String("username", user.Username))
	}
}

// settle applies a Start result unless another transition won the race.
// onApply runs under the lock, only when the result is applied.
func (m *Manager) settle(generation uint64, state State, user *models.User, onApply func()) bool {
	m.mutex.Lock()
	applied := m.generation == generation
	if applied {
		if onApply != nil {
			onApply()
		}
		m.setLocked(state, user)
	}
	m.mutex.Unlock()
	m.markResolved()
	return applied
}

func (m *Manager) setLocked(state State, user *models.User) {
	m.state = state
	m.identity = user.Clone()
	m.generation++
}

func (m *Manager) transition(state State, user *models.User) {
	m.mutex.Lock()
	m.setLocked(state, user)
	m.mutex.Unlock()
	m.markResolved()
}

func (m *Manager) markResolved() {
	m.resolveOnce.Do(func() {
		close(m.resolved)
	})
}

// Resolved is closed once the state has left Unresolved.
func (m *Manager) Resolved() <-chan struct{} {
	return m.resolved
}

// Wait blocks until the state is resolved or ctx is done.
func (m *Manager) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-m.resolved:
		return m.Snapshot(), nil
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Snapshot{State: m.state, Identity: m.identity.Clone()}
}

func (m *Manager) State() State {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state
}

// Identity returns a copy of the current identity.
func (m *Manager) Identity() (*models.User, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.state != Authenticated {
		return nil, false
	}
	return m.identity.Clone(), true
}

// Login exchanges the credentials for a token, stores it and loads the
// identity. On any failure the state is unchanged and no token stays stored.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	token, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.notifier.Notify(notify.LevelError, apiclient.Message(err, "Login failed"))
		return err
	}

	if err := m.store.Save(ctx, token.AccessToken); err != nil {
		m.notifier.Notify(notify.LevelError, "Login failed")
		return xerrors.Newf("store credential: %w", err)
	}

	user, err := m.backend.CurrentUser(ctx)
	if err != nil {
		m.clearCredential(ctx)
		m.notifier.Notify(notify.LevelError, apiclient.Message(err, "Login failed"))
		return err
	}

	m.transition(Authenticated, user)
	m.log.Info("logged in", slog.String("username", user.Username))
	m.notifier.Notify(notify.LevelSuccess, "Welcome back, "+user.Username+"!")
	return nil
}

// Register creates the account only; the caller still has to log in.
func (m *Manager) Register(ctx context.Context, request models.RegisterRequest) (*models.User, error) {
	user, err := m.backend.Register(ctx, request)
	if err != nil {
		m.notifier.Notify(notify.LevelError, apiclient.Message(err, "Could not create the account"))
		return nil, err
	}
	m.notifier.Notify(notify.LevelSuccess, "Account created, you can now log in")
	return user, nil
}

// Logout forgets the credential and the identity. It never calls the backend
// and never fails.
func (m *Manager) Logout(ctx context.Context) {
	m.clearCredential(ctx)
	m.transition(Anonymous, nil)
	m.log.Info("logged out")
	m.notifier.Notify(notify.LevelSuccess, "Logged out")
}

// Invalidate drops the identity after the backend rejected the credential.
// The credential itself has already been cleared by the API client.
func (m *Manager) Invalidate() {
	m.mutex.Lock()
	wasAuthenticated := m.state == Authenticated
	m.setLocked(Anonymous, nil)
	m.mutex.Unlock()
	m.markResolved()

	if wasAuthenticated {
		m.log.Info("identity invalidated by backend")
		m.notifier.Notify(notify.LevelError, "Your session has expired, please log in again")
	}
}

// UpdateIdentity merges patch into the identity. It does nothing unless the
// state is Authenticated, and reports whether it applied.
func (m *Manager) UpdateIdentity(patch models.UserPatch) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.state != Authenticated || m.identity == nil {
		return false
	}
	patch.Apply(m.identity)
	return true
}

// RefreshIdentity reloads the identity from /users/me.
func (m *Manager) RefreshIdentity(ctx context.Context) error {
	m.mutex.RLock()
	generation, state := m.generation, m.state
	m.mutex.RUnlock()
	if state != Authenticated {
		return ErrNotAuthenticated
	}

	user, err := m.backend.CurrentUser(ctx)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.generation == generation && m.state == Authenticated {
		m.identity = user.Clone()
	}
	return nil
}

func (m *Manager) clearCredential(ctx context.Context) {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.log.Error("clearing credential failed", slog.String("stack", xerrors.Sprint(err)))
	}
}
