package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/internal/session"
	"github.com/siahsang/beatpost/models"
)

type stubBackend struct {
	mutex       sync.Mutex
	tokens      map[string]string // email -> token
	users       map[string]*models.User
	currentErr  error
	loginErr    error
	store       CredentialStore
	block       chan struct{}
	currentHits int
}

func newStubBackend(store CredentialStore) *stubBackend {
	return &stubBackend{
		tokens: map[string]string{"alice@example.com": "tok-alice"},
		users:  map[string]*models.User{"tok-alice": {ID: "u1", Username: "alice", Email: "alice@example.com"}},
		store:  store,
	}
}

func (b *stubBackend) Login(_ context.Context, email, password string) (*models.Token, error) {
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	token, ok := b.tokens[email]
	if !ok || password != "secret" {
		return nil, &apiclient.Error{Status: http.StatusUnauthorized, Message: "Incorrect email or password"}
	}
	return &models.Token{AccessToken: token, TokenType: "bearer"}, nil
}

func (b *stubBackend) Register(_ context.Context, request models.RegisterRequest) (*models.User, error) {
	return &models.User{ID: "new", Username: request.Username, Email: request.Email}, nil
}

func (b *stubBackend) CurrentUser(ctx context.Context) (*models.User, error) {
	credential, ok, _ := b.store.Read(ctx)
	b.mutex.Lock()
	b.currentHits++
	block := b.block
	b.mutex.Unlock()
	if block != nil {
		<-block
	}
	if b.currentErr != nil {
		return nil, b.currentErr
	}
	user, found := b.users[credential]
	if !ok || !found {
		return nil, &apiclient.Error{Status: http.StatusUnauthorized, Message: "Could not validate credentials"}
	}
	return user.Clone(), nil
}

func newManager(t *testing.T) (*Manager, *stubBackend, *session.MemoryStore, *notify.Queue) {
	t.Helper()
	store := session.NewMemoryStore()
	backend := newStubBackend(store)
	queue := notify.NewQueue(16)
	return NewManager(backend, store, queue, nil), backend, store, queue
}

func TestStartWithoutCredentialIsAnonymous(t *testing.T) {
	m, backend, _, _ := newManager(t)
	assert.Equal(t, Unresolved, m.State())

	m.Start(context.Background())

	assert.Equal(t, Anonymous, m.State())
	assert.Zero(t, backend.currentHits, "no identity fetch without a credential")
	select {
	case <-m.Resolved():
	default:
		t.Fatal("resolved channel must be closed")
	}
}

func TestStartWithValidCredential(t *testing.T) {
	m, _, store, _ := newManager(t)
	require.NoError(t, store.Save(context.Background(), "tok-alice"))

	m.Start(context.Background())

	snapshot := m.Snapshot()
	assert.Equal(t, Authenticated, snapshot.State)
	require.NotNil(t, snapshot.Identity)
	assert.Equal(t, "alice", snapshot.Identity.Username)
}

func TestStartWithRejectedCredentialClearsIt(t *testing.T) {
	m, _, store, _ := newManager(t)
	require.NoError(t, store.Save(context.Background(), "stale"))

	m.Start(context.Background())

	assert.Equal(t, Anonymous, m.State())
	_, ok, _ := store.Read(context.Background())
	assert.False(t, ok)
}

func TestWaitBlocksUntilResolved(t *testing.T) {
	m, backend, store, _ := newManager(t)
	require.NoError(t, store.Save(context.Background(), "tok-alice"))
	backend.block = make(chan struct{})

	go m.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	snapshot, err := m.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, snapshot.Loading())
	assert.Nil(t, snapshot.Identity)

	close(backend.block)
	snapshot, err = m.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.IsAuthenticated())
}

func TestLoginLoadsIdentityOfThatCredential(t *testing.T) {
	m, _, store, queue := newManager(t)
	m.Start(context.Background())

	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	identity, ok := m.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", identity.ID)
	credential, ok, _ := store.Read(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "tok-alice", credential)

	items := queue.Drain()
	require.NotEmpty(t, items)
	assert.Equal(t, notify.LevelSuccess, items[len(items)-1].Level)
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	m, _, store, queue := newManager(t)
	m.Start(context.Background())

	err := m.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, Anonymous, m.State())
	_, ok, _ := store.Read(context.Background())
	assert.False(t, ok)

	items := queue.Drain()
	require.Len(t, items, 1)
	assert.Equal(t, "Incorrect email or password", items[0].Message)
}

func TestLoginClearsTokenWhenIdentityFetchFails(t *testing.T) {
	m, backend, store, _ := newManager(t)
	m.Start(context.Background())
	backend.currentErr = &apiclient.Error{Status: http.StatusInternalServerError, Message: "boom"}

	err := m.Login(context.Background(), "alice@example.com", "secret")
	require.Error(t, err)
	assert.Equal(t, Anonymous, m.State())
	_, ok, _ := store.Read(context.Background())
	assert.False(t, ok, "no credential may stay persisted after a failed login")
}

func TestLogoutClearsStoreAndIdentity(t *testing.T) {
	m, _, store, _ := newManager(t)
	m.Start(context.Background())
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	m.Logout(context.Background())

	_, ok, _ := store.Read(context.Background())
	assert.False(t, ok)
	_, authenticated := m.Identity()
	assert.False(t, authenticated)
	assert.Equal(t, Anonymous, m.State())
}

func TestUpdateIdentityOnlyWhenAuthenticated(t *testing.T) {
	m, _, _, _ := newManager(t)
	m.Start(context.Background())

	bio := "hello"
	assert.False(t, m.UpdateIdentity(models.UserPatch{Bio: &bio}))
	_, ok := m.Identity()
	assert.False(t, ok)

	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))
	assert.True(t, m.UpdateIdentity(models.UserPatch{Bio: &bio}))

	identity, _ := m.Identity()
	require.NotNil(t, identity.Bio)
	assert.Equal(t, "hello", *identity.Bio)
	assert.Equal(t, "alice", identity.Username)
}

func TestReadersGetCopies(t *testing.T) {
	m, _, _, _ := newManager(t)
	m.Start(context.Background())
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	identity, _ := m.Identity()
	identity.Username = "mallory"

	again, _ := m.Identity()
	assert.Equal(t, "alice", again.Username)
}

func TestInvalidateDropsIdentity(t *testing.T) {
	m, _, _, queue := newManager(t)
	m.Start(context.Background())
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))
	queue.Drain()

	m.Invalidate()

	assert.Equal(t, Anonymous, m.State())
	items := queue.Drain()
	require.Len(t, items, 1)
	assert.Equal(t, notify.LevelError, items[0].Level)
}

func TestStartDoesNotOverrideLaterLogin(t *testing.T) {
	m, backend, store, _ := newManager(t)
	require.NoError(t, store.Save(context.Background(), "stale"))
	backend.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		m.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		backend.mutex.Lock()
		defer backend.mutex.Unlock()
		return backend.currentHits == 1
	}, time.Second, time.Millisecond)

	// Let the login's own identity fetch through while Start is still parked.
	backend.mutex.Lock()
	startBlock := backend.block
	backend.block = nil
	backend.mutex.Unlock()
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	close(startBlock)
	<-done

	assert.Equal(t, Authenticated, m.State(), "a stale Start result must not undo the login")
	credential, ok, _ := store.Read(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "tok-alice", credential)
}

func TestRefreshIdentity(t *testing.T) {
	m, backend, _, _ := newManager(t)
	m.Start(context.Background())
	assert.ErrorIs(t, m.RefreshIdentity(context.Background()), ErrNotAuthenticated)

	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))
	backend.users["tok-alice"].FollowersCount = 7

	require.NoError(t, m.RefreshIdentity(context.Background()))
	identity, _ := m.Identity()
	assert.Equal(t, int64(7), identity.FollowersCount)
}
