package fakeapi

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/session"
	"github.com/siahsang/beatpost/models"
)

var (
	validTitle   = "On the road again, at night"
	validContent = strings.Repeat("The typewriter hums under the neon. ", 5)
)

type harness struct {
	server *Server
	http   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, err := New(Options{
		JWTSecret:  "test-secret",
		BcryptCost: bcrypt.MinCost,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{server: srv, http: ts}
}

// client registers username and returns a client logged in as them.
func (h *harness) client(t *testing.T, username string) (*apiclient.Client, *models.User) {
	t.Helper()
	ctx := context.Background()
	store := session.NewMemoryStore()
	client, err := apiclient.New(store, apiclient.Options{BaseURL: h.http.URL + "/api"})
	require.NoError(t, err)

	email := username + "@beatpost.dev"
	user, err := client.Register(ctx, models.RegisterRequest{Username: username, Email: email, Password: "secret1"})
	require.NoError(t, err)

	token, err := client.Login(ctx, email, "secret1")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, token.AccessToken))
	return client, user
}

func (h *harness) anonymous(t *testing.T) *apiclient.Client {
	t.Helper()
	client, err := apiclient.New(session.NewMemoryStore(), apiclient.Options{BaseURL: h.http.URL + "/api"})
	require.NoError(t, err)
	return client
}

func statusOf(err error) int {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func pngUpload(t *testing.T) *models.Upload {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &models.Upload{Filename: "red.png", ContentType: "image/png", Data: buf.Bytes()}
}

func (h *harness) publish(t *testing.T, client *apiclient.Client, hashtags ...string) *models.Post {
	t.Helper()
	post, err := client.CreatePost(context.Background(), models.PostInput{
		Title: validTitle, Content: validContent, Hashtags: hashtags,
	})
	require.NoError(t, err)
	return post
}

func TestRegisterLoginAndCurrentUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client, user := h.client(t, "kerouac")

	assert.NotEmpty(t, user.ID)
	assert.Zero(t, user.Mojo)

	me, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kerouac", me.Username)
	assert.Equal(t, "kerouac@beatpost.dev", me.Email)

	_, err = h.anonymous(t).Register(ctx, models.RegisterRequest{Username: "kerouac", Email: "other@beatpost.dev", Password: "secret1"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Equal(t, "Email o username ya registrado", apiclient.Message(err, ""))

	_, err = h.anonymous(t).Login(ctx, "kerouac@beatpost.dev", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	assert.Equal(t, "Email o contraseña incorrectos", apiclient.Message(err, ""))
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.anonymous(t).Register(context.Background(), models.RegisterRequest{Username: "ab", Email: "nope", Password: "123"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	assert.NotEqual(t, apiclient.GenericErrorMessage, apiclient.Message(err, ""))
}

func TestRevokedTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	client, _ := h.client(t, "ginsberg")

	var cleared bool
	client.OnUnauthorized(func(context.Context) { cleared = true })
	h.server.RevokeAll()

	_, err := client.CurrentUser(context.Background())
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.Equal(t, "Could not validate credentials", apiclient.Message(err, ""))
	assert.True(t, cleared)
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.anonymous(t).CurrentUser(context.Background())
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestProfileNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.anonymous(t).Profile(context.Background(), "nobody")
	require.ErrorIs(t, err, apiclient.ErrNotFound)
	assert.Equal(t, "Usuario no encontrado", apiclient.Message(err, ""))
}

func TestCreatePostValidation(t *testing.T) {
	h := newHarness(t)
	client, _ := h.client(t, "burroughs")
	ctx := context.Background()

	tests := []struct {
		name  string
		input models.PostInput
		want  string
	}{
		{"short title", models.PostInput{Title: "short", Content: validContent, Hashtags: []string{"jazz"}},
			"El título debe tener entre 20 y 80 caracteres"},
		{"short content", models.PostInput{Title: validTitle, Content: "tiny", Hashtags: []string{"jazz"}},
			"El contenido debe tener entre 150 y 10,000 caracteres"},
		{"too many hashtags", models.PostInput{Title: validTitle, Content: validContent, Hashtags: []string{"a", "b", "c", "d"}},
			"Hashtags debe ser una lista de 1 a 3 elementos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreatePost(ctx, tt.input)
			assert.Equal(t, http.StatusBadRequest, statusOf(err))
			assert.Equal(t, tt.want, apiclient.Message(err, ""))
		})
	}
}

func TestCreatePostStoresGrayscaleImage(t *testing.T) {
	h := newHarness(t)
	client, user := h.client(t, "corso")

	post, err := client.CreatePost(context.Background(), models.PostInput{
		Title: validTitle, Content: validContent, Hashtags: []string{"jazz"}, Image: pngUpload(t),
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, post.AuthorID)
	assert.Equal(t, "corso", post.AuthorUsername)
	require.NotNil(t, post.Image)

	res, err := http.Get(*post.Image)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/jpeg", res.Header.Get("Content-Type"))

	img, err := jpeg.Decode(res.Body)
	require.NoError(t, err)
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.InDelta(t, r, g, 512)
	assert.InDelta(t, g, b, 512)
}

func TestGetPostCountsVisits(t *testing.T) {
	h := newHarness(t)
	client, _ := h.client(t, "snyder")
	post := h.publish(t, client, "zen")
	ctx := context.Background()

	_, err := client.Post(ctx, post.ID)
	require.NoError(t, err)
	got, err := client.Post(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Visits)

	_, err = client.Post(ctx, "missing")
	require.ErrorIs(t, err, apiclient.ErrNotFound)
	assert.Equal(t, "Post no encontrado", apiclient.Message(err, ""))
}

func TestRatingIsReplaced(t *testing.T) {
	h := newHarness(t)
	author, _ := h.client(t, "author1")
	reader, _ := h.client(t, "reader1")
	post := h.publish(t, author, "jazz")
	ctx := context.Background()

	_, err := reader.RatePost(ctx, post.ID, 2)
	require.NoError(t, err)
	_, err = reader.RatePost(ctx, post.ID, 5)
	require.NoError(t, err)

	got, err := reader.Post(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.RatingsCount)
	assert.Equal(t, 5.0, got.AverageRating)

	_, err = reader.RatePost(ctx, post.ID, 6)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestCommentLifecycle(t *testing.T) {
	h := newHarness(t)
	author, _ := h.client(t, "author2")
	other, _ := h.client(t, "other2")
	post := h.publish(t, author, "poetry")
	ctx := context.Background()

	first, err := author.CreateComment(ctx, post.ID, "first")
	require.NoError(t, err)
	_, err = other.CreateComment(ctx, post.ID, "second")
	require.NoError(t, err)

	comments, err := author.Comments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)

	_, err = other.UpdateComment(ctx, first.ID, "hijacked")
	require.ErrorIs(t, err, apiclient.ErrForbidden)
	assert.Equal(t, "No tienes permisos para editar este comentario", apiclient.Message(err, ""))

	updated, err := author.UpdateComment(ctx, first.ID, "  first, revised  ")
	require.NoError(t, err)
	assert.Equal(t, "first, revised", updated.Content)
	require.NotNil(t, updated.UpdatedAt)

	msg, err := author.DeleteComment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Comentario eliminado exitosamente", msg.Message)

	_, err = author.DeleteComment(ctx, first.ID)
	assert.Equal(t, "Comentario no encontrado", apiclient.Message(err, ""))

	_, err = author.CreateComment(ctx, "missing", "hello")
	require.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestFollowToggle(t *testing.T) {
	h := newHarness(t)
	fan, _ := h.client(t, "fan")
	_, _ = h.client(t, "idol")
	ctx := context.Background()

	msg, err := fan.ToggleFollow(ctx, "idol")
	require.NoError(t, err)
	assert.Equal(t, "Usuario followed exitosamente", msg.Message)

	idol, err := fan.Profile(ctx, "idol")
	require.NoError(t, err)
	assert.EqualValues(t, 1, idol.FollowersCount)
	assert.Equal(t, 3.0, idol.Mojo)

	msg, err = fan.ToggleFollow(ctx, "idol")
	require.NoError(t, err)
	assert.Equal(t, "Usuario unfollowed exitosamente", msg.Message)

	_, err = fan.ToggleFollow(ctx, "fan")
	assert.Equal(t, "No puedes seguirte a ti mismo", apiclient.Message(err, ""))
	_, err = fan.ToggleFollow(ctx, "ghost")
	require.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestArchiveAndUserPosts(t *testing.T) {
	h := newHarness(t)
	author, me := h.client(t, "archivist")
	other, _ := h.client(t, "nosy")
	first := h.publish(t, author, "jazz")
	h.publish(t, author, "zen")
	ctx := context.Background()

	result, err := author.ToggleArchive(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, result.Archived)
	assert.Equal(t, "Post archivado exitosamente", result.Message)

	archived := true
	q := filter.DefaultUserPostsQuery()
	q.Archived = &archived
	posts, err := author.UserPosts(ctx, me.ID, q)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, first.ID, posts[0].ID)

	q = filter.DefaultUserPostsQuery()
	q.Search = "ZEN"
	posts, err = author.UserPosts(ctx, me.ID, q)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	_, err = other.UserPosts(ctx, me.ID, filter.DefaultUserPostsQuery())
	require.ErrorIs(t, err, apiclient.ErrForbidden)

	_, err = other.ToggleArchive(ctx, first.ID)
	require.ErrorIs(t, err, apiclient.ErrForbidden)
}

func TestUpdateAndDeletePost(t *testing.T) {
	h := newHarness(t)
	author, _ := h.client(t, "editor")
	other, _ := h.client(t, "vandal")
	ctx := context.Background()

	post, err := author.CreatePost(ctx, models.PostInput{
		Title: validTitle, Content: validContent, Hashtags: []string{"jazz"}, Image: pngUpload(t),
	})
	require.NoError(t, err)

	_, err = other.UpdatePost(ctx, post.ID, models.PostInput{Title: validTitle, Content: validContent, Hashtags: []string{"x"}})
	require.ErrorIs(t, err, apiclient.ErrForbidden)

	updated, err := author.UpdatePost(ctx, post.ID, models.PostInput{
		Title: "A brand new title for the road", Content: validContent, Hashtags: []string{"road"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"road"}, updated.Hashtags)
	assert.Equal(t, post.Image, updated.Image, "image is kept when none is sent")

	_, err = author.CreateComment(ctx, post.ID, "note")
	require.NoError(t, err)
	msg, err := author.DeletePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Post eliminado exitosamente", msg.Message)
	assert.Empty(t, h.server.Store().Comments(post.ID))

	_, err = author.Post(ctx, post.ID)
	require.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	client, _ := h.client(t, "cassady")
	_, _ = h.client(t, "taken")
	ctx := context.Background()

	_, err := client.UpdateProfile(ctx, models.ProfileUpdate{})
	assert.Equal(t, "No se proporcionaron datos para actualizar", apiclient.Message(err, ""))

	taken := "taken"
	_, err = client.UpdateProfile(ctx, models.ProfileUpdate{Username: &taken})
	assert.Equal(t, "Este nombre de usuario ya está en uso", apiclient.Message(err, ""))

	name, bio := "  neal  ", "  driver  "
	user, err := client.UpdateProfile(ctx, models.ProfileUpdate{Username: &name, Bio: &bio, Avatar: pngUpload(t)})
	require.NoError(t, err)
	assert.Equal(t, "neal", user.Username)
	require.NotNil(t, user.Bio)
	assert.Equal(t, "driver", *user.Bio)
	assert.NotNil(t, user.Avatar)

	empty := ""
	user, err = client.UpdateProfile(ctx, models.ProfileUpdate{Bio: &empty})
	require.NoError(t, err)
	assert.Nil(t, user.Bio)
}

func TestFrontpageRanksAuthorsAndHashtags(t *testing.T) {
	h := newHarness(t)
	author, _ := h.client(t, "ranker")
	_, _ = h.client(t, "lurker")
	ctx := context.Background()

	old := h.publish(t, author, "jazz", "bebop")
	recent := h.publish(t, author, "jazz")
	_, err := author.Post(ctx, recent.ID)
	require.NoError(t, err)

	store := h.server.Store()
	store.mutex.Lock()
	store.postBy(old.ID).CreatedAt = models.NewTimestamp(time.Now().Add(-48 * time.Hour))
	store.mutex.Unlock()

	front, err := author.Frontpage(ctx)
	require.NoError(t, err)
	require.Len(t, front, 1)
	assert.Equal(t, recent.ID, front[0].ID)

	ranks, err := author.Ranks(ctx, "bebop")
	require.NoError(t, err)
	require.Len(t, ranks.Posts, 1)
	assert.Equal(t, old.ID, ranks.Posts[0].ID)

	tags, err := author.PopularHashtags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.HashtagCount{{Hashtag: "jazz", Count: 2}, {Hashtag: "bebop", Count: 1}}, tags)

	page, err := author.Authors(ctx, filter.DefaultAuthorsQuery())
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Authors, 1)
	assert.Equal(t, "ranker", page.Authors[0].Username)
	assert.EqualValues(t, 2, page.Authors[0].PostsCount)
	assert.EqualValues(t, 1, page.Authors[0].TotalVisits)
}

func TestMojo(t *testing.T) {
	h := newHarness(t)
	author, me := h.client(t, "mojo")
	reader, _ := h.client(t, "reader")
	ctx := context.Background()

	post := h.publish(t, author, "jazz")
	_, err := reader.RatePost(ctx, post.ID, 4)
	require.NoError(t, err)
	_, err = author.CreateComment(ctx, post.ID, "thanks")
	require.NoError(t, err)
	_, err = reader.ToggleFollow(ctx, "mojo")
	require.NoError(t, err)
	for range 10 {
		_, err = reader.Post(ctx, post.ID)
		require.NoError(t, err)
	}

	got, err := reader.Profile(ctx, me.Username)
	require.NoError(t, err)
	// 5*1 post + 10*4.0 quality + 0.1*10 visits + (1 rating + 1 comment) + 3*1 follower
	assert.Equal(t, 51.0, got.Mojo)
}

func TestHooks(t *testing.T) {
	h := newHarness(t)
	client := h.anonymous(t)
	hooks := h.server.Hooks()
	ctx := context.Background()

	hooks.FailNext("GET /api/hashtags", http.StatusServiceUnavailable, "down")
	_, err := client.PopularHashtags(ctx)
	assert.Equal(t, "down", apiclient.Message(err, ""))
	_, err = client.PopularHashtags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, hooks.Requests("GET /api/hashtags"))

	release := hooks.Hold("GET /api/frontpage")
	done := make(chan error, 1)
	go func() {
		_, err := client.Frontpage(ctx)
		done <- err
	}()

	assert.Eventually(t, func() bool { return hooks.Requests("GET /api/frontpage") == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("held request finished early")
	default:
	}
	release()
	require.NoError(t, <-done)
	release()
}

func TestSeedIsReproducible(t *testing.T) {
	counts := func() (int, int) {
		store := NewStore(bcrypt.MinCost)
		accounts, err := store.Seed(42, 4)
		require.NoError(t, err)
		return len(accounts), len(store.Posts(filter.PostsQuery{Page: filter.NewPage(0, 100)}))
	}
	accountsA, postsA := counts()
	accountsB, postsB := counts()

	assert.Equal(t, 5, accountsA)
	assert.Equal(t, accountsA, accountsB)
	assert.Equal(t, postsA, postsB)
	assert.GreaterOrEqual(t, postsA, 4)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	res, err := http.Get(h.http.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
