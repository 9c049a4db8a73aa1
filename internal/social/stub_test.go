package social

import (
	"context"
	"sync"

	"github.com/siahsang/beatpost/internal/auth"
	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/models"
)

// stubAPI records calls per endpoint. Endpoints with a gate block until the
// gate is released.
type stubAPI struct {
	mutex sync.Mutex
	calls map[string]int

	posts    map[string]*models.Post
	comments map[string][]models.Comment
	profiles map[string]*models.User
	feed     []models.Post
	mine     []models.Post
	hashtags []models.HashtagCount

	followErr    error
	followResult string
	rateErr      error
	archived     map[string]bool

	entered map[string]chan struct{}
	gates   map[string]chan struct{}

	created []models.PostInput
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		calls:        map[string]int{},
		posts:        map[string]*models.Post{},
		comments:     map[string][]models.Comment{},
		profiles:     map[string]*models.User{},
		archived:     map[string]bool{},
		entered:      map[string]chan struct{}{},
		gates:        map[string]chan struct{}{},
		followResult: "User followed successfully",
	}
}

// hold makes the next calls to endpoint block until the returned func runs.
// The entered channel receives once per blocked call.
func (s *stubAPI) hold(endpoint string) (entered <-chan struct{}, release func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	enteredCh := make(chan struct{}, 8)
	gate := make(chan struct{})
	s.entered[endpoint] = enteredCh
	s.gates[endpoint] = gate
	var once sync.Once
	return enteredCh, func() { once.Do(func() { close(gate) }) }
}

func (s *stubAPI) record(ctx context.Context, endpoint string) error {
	s.mutex.Lock()
	s.calls[endpoint]++
	entered, gate := s.entered[endpoint], s.gates[endpoint]
	s.mutex.Unlock()

	if gate == nil {
		return nil
	}
	entered <- struct{}{}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubAPI) count(endpoint string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls[endpoint]
}

func (s *stubAPI) Profile(ctx context.Context, username string) (*models.User, error) {
	if err := s.record(ctx, "profile"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	profile, ok := s.profiles[username]
	if !ok {
		return nil, notFound()
	}
	return profile.Clone(), nil
}

func (s *stubAPI) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	if err := s.record(ctx, "update_profile"); err != nil {
		return nil, err
	}
	user := &models.User{ID: "u-alice", Username: "alice"}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Bio != nil && *update.Bio != "" {
		user.Bio = update.Bio
	}
	return user, nil
}

func (s *stubAPI) ToggleFollow(ctx context.Context, username string) (*models.Message, error) {
	if err := s.record(ctx, "follow"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.followErr != nil {
		return nil, s.followErr
	}
	return &models.Message{Message: s.followResult}, nil
}

func (s *stubAPI) Posts(ctx context.Context, query filter.PostsQuery) ([]models.Post, error) {
	if err := s.record(ctx, "posts"); err != nil {
		return nil, err
	}
	return s.feed, nil
}

func (s *stubAPI) Post(ctx context.Context, id string) (*models.Post, error) {
	if err := s.record(ctx, "post"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, notFound()
	}
	return post.Clone(), nil
}

func (s *stubAPI) CreatePost(ctx context.Context, input models.PostInput) (*models.Post, error) {
	if err := s.record(ctx, "create_post"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.created = append(s.created, input)
	return &models.Post{ID: "p-new", Title: input.Title, Content: input.Content, Hashtags: input.Hashtags}, nil
}

func (s *stubAPI) UpdatePost(ctx context.Context, id string, input models.PostInput) (*models.Post, error) {
	if err := s.record(ctx, "update_post"); err != nil {
		return nil, err
	}
	return &models.Post{ID: id, Title: input.Title, Content: input.Content, Hashtags: input.Hashtags}, nil
}

func (s *stubAPI) DeletePost(ctx context.Context, id string) (*models.Message, error) {
	if err := s.record(ctx, "delete_post"); err != nil {
		return nil, err
	}
	return &models.Message{Message: "Post deleted"}, nil
}

func (s *stubAPI) ToggleArchive(ctx context.Context, id string) (*models.ArchiveResult, error) {
	if err := s.record(ctx, "archive"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.archived[id] = !s.archived[id]
	for i := range s.mine {
		if s.mine[i].ID == id {
			s.mine[i].Archived = s.archived[id]
		}
	}
	return &models.ArchiveResult{Message: "Post archived", Archived: s.archived[id]}, nil
}

func (s *stubAPI) RatePost(ctx context.Context, id string, rating int) (*models.Rating, error) {
	if err := s.record(ctx, "rate"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.rateErr != nil {
		return nil, s.rateErr
	}
	if post, ok := s.posts[id]; ok {
		post.RatingsCount++
		post.AverageRating = float64(rating)
	}
	return &models.Rating{PostID: id, Rating: rating}, nil
}

func (s *stubAPI) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	if err := s.record(ctx, "comments"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.comments[postID], nil
}

func (s *stubAPI) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	if err := s.record(ctx, "create_comment"); err != nil {
		return nil, err
	}
	return &models.Comment{ID: "c-new", PostID: postID, AuthorID: "u-alice", AuthorUsername: "alice", Content: content}, nil
}

func (s *stubAPI) UpdateComment(ctx context.Context, commentID, content string) (*models.Comment, error) {
	if err := s.record(ctx, "update_comment"); err != nil {
		return nil, err
	}
	return &models.Comment{ID: commentID, AuthorID: "u-alice", AuthorUsername: "alice", Content: content}, nil
}

func (s *stubAPI) DeleteComment(ctx context.Context, commentID string) (*models.Message, error) {
	if err := s.record(ctx, "delete_comment"); err != nil {
		return nil, err
	}
	return &models.Message{Message: "Comment deleted"}, nil
}

func (s *stubAPI) PopularHashtags(ctx context.Context) ([]models.HashtagCount, error) {
	if err := s.record(ctx, "hashtags"); err != nil {
		return nil, err
	}
	return s.hashtags, nil
}

func (s *stubAPI) Authors(ctx context.Context, query filter.AuthorsQuery) (*models.AuthorsPage, error) {
	if err := s.record(ctx, "authors"); err != nil {
		return nil, err
	}
	return &models.AuthorsPage{Skip: query.Skip, Limit: query.Limit}, nil
}

func (s *stubAPI) Frontpage(ctx context.Context) ([]models.Post, error) {
	if err := s.record(ctx, "frontpage"); err != nil {
		return nil, err
	}
	return s.feed, nil
}

func (s *stubAPI) Ranks(ctx context.Context, hashtag string) (*models.RanksPage, error) {
	if err := s.record(ctx, "ranks"); err != nil {
		return nil, err
	}
	return &models.RanksPage{Posts: s.feed}, nil
}

func (s *stubAPI) UserPosts(ctx context.Context, userID string, query filter.UserPostsQuery) ([]models.Post, error) {
	if err := s.record(ctx, "user_posts"); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var posts []models.Post
	for _, p := range s.mine {
		if query.Archived == nil || *query.Archived == p.Archived {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

type stubIdentity struct {
	mutex      sync.Mutex
	snapshot   auth.Snapshot
	patches    []models.UserPatch
	refreshes  int
	refreshErr error
}

func signedIn(user *models.User) *stubIdentity {
	return &stubIdentity{snapshot: auth.Snapshot{State: auth.Authenticated, Identity: user}}
}

func anonymous() *stubIdentity {
	return &stubIdentity{snapshot: auth.Snapshot{State: auth.Anonymous}}
}

func (s *stubIdentity) Snapshot() auth.Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return auth.Snapshot{State: s.snapshot.State, Identity: s.snapshot.Identity.Clone()}
}

func (s *stubIdentity) UpdateIdentity(patch models.UserPatch) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.snapshot.Identity == nil {
		return false
	}
	patch.Apply(s.snapshot.Identity)
	s.patches = append(s.patches, patch)
	return true
}

func (s *stubIdentity) RefreshIdentity(context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.refreshes++
	return s.refreshErr
}

func (s *stubIdentity) refreshCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.refreshes
}
