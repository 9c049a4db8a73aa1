package fakeapi

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/utils/collectionutils"
	"github.com/siahsang/beatpost/internal/utils/functional"
	"github.com/siahsang/beatpost/models"
)

var (
	NoRecordFound       = xerrors.Message("no record found")
	ErrDuplicateAccount = xerrors.Message("email or username already registered")
	ErrBadCredentials   = xerrors.Message("email or password is wrong")
	ErrUsernameTaken    = xerrors.Message("username already in use")
	ErrNotAuthor        = xerrors.Message("user is not the author")
	ErrSelfFollow       = xerrors.Message("user cannot follow themselves")
	ErrNothingToUpdate  = xerrors.Message("nothing to update")
)

const (
	frontpageWindow = 24 * time.Hour
	frontpageSize   = 10
	ranksSize       = 20
	hashtagsSize    = 20
)

type account struct {
	user         models.User
	passwordHash []byte
}

// Store keeps every backend record in memory. Counts and mojo are derived
// on read, so they never drift from the records.
type Store struct {
	mutex      sync.RWMutex
	now        func() time.Time
	bcryptCost int

	accounts []*account
	posts    []*models.Post
	comments []*models.Comment
	// post id -> user id -> rating
	ratings map[string]map[string]*models.Rating
	// follower id -> followed id
	follows map[string]map[string]time.Time
}

func NewStore(bcryptCost int) *Store {
	return &Store{
		now:        time.Now,
		bcryptCost: bcryptCost,
		ratings:    make(map[string]map[string]*models.Rating),
		follows:    make(map[string]map[string]time.Time),
	}
}

func (s *Store) timestamp() models.Timestamp {
	return models.NewTimestamp(s.now())
}

func (s *Store) Register(request models.RegisterRequest) (*models.User, error) {
	hash, err := hashPassword(request.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, a := range s.accounts {
		if a.user.Email == request.Email || a.user.Username == request.Username {
			return nil, ErrDuplicateAccount
		}
	}

	a := &account{
		user: models.User{
			ID:        uuid.NewString(),
			Username:  request.Username,
			Email:     request.Email,
			Bio:       request.Bio,
			CreatedAt: s.timestamp(),
		},
		passwordHash: hash,
	}
	s.accounts = append(s.accounts, a)
	return s.userView(a), nil
}

// CheckCredentials returns the username owning email when password matches.
func (s *Store) CheckCredentials(email, password string) (string, error) {
	s.mutex.RLock()
	a := s.accountBy(func(a *account) bool { return a.user.Email == email })
	s.mutex.RUnlock()
	if a == nil {
		return "", ErrBadCredentials
	}

	ok, err := passwordMatches(a.passwordHash, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrBadCredentials
	}
	return a.user.Username, nil
}

func (s *Store) UserByUsername(username string) (*models.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	a := s.accountBy(func(a *account) bool { return a.user.Username == username })
	if a == nil {
		return nil, NoRecordFound
	}
	return s.userView(a), nil
}

// ProfileChanges are already trimmed. A non-nil empty Bio clears the bio.
type ProfileChanges struct {
	Username *string
	Bio      *string
	Avatar   *string
}

func (s *Store) UpdateUser(userID string, changes ProfileChanges) (*models.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	a := s.accountBy(func(a *account) bool { return a.user.ID == userID })
	if a == nil {
		return nil, NoRecordFound
	}
	if changes.Username == nil && changes.Bio == nil && changes.Avatar == nil {
		return nil, ErrNothingToUpdate
	}

	if changes.Username != nil && *changes.Username != a.user.Username {
		taken := s.accountBy(func(other *account) bool { return other.user.Username == *changes.Username })
		if taken != nil {
			return nil, ErrUsernameTaken
		}
		a.user.Username = *changes.Username
		s.renameAuthor(a.user.ID, a.user.Username)
	}
	if changes.Bio != nil {
		if *changes.Bio == "" {
			a.user.Bio = nil
		} else {
			bio := *changes.Bio
			a.user.Bio = &bio
		}
	}
	if changes.Avatar != nil {
		avatar := *changes.Avatar
		a.user.Avatar = &avatar
	}
	return s.userView(a), nil
}

func (s *Store) renameAuthor(userID, username string) {
	for _, p := range s.posts {
		if p.AuthorID == userID {
			p.AuthorUsername = username
		}
	}
	for _, c := range s.comments {
		if c.AuthorID == userID {
			c.AuthorUsername = username
		}
	}
}

// ToggleFollow returns true when the follower now follows username.
func (s *Store) ToggleFollow(followerID, username string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	target := s.accountBy(func(a *account) bool { return a.user.Username == username })
	if target == nil {
		return false, NoRecordFound
	}
	if target.user.ID == followerID {
		return false, ErrSelfFollow
	}

	following := s.follows[followerID]
	if _, ok := following[target.user.ID]; ok {
		delete(following, target.user.ID)
		return false, nil
	}
	if following == nil {
		following = make(map[string]time.Time)
		s.follows[followerID] = following
	}
	following[target.user.ID] = s.now()
	return true, nil
}

// PostFields is a validated create or update payload. A nil Image keeps the
// stored one on update.
type PostFields struct {
	Title    string
	Content  string
	Hashtags []string
	Image    *string
}

func (s *Store) CreatePost(authorID string, fields PostFields) (*models.Post, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	author := s.accountBy(func(a *account) bool { return a.user.ID == authorID })
	if author == nil {
		return nil, NoRecordFound
	}

	now := s.timestamp()
	post := &models.Post{
		ID:             uuid.NewString(),
		Title:          fields.Title,
		Content:        fields.Content,
		Hashtags:       slices.Clone(fields.Hashtags),
		Image:          fields.Image,
		AuthorID:       author.user.ID,
		AuthorUsername: author.user.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.posts = append(s.posts, post)
	return s.postView(post), nil
}

func (s *Store) UpdatePost(userID, postID string, fields PostFields) (*models.Post, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	post, err := s.ownPost(userID, postID)
	if err != nil {
		return nil, err
	}
	post.Title = fields.Title
	post.Content = fields.Content
	post.Hashtags = slices.Clone(fields.Hashtags)
	if fields.Image != nil {
		post.Image = fields.Image
	}
	post.UpdatedAt = s.timestamp()
	return s.postView(post), nil
}

// DeletePost removes the post with its comments and ratings.
func (s *Store) DeletePost(userID, postID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.ownPost(userID, postID); err != nil {
		return err
	}
	s.posts = slices.DeleteFunc(s.posts, func(p *models.Post) bool { return p.ID == postID })
	s.comments = slices.DeleteFunc(s.comments, func(c *models.Comment) bool { return c.PostID == postID })
	delete(s.ratings, postID)
	return nil
}

func (s *Store) ToggleArchive(userID, postID string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	post, err := s.ownPost(userID, postID)
	if err != nil {
		return false, err
	}
	post.Archived = !post.Archived
	return post.Archived, nil
}

// CheckAuthor reports NoRecordFound or ErrNotAuthor without changing anything.
func (s *Store) CheckAuthor(userID, postID string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, err := s.ownPost(userID, postID)
	return err
}

func (s *Store) ownPost(userID, postID string) (*models.Post, error) {
	post := s.postBy(postID)
	if post == nil {
		return nil, NoRecordFound
	}
	if post.AuthorID != userID {
		return nil, ErrNotAuthor
	}
	return post, nil
}

// VisitPost counts a visit and returns the post.
func (s *Store) VisitPost(postID string) (*models.Post, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	post := s.postBy(postID)
	if post == nil {
		return nil, NoRecordFound
	}
	post.Visits++
	return s.postView(post), nil
}

// Posts lists the feed newest first.
func (s *Store) Posts(query filter.PostsQuery) []models.Post {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	posts := functional.Filter(s.posts, func(p *models.Post) bool {
		return query.Hashtag == "" || slices.Contains(p.Hashtags, query.Hashtag)
	})
	slices.SortStableFunc(posts, newestFirst)
	return s.postViews(paginate(posts, query.Page))
}

func (s *Store) UserPosts(userID string, query filter.UserPostsQuery) []models.Post {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	search := strings.ToLower(query.Search)
	posts := functional.Filter(s.posts, func(p *models.Post) bool {
		if p.AuthorID != userID {
			return false
		}
		if query.Archived != nil && p.Archived != *query.Archived {
			return false
		}
		return search == "" || postMatches(p, search)
	})

	views := s.postViews(posts)
	slices.SortStableFunc(views, postOrder(query.SortBy))
	return paginate(views, query.Page)
}

func postMatches(p *models.Post, lowered string) bool {
	if strings.Contains(strings.ToLower(p.Title), lowered) || strings.Contains(strings.ToLower(p.Content), lowered) {
		return true
	}
	return slices.ContainsFunc(p.Hashtags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), lowered)
	})
}

func postOrder(sortBy filter.PostSort) func(a, b models.Post) int {
	switch sortBy {
	case filter.PostsByVisitsDesc:
		return func(a, b models.Post) int { return cmp.Compare(b.Visits, a.Visits) }
	case filter.PostsByVisitsAsc:
		return func(a, b models.Post) int { return cmp.Compare(a.Visits, b.Visits) }
	case filter.PostsByDateAsc:
		return func(a, b models.Post) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }
	case filter.PostsByRatingDesc:
		return func(a, b models.Post) int { return cmp.Compare(b.AverageRating, a.AverageRating) }
	case filter.PostsByRatingAsc:
		return func(a, b models.Post) int { return cmp.Compare(a.AverageRating, b.AverageRating) }
	default:
		return func(a, b models.Post) int { return b.CreatedAt.Compare(a.CreatedAt.Time) }
	}
}

func newestFirst(a, b *models.Post) int {
	return b.CreatedAt.Compare(a.CreatedAt.Time)
}

// Frontpage scores the posts of the last day and returns the best ten.
func (s *Store) Frontpage() []models.Post {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	since := s.now().Add(-frontpageWindow)
	recent := functional.Filter(s.posts, func(p *models.Post) bool { return p.CreatedAt.After(since) })
	return s.topScored(recent, frontpageSize, true)
}

// Ranks scores every post, optionally of one hashtag, without author mojo.
func (s *Store) Ranks(hashtag string) []models.Post {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	posts := functional.Filter(s.posts, func(p *models.Post) bool {
		return hashtag == "" || slices.Contains(p.Hashtags, hashtag)
	})
	return s.topScored(posts, ranksSize, false)
}

func (s *Store) topScored(posts []*models.Post, size int, withMojo bool) []models.Post {
	type scored struct {
		post  models.Post
		score float64
	}
	ranked := functional.Map(posts, func(p *models.Post) scored {
		view := s.postView(p)
		score := float64(view.Visits)*0.1 +
			float64(view.RatingsCount)*2 +
			float64(view.CommentsCount)*1.5 +
			view.AverageRating*3
		if withMojo {
			score += s.mojo(p.AuthorID) * 0.01
		}
		return scored{post: *view, score: score}
	})
	slices.SortStableFunc(ranked, func(a, b scored) int { return cmp.Compare(b.score, a.score) })
	ranked = ranked[:min(size, len(ranked))]
	return functional.Map(ranked, func(r scored) models.Post { return r.post })
}

func (s *Store) Hashtags() []models.HashtagCount {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	counts := make(map[string]int64)
	for _, p := range s.posts {
		for _, tag := range p.Hashtags {
			counts[tag]++
		}
	}

	tags := make([]models.HashtagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, models.HashtagCount{Hashtag: tag, Count: count})
	}
	slices.SortFunc(tags, func(a, b models.HashtagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Hashtag, b.Hashtag)
	})
	return tags[:min(hashtagsSize, len(tags))]
}

// Authors lists users with at least one post.
func (s *Store) Authors(query filter.AuthorsQuery) models.AuthorsPage {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	search := strings.ToLower(query.Search)
	var authors []models.Author
	for _, a := range s.accounts {
		if search != "" && !strings.Contains(strings.ToLower(a.user.Username), search) &&
			(a.user.Bio == nil || !strings.Contains(strings.ToLower(*a.user.Bio), search)) {
			continue
		}
		author, ok := s.authorView(a)
		if ok {
			authors = append(authors, author)
		}
	}

	slices.SortStableFunc(authors, authorOrder(query.SortBy))
	return models.AuthorsPage{
		Authors: paginate(authors, query.Page),
		Total:   int64(len(authors)),
		Skip:    query.Skip,
		Limit:   query.Limit,
	}
}

func authorOrder(sortBy filter.AuthorSort) func(a, b models.Author) int {
	switch sortBy {
	case filter.AuthorsByMojoAsc:
		return func(a, b models.Author) int { return cmp.Compare(a.Mojo, b.Mojo) }
	case filter.AuthorsByPostsDesc:
		return func(a, b models.Author) int { return cmp.Compare(b.PostsCount, a.PostsCount) }
	case filter.AuthorsByPostsAsc:
		return func(a, b models.Author) int { return cmp.Compare(a.PostsCount, b.PostsCount) }
	case filter.AuthorsByRatingDesc:
		return func(a, b models.Author) int { return cmp.Compare(b.AverageRating, a.AverageRating) }
	case filter.AuthorsByRatingAsc:
		return func(a, b models.Author) int { return cmp.Compare(a.AverageRating, b.AverageRating) }
	default:
		return func(a, b models.Author) int { return cmp.Compare(b.Mojo, a.Mojo) }
	}
}

// Rate stores or replaces the user's rating of a post.
func (s *Store) Rate(userID, postID string, value int) (*models.Rating, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.postBy(postID) == nil {
		return nil, NoRecordFound
	}
	byUser := s.ratings[postID]
	if byUser == nil {
		byUser = make(map[string]*models.Rating)
		s.ratings[postID] = byUser
	}

	rating, ok := byUser[userID]
	if !ok {
		rating = &models.Rating{ID: uuid.NewString(), PostID: postID, UserID: userID}
		byUser[userID] = rating
	}
	rating.Rating = value
	rating.CreatedAt = s.timestamp()
	r := *rating
	return &r, nil
}

func (s *Store) CreateComment(userID, postID, content string) (*models.Comment, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.postBy(postID) == nil {
		return nil, NoRecordFound
	}
	author := s.accountBy(func(a *account) bool { return a.user.ID == userID })
	if author == nil {
		return nil, NoRecordFound
	}

	comment := &models.Comment{
		ID:             uuid.NewString(),
		PostID:         postID,
		AuthorID:       userID,
		AuthorUsername: author.user.Username,
		Content:        content,
		CreatedAt:      s.timestamp(),
	}
	s.comments = append(s.comments, comment)
	c := *comment
	return &c, nil
}

// Comments lists a post's comments oldest first.
func (s *Store) Comments(postID string) []models.Comment {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	comments := make([]models.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, *c)
		}
	}
	slices.SortStableFunc(comments, func(a, b models.Comment) int { return a.CreatedAt.Compare(b.CreatedAt.Time) })
	return comments
}

func (s *Store) UpdateComment(userID, commentID, content string) (*models.Comment, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	comment, err := s.ownComment(userID, commentID)
	if err != nil {
		return nil, err
	}
	comment.Content = content
	updated := s.timestamp()
	comment.UpdatedAt = &updated
	c := *comment
	return &c, nil
}

func (s *Store) DeleteComment(userID, commentID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.ownComment(userID, commentID); err != nil {
		return err
	}
	s.comments = slices.DeleteFunc(s.comments, func(c *models.Comment) bool { return c.ID == commentID })
	return nil
}

func (s *Store) ownComment(userID, commentID string) (*models.Comment, error) {
	i := collectionutils.IndexOf(s.comments, func(c *models.Comment) bool { return c.ID == commentID })
	if i < 0 {
		return nil, NoRecordFound
	}
	if s.comments[i].AuthorID != userID {
		return nil, ErrNotAuthor
	}
	return s.comments[i], nil
}

func (s *Store) accountBy(match func(*account) bool) *account {
	i := collectionutils.IndexOf(s.accounts, match)
	if i < 0 {
		return nil
	}
	return s.accounts[i]
}

func (s *Store) postBy(id string) *models.Post {
	i := collectionutils.IndexOf(s.posts, func(p *models.Post) bool { return p.ID == id })
	if i < 0 {
		return nil
	}
	return s.posts[i]
}

func (s *Store) postView(p *models.Post) *models.Post {
	view := p.Clone()
	ratings := s.ratings[p.ID]
	view.RatingsCount = int64(len(ratings))
	view.AverageRating = average(ratings)
	for _, c := range s.comments {
		if c.PostID == p.ID {
			view.CommentsCount++
		}
	}
	return view
}

func (s *Store) postViews(posts []*models.Post) []models.Post {
	return functional.Map(posts, func(p *models.Post) models.Post { return *s.postView(p) })
}

func average(ratings map[string]*models.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	total := 0
	for _, r := range ratings {
		total += r.Rating
	}
	return round2(float64(total) / float64(len(ratings)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Store) followers(userID string) int64 {
	var n int64
	for _, following := range s.follows {
		if _, ok := following[userID]; ok {
			n++
		}
	}
	return n
}

// mojo = 5*posts + 10*average quality + 0.1*visits + interactions + 3*followers,
// where interactions are the ratings received plus the comments written.
func (s *Store) mojo(userID string) float64 {
	var posts, visits, ratingsReceived, ratingTotal, written int
	for _, p := range s.posts {
		if p.AuthorID != userID {
			continue
		}
		posts++
		visits += int(p.Visits)
		for _, r := range s.ratings[p.ID] {
			ratingsReceived++
			ratingTotal += r.Rating
		}
	}
	for _, c := range s.comments {
		if c.AuthorID == userID {
			written++
		}
	}

	quality := 0.0
	if ratingsReceived > 0 {
		quality = float64(ratingTotal) / float64(ratingsReceived)
	}
	mojo := float64(posts)*5 + quality*10 + float64(visits)*0.1 +
		float64(ratingsReceived+written) + float64(s.followers(userID))*3
	return round2(mojo)
}

func (s *Store) userView(a *account) *models.User {
	user := a.user.Clone()
	user.Mojo = s.mojo(a.user.ID)
	user.FollowersCount = s.followers(a.user.ID)
	user.FollowingCount = int64(len(s.follows[a.user.ID]))
	for _, p := range s.posts {
		if p.AuthorID == a.user.ID {
			user.PostsCount++
		}
	}
	return user
}

func (s *Store) authorView(a *account) (models.Author, bool) {
	author := models.Author{
		ID:             a.user.ID,
		Username:       a.user.Username,
		Avatar:         a.user.Avatar,
		Mojo:           s.mojo(a.user.ID),
		FollowersCount: s.followers(a.user.ID),
		CreatedAt:      a.user.CreatedAt,
	}
	if a.user.Bio != nil {
		author.Bio = *a.user.Bio
	}

	var ratingSum float64
	for _, p := range s.posts {
		if p.AuthorID != a.user.ID {
			continue
		}
		author.PostsCount++
		author.TotalVisits += p.Visits
		for _, r := range s.ratings[p.ID] {
			author.RatingsCount++
			ratingSum += float64(r.Rating)
		}
	}
	if author.PostsCount == 0 {
		return models.Author{}, false
	}
	if author.RatingsCount > 0 {
		author.AverageRating = round2(ratingSum / float64(author.RatingsCount))
	}
	return author, true
}

func paginate[T any](items []T, page filter.Page) []T {
	start := min(int(page.Skip), len(items))
	end := min(start+int(page.Limit), len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
