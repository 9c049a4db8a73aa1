package social

import (
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/utils/collectionutils"
	"github.com/siahsang/beatpost/internal/utils/functional"
	"github.com/siahsang/beatpost/models"
)

// CommentView is a comment as the post view renders it.
type CommentView struct {
	models.Comment
	Edited  bool `json:"edited"`
	CanEdit bool `json:"can_edit"`
}

// PostView is the state of one open post detail view.
type PostView struct {
	id string

	mutex       sync.Mutex
	post        *models.Post
	comments    []models.Comment
	isFollowing bool
	userRating  int
	found       bool
	loaded      bool
	deleted     bool

	rating *semaphore.Weighted
	follow *semaphore.Weighted
}

func NewPostView(id string) *PostView {
	return &PostView{
		id:     id,
		rating: semaphore.NewWeighted(1),
		follow: semaphore.NewWeighted(1),
	}
}

func (v *PostView) ID() string {
	return v.id
}

type PostViewModel struct {
	Post        *models.Post  `json:"post,omitempty"`
	Comments    []CommentView `json:"comments"`
	IsFollowing bool          `json:"is_following"`
	UserRating  int           `json:"user_rating,omitempty"`
	CanEdit     bool          `json:"can_edit"`
	Found       bool          `json:"found"`
	Loaded      bool          `json:"loaded"`
	Deleted     bool          `json:"deleted"`
}

// ViewModel returns a copy of the view for rendering. viewer may be nil.
func (v *PostView) ViewModel(viewer *models.User) PostViewModel {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return PostViewModel{
		Post: v.post.Clone(),
		Comments: functional.Map(v.comments, func(c models.Comment) CommentView {
			return CommentView{Comment: c, Edited: c.Edited(), CanEdit: isCommentAuthor(viewer, c)}
		}),
		IsFollowing: v.isFollowing,
		UserRating:  v.userRating,
		CanEdit:     v.post != nil && isPostAuthor(viewer, v.post),
		Found:       v.found,
		Loaded:      v.loaded,
		Deleted:     v.deleted,
	}
}

func (v *PostView) setPost(post *models.Post) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.loaded = true
	v.found = post != nil
	v.post = post
}

func (v *PostView) setComments(comments []models.Comment) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.comments = slices.Clone(comments)
}

func (v *PostView) setUserRating(rating int) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.userRating = rating
}

func (v *PostView) snapshotPost() *models.Post {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.post.Clone()
}

func (v *PostView) comment(id string) (models.Comment, bool) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	for _, c := range v.comments {
		if c.ID == id {
			return c, true
		}
	}
	return models.Comment{}, false
}

func (v *PostView) setFollowing(following bool) func() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	previous := v.isFollowing
	v.isFollowing = following
	return func() {
		v.mutex.Lock()
		defer v.mutex.Unlock()
		v.isFollowing = previous
	}
}

func (v *PostView) following() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.isFollowing
}

// ProfileView is the state of another author's profile page.
type ProfileView struct {
	username string

	mutex       sync.Mutex
	profile     *models.User
	posts       []models.Post
	isFollowing bool
	found       bool
	loaded      bool

	follow *semaphore.Weighted
}

func NewProfileView(username string) *ProfileView {
	return &ProfileView{username: username, follow: semaphore.NewWeighted(1)}
}

func (v *ProfileView) Username() string {
	return v.username
}

type ProfileViewModel struct {
	Profile     *models.User  `json:"profile,omitempty"`
	Posts       []models.Post `json:"posts"`
	IsFollowing bool          `json:"is_following"`
	IsSelf      bool          `json:"is_self"`
	Found       bool          `json:"found"`
	Loaded      bool          `json:"loaded"`
}

func (v *ProfileView) ViewModel(viewer *models.User) ProfileViewModel {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return ProfileViewModel{
		Profile:     v.profile.Clone(),
		Posts:       slices.Clone(v.posts),
		IsFollowing: v.isFollowing,
		IsSelf:      viewer != nil && viewer.Username == v.username,
		Found:       v.found,
		Loaded:      v.loaded,
	}
}

// setFollowing flips the follow flag and moves the follower count with it.
// The count never goes below zero; the undo reverts only the step that was
// actually applied.
func (v *ProfileView) setFollowing(following bool) func() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	previous, profile := v.isFollowing, v.profile
	var delta int64
	if previous != following && profile != nil {
		if following {
			delta = 1
		} else if v.profile.FollowersCount > 0 {
			delta = -1
		}
		v.profile.FollowersCount += delta
	}
	v.isFollowing = following
	return func() {
		v.mutex.Lock()
		defer v.mutex.Unlock()
		v.isFollowing = previous
		// A reload in between already carries the backend's count.
		if v.profile == profile && profile != nil {
			profile.FollowersCount -= delta
		}
	}
}

func (v *ProfileView) following() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.isFollowing
}

// Stats summarizes the viewer's non-archived posts.
type Stats struct {
	TotalPosts    int     `json:"total_posts"`
	TotalViews    int64   `json:"total_views"`
	TotalRatings  int64   `json:"total_ratings"`
	AverageRating float64 `json:"average_rating"`
	TotalComments int64   `json:"total_comments"`
}

func ComputeStats(posts []models.Post) Stats {
	active := functional.Filter(posts, func(p models.Post) bool { return !p.Archived })

	stats := Stats{TotalPosts: len(active)}
	var ratingSum float64
	for _, p := range active {
		stats.TotalViews += p.Visits
		stats.TotalRatings += p.RatingsCount
		stats.TotalComments += p.CommentsCount
		ratingSum += p.AverageRating
	}
	if len(active) > 0 {
		stats.AverageRating = ratingSum / float64(len(active))
	}
	return stats
}

// MyProfileView is the signed-in author's own post list.
type MyProfileView struct {
	mutex  sync.Mutex
	query  filter.UserPostsQuery
	posts  []models.Post
	stats  Stats
	loaded bool
}

func NewMyProfileView(query filter.UserPostsQuery) *MyProfileView {
	return &MyProfileView{query: query}
}

type MyProfileViewModel struct {
	Query  filter.UserPostsQuery `json:"-"`
	Posts  []models.Post         `json:"posts"`
	Stats  Stats                 `json:"stats"`
	Loaded bool                  `json:"loaded"`
}

func (v *MyProfileView) ViewModel() MyProfileViewModel {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return MyProfileViewModel{
		Query:  v.query,
		Posts:  slices.Clone(v.posts),
		Stats:  v.stats,
		Loaded: v.loaded,
	}
}

func (v *MyProfileView) Query() filter.UserPostsQuery {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.query
}

func (v *MyProfileView) SetQuery(query filter.UserPostsQuery) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.query = query
}

func (v *MyProfileView) removePost(id string) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if i := indexOfPost(v.posts, id); i >= 0 {
		v.posts = slices.Delete(slices.Clone(v.posts), i, i+1)
	}
}

// setArchived records a confirmed archive flag. A post that no longer matches
// the archived filter leaves the list.
func (v *MyProfileView) setArchived(id string, archived bool) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	i := indexOfPost(v.posts, id)
	if i < 0 {
		return
	}
	if v.query.Archived != nil && *v.query.Archived != archived {
		v.posts = slices.Delete(slices.Clone(v.posts), i, i+1)
		return
	}
	v.posts = slices.Clone(v.posts)
	v.posts[i].Archived = archived
}

func indexOfPost(posts []models.Post, id string) int {
	return collectionutils.IndexOf(posts, func(p models.Post) bool { return p.ID == id })
}

func isPostAuthor(viewer *models.User, post *models.Post) bool {
	if viewer == nil || post == nil {
		return false
	}
	if post.AuthorID != "" {
		return post.AuthorID == viewer.ID
	}
	return post.AuthorUsername == viewer.Username
}

func isCommentAuthor(viewer *models.User, comment models.Comment) bool {
	if viewer == nil {
		return false
	}
	if comment.AuthorID != "" {
		return comment.AuthorID == viewer.ID
	}
	return comment.AuthorUsername == viewer.Username
}
