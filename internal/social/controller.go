// Package social holds the per-view controllers that mutate posts, comments
// and follow relationships, and the loaders that fill those views.
//
// Updates are applied only after the backend confirmed them, with one
// exception: follow toggles flip the local flag before the request and roll
// it back if the request fails.
package social

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/auth"
	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/navigation"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/models"
)

var (
	ErrNotAuthenticated = xerrors.Message("you must be logged in")
	ErrSelfFollow       = xerrors.Message("you cannot follow yourself")
	ErrFollowInFlight   = xerrors.Message("a follow request is already in flight")
	ErrRatingInFlight   = xerrors.Message("a rating is already being submitted")
	ErrInvalidRating    = xerrors.Message("rating must be between 1 and 5")
	ErrNotAuthor        = xerrors.Message("only the author can do that")
	ErrCommentNotFound  = xerrors.Message("comment not found")
	ErrPostNotLoaded    = xerrors.Message("post not loaded")
	ErrViewClosed       = xerrors.Message("view closed before the response arrived")
)

// API is the slice of the remote API client the controllers use.
type API interface {
	Profile(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
	ToggleFollow(ctx context.Context, username string) (*models.Message, error)
	Posts(ctx context.Context, query filter.PostsQuery) ([]models.Post, error)
	Post(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, input models.PostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, input models.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, id string) (*models.Message, error)
	ToggleArchive(ctx context.Context, id string) (*models.ArchiveResult, error)
	RatePost(ctx context.Context, id string, rating int) (*models.Rating, error)
	Comments(ctx context.Context, postID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, postID, content string) (*models.Comment, error)
	UpdateComment(ctx context.Context, commentID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID string) (*models.Message, error)
	PopularHashtags(ctx context.Context) ([]models.HashtagCount, error)
	Authors(ctx context.Context, query filter.AuthorsQuery) (*models.AuthorsPage, error)
	Frontpage(ctx context.Context) ([]models.Post, error)
	Ranks(ctx context.Context, hashtag string) (*models.RanksPage, error)
	UserPosts(ctx context.Context, userID string, query filter.UserPostsQuery) ([]models.Post, error)
}

// Identity is the read side of the auth manager plus its local patch and a
// reload for counters only the backend can compute.
type Identity interface {
	Snapshot() auth.Snapshot
	UpdateIdentity(patch models.UserPatch) bool
	RefreshIdentity(ctx context.Context) error
}

// ImageConverter prepares an upload before it is sent, e.g. turning it black
// and white.
type ImageConverter func(upload *models.Upload) (*models.Upload, error)

type Controller struct {
	api          API
	identity     Identity
	notifier     notify.Notifier
	log          *slog.Logger
	convertImage ImageConverter
}

func NewController(api API, identity Identity, notifier notify.Notifier, convertImage ImageConverter, log *slog.Logger) *Controller {
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		api:          api,
		identity:     identity,
		notifier:     notifier,
		log:          log,
		convertImage: convertImage,
	}
}

// requireIdentity returns the current identity or fails with
// ErrNotAuthenticated after telling the user why.
func (c *Controller) requireIdentity(action string) (*models.User, error) {
	snapshot := c.identity.Snapshot()
	if !snapshot.IsAuthenticated() || snapshot.Identity == nil {
		c.notifier.Notify(notify.LevelError, "You must be logged in to "+action)
		return nil, ErrNotAuthenticated
	}
	return snapshot.Identity, nil
}

// apply runs fn unless the view scope carried by ctx has closed. Outside of a
// scope fn always runs.
func (c *Controller) apply(ctx context.Context, fn func()) bool {
	scope, ok := navigation.FromContext(ctx)
	if !ok {
		fn()
		return true
	}
	if scope.Apply(fn) {
		return true
	}
	c.log.Debug("dropping response for closed view", slog.String("view", scope.Path()))
	return false
}

// fail reports err to the user. Unauthorized responses are left to the
// client's unauthorized handler, which already moves the user to the login
// view, and cancelled requests belong to views nobody sees anymore.
func (c *Controller) fail(err error, fallback string) error {
	if errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return err
	}
	c.notifier.Notify(notify.LevelError, apiclient.Message(err, fallback))
	return err
}

// refreshIdentity reloads the viewer's counters after an action that moved
// them. A failed reload keeps the old identity.
func (c *Controller) refreshIdentity(ctx context.Context) {
	if err := c.identity.RefreshIdentity(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn("refreshing identity failed", "error", err)
	}
}
