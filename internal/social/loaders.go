package social

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/internal/utils/functional"
	"github.com/siahsang/beatpost/models"
)

// ProfilePostsLimit is how many feed posts are scanned for an author's page.
const ProfilePostsLimit = 50

// LoadPost fetches the post and its comments independently: one failing
// leaves the other shown. A missing post is a normal outcome, not an error.
func (c *Controller) LoadPost(ctx context.Context, view *PostView) error {
	var (
		group       errgroup.Group
		postErr     error
		commentsErr error
	)

	group.Go(func() error {
		post, err := c.api.Post(ctx, view.id)
		if errors.Is(err, apiclient.ErrNotFound) {
			c.apply(ctx, func() { view.setPost(nil) })
			return nil
		}
		if err != nil {
			postErr = c.fail(err, "Could not load the post")
			return nil
		}
		c.apply(ctx, func() { view.setPost(post) })
		return nil
	})
	group.Go(func() error {
		comments, err := c.api.Comments(ctx, view.id)
		if err != nil {
			if !errors.Is(err, apiclient.ErrNotFound) {
				commentsErr = c.fail(err, "Could not load comments")
			}
			return nil
		}
		c.apply(ctx, func() { view.setComments(comments) })
		return nil
	})
	_ = group.Wait()

	return errors.Join(postErr, commentsErr)
}

// LoadProfile fetches an author's profile and their recent posts.
func (c *Controller) LoadProfile(ctx context.Context, view *ProfileView) error {
	var (
		group      errgroup.Group
		profileErr error
		postsErr   error
	)

	group.Go(func() error {
		profile, err := c.api.Profile(ctx, view.username)
		c.apply(ctx, func() {
			view.mutex.Lock()
			defer view.mutex.Unlock()
			view.loaded = true
			view.found = err == nil
			if err == nil {
				view.profile = profile
			}
		})
		if err != nil && !errors.Is(err, apiclient.ErrNotFound) {
			profileErr = c.fail(err, "Could not load the profile")
		}
		return nil
	})
	group.Go(func() error {
		posts, err := c.api.Posts(ctx, filter.PostsQuery{Page: filter.NewPage(0, ProfilePostsLimit)})
		if err != nil {
			postsErr = c.fail(err, "Could not load posts")
			return nil
		}
		authored := functional.Filter(posts, func(p models.Post) bool {
			return p.AuthorUsername == view.username
		})
		c.apply(ctx, func() {
			view.mutex.Lock()
			defer view.mutex.Unlock()
			view.posts = authored
		})
		return nil
	})
	_ = group.Wait()

	return errors.Join(profileErr, postsErr)
}

// LoadMyProfile fetches the viewer's posts with the view's filters, and
// separately all non-archived posts for the stats.
func (c *Controller) LoadMyProfile(ctx context.Context, view *MyProfileView) error {
	viewer, err := c.requireIdentity("see your posts")
	if err != nil {
		return err
	}
	query := view.Query()
	if err := query.Validate(); err != nil {
		return err
	}

	active := false
	statsQuery := filter.DefaultUserPostsQuery()
	statsQuery.Archived = &active

	var (
		group errgroup.Group
		posts []models.Post
		all   []models.Post
	)
	group.Go(func() error {
		var err error
		posts, err = c.api.UserPosts(ctx, viewer.ID, query)
		return err
	})
	group.Go(func() error {
		var err error
		all, err = c.api.UserPosts(ctx, viewer.ID, statsQuery)
		return err
	})
	if err := group.Wait(); err != nil {
		return c.fail(err, "Could not load your posts")
	}

	c.apply(ctx, func() {
		view.mutex.Lock()
		defer view.mutex.Unlock()
		view.posts = posts
		view.stats = ComputeStats(all)
		view.loaded = true
	})
	return nil
}

type FrontpageViewModel struct {
	Posts    []models.Post         `json:"posts"`
	Hashtags []models.HashtagCount `json:"hashtags"`
}

// LoadFrontpage fetches the last day's top posts and the popular hashtags.
func (c *Controller) LoadFrontpage(ctx context.Context) (FrontpageViewModel, error) {
	var model FrontpageViewModel
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		posts, err := c.api.Frontpage(groupCtx)
		model.Posts = posts
		return err
	})
	group.Go(func() error {
		hashtags, err := c.api.PopularHashtags(groupCtx)
		model.Hashtags = hashtags
		return err
	})
	if err := group.Wait(); err != nil {
		return FrontpageViewModel{}, c.fail(err, "Could not load the front page")
	}
	return model, c.alive(ctx)
}

type RanksViewModel struct {
	Hashtag  string                `json:"hashtag,omitempty"`
	Posts    []models.Post         `json:"posts"`
	Hashtags []models.HashtagCount `json:"hashtags"`
}

// LoadRanks fetches the top posts, optionally for one hashtag.
func (c *Controller) LoadRanks(ctx context.Context, hashtag string) (RanksViewModel, error) {
	model := RanksViewModel{Hashtag: hashtag}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		page, err := c.api.Ranks(groupCtx, hashtag)
		if err == nil {
			model.Posts = page.Posts
		}
		return err
	})
	group.Go(func() error {
		hashtags, err := c.api.PopularHashtags(groupCtx)
		model.Hashtags = hashtags
		return err
	})
	if err := group.Wait(); err != nil {
		return RanksViewModel{}, c.fail(err, "Could not load the rankings")
	}
	return model, c.alive(ctx)
}

// LoadAuthors fetches one page of the author directory.
func (c *Controller) LoadAuthors(ctx context.Context, query filter.AuthorsQuery) (*models.AuthorsPage, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	page, err := c.api.Authors(ctx, query)
	if err != nil {
		return nil, c.fail(err, "Could not load authors")
	}
	return page, c.alive(ctx)
}

// LoadFeed fetches the public post feed.
func (c *Controller) LoadFeed(ctx context.Context, query filter.PostsQuery) ([]models.Post, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	posts, err := c.api.Posts(ctx, query)
	if err != nil {
		return nil, c.fail(err, "Could not load posts")
	}
	return posts, c.alive(ctx)
}

// LoadEditablePost fetches a post for the editor. Only its author may edit it.
func (c *Controller) LoadEditablePost(ctx context.Context, id string) (*models.Post, error) {
	viewer, err := c.requireIdentity("edit posts")
	if err != nil {
		return nil, err
	}
	post, err := c.api.Post(ctx, id)
	if err != nil {
		return nil, c.fail(err, "Could not load the post")
	}
	if !isPostAuthor(viewer, post) {
		c.notifier.Notify(notify.LevelError, "You can only edit your own posts")
		return nil, ErrNotAuthor
	}
	return post, c.alive(ctx)
}

// alive reports ErrViewClosed when the view that asked for a result is gone.
func (c *Controller) alive(ctx context.Context) error {
	if !c.apply(ctx, func() {}) {
		return ErrViewClosed
	}
	return nil
}
