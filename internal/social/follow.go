package social

import (
	"context"

	"github.com/siahsang/beatpost/internal/notify"
)

// followTarget is a view that shows a follow toggle.
type followTarget interface {
	following() bool
	// setFollowing returns the undo for exactly the change it made.
	setFollowing(bool) (undo func())
}

type followGuard interface {
	TryAcquire(n int64) bool
	Release(n int64)
}

// FollowFromPost toggles following the author of the post shown in view.
func (c *Controller) FollowFromPost(ctx context.Context, view *PostView) error {
	post := view.snapshotPost()
	if post == nil {
		return ErrPostNotLoaded
	}
	return c.toggleFollow(ctx, post.AuthorUsername, view, view.follow)
}

// FollowFromProfile toggles following the author whose profile view shows.
// The follower count moves with the flag.
func (c *Controller) FollowFromProfile(ctx context.Context, view *ProfileView) error {
	return c.toggleFollow(ctx, view.username, view, view.follow)
}

// toggleFollow flips the local flag before the request goes out and restores
// it when the request fails. The rollback is applied even when the view has
// closed, so a reopened view never keeps a state the backend rejected.
func (c *Controller) toggleFollow(ctx context.Context, username string, target followTarget, guard followGuard) error {
	viewer, err := c.requireIdentity("follow authors")
	if err != nil {
		return err
	}
	if viewer.Username == username {
		c.notifier.Notify(notify.LevelError, "You cannot follow yourself")
		return ErrSelfFollow
	}
	if !guard.TryAcquire(1) {
		return ErrFollowInFlight
	}
	defer guard.Release(1)

	undo := target.setFollowing(!target.following())

	result, err := c.api.ToggleFollow(ctx, username)
	if err != nil {
		undo()
		return c.fail(err, "Could not update follow status")
	}

	c.refreshIdentity(ctx)
	c.notifier.Notify(notify.LevelSuccess, result.Message)
	return nil
}
