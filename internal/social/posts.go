package social

import (
	"context"

	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/models"
)

const ConversionFallbackMessage = "Could not convert the image to black and white, uploading the original"

// PublishPost validates the editor input, converts the image to black and
// white and creates the post.
func (c *Controller) PublishPost(ctx context.Context, input models.PostInput) (*models.Post, error) {
	if _, err := c.requireIdentity("publish posts"); err != nil {
		return nil, err
	}
	normalized, err := c.preparePost(input)
	if err != nil {
		return nil, err
	}

	post, err := c.api.CreatePost(ctx, normalized)
	if err != nil {
		return nil, c.fail(err, "Could not publish post")
	}
	c.refreshIdentity(ctx)
	c.notifier.Notify(notify.LevelSuccess, "Post published")
	return post, nil
}

// UpdatePost saves new editor input for current, which the viewer must have
// written. Without a new image the backend keeps the existing one.
func (c *Controller) UpdatePost(ctx context.Context, current *models.Post, input models.PostInput) (*models.Post, error) {
	viewer, err := c.requireIdentity("edit posts")
	if err != nil {
		return nil, err
	}
	if !isPostAuthor(viewer, current) {
		c.notifier.Notify(notify.LevelError, "You can only edit your own posts")
		return nil, ErrNotAuthor
	}
	normalized, err := c.preparePost(input)
	if err != nil {
		return nil, err
	}

	post, err := c.api.UpdatePost(ctx, current.ID, normalized)
	if err != nil {
		return nil, c.fail(err, "Could not update post")
	}
	c.notifier.Notify(notify.LevelSuccess, "Post updated")
	return post, nil
}

// DeletePost deletes a post the viewer wrote. Views passed in drop the post
// once the backend confirms.
func (c *Controller) DeletePost(ctx context.Context, post *models.Post, mine *MyProfileView, detail *PostView) error {
	viewer, err := c.requireIdentity("delete posts")
	if err != nil {
		return err
	}
	if !isPostAuthor(viewer, post) {
		c.notifier.Notify(notify.LevelError, "You can only delete your own posts")
		return ErrNotAuthor
	}

	result, err := c.api.DeletePost(ctx, post.ID)
	if err != nil {
		return c.fail(err, "Could not delete post")
	}

	c.apply(ctx, func() {
		if mine != nil {
			mine.removePost(post.ID)
		}
		if detail != nil {
			detail.mutex.Lock()
			detail.deleted = true
			detail.mutex.Unlock()
		}
	})
	c.refreshIdentity(ctx)
	c.notifier.Notify(notify.LevelSuccess, result.Message)
	return nil
}

// ToggleArchive flips a post's archived flag. The local flag follows the
// backend's answer, never a guess, and the list is reloaded afterwards.
func (c *Controller) ToggleArchive(ctx context.Context, postID string, mine *MyProfileView) (*models.ArchiveResult, error) {
	if _, err := c.requireIdentity("archive posts"); err != nil {
		return nil, err
	}

	result, err := c.api.ToggleArchive(ctx, postID)
	if err != nil {
		return nil, c.fail(err, "Could not change the archive state")
	}
	c.notifier.Notify(notify.LevelSuccess, result.Message)

	if mine == nil {
		return result, nil
	}
	c.apply(ctx, func() { mine.setArchived(postID, result.Archived) })
	if err := c.LoadMyProfile(ctx, mine); err != nil {
		c.log.Warn("reloading posts after archive failed", "error", err)
	}
	return result, nil
}

// preparePost validates input and converts its image. A failed conversion
// falls back to the original image.
func (c *Controller) preparePost(input models.PostInput) (models.PostInput, error) {
	normalized, err := forms.ValidatePost(input)
	if err != nil {
		return models.PostInput{}, err
	}
	if normalized.Image == nil || c.convertImage == nil {
		return normalized, nil
	}

	converted, err := c.convertImage(normalized.Image)
	if err != nil {
		c.log.Warn("image conversion failed", "error", err, "filename", normalized.Image.Filename)
		c.notifier.Notify(notify.LevelInfo, ConversionFallbackMessage)
		return normalized, nil
	}
	normalized.Image = converted
	return normalized, nil
}
