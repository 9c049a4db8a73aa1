package social

import (
	"context"
	"slices"

	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/internal/utils/collectionutils"
	"github.com/siahsang/beatpost/models"
)

// AddComment validates content and appends the comment the backend returns.
func (c *Controller) AddComment(ctx context.Context, view *PostView, content string) (*models.Comment, error) {
	if _, err := c.requireIdentity("comment"); err != nil {
		return nil, err
	}
	trimmed, err := forms.ValidateComment(content)
	if err != nil {
		return nil, err
	}

	comment, err := c.api.CreateComment(ctx, view.id, trimmed)
	if err != nil {
		return nil, c.fail(err, "Could not add comment")
	}

	c.apply(ctx, func() {
		view.mutex.Lock()
		defer view.mutex.Unlock()
		view.comments = append(slices.Clone(view.comments), *comment)
		if view.post != nil {
			view.post.CommentsCount++
		}
	})
	c.notifier.Notify(notify.LevelSuccess, "Comment added")
	return comment, nil
}

// EditComment replaces a comment the viewer wrote once the backend confirms
// the new content.
func (c *Controller) EditComment(ctx context.Context, view *PostView, commentID, content string) (*models.Comment, error) {
	if err := c.checkCommentAuthor(view, commentID, "edit comments"); err != nil {
		return nil, err
	}
	trimmed, err := forms.ValidateComment(content)
	if err != nil {
		return nil, err
	}

	updated, err := c.api.UpdateComment(ctx, commentID, trimmed)
	if err != nil {
		return nil, c.fail(err, "Could not update comment")
	}

	c.apply(ctx, func() {
		view.mutex.Lock()
		defer view.mutex.Unlock()
		view.comments, _ = collectionutils.ReplaceFirst(view.comments, matchComment(commentID), *updated)
	})
	c.notifier.Notify(notify.LevelSuccess, "Comment updated")
	return updated, nil
}

// DeleteComment removes a comment the viewer wrote once the backend confirms.
func (c *Controller) DeleteComment(ctx context.Context, view *PostView, commentID string) error {
	if err := c.checkCommentAuthor(view, commentID, "delete comments"); err != nil {
		return err
	}

	result, err := c.api.DeleteComment(ctx, commentID)
	if err != nil {
		return c.fail(err, "Could not delete comment")
	}

	c.apply(ctx, func() {
		view.mutex.Lock()
		defer view.mutex.Unlock()
		if i := collectionutils.IndexOf(view.comments, matchComment(commentID)); i >= 0 {
			view.comments = slices.Delete(slices.Clone(view.comments), i, i+1)
			if view.post != nil && view.post.CommentsCount > 0 {
				view.post.CommentsCount--
			}
		}
	})
	c.notifier.Notify(notify.LevelSuccess, result.Message)
	return nil
}

func (c *Controller) checkCommentAuthor(view *PostView, commentID, action string) error {
	viewer, err := c.requireIdentity(action)
	if err != nil {
		return err
	}
	comment, ok := view.comment(commentID)
	if !ok {
		return ErrCommentNotFound
	}
	if !isCommentAuthor(viewer, comment) {
		c.notifier.Notify(notify.LevelError, "You can only change your own comments")
		return ErrNotAuthor
	}
	return nil
}

func matchComment(id string) func(models.Comment) bool {
	return func(c models.Comment) bool { return c.ID == id }
}
