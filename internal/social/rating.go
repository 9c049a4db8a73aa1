package social

import (
	"context"

	"github.com/siahsang/beatpost/internal/notify"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Rate submits the viewer's rating for the post in view. A rating submitted
// while another one is in flight is dropped without a request. After the
// backend accepts it the post is fetched again for the new average.
func (c *Controller) Rate(ctx context.Context, view *PostView, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	if _, err := c.requireIdentity("rate posts"); err != nil {
		return err
	}
	if !view.rating.TryAcquire(1) {
		return ErrRatingInFlight
	}
	defer view.rating.Release(1)

	if _, err := c.api.RatePost(ctx, view.id, rating); err != nil {
		return c.fail(err, "Could not submit rating")
	}
	c.notifier.Notify(notify.LevelSuccess, "Rating submitted")

	c.apply(ctx, func() { view.setUserRating(rating) })

	post, err := c.api.Post(ctx, view.id)
	if err != nil {
		return c.fail(err, "Could not refresh the post")
	}
	c.apply(ctx, func() { view.setPost(post) })
	return nil
}
