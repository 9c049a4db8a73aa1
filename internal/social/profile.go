package social

import (
	"context"
	"errors"

	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/models"
)

// UpdateProfile sends the fields of form that differ from the current
// identity and patches the identity with the backend's answer.
func (c *Controller) UpdateProfile(ctx context.Context, form forms.ProfileForm) (*models.User, error) {
	viewer, err := c.requireIdentity("edit your profile")
	if err != nil {
		return nil, err
	}

	update, err := forms.ValidateProfile(viewer, form)
	if errors.Is(err, forms.ErrNoChanges) {
		c.notifier.Notify(notify.LevelInfo, "No changes to save")
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	user, err := c.api.UpdateProfile(ctx, update)
	if err != nil {
		return nil, c.fail(err, "Could not update profile")
	}

	c.identity.UpdateIdentity(models.PatchFromUser(user))
	c.notifier.Notify(notify.LevelSuccess, "Profile updated")
	return user, nil
}
