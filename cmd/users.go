package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/social"
	"github.com/siahsang/beatpost/internal/web"
)

type profileDetail struct {
	social.ProfileViewModel
	Posts []postSummary `json:"posts"`
}

func (app *application) profileViewModel(view *social.ProfileView) profileDetail {
	viewer, _ := app.auth.Identity()
	model := view.ViewModel(viewer)
	return profileDetail{ProfileViewModel: model, Posts: summarize(model.Posts)}
}

// showProfileHandler opens a fresh author profile. An unknown author renders
// as a view with found set to false.
func (app *application) showProfileHandler(w http.ResponseWriter, r *http.Request) {
	username := param(r, "username")
	view := social.NewProfileView(username)
	app.profiles.Store(username, view)

	err := app.social.LoadProfile(r.Context(), view)
	detail := app.profileViewModel(view)
	if err == nil && !scopeAlive(r) {
		err = social.ErrViewClosed
	}
	if err != nil && (!detail.Found || !scopeAlive(r)) {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, detail)
}

func (app *application) profileView(ctx context.Context, username string) (*social.ProfileView, error) {
	view := app.profiles.GetOrCreate(username, func() *social.ProfileView {
		return social.NewProfileView(username)
	})
	if view.ViewModel(nil).Loaded {
		return view, nil
	}
	err := app.social.LoadProfile(ctx, view)
	model := view.ViewModel(nil)
	switch {
	case !model.Found && err != nil:
		return nil, err
	case !model.Loaded:
		return nil, social.ErrViewClosed
	case !model.Found:
		app.profiles.Delete(username)
		return nil, apiclient.ErrNotFound
	}
	return view, nil
}

func (app *application) followProfileHandler(w http.ResponseWriter, r *http.Request) {
	view, err := app.profileView(r.Context(), param(r, "username"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	if err := app.social.FollowFromProfile(r.Context(), view); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, app.profileViewModel(view))
}

func (app *application) myProfileHandler(w http.ResponseWriter, r *http.Request) {
	query, err := readUserPostsQuery(r.URL.Query())
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	app.mine.SetQuery(query)
	if err := app.social.LoadMyProfile(r.Context(), app.mine); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	model := app.mine.ViewModel()
	app.render(w, r, http.StatusOK, envelope{
		"posts": summarize(model.Posts),
		"stats": model.Stats,
		"query": envelope{
			"skip":     query.Skip,
			"limit":    query.Limit,
			"sort_by":  query.SortBy,
			"search":   query.Search,
			"archived": query.Archived,
		},
	})
}

// updateProfileHandler treats a field missing from the form as unchanged.
func (app *application) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxProfileFormBytes); err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	avatar, err := web.ReadUpload(r, "avatar", forms.MaxAvatarBytes)
	if err != nil {
		app.formErrorResponse(w, r, err)
		return
	}

	form := forms.ProfileForm{Avatar: avatar}
	if current, ok := app.auth.Identity(); ok {
		form.Username = current.Username
		if current.Bio != nil {
			form.Bio = *current.Bio
		}
	}
	if _, ok := r.PostForm["username"]; ok {
		form.Username = r.PostFormValue("username")
	}
	if _, ok := r.PostForm["bio"]; ok {
		form.Bio = r.PostFormValue("bio")
	}

	user, err := app.social.UpdateProfile(r.Context(), form)
	if errors.Is(err, forms.ErrNoChanges) {
		app.render(w, r, http.StatusOK, envelope{"changed": false})
		return
	}
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{"changed": true, "user": user})
}
