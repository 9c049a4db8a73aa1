package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/navigation"
	"github.com/siahsang/beatpost/internal/social"
)

type postDetail struct {
	social.PostViewModel
	Published string `json:"published,omitempty"`
}

func (app *application) postViewModel(view *social.PostView) postDetail {
	viewer, _ := app.auth.Identity()
	detail := postDetail{PostViewModel: view.ViewModel(viewer)}
	if detail.Post != nil {
		detail.Published = humanize.Time(detail.Post.CreatedAt.Time)
	}
	return detail
}

// showPostHandler opens a fresh post view. A missing post renders as a view
// with found set to false.
func (app *application) showPostHandler(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	view := social.NewPostView(id)
	app.posts.Store(id, view)

	err := app.social.LoadPost(r.Context(), view)
	detail := app.postViewModel(view)
	if err == nil && !scopeAlive(r) {
		err = social.ErrViewClosed
	}
	if err != nil && (!detail.Found || !scopeAlive(r)) {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, detail)
}

// postView returns the post view actions apply to, loading it first when the
// client never opened it.
func (app *application) postView(ctx context.Context, id string) (*social.PostView, error) {
	view := app.posts.GetOrCreate(id, func() *social.PostView {
		return social.NewPostView(id)
	})
	if view.ViewModel(nil).Loaded {
		return view, nil
	}
	// A failed comments load still leaves a usable post.
	err := app.social.LoadPost(ctx, view)
	model := view.ViewModel(nil)
	switch {
	case !model.Loaded && err != nil:
		return nil, err
	case !model.Loaded:
		return nil, social.ErrViewClosed
	case !model.Found:
		app.posts.Delete(id)
		return nil, social.ErrPostNotLoaded
	}
	return view, nil
}

func (app *application) editorHandler(w http.ResponseWriter, r *http.Request) {
	limits := envelope{
		"title":    []int{forms.MinTitleLength, forms.MaxTitleLength},
		"content":  []int{forms.MinContentLength, forms.MaxContentLength},
		"hashtags": []int{forms.MinHashtags, forms.MaxHashtags},
		"image":    humanize.IBytes(forms.MaxPostImageBytes),
	}

	id := r.URL.Query().Get("edit")
	if id == "" {
		app.render(w, r, http.StatusOK, envelope{"mode": "create", "limits": limits})
		return
	}

	post, err := app.social.LoadEditablePost(r.Context(), id)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{"mode": "edit", "post": post, "limits": limits})
}

func (app *application) publishPostHandler(w http.ResponseWriter, r *http.Request) {
	input, err := readPostInput(w, r)
	if err != nil {
		app.formErrorResponse(w, r, err)
		return
	}

	post, err := app.social.PublishPost(r.Context(), input)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Location", "/post/"+post.ID)
	app.render(w, r, http.StatusCreated, envelope{"post": post})
}

func (app *application) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	input, err := readPostInput(w, r)
	if err != nil {
		app.formErrorResponse(w, r, err)
		return
	}

	current, err := app.social.LoadEditablePost(r.Context(), id)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	post, err := app.social.UpdatePost(r.Context(), current, input)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	app.posts.Delete(id)
	app.render(w, r, http.StatusOK, envelope{"post": post})
}

func (app *application) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	view, err := app.postView(r.Context(), id)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	model := view.ViewModel(nil)
	if err := app.social.DeletePost(r.Context(), model.Post, app.mine, view); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	app.posts.Delete(id)
	app.render(w, r, http.StatusOK, envelope{"deleted": true, "id": id})
}

func (app *application) archivePostHandler(w http.ResponseWriter, r *http.Request) {
	result, err := app.social.ToggleArchive(r.Context(), param(r, "id"), app.mine)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{
		"message":  result.Message,
		"archived": result.Archived,
		"profile":  app.mine.ViewModel(),
	})
}

func (app *application) ratePostHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	rating, err := strconv.Atoi(r.PostFormValue("rating"))
	if err != nil {
		app.actionErrorResponse(w, r, social.ErrInvalidRating)
		return
	}

	view, err := app.postView(r.Context(), param(r, "id"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	if err := app.social.Rate(r.Context(), view, rating); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, app.postViewModel(view))
}

func (app *application) followAuthorHandler(w http.ResponseWriter, r *http.Request) {
	view, err := app.postView(r.Context(), param(r, "id"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	if err := app.social.FollowFromPost(r.Context(), view); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, app.postViewModel(view))
}

func scopeAlive(r *http.Request) bool {
	scope, ok := navigation.FromContext(r.Context())
	return !ok || scope.Alive()
}
