package main

import "net/http"

func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	view, err := app.postView(r.Context(), param(r, "id"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	comment, err := app.social.AddComment(r.Context(), view, r.PostFormValue("content"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusCreated, envelope{"comment": comment, "post": app.postViewModel(view)})
}

func (app *application) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	view, err := app.postView(r.Context(), param(r, "id"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	comment, err := app.social.EditComment(r.Context(), view, param(r, "commentID"), r.PostFormValue("content"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{"comment": comment, "post": app.postViewModel(view)})
}

func (app *application) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	view, err := app.postView(r.Context(), param(r, "id"))
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	if err := app.social.DeleteComment(r.Context(), view, param(r, "commentID")); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{"post": app.postViewModel(view)})
}
