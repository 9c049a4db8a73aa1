package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/forms"
)

func (app *application) loginViewHandler(w http.ResponseWriter, r *http.Request) {
	if app.auth.Snapshot().IsAuthenticated() {
		app.redirectResponse(w, r, "/")
		return
	}
	app.render(w, r, http.StatusOK, envelope{
		"form":   "login",
		"fields": []forms.LoginField{forms.LoginEmail, forms.LoginPassword},
	})
}

func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if err := forms.ValidateLogin(email, password); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	if err := app.auth.Login(r.Context(), email, password); err != nil {
		// Wrong credentials are answered with 401 by the backend. That is a
		// failed form here, not an expired session.
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			app.errorResponse(w, r, http.StatusUnauthorized, &AppError{ErrorMessage: apiErr.Message})
			return
		}
		app.actionErrorResponse(w, r, err)
		return
	}
	app.redirectResponse(w, r, "/")
}

func (app *application) registerViewHandler(w http.ResponseWriter, r *http.Request) {
	if app.auth.Snapshot().IsAuthenticated() {
		app.redirectResponse(w, r, "/")
		return
	}
	app.render(w, r, http.StatusOK, envelope{
		"form": "register",
		"fields": []forms.RegisterField{
			forms.RegisterUsername, forms.RegisterEmail, forms.RegisterPassword,
			forms.RegisterConfirmPassword, forms.RegisterBio,
		},
	})
}

// registerHandler creates the account only. The client is sent to the login
// view afterwards.
func (app *application) registerHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		app.formErrorResponse(w, r, err)
		return
	}

	request, err := forms.ValidateRegister(forms.RegisterForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Bio:             r.PostFormValue("bio"),
	})
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}

	if _, err := app.auth.Register(r.Context(), request); err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.redirectResponse(w, r, "/login")
}

func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	app.auth.Logout(r.Context())
	app.redirectResponse(w, r, "/")
}
