package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/siahsang/beatpost/internal/web"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/healthz", app.healthcheckHandler)

	// Views open to everyone
	router.HandlerFunc(http.MethodGet, "/", app.enterView(app.frontpageHandler))
	router.HandlerFunc(http.MethodGet, "/ranks", app.enterView(app.ranksHandler))
	router.HandlerFunc(http.MethodGet, "/authors", app.enterView(app.authorsHandler))
	router.HandlerFunc(http.MethodGet, "/post/:id", app.enterView(app.showPostHandler))
	router.HandlerFunc(http.MethodGet, "/beatnik/:username", app.enterView(app.showProfileHandler))
	router.HandlerFunc(http.MethodGet, "/login", app.enterView(app.loginViewHandler))
	router.HandlerFunc(http.MethodGet, "/register", app.enterView(app.registerViewHandler))

	router.HandlerFunc(http.MethodPost, "/login", app.actionScope(app.loginHandler))
	router.HandlerFunc(http.MethodPost, "/register", app.actionScope(app.registerHandler))
	router.HandlerFunc(http.MethodPost, "/logout", app.actionScope(app.logoutHandler))

	// Views and actions that need an identity
	router.HandlerFunc(http.MethodGet, "/write", app.enterView(app.requireIdentity(app.editorHandler)))
	router.HandlerFunc(http.MethodGet, "/profile", app.enterView(app.requireIdentity(app.myProfileHandler)))

	router.HandlerFunc(http.MethodPost, "/write", app.actionScope(app.requireIdentity(app.publishPostHandler)))
	router.HandlerFunc(http.MethodPost, "/profile", app.actionScope(app.requireIdentity(app.updateProfileHandler)))
	router.HandlerFunc(http.MethodPost, "/beatnik/:username/follow", app.actionScope(app.requireIdentity(app.followProfileHandler)))
	router.HandlerFunc(http.MethodPut, "/post/:id", app.actionScope(app.requireIdentity(app.updatePostHandler)))
	router.HandlerFunc(http.MethodDelete, "/post/:id", app.actionScope(app.requireIdentity(app.deletePostHandler)))
	router.HandlerFunc(http.MethodPost, "/post/:id/follow", app.actionScope(app.requireIdentity(app.followAuthorHandler)))
	router.HandlerFunc(http.MethodPost, "/post/:id/rate", app.actionScope(app.requireIdentity(app.ratePostHandler)))
	router.HandlerFunc(http.MethodPost, "/post/:id/archive", app.actionScope(app.requireIdentity(app.archivePostHandler)))
	router.HandlerFunc(http.MethodPost, "/post/:id/comments", app.actionScope(app.requireIdentity(app.createCommentHandler)))
	router.HandlerFunc(http.MethodPut, "/post/:id/comments/:commentID", app.actionScope(app.requireIdentity(app.updateCommentHandler)))
	router.HandlerFunc(http.MethodDelete, "/post/:id/comments/:commentID", app.actionScope(app.requireIdentity(app.deleteCommentHandler)))

	return web.TrackRequests(app.logger, app.recoverPanic(router))
}
