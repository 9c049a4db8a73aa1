package main

import (
	"net/http"
	"strings"

	"github.com/siahsang/beatpost/models"
)

func (app *application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, envelope{
		"status": "available",
		"auth":   app.auth.State(),
		"api":    app.api.BaseURL(),
		"view":   app.navigator.CurrentPath(),
	}, nil)
}

func (app *application) frontpageHandler(w http.ResponseWriter, r *http.Request) {
	model, err := app.social.LoadFrontpage(r.Context())
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{
		"posts":    summarize(model.Posts),
		"hashtags": nonNil(model.Hashtags),
	})
}

func (app *application) ranksHandler(w http.ResponseWriter, r *http.Request) {
	hashtag := strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("hashtag")), "#")
	model, err := app.social.LoadRanks(r.Context(), hashtag)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, envelope{
		"hashtag":  model.Hashtag,
		"posts":    summarize(model.Posts),
		"hashtags": nonNil(model.Hashtags),
	})
}

func (app *application) authorsHandler(w http.ResponseWriter, r *http.Request) {
	query, err := readAuthorsQuery(r.URL.Query())
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	page, err := app.social.LoadAuthors(r.Context(), query)
	if err != nil {
		app.actionErrorResponse(w, r, err)
		return
	}
	if page.Authors == nil {
		page.Authors = []models.Author{}
	}
	app.render(w, r, http.StatusOK, envelope{
		"authors": page.Authors,
		"total":   page.Total,
		"skip":    page.Skip,
		"limit":   page.Limit,
		"sort_by": query.SortBy,
		"search":  query.Search,
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
