package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/navigation"
	"github.com/siahsang/beatpost/internal/validator"
	"github.com/siahsang/beatpost/internal/web"
	"github.com/siahsang/beatpost/models"
)

const (
	maxFormMemory  = 8 << 20
	loadingRetryIn = "1"

	// Bodies are capped before parsing: text fields get maxFormBytes, forms
	// with an upload get the upload limit on top.
	maxFormBytes        = 1 << 20
	maxPostFormBytes    = forms.MaxPostImageBytes + maxFormBytes
	maxProfileFormBytes = forms.MaxAvatarBytes + maxFormBytes
)

type envelope map[string]any

// envelope adds the client state every response carries: the auth state, the
// identity and the notifications raised since the previous response.
func (app *application) envelope(data envelope) envelope {
	snapshot := app.auth.Snapshot()
	data["auth"] = snapshot.State
	data["identity"] = snapshot.Identity
	data["notifications"] = app.notifier.Drain()
	return data
}

func (app *application) render(w http.ResponseWriter, r *http.Request, status int, view any) {
	if target, ok := redirectTarget(r); ok {
		app.redirectResponse(w, r, target)
		return
	}
	app.writeJSON(w, r, status, app.envelope(envelope{"view": view}), nil)
}

func (app *application) redirectResponse(w http.ResponseWriter, r *http.Request, target string) {
	headers := http.Header{}
	headers.Set("Location", target)
	app.writeJSON(w, r, http.StatusSeeOther, app.envelope(envelope{"redirect": target}), headers)
}

// loadingResponse is the neutral answer for a protected view while the
// identity is still being resolved.
func (app *application) loadingResponse(w http.ResponseWriter, r *http.Request) {
	headers := http.Header{}
	headers.Set("Retry-After", loadingRetryIn)
	app.writeJSON(w, r, http.StatusAccepted, app.envelope(envelope{"loading": true}), headers)
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data envelope, headers http.Header) {
	if err := web.WriteJSON(w, status, data, headers); err != nil {
		app.logger.ErrorContext(r.Context(), "writing response failed", "error", err)
	}
}

// redirectTarget reports where a 401 seen by this request wants the client to
// go. A redirect to the view the request is already on is ignored.
func redirectTarget(r *http.Request) (string, bool) {
	scope, ok := navigation.FromContext(r.Context())
	if !ok {
		return "", false
	}
	target, ok := scope.RedirectTarget()
	if !ok || target == scope.Path() {
		return "", false
	}
	return target, true
}

func (app *application) doInBackground(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				app.logger.Error(fmt.Sprintf("panic in background task: %v", r))
			}
		}()
		fn()
	}()
}

func param(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}

// parseForm accepts both multipart and url-encoded bodies of at most limit
// bytes.
func parseForm(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return xerrors.Newf("parse form: %w", err)
	}
	return nil
}

// readPostInput reads the editor form. Hashtags may be repeated fields or a
// single comma separated one.
func readPostInput(w http.ResponseWriter, r *http.Request) (models.PostInput, error) {
	if err := parseForm(w, r, maxPostFormBytes); err != nil {
		return models.PostInput{}, err
	}

	var hashtags []string
	for _, value := range r.PostForm["hashtags"] {
		hashtags = append(hashtags, strings.Split(value, ",")...)
	}

	image, err := web.ReadUpload(r, "image", forms.MaxPostImageBytes)
	if err != nil {
		return models.PostInput{}, err
	}
	return models.PostInput{
		Title:    r.PostFormValue("title"),
		Content:  r.PostFormValue("content"),
		Hashtags: hashtags,
		Image:    image,
	}, nil
}

func readInt(qs url.Values, key string, defaultValue int64, v *validator.Validator[filter.Field]) int64 {
	raw := qs.Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		v.AddError(filter.Field(key), "must be an integer value")
		return defaultValue
	}
	return n
}

func readPage(qs url.Values, defaults filter.Page, v *validator.Validator[filter.Field]) filter.Page {
	return filter.NewPage(
		readInt(qs, string(filter.FieldSkip), defaults.Skip, v),
		readInt(qs, string(filter.FieldLimit), defaults.Limit, v),
	)
}

func readAuthorsQuery(qs url.Values) (filter.AuthorsQuery, error) {
	v := validator.New[filter.Field]()
	query := filter.DefaultAuthorsQuery()
	query.Page = readPage(qs, query.Page, v)
	if sortBy := qs.Get(string(filter.FieldSortBy)); sortBy != "" {
		query.SortBy = filter.AuthorSort(sortBy)
	}
	query.Search = strings.TrimSpace(qs.Get("search"))
	if err := v.Err(); err != nil {
		return filter.AuthorsQuery{}, err
	}
	return query, query.Validate()
}

func readUserPostsQuery(qs url.Values) (filter.UserPostsQuery, error) {
	v := validator.New[filter.Field]()
	query := filter.DefaultUserPostsQuery()
	query.Page = readPage(qs, query.Page, v)
	if sortBy := qs.Get(string(filter.FieldSortBy)); sortBy != "" {
		query.SortBy = filter.PostSort(sortBy)
	}
	query.Search = strings.TrimSpace(qs.Get("search"))
	if raw := qs.Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			v.AddError("archived", "must be true or false")
		} else {
			query.Archived = &archived
		}
	}
	if err := v.Err(); err != nil {
		return filter.UserPostsQuery{}, err
	}
	return query, query.Validate()
}
