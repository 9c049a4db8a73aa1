package fakeapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/imaging"
	"github.com/siahsang/beatpost/internal/validator"
	"github.com/siahsang/beatpost/internal/web"
	"github.com/siahsang/beatpost/models"
)

const maxMultipartMemory = 10 << 20

// saveImage stores data and returns the absolute URL it is served from.
func (s *Server) saveImage(r *http.Request, folder, contentType string, data []byte) string {
	key := folder + "/" + uuid.NewString() + ".jpg"
	s.images.Store(key, storedImage{contentType: contentType, data: data})

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/api/images/" + key
}

func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(httprouter.ParamsFromContext(r.Context()).ByName("name"), "/")
	image, ok := s.images.Get(key)
	if !ok {
		s.notFoundResponse(w, r, "Imagen no encontrada")
		return
	}
	w.Header().Set("Content-Type", image.contentType)
	http.ServeContent(w, r, key, s.store.now(), bytes.NewReader(image.data))
}

// readPostFields parses the multipart editor form. It answers the request
// itself and returns false on any problem.
func (s *Server) readPostFields(w http.ResponseWriter, r *http.Request) (PostFields, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.failedValidationResponse(w, r, map[string]string{"body": "multipart form expected"})
		return PostFields{}, false
	}

	missing := map[string]string{}
	title, ok := web.FormValue(r, "title")
	if !ok {
		missing["title"] = "Field required"
	}
	content, ok := web.FormValue(r, "content")
	if !ok {
		missing["content"] = "Field required"
	}
	rawHashtags, ok := web.FormValue(r, "hashtags")
	if !ok {
		missing["hashtags"] = "Field required"
	}
	if len(missing) > 0 {
		s.failedValidationResponse(w, r, missing)
		return PostFields{}, false
	}

	var hashtags []string
	if err := json.Unmarshal([]byte(rawHashtags), &hashtags); err != nil || len(hashtags) < 1 || len(hashtags) > 3 {
		s.badRequestResponse(w, r, "Hashtags debe ser una lista de 1 a 3 elementos")
		return PostFields{}, false
	}
	if !validator.LengthBetween(title, 20, 80) {
		s.badRequestResponse(w, r, "El título debe tener entre 20 y 80 caracteres")
		return PostFields{}, false
	}
	if n := utf8.RuneCountInString(content); n < 150 || n > 10_000 {
		s.badRequestResponse(w, r, "El contenido debe tener entre 150 y 10,000 caracteres")
		return PostFields{}, false
	}

	fields := PostFields{Title: title, Content: content, Hashtags: hashtags}
	upload, err := web.ReadUpload(r, "image", maxMultipartMemory)
	if err == nil && upload != nil {
		var bw []byte
		bw, err = imaging.ConvertToBW(bytes.NewReader(upload.Data))
		if err == nil {
			url := s.saveImage(r, "posts", "image/jpeg", bw)
			fields.Image = &url
		}
	}
	if err != nil {
		s.badRequestResponse(w, r, "Error procesando imagen: "+err.Error())
		return PostFields{}, false
	}
	return fields, true
}

func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	fields, ok := s.readPostFields(w, r)
	if !ok {
		return
	}

	post, err := s.store.CreatePost(me.ID, fields)
	if err != nil {
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, post)
}

func (s *Server) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	// Ownership is checked before the body, as a missing post or a foreign
	// one must not be masked by form errors.
	if err := s.store.CheckAuthor(me.ID, id); err != nil {
		s.postOwnershipError(w, r, err, "No tienes permisos para editar este post")
		return
	}

	fields, ok := s.readPostFields(w, r)
	if !ok {
		return
	}
	post, err := s.store.UpdatePost(me.ID, id, fields)
	if err != nil {
		s.postOwnershipError(w, r, err, "No tienes permisos para editar este post")
		return
	}
	s.writeJSON(w, r, http.StatusOK, post)
}

func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	if err := s.store.DeletePost(me.ID, id); err != nil {
		s.postOwnershipError(w, r, err, "No tienes permisos para eliminar este post")
		return
	}
	s.writeJSON(w, r, http.StatusOK, models.Message{Message: "Post eliminado exitosamente"})
}

func (s *Server) archiveHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	archived, err := s.store.ToggleArchive(me.ID, id)
	if err != nil {
		s.postOwnershipError(w, r, err, "No tienes permisos para archivar este post")
		return
	}

	message := "Post desarchivado exitosamente"
	if archived {
		message = "Post archivado exitosamente"
	}
	s.writeJSON(w, r, http.StatusOK, models.ArchiveResult{Message: message, Archived: archived})
}

func (s *Server) postOwnershipError(w http.ResponseWriter, r *http.Request, err error, forbidden string) {
	switch {
	case errors.Is(err, NoRecordFound):
		s.notFoundResponse(w, r, "Post no encontrado")
	case errors.Is(err, ErrNotAuthor):
		s.forbiddenResponse(w, r, forbidden)
	default:
		s.internalErrorResponse(w, r, err)
	}
}

func (s *Server) getPostHandler(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	post, err := s.store.VisitPost(id)
	if err != nil {
		if errors.Is(err, NoRecordFound) {
			s.notFoundResponse(w, r, "Post no encontrado")
			return
		}
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, post)
}

func (s *Server) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	page, ok := s.readPage(w, r, 20)
	if !ok {
		return
	}
	query := filter.PostsQuery{Page: page, Hashtag: r.URL.Query().Get("hashtag")}
	s.writeJSON(w, r, http.StatusOK, s.store.Posts(query))
}

func (s *Server) userPostsHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	userID := httprouter.ParamsFromContext(r.Context()).ByName("username")
	if userID != me.ID {
		s.forbiddenResponse(w, r, "No tienes permisos para ver estos posts")
		return
	}

	page, ok := s.readPage(w, r, 100)
	if !ok {
		return
	}
	qs := r.URL.Query()
	query := filter.UserPostsQuery{
		Page:   page,
		SortBy: filter.PostSort(qs.Get("sort_by")),
		Search: qs.Get("search"),
	}
	if raw := qs.Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			s.failedValidationResponse(w, r, map[string]string{"archived": "Input should be a valid boolean"})
			return
		}
		query.Archived = &archived
	}
	s.writeJSON(w, r, http.StatusOK, s.store.UserPosts(me.ID, query))
}

func (s *Server) frontpageHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.store.Frontpage())
}

func (s *Server) ranksHandler(w http.ResponseWriter, r *http.Request) {
	posts := s.store.Ranks(r.URL.Query().Get("hashtag"))
	s.writeJSON(w, r, http.StatusOK, models.RanksPage{Posts: posts})
}

func (s *Server) hashtagsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.store.Hashtags())
}

func (s *Server) authorsHandler(w http.ResponseWriter, r *http.Request) {
	page, ok := s.readPage(w, r, 20)
	if !ok {
		return
	}
	qs := r.URL.Query()
	query := filter.AuthorsQuery{
		Page:   page,
		SortBy: filter.AuthorSort(qs.Get("sort_by")),
		Search: qs.Get("search"),
	}
	s.writeJSON(w, r, http.StatusOK, s.store.Authors(query))
}

func (s *Server) readPage(w http.ResponseWriter, r *http.Request, defaultLimit int64) (filter.Page, bool) {
	qs := r.URL.Query()
	page := filter.NewPage(0, defaultLimit)
	problems := map[string]string{}
	for key, target := range map[string]*int64{"skip": &page.Skip, "limit": &page.Limit} {
		raw := qs.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			problems[key] = "Input should be a valid integer"
			continue
		}
		*target = n
	}
	if len(problems) > 0 {
		s.failedValidationResponse(w, r, problems)
		return filter.Page{}, false
	}
	return page, true
}

func (s *Server) rateHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	var request models.RatingRequest
	if err := web.ReadJSON(w, r, &request); err != nil {
		s.failedValidationResponse(w, r, map[string]string{"body": err.Error()})
		return
	}
	if request.Rating < 1 || request.Rating > 5 {
		s.failedValidationResponse(w, r, map[string]string{"rating": "Input should be between 1 and 5"})
		return
	}

	rating, err := s.store.Rate(me.ID, id, request.Rating)
	if err != nil {
		if errors.Is(err, NoRecordFound) {
			s.notFoundResponse(w, r, "Post no encontrado")
			return
		}
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rating)
}
