package fakeapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/siahsang/beatpost/internal/validator"
	"github.com/siahsang/beatpost/internal/web"
	"github.com/siahsang/beatpost/models"
)

func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	s.writeJSON(w, r, http.StatusOK, s.store.Comments(id))
}

func (s *Server) readComment(w http.ResponseWriter, r *http.Request) (string, bool) {
	var request models.CommentRequest
	if err := web.ReadJSON(w, r, &request); err != nil {
		s.failedValidationResponse(w, r, map[string]string{"body": err.Error()})
		return "", false
	}
	if !validator.LengthBetween(request.Content, 1, 1000) {
		s.failedValidationResponse(w, r, map[string]string{"content": "String should have between 1 and 1000 characters"})
		return "", false
	}
	return request.Content, true
}

func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	content, ok := s.readComment(w, r)
	if !ok {
		return
	}
	comment, err := s.store.CreateComment(me.ID, id, content)
	if err != nil {
		if errors.Is(err, NoRecordFound) {
			s.notFoundResponse(w, r, "Post no encontrado")
			return
		}
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, comment)
}

func (s *Server) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	content, ok := s.readComment(w, r)
	if !ok {
		return
	}
	content = strings.TrimSpace(content)
	if !validator.LengthBetween(content, 1, 1000) {
		s.badRequestResponse(w, r, "El comentario debe tener entre 1 y 1000 caracteres")
		return
	}

	comment, err := s.store.UpdateComment(me.ID, id, content)
	if err != nil {
		s.commentOwnershipError(w, r, err, "No tienes permisos para editar este comentario")
		return
	}
	s.writeJSON(w, r, http.StatusOK, comment)
}

func (s *Server) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	if err := s.store.DeleteComment(me.ID, id); err != nil {
		s.commentOwnershipError(w, r, err, "No tienes permisos para eliminar este comentario")
		return
	}
	s.writeJSON(w, r, http.StatusOK, models.Message{Message: "Comentario eliminado exitosamente"})
}

func (s *Server) commentOwnershipError(w http.ResponseWriter, r *http.Request, err error, forbidden string) {
	switch {
	case errors.Is(err, NoRecordFound):
		s.notFoundResponse(w, r, "Comentario no encontrado")
	case errors.Is(err, ErrNotAuthor):
		s.forbiddenResponse(w, r, forbidden)
	default:
		s.internalErrorResponse(w, r, err)
	}
}
