package fakeapi

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"

	"github.com/siahsang/beatpost/internal/validator"
	"github.com/siahsang/beatpost/internal/web"
	"github.com/siahsang/beatpost/models"
)

const (
	maxAvatarBytes = 2 << 20
	meSegment      = "me"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var request models.RegisterRequest
	if err := web.ReadJSON(w, r, &request); err != nil {
		s.failedValidationResponse(w, r, map[string]string{"body": err.Error()})
		return
	}

	v := validator.New[string]()
	v.Check(validator.LengthBetween(request.Username, 3, 30), "username", "String should have between 3 and 30 characters")
	v.Check(isEmail(request.Email), "email", "value is not a valid email address")
	v.Check(utf8.RuneCountInString(request.Password) >= 6, "password", "String should have at least 6 characters")
	if request.Bio != nil {
		v.Check(validator.MaxLength(*request.Bio, 500), "bio", "String should have at most 500 characters")
	}
	if !v.IsValid() {
		s.failedValidationResponse(w, r, v.Errors.Details())
		return
	}

	user, err := s.store.Register(request)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			s.badRequestResponse(w, r, "Email o username ya registrado")
			return
		}
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, user)
}

func isEmail(value string) bool {
	local, domain, ok := strings.Cut(value, "@")
	return ok && local != "" && strings.Contains(domain, ".") && !strings.ContainsAny(value, " \t\r\n")
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var request models.LoginRequest
	if err := web.ReadJSON(w, r, &request); err != nil {
		s.failedValidationResponse(w, r, map[string]string{"body": err.Error()})
		return
	}

	username, err := s.store.CheckCredentials(request.Email, request.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			s.errorResponse(w, r, http.StatusUnauthorized, &AppError{ErrorMessage: "Email o contraseña incorrectos"})
			return
		}
		s.internalErrorResponse(w, r, err)
		return
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, models.Token{AccessToken: token, TokenType: "bearer"})
}

// profileHandler serves both /users/me and /users/{username}.
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	username := httprouter.ParamsFromContext(r.Context()).ByName("username")
	if username == meSegment {
		me, ok := currentUser(r)
		if !ok {
			s.forbiddenResponse(w, r, "Not authenticated")
			return
		}
		username = me.Username
	}

	user, err := s.store.UserByUsername(username)
	if err != nil {
		if errors.Is(err, NoRecordFound) {
			s.notFoundResponse(w, r, "Usuario no encontrado")
			return
		}
		s.internalErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	if httprouter.ParamsFromContext(r.Context()).ByName("username") != meSegment {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, &AppError{ErrorMessage: "Method Not Allowed"})
		return
	}
	me, _ := currentUser(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.badRequestResponse(w, r, "There was an error parsing the body")
		return
	}

	var changes ProfileChanges
	if value, ok := web.FormValue(r, "username"); ok {
		username := strings.TrimSpace(value)
		if !validator.LengthBetween(username, 3, 30) {
			s.badRequestResponse(w, r, "El nombre de usuario debe tener entre 3 y 30 caracteres")
			return
		}
		changes.Username = &username
	}
	if value, ok := web.FormValue(r, "bio"); ok {
		bio := strings.TrimSpace(value)
		if !validator.MaxLength(bio, 500) {
			s.badRequestResponse(w, r, "La biografía no puede exceder 500 caracteres")
			return
		}
		changes.Bio = &bio
	}

	avatar, err := web.ReadUpload(r, "avatar", maxAvatarBytes)
	if err != nil {
		s.badRequestResponse(w, r, "Error procesando imagen: "+err.Error())
		return
	}
	if avatar != nil {
		if !strings.HasPrefix(avatar.ContentType, "image/") {
			s.badRequestResponse(w, r, "Por favor selecciona un archivo de imagen válido")
			return
		}
		if len(avatar.Data) > maxAvatarBytes {
			s.badRequestResponse(w, r, "La imagen no puede exceder 2MB")
			return
		}
		url := s.saveImage(r, "avatars/"+me.ID, avatar.ContentType, avatar.Data)
		changes.Avatar = &url
	}

	user, err := s.store.UpdateUser(me.ID, changes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNothingToUpdate):
			s.badRequestResponse(w, r, "No se proporcionaron datos para actualizar")
		case errors.Is(err, ErrUsernameTaken):
			s.badRequestResponse(w, r, "Este nombre de usuario ya está en uso")
		case errors.Is(err, NoRecordFound):
			s.notFoundResponse(w, r, "Usuario no encontrado")
		default:
			s.internalErrorResponse(w, r, err)
		}
		return
	}
	s.writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r)
	username := httprouter.ParamsFromContext(r.Context()).ByName("username")

	followed, err := s.store.ToggleFollow(me.ID, username)
	if err != nil {
		switch {
		case errors.Is(err, NoRecordFound):
			s.notFoundResponse(w, r, "Usuario no encontrado")
		case errors.Is(err, ErrSelfFollow):
			s.badRequestResponse(w, r, "No puedes seguirte a ti mismo")
		default:
			s.internalErrorResponse(w, r, err)
		}
		return
	}

	action := "unfollowed"
	if followed {
		action = "followed"
	}
	s.writeJSON(w, r, http.StatusOK, models.Message{Message: "Usuario " + action + " exitosamente"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := web.WriteJSON(w, status, data, nil); err != nil {
		s.logger.ErrorContext(r.Context(), "write response", "error", err)
	}
}
