// Package fakeapi is an in-memory stand-in for the Beatpost REST backend. It
// serves the same /api routes and error payloads, which lets the client run
// offline and lets tests drive real HTTP round trips.
package fakeapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mdobak/go-xerrors"
	"golang.org/x/crypto/bcrypt"

	"github.com/siahsang/beatpost/internal/utils/collectionutils"
	"github.com/siahsang/beatpost/internal/web"
	"github.com/siahsang/beatpost/models"
)

const (
	DefaultTokenTTL = 30 * time.Minute

	userContextKey web.ContextKey = "fakeapi.user"
)

type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int
	Logger     *slog.Logger
}

type storedImage struct {
	contentType string
	data        []byte
}

type Server struct {
	store  *Store
	tokens *Tokens
	images *collectionutils.SafeMap[string, storedImage]
	hooks  *Hooks
	logger *slog.Logger
}

func New(opts Options) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, xerrors.New("fake backend needs a JWT secret")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Server{
		store:  NewStore(opts.BcryptCost),
		tokens: NewTokens(opts.JWTSecret, opts.TokenTTL),
		images: collectionutils.New[string, storedImage](),
		hooks:  newHooks(),
		logger: opts.Logger,
	}, nil
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Hooks() *Hooks {
	return s.hooks
}

// RevokeAll makes every issued token fail with 401.
func (s *Server) RevokeAll() {
	s.tokens.RevokeAll()
}

// IssueToken signs a token for username without a login round trip.
func (s *Server) IssueToken(username string) (string, error) {
	return s.tokens.Issue(username)
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.notFoundResponse(w, r, "Not Found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, &AppError{ErrorMessage: "Method Not Allowed"})
	})

	handle := func(method, pattern string, handler http.HandlerFunc) {
		router.HandlerFunc(method, pattern, s.hooked(method+" "+pattern, handler))
	}
	authed := s.requireAuthenticatedUser

	handle(http.MethodGet, "/health", s.healthHandler)

	handle(http.MethodPost, "/api/auth/register", s.registerHandler)
	handle(http.MethodPost, "/api/auth/login", s.loginHandler)

	handle(http.MethodGet, "/api/users/:username", s.profileHandler)
	handle(http.MethodPut, "/api/users/:username", authed(s.updateProfileHandler))
	handle(http.MethodGet, "/api/users/:username/posts", authed(s.userPostsHandler))
	handle(http.MethodPost, "/api/follow/:username", authed(s.followHandler))

	handle(http.MethodGet, "/api/posts", s.listPostsHandler)
	handle(http.MethodPost, "/api/posts", authed(s.createPostHandler))
	handle(http.MethodGet, "/api/posts/:id", s.getPostHandler)
	handle(http.MethodPut, "/api/posts/:id", authed(s.updatePostHandler))
	handle(http.MethodDelete, "/api/posts/:id", authed(s.deletePostHandler))
	handle(http.MethodPut, "/api/posts/:id/archive", authed(s.archiveHandler))
	handle(http.MethodPost, "/api/posts/:id/rate", authed(s.rateHandler))
	handle(http.MethodGet, "/api/posts/:id/comments", s.listCommentsHandler)
	handle(http.MethodPost, "/api/posts/:id/comments", authed(s.createCommentHandler))
	handle(http.MethodPut, "/api/comments/:id", authed(s.updateCommentHandler))
	handle(http.MethodDelete, "/api/comments/:id", authed(s.deleteCommentHandler))

	handle(http.MethodGet, "/api/frontpage", s.frontpageHandler)
	handle(http.MethodGet, "/api/ranks", s.ranksHandler)
	handle(http.MethodGet, "/api/authors", s.authorsHandler)
	handle(http.MethodGet, "/api/hashtags", s.hashtagsHandler)
	handle(http.MethodGet, "/api/images/*name", s.imageHandler)

	return web.TrackRequests(s.logger, s.recoverPanic(s.authenticate(router)))
}

// authenticate resolves a bearer token into the current user. Requests
// without a token pass through anonymous.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorization := r.Header.Get("Authorization")
		if authorization == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(authorization, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			s.forbiddenResponse(w, r, "Invalid authentication credentials")
			return
		}

		username, err := s.tokens.Parse(token)
		if err != nil {
			s.invalidCredentialsResponse(w, r, err)
			return
		}
		user, err := s.store.UserByUsername(username)
		if err != nil {
			s.invalidCredentialsResponse(w, r, err)
			return
		}

		next.ServeHTTP(w, web.AddValueToContext(r, userContextKey, user))
	})
}

func currentUser(r *http.Request) (*models.User, bool) {
	return web.GetValueFromContext[*models.User](r, userContextKey)
}

func (s *Server) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(r); !ok {
			s.forbiddenResponse(w, r, "Not authenticated")
			return
		}
		next(w, r)
	}
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.internalErrorResponse(w, r, xerrors.New(fmt.Sprintf("%v", err)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
