// Package api maps the HTTP routes onto the library and auth packages.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"library-api/auth"
	"library-api/library"
)

// Library is the record store as seen by the handlers.
type Library interface {
	Ping(ctx context.Context) error

	CreateBook(ctx context.Context, f library.BookFields) (*library.Book, error)
	ListBooks(ctx context.Context) ([]*library.Book, error)
	UpdateBook(ctx context.Context, id int64, f library.BookFields) (*library.Book, error)
	DeleteBook(ctx context.Context, id int64) error

	RegisterMember(ctx context.Context, email, password string) (*library.Member, error)
	Authenticate(ctx context.Context, email, password string) (*library.Member, error)
	ListMembers(ctx context.Context) ([]*library.Member, error)
	UpdateMember(ctx context.Context, id int64, email, password string) (*library.Member, error)
	DeleteMember(ctx context.Context, id int64) error
}

// TokenIssuer mints bearer tokens after a successful login.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// Guard decides whether a request may reach a protected handler.
type Guard interface {
	Check(r *http.Request) (*library.Member, *auth.Rejection)
}

// Server is the HTTP handler of the service.
type Server struct {
	lib             Library
	tokens          TokenIssuer
	gate            Guard
	log             *zap.Logger
	metrics         *metrics
	defaultPassword string
	router          *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultMemberPassword sets the password given to members created via
// POST /members without one.
func WithDefaultMemberPassword(p string) Option {
	return func(s *Server) {
		s.defaultPassword = p
	}
}

// NewServer wires the routes. log may be nil.
func NewServer(lib Library, tokens TokenIssuer, gate Guard, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		lib:             lib,
		tokens:          tokens,
		gate:            gate,
		log:             log,
		metrics:         newMetrics(),
		defaultPassword: "defaultpassword",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.Use(s.metrics.instrument, s.logRequests)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)

	r.HandleFunc("/signup", s.signup).Methods(http.MethodPost)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)

	r.Handle("/books", s.protect(s.createBook)).Methods(http.MethodPost)
	r.Handle("/books", s.protect(s.listBooks)).Methods(http.MethodGet)
	r.Handle("/books/{id:[0-9]+}", s.protect(s.updateBook)).Methods(http.MethodPut)
	r.Handle("/books/{id:[0-9]+}", s.protect(s.deleteBook)).Methods(http.MethodDelete)

	r.Handle("/members", s.protect(s.createMember)).Methods(http.MethodPost)
	r.Handle("/members", s.protect(s.listMembers)).Methods(http.MethodGet)
	r.Handle("/members/{id:[0-9]+}", s.protect(s.updateMember)).Methods(http.MethodPut)
	r.Handle("/members/{id:[0-9]+}", s.protect(s.deleteMember)).Methods(http.MethodDelete)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}
