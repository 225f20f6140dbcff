package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/uptimemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/uptimemonitor/internal/repo"
)

const (
	DefaultMaxChecks = 5
	DefaultTokenTTL  = time.Hour
	maxBody          = 64 << 10
)

type Server struct {
	Logger *zap.Logger
	Store  repo.RecordStore
	// Locks serializes every write that touches one owner's user record
	// and checks. The scheduler shares it.
	Locks     *repo.KeyedMutex
	MaxChecks int
	TokenTTL  time.Duration
	// LoginPerMin limits POST /api/tokens per client IP; 0 disables it.
	LoginPerMin int
	Now         func() time.Time
}

func NewServer(l *zap.Logger, store repo.RecordStore, locks *repo.KeyedMutex) *Server {
	if locks == nil {
		locks = &repo.KeyedMutex{}
	}
	return &Server{
		Logger:      l,
		Store:       store,
		Locks:       locks,
		MaxChecks:   DefaultMaxChecks,
		TokenTTL:    DefaultTokenTTL,
		LoginPerMin: 30,
		Now:         time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", apimw.TokenHeader},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	now := func() time.Time { return s.Now() }
	auth := apimw.RequireToken(s.Store, now)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.With(auth).Get("/", s.handleGetUser)
		r.With(auth).Put("/", s.handleUpdateUser)
		r.With(auth).Delete("/", s.handleDeleteUser)
	})

	r.Route("/api/tokens", func(r chi.Router) {
		r.With(apimw.RateLimit(s.LoginPerMin, 5, now)).Post("/", s.handleCreateToken)
		r.Get("/", s.handleGetToken)
		r.Put("/", s.handleExtendToken)
		r.Delete("/", s.handleDeleteToken)
	})

	r.Route("/api/checks", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", s.handleCreateCheck)
		r.Get("/", s.handleGetCheck)
		r.Put("/", s.handleUpdateCheck)
		r.Delete("/", s.handleDeleteCheck)
	})

	return r
}

type apiError struct {
	Error   string   `json:"error"`
	Invalid []string `json:"invalid,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
}

// storeError maps a record store error to a response.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, repo.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "invalid key")
	default:
		s.Logger.Warn("api_store_error", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

// caller returns the authenticated phone, which must equal owner.
func caller(w http.ResponseWriter, r *http.Request, owner string) bool {
	phone, ok := apimw.Phone(r.Context())
	if !ok || phone != owner {
		writeError(w, http.StatusForbidden, "token does not match owner")
		return false
	}
	return true
}
