package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hamed0406/uptimemonitor/internal/domain"
	"github.com/hamed0406/uptimemonitor/internal/repo"
)

type tokenPayload struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type extendPayload struct {
	ID     string `json:"id"`
	Extend bool   `json:"extend"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var p tokenPayload
	if err := decode(w, r, &p); err != nil || !validPhone(strings.TrimSpace(p.Phone)) || p.Password == "" {
		writeError(w, http.StatusBadRequest, "missing phone or password")
		return
	}
	phone := strings.TrimSpace(p.Phone)

	u, err := repo.Get[domain.User](r.Context(), s.Store, repo.Users, phone)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "invalid phone or password")
		return
	}
	if err != nil {
		s.storeError(w, "create_token", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(p.Password)) != nil {
		writeError(w, http.StatusBadRequest, "invalid phone or password")
		return
	}

	tok := domain.Token{
		ID:      domain.NewID(),
		Phone:   phone,
		Expires: s.Now().Add(s.TokenTTL).UnixMilli(),
	}
	if err := repo.Insert(r.Context(), s.Store, repo.Tokens, tok.ID, tok); err != nil {
		s.storeError(w, "create_token", err)
		return
	}
	s.Logger.Info("token_created", zap.String("phone", phone))
	writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if len(id) != domain.IDLength {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	tok, err := repo.Get[domain.Token](r.Context(), s.Store, repo.Tokens, id)
	if err != nil {
		s.storeError(w, "get_token", err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleExtendToken(w http.ResponseWriter, r *http.Request) {
	var p extendPayload
	if err := decode(w, r, &p); err != nil || len(strings.TrimSpace(p.ID)) != domain.IDLength || !p.Extend {
		writeError(w, http.StatusBadRequest, "missing id or extend")
		return
	}
	id := strings.TrimSpace(p.ID)

	tok, err := repo.Get[domain.Token](r.Context(), s.Store, repo.Tokens, id)
	if err != nil {
		s.storeError(w, "extend_token", err)
		return
	}
	now := s.Now()
	if tok.Expires <= now.UnixMilli() {
		writeError(w, http.StatusBadRequest, "token expired")
		return
	}
	tok.Expires = now.Add(s.TokenTTL).UnixMilli()
	if err := repo.Put(r.Context(), s.Store, repo.Tokens, id, tok); err != nil {
		s.storeError(w, "extend_token", err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if len(id) != domain.IDLength {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	if err := s.Store.Delete(r.Context(), repo.Tokens, id); err != nil {
		s.storeError(w, "delete_token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}
