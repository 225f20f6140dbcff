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

// PhoneLength is the length of the phone numbers used as user ids.
const PhoneLength = 10

type userPayload struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	TOSAgreement bool   `json:"tosAgreement"`
}

func validPhone(p string) bool {
	return len(p) == PhoneLength && repo.ValidKey(p)
}

// public strips the password hash.
func public(u domain.User) domain.User {
	u.HashedPassword = ""
	return u
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var p userPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	p.FirstName, p.LastName = strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.FirstName == "" || p.LastName == "" || !validPhone(p.Phone) || p.Password == "" || !p.TOSAgreement {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not hash password")
		return
	}
	u := domain.User{
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Phone:          p.Phone,
		HashedPassword: string(hash),
		TOSAgreement:   true,
	}
	if err := repo.Insert(r.Context(), s.Store, repo.Users, u.Phone, u); err != nil {
		s.storeError(w, "create_user", err)
		return
	}
	s.Logger.Info("user_created", zap.String("phone", u.Phone))
	writeJSON(w, http.StatusCreated, public(u))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if !validPhone(phone) {
		writeError(w, http.StatusBadRequest, "missing phone")
		return
	}
	if !caller(w, r, phone) {
		return
	}
	u, err := repo.Get[domain.User](r.Context(), s.Store, repo.Users, phone)
	if err != nil {
		s.storeError(w, "get_user", err)
		return
	}
	writeJSON(w, http.StatusOK, public(u))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var p userPayload
	if err := decode(w, r, &p); err != nil || !validPhone(strings.TrimSpace(p.Phone)) {
		writeError(w, http.StatusBadRequest, "missing phone")
		return
	}
	phone := strings.TrimSpace(p.Phone)
	first, last := strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName)
	if first == "" && last == "" && p.Password == "" {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if !caller(w, r, phone) {
		return
	}

	unlock := s.Locks.Lock(phone)
	defer unlock()

	u, err := repo.Get[domain.User](r.Context(), s.Store, repo.Users, phone)
	if err != nil {
		s.storeError(w, "update_user", err)
		return
	}
	if first != "" {
		u.FirstName = first
	}
	if last != "" {
		u.LastName = last
	}
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not hash password")
			return
		}
		u.HashedPassword = string(hash)
	}
	if err := repo.Put(r.Context(), s.Store, repo.Users, phone, u); err != nil {
		s.storeError(w, "update_user", err)
		return
	}
	writeJSON(w, http.StatusOK, public(u))
}

// handleDeleteUser removes the user and every check they own. Check logs
// and archives are kept.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if !validPhone(phone) {
		writeError(w, http.StatusBadRequest, "missing phone")
		return
	}
	if !caller(w, r, phone) {
		return
	}

	unlock := s.Locks.Lock(phone)
	defer unlock()

	u, err := repo.Get[domain.User](r.Context(), s.Store, repo.Users, phone)
	if err != nil {
		s.storeError(w, "delete_user", err)
		return
	}
	if err := s.Store.Delete(r.Context(), repo.Users, phone); err != nil {
		s.storeError(w, "delete_user", err)
		return
	}
	var failed int
	for _, id := range u.Checks {
		if err := s.Store.Delete(r.Context(), repo.Checks, id); err != nil && !errors.Is(err, repo.ErrNotFound) {
			failed++
			s.Logger.Warn("user_check_delete_error", zap.String("phone", phone), zap.String("check_id", id), zap.Error(err))
		}
	}
	s.Logger.Info("user_deleted", zap.String("phone", phone), zap.Int("checks", len(u.Checks)), zap.Int("failed", failed))
	if failed > 0 {
		writeError(w, http.StatusInternalServerError, "user deleted but some checks could not be removed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}
