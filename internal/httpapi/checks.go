package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimemonitor/internal/domain"
	apimw "github.com/hamed0406/uptimemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/uptimemonitor/internal/repo"
)

// Fields a client may set on a check.
var checkFields = []string{"protocol", "url", "method", "successCodes", "timeoutSeconds"}

// readCheckFields decodes the request body and keeps only settable fields.
func readCheckFields(w http.ResponseWriter, r *http.Request) (id string, fields map[string]any, err error) {
	var body map[string]any
	if err := decode(w, r, &body); err != nil {
		return "", nil, err
	}
	fields = map[string]any{}
	for _, k := range checkFields {
		if v, ok := body[k]; ok {
			fields[k] = v
		}
	}
	id, _ = body["id"].(string)
	return strings.TrimSpace(id), fields, nil
}

// normalize runs the stored form of rec through the validator.
func normalize(rec map[string]any) (domain.Validation, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return domain.Validation{}, err
	}
	return domain.Validate(raw), nil
}

func invalid(w http.ResponseWriter, v domain.Validation) {
	writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid check", Invalid: v.Invalid})
}

func (s *Server) handleCreateCheck(w http.ResponseWriter, r *http.Request) {
	phone, _ := apimw.Phone(r.Context())
	_, fields, err := readCheckFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	fields["id"] = domain.NewID()
	fields["userPhone"] = phone
	v, err := normalize(fields)
	if err != nil || !v.Eligible() {
		invalid(w, v)
		return
	}
	c := v.Check

	unlock := s.Locks.Lock(phone)
	defer unlock()

	u, err := repo.Get[domain.User](r.Context(), s.Store, repo.Users, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusForbidden, "owner not found")
			return
		}
		s.storeError(w, "create_check", err)
		return
	}
	if len(u.Checks) >= s.MaxChecks {
		writeError(w, http.StatusBadRequest, "user already has the maximum number of checks")
		return
	}
	if err := repo.Insert(r.Context(), s.Store, repo.Checks, c.ID, c); err != nil {
		s.storeError(w, "create_check", err)
		return
	}
	u.Checks = append(u.Checks, c.ID)
	if err := repo.Put(r.Context(), s.Store, repo.Users, phone, u); err != nil {
		// Roll back so the check does not exist without an owner entry.
		if derr := s.Store.Delete(r.Context(), repo.Checks, c.ID); derr != nil {
			s.Logger.Warn("check_rollback_error", zap.String("check_id", c.ID), zap.Error(derr))
		}
		s.storeError(w, "create_check", err)
		return
	}
	s.Logger.Info("check_created", zap.String("check_id", c.ID), zap.String("phone", phone), zap.String("target", c.Target()))
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if len(id) != domain.IDLength {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	raw, err := s.Store.Read(r.Context(), repo.Checks, id)
	if err != nil {
		s.storeError(w, "get_check", err)
		return
	}
	v := domain.Validate(raw)
	if !caller(w, r, v.Check.UserPhone) {
		return
	}
	writeJSON(w, http.StatusOK, v.Check)
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	phone, _ := apimw.Phone(r.Context())
	id, fields, err := readCheckFields(w, r)
	if err != nil || len(id) != domain.IDLength {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	unlock := s.Locks.Lock(phone)
	defer unlock()

	raw, err := s.Store.Read(r.Context(), repo.Checks, id)
	if err != nil {
		s.storeError(w, "update_check", err)
		return
	}
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
		s.Logger.Warn("check_record_corrupt", zap.String("check_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stored check is unreadable")
		return
	}
	if owner, _ := rec["userPhone"].(string); !caller(w, r, owner) {
		return
	}
	for k, v := range fields {
		rec[k] = v
	}
	v, err := normalize(rec)
	if err != nil || !v.Eligible() {
		invalid(w, v)
		return
	}
	if err := repo.Put(r.Context(), s.Store, repo.Checks, id, v.Check); err != nil {
		s.storeError(w, "update_check", err)
		return
	}
	writeJSON(w, http.StatusOK, v.Check)
}

// handleDeleteCheck removes the check and its id from the owner. The
// check's log is kept.
func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	phone, _ := apimw.Phone(r.Context())
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if len(id) != domain.IDLength {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	unlock := s.Locks.Lock(phone)
	defer unlock()

	raw, err := s.Store.Read(r.Context(), repo.Checks, id)
	if err != nil {
		s.storeError(w, "delete_check", err)
		return
	}
	if !caller(w, r, domain.Validate(raw).Check.UserPhone) {
		return
	}
	if err := s.Store.Delete(r.Context(), repo.Checks, id); err != nil {
		s.storeError(w, "delete_check", err)
		return
	}

	u, err := repo.Get[domain.User](r.Context(), s.Store, repo.Users, phone)
	if err != nil {
		s.storeError(w, "delete_check", err)
		return
	}
	u.Checks = slices.DeleteFunc(u.Checks, func(c string) bool { return c == id })
	if err := repo.Put(r.Context(), s.Store, repo.Users, phone, u); err != nil {
		s.storeError(w, "delete_check", err)
		return
	}
	s.Logger.Info("check_deleted", zap.String("check_id", id), zap.String("phone", phone))
	writeJSON(w, http.StatusOK, map[string]string{})
}
