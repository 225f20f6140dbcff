package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimemonitor/internal/domain"
	apimw "github.com/hamed0406/uptimemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/uptimemonitor/internal/repo"
	"github.com/hamed0406/uptimemonitor/internal/repo/memory"
)

// ---- test helpers ----

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func setup(t *testing.T, opts ...func(*Server)) (*apiClient, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv := NewServer(zap.NewNop(), store, nil)
	srv.LoginPerMin = 0
	for _, o := range opts {
		o(srv)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &apiClient{t: t, base: ts.URL}, store
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, c.base+path, rd)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(apimw.TokenHeader, c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (c *apiClient) signUp(phone string) {
	c.t.Helper()
	code := c.do(http.MethodPost, "/api/users", map[string]any{
		"firstName": "Ada", "lastName": "Lovelace", "phone": phone,
		"password": "hunter22", "tosAgreement": true,
	}, nil)
	if code != http.StatusCreated {
		c.t.Fatalf("sign up: want 201, got %d", code)
	}
	var tok domain.Token
	if code := c.do(http.MethodPost, "/api/tokens", map[string]any{"phone": phone, "password": "hunter22"}, &tok); code != http.StatusCreated {
		c.t.Fatalf("login: want 201, got %d", code)
	}
	c.token = tok.ID
}

func newCheck() map[string]any {
	return map[string]any{
		"protocol": "https", "url": "example.com/status", "method": "get",
		"successCodes": []int{200, 201}, "timeoutSeconds": 3,
	}
}

// ---- tests ----

func TestUsers_CreateGetUpdate(t *testing.T) {
	c, store := setup(t)
	c.signUp("5551234567")

	var u domain.User
	if code := c.do(http.MethodGet, "/api/users?phone=5551234567", nil, &u); code != http.StatusOK {
		t.Fatalf("get user: %d", code)
	}
	if u.FirstName != "Ada" || u.HashedPassword != "" {
		t.Fatalf("unexpected user %+v", u)
	}

	if code := c.do(http.MethodPut, "/api/users", map[string]any{"phone": "5551234567", "lastName": "King"}, &u); code != http.StatusOK {
		t.Fatalf("update user: %d", code)
	}
	stored, _ := repo.Get[domain.User](context.Background(), store, repo.Users, "5551234567")
	if stored.LastName != "King" || stored.HashedPassword == "hunter22" || stored.HashedPassword == "" {
		t.Fatalf("unexpected stored user %+v", stored)
	}

	// Duplicate and incomplete sign ups.
	if code := c.do(http.MethodPost, "/api/users", map[string]any{
		"firstName": "A", "lastName": "B", "phone": "5551234567", "password": "x", "tosAgreement": true,
	}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate: want 409, got %d", code)
	}
	if code := c.do(http.MethodPost, "/api/users", map[string]any{"phone": "5550000000"}, nil); code != http.StatusBadRequest {
		t.Fatalf("incomplete: want 400, got %d", code)
	}

	// Someone else's record.
	if code := c.do(http.MethodGet, "/api/users?phone=5550000000", nil, nil); code != http.StatusForbidden {
		t.Fatalf("foreign user: want 403, got %d", code)
	}
}

func TestTokens_WrongPasswordExtendDelete(t *testing.T) {
	var skew atomic.Int64
	c, _ := setup(t, func(s *Server) {
		s.Now = func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	})
	c.signUp("5551234567")

	if code := c.do(http.MethodPost, "/api/tokens", map[string]any{"phone": "5551234567", "password": "nope"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad password: want 400, got %d", code)
	}

	var before, after domain.Token
	c.do(http.MethodGet, "/api/tokens?id="+c.token, nil, &before)

	skew.Store(int64(10 * time.Minute))
	if code := c.do(http.MethodPut, "/api/tokens", map[string]any{"id": c.token, "extend": true}, &after); code != http.StatusOK {
		t.Fatalf("extend: %d", code)
	}
	if after.Expires <= before.Expires {
		t.Fatalf("token not extended: %d <= %d", after.Expires, before.Expires)
	}

	if code := c.do(http.MethodDelete, "/api/tokens?id="+c.token, nil, nil); code != http.StatusOK {
		t.Fatalf("delete token: %d", code)
	}
	if code := c.do(http.MethodGet, "/api/checks?id=aaaaaaaaaaaaaaaaaaaa", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("deleted token should be rejected, got %d", code)
	}
}

func TestChecks_Lifecycle(t *testing.T) {
	c, store := setup(t)
	c.signUp("5551234567")
	ctx := context.Background()

	var created domain.Check
	if code := c.do(http.MethodPost, "/api/checks", newCheck(), &created); code != http.StatusCreated {
		t.Fatalf("create check: %d", code)
	}
	if len(created.ID) != domain.IDLength || created.State != domain.StateDown || created.Probed() {
		t.Fatalf("unexpected new check %+v", created)
	}
	u, _ := repo.Get[domain.User](ctx, store, repo.Users, "5551234567")
	if !slices.Contains(u.Checks, created.ID) {
		t.Fatalf("check id not added to user: %v", u.Checks)
	}

	var got domain.Check
	if code := c.do(http.MethodGet, "/api/checks?id="+created.ID, nil, &got); code != http.StatusOK || got.URL != "example.com/status" {
		t.Fatalf("get check: %d %+v", code, got)
	}

	if code := c.do(http.MethodPut, "/api/checks", map[string]any{"id": created.ID, "method": "post", "timeoutSeconds": 5}, &got); code != http.StatusOK {
		t.Fatalf("update check: %d", code)
	}
	if got.Method != "post" || got.TimeoutSeconds != 5 || got.URL != "example.com/status" {
		t.Fatalf("update not merged: %+v", got)
	}

	var bad apiError
	if code := c.do(http.MethodPut, "/api/checks", map[string]any{"id": created.ID, "timeoutSeconds": 9}, &bad); code != http.StatusBadRequest {
		t.Fatalf("invalid update: want 400, got %d", code)
	}
	if !slices.Contains(bad.Invalid, "timeoutSeconds") {
		t.Fatalf("invalid fields not reported: %+v", bad)
	}

	if code := c.do(http.MethodDelete, "/api/checks?id="+created.ID, nil, nil); code != http.StatusOK {
		t.Fatalf("delete check: %d", code)
	}
	if _, err := store.Read(ctx, repo.Checks, created.ID); err == nil {
		t.Fatal("check still stored")
	}
	u, _ = repo.Get[domain.User](ctx, store, repo.Users, "5551234567")
	if len(u.Checks) != 0 {
		t.Fatalf("check id not removed from user: %v", u.Checks)
	}
}

func TestChecks_InvalidAndLimit(t *testing.T) {
	c, _ := setup(t, func(s *Server) { s.MaxChecks = 2 })
	c.signUp("5551234567")

	body := newCheck()
	body["protocol"] = "ftp"
	var bad apiError
	if code := c.do(http.MethodPost, "/api/checks", body, &bad); code != http.StatusBadRequest || !slices.Contains(bad.Invalid, "protocol") {
		t.Fatalf("invalid protocol: %d %+v", code, bad)
	}

	for i := 0; i < 2; i++ {
		if code := c.do(http.MethodPost, "/api/checks", newCheck(), nil); code != http.StatusCreated {
			t.Fatalf("create %d: %d", i, code)
		}
	}
	if code := c.do(http.MethodPost, "/api/checks", newCheck(), nil); code != http.StatusBadRequest {
		t.Fatalf("over limit: want 400, got %d", code)
	}
}

func TestChecks_OwnerOnly(t *testing.T) {
	alice, store := setup(t)
	alice.signUp("5551111111")
	var created domain.Check
	alice.do(http.MethodPost, "/api/checks", newCheck(), &created)

	bob := &apiClient{t: t, base: alice.base}
	bob.signUp("5552222222")
	if code := bob.do(http.MethodGet, "/api/checks?id="+created.ID, nil, nil); code != http.StatusForbidden {
		t.Fatalf("foreign get: want 403, got %d", code)
	}
	if code := bob.do(http.MethodDelete, "/api/checks?id="+created.ID, nil, nil); code != http.StatusForbidden {
		t.Fatalf("foreign delete: want 403, got %d", code)
	}
	if _, err := store.Read(context.Background(), repo.Checks, created.ID); err != nil {
		t.Fatalf("check should survive: %v", err)
	}
}

func TestUsers_DeleteRemovesChecks(t *testing.T) {
	c, store := setup(t)
	c.signUp("5551234567")
	var a, b domain.Check
	c.do(http.MethodPost, "/api/checks", newCheck(), &a)
	c.do(http.MethodPost, "/api/checks", newCheck(), &b)

	if code := c.do(http.MethodDelete, "/api/users?phone=5551234567", nil, nil); code != http.StatusOK {
		t.Fatalf("delete user: %d", code)
	}
	ids, _ := store.List(context.Background(), repo.Checks)
	if len(ids) != 0 {
		t.Fatalf("checks left behind: %v", ids)
	}
}
