//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"
	"plans-admin/internal/infra/db/memory"
	"plans-admin/internal/infra/i18n"
	"plans-admin/internal/usecase"

	"github.com/rs/zerolog"
)

const (
	testAPIKey = "test-admin-key"
	testSecret = "0123456789abcdef0123456789abcdef"
)

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.AllowFunc(ctx, key, limit, window)
}

func newTestServer(t *testing.T, n int, limiter LoginLimiter) (http.Handler, *memory.PlanRepo, *AuthManager) {
	t.Helper()
	repo := memory.NewPlanRepo()
	for i := 0; i < n; i++ {
		p, _ := model.NewPlan(fmt.Sprintf("plan-%03d", i), fmt.Sprintf("Plan %d", i), i%2 == 0)
		if err := repo.Save(context.Background(), repository.NoTX, p); err != nil {
			t.Fatal(err)
		}
	}
	logger := zerolog.Nop()
	uc := usecase.NewPlanUseCase(repo, memory.TxManager{}, usecase.PlanListOptions{PageSize: 10, WindowSize: 5}, &logger)
	auth := NewAuthManager(testSecret, testAPIKey, false, "", 30*time.Minute)
	srv := NewServer(uc, auth, limiter, Options{LoginLimit: 5, RequestTimeout: 5 * time.Second}, &logger)
	return srv.Routes(), repo, auth
}

func sessionCookie(t *testing.T, auth *AuthManager) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	tok, err := auth.Mint(rec)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return &http.Cookie{Name: "admin_session", Value: tok}
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestServer(t, 0, nil)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

func TestAdminPages_RequireSession(t *testing.T) {
	h, _, _ := newTestServer(t, 3, nil)

	for _, path := range []string{"/admin/plans", "/admin/plans/new", "/admin/plans/plan-000/edit"} {
		rec := do(h, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/login" {
			t.Errorf("%s: expected redirect to login, got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api without credentials: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set("Authorization", "Basic abc")
	if rec := do(h, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("non-bearer header: expected 401, got %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	t.Run("valid key sets session", func(t *testing.T) {
		h, _, _ := newTestServer(t, 1, nil)
		rec := do(h, postForm("/admin/login", url.Values{"key": {testAPIKey}}))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != plansPath {
			t.Fatalf("expected redirect to plans, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
		var session *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == "admin_session" {
				session = c
			}
		}
		if session == nil || session.Value == "" || !session.HttpOnly {
			t.Fatalf("expected HttpOnly session cookie, got %+v", session)
		}

		req := httptest.NewRequest(http.MethodGet, "/admin/plans", nil)
		req.AddCookie(session)
		if rec := do(h, req); rec.Code != http.StatusOK {
			t.Fatalf("expected session to open plans page, got %d", rec.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		h, _, _ := newTestServer(t, 1, nil)
		rec := do(h, postForm("/admin/login", url.Values{"key": {"nope"}}))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid key.") {
			t.Error("expected error message on login page")
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		var gotKey string
		lim := &mockLimiter{AllowFunc: func(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
			gotKey = key
			if limit != 5 || window != time.Minute {
				t.Errorf("unexpected limit %d/%s", limit, window)
			}
			return false, nil
		}}
		h, _, _ := newTestServer(t, 1, lim)
		req := postForm("/admin/login", url.Values{"key": {testAPIKey}})
		req.RemoteAddr = "10.1.2.3:5555"
		rec := do(h, req)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if gotKey != "rate_limit:login:10.1.2.3" {
			t.Errorf("unexpected limiter key %q", gotKey)
		}
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		lim := &mockLimiter{AllowFunc: func(context.Context, string, int, time.Duration) (bool, error) {
			return false, errors.New("redis down")
		}}
		h, _, _ := newTestServer(t, 1, lim)
		rec := do(h, postForm("/admin/login", url.Values{"key": {testAPIKey}}))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected login to proceed, got %d", rec.Code)
		}
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		h, _, _ := newTestServer(t, 1, nil)
		rec := do(h, httptest.NewRequest(http.MethodPost, "/admin/logout", nil))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected expired cookie, got %+v", cookies)
		}
	})
}

func TestPlansPage(t *testing.T) {
	h, _, auth := newTestServer(t, 95, nil)
	cookie := sessionCookie(t, auth)

	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(cookie)
		return do(h, req)
	}

	t.Run("first page", func(t *testing.T) {
		rec := get("/admin/plans")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{
			"List Plans",
			"NEW +",
			"Plan 0</td>",
			"Plan 9</td>",
			`<li class="currentPage"><span>1</span></li>`,
			`<li class="disabled"><span>&lt;</span></li>`,
			"/admin/plans/plan-000/edit",
			"/admin/plans/plan-000/delete",
			"Active",
			"Inactive",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("page body missing %q", want)
			}
		}
		if strings.Contains(body, "Plan 10</td>") {
			t.Error("first page must not show the 11th plan")
		}
	})

	t.Run("out of range input is clamped", func(t *testing.T) {
		rec := get("/admin/plans?page=99&win=-4")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `<li class="currentPage"><span>10</span></li>`) {
			t.Error("expected last page to be current")
		}
		if !strings.Contains(body, "Plan 94</td>") {
			t.Error("expected last plan on last page")
		}
	})

	t.Run("garbage input falls back to first page", func(t *testing.T) {
		rec := get("/admin/plans?page=abc&win=")
		if !strings.Contains(rec.Body.String(), `<li class="currentPage"><span>1</span></li>`) {
			t.Error("expected first page to be current")
		}
	})

	t.Run("deleted query parameter is not a notice", func(t *testing.T) {
		rec := get("/admin/plans?deleted=Gold")
		if strings.Contains(rec.Body.String(), "Deleted plan") {
			t.Error("a crafted link must not show a delete notice")
		}
	})
}

func TestPlanForms(t *testing.T) {
	h, repo, auth := newTestServer(t, 2, nil)
	cookie := sessionCookie(t, auth)
	ctx := context.Background()

	send := func(req *http.Request) *httptest.ResponseRecorder {
		req.AddCookie(cookie)
		return do(h, req)
	}

	t.Run("create", func(t *testing.T) {
		rec := send(postForm("/admin/plans/new", url.Values{"name": {"  <b>Gold</b> "}, "active": {"on"}}))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
		n, _ := repo.Count(ctx, repository.NoTX)
		if n != 3 {
			t.Fatalf("expected 3 plans, got %d", n)
		}
		plans, _ := repo.List(ctx, repository.NoTX, 0, 10)
		var found bool
		for _, p := range plans {
			if p.Name == "Gold" && p.Active {
				found = true
			}
		}
		if !found {
			t.Error("expected sanitized active plan Gold")
		}
	})

	t.Run("create with empty name re-renders form", func(t *testing.T) {
		rec := send(postForm("/admin/plans/new", url.Values{"name": {"   "}}))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Name is required") {
			t.Error("expected validation message")
		}
	})

	t.Run("edit form shows plan", func(t *testing.T) {
		rec := send(httptest.NewRequest(http.MethodGet, "/admin/plans/plan-000/edit", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `value="Plan 0"`) {
			t.Error("expected name prefilled")
		}
	})

	t.Run("update unchecks active", func(t *testing.T) {
		rec := send(postForm("/admin/plans/plan-000/edit", url.Values{"name": {"Renamed"}}))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
		p, err := repo.FindByID(ctx, repository.NoTX, "plan-000")
		if err != nil {
			t.Fatal(err)
		}
		if p.Name != "Renamed" || p.Active {
			t.Errorf("unexpected plan after update: %+v", p)
		}
	})

	t.Run("edit missing plan", func(t *testing.T) {
		if rec := send(httptest.NewRequest(http.MethodGet, "/admin/plans/missing/edit", nil)); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if rec := send(postForm("/admin/plans/missing/edit", url.Values{"name": {"x"}})); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("delete keeps pagination state", func(t *testing.T) {
		rec := send(postForm("/admin/plans/plan-001/delete", url.Values{"page": {"3"}, "win": {"2"}}))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatal(err)
		}
		q := loc.Query()
		if loc.Path != plansPath || q.Get("page") != "3" || q.Get("win") != "2" || q.Has("deleted") {
			t.Errorf("unexpected redirect %q", loc)
		}
		if _, err := repo.FindByID(ctx, repository.NoTX, "plan-001"); err == nil {
			t.Error("expected plan to be gone")
		}

		var flash *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == flashCookie {
				flash = c
			}
		}
		if flash == nil || !flash.HttpOnly || flash.MaxAge <= 0 {
			t.Fatalf("expected short-lived flash cookie, got %+v", flash)
		}

		next := httptest.NewRequest(http.MethodGet, loc.String(), nil)
		next.AddCookie(&http.Cookie{Name: flash.Name, Value: flash.Value})
		page := send(next)
		if !strings.Contains(page.Body.String(), "Deleted plan Plan 1") {
			t.Error("expected delete notice on the next page load")
		}
		cleared := false
		for _, c := range page.Result().Cookies() {
			if c.Name == flashCookie && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("expected notice cookie to be cleared once shown")
		}
	})

	t.Run("delete missing plan", func(t *testing.T) {
		if rec := send(postForm("/admin/plans/missing/delete", nil)); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestAPI(t *testing.T) {
	h, _, _ := newTestServer(t, 23, nil)

	call := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		req.Header.Set("Content-Type", "application/json")
		return do(h, req)
	}

	t.Run("list", func(t *testing.T) {
		rec := call(http.MethodGet, "/api/v1/plans?page=3", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got planPageJSON
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.Total != 23 || got.PageSize != 10 || len(got.Data) != 3 {
			t.Fatalf("unexpected page: total=%d size=%d len=%d", got.Total, got.PageSize, len(got.Data))
		}
		p := got.Pagination
		if p.CurrentPage != 3 || p.LastPage != 3 || fmt.Sprint(p.Window) != "[1 2 3]" {
			t.Errorf("unexpected pagination %+v", p)
		}
	})

	t.Run("create, get, update, delete", func(t *testing.T) {
		rec := call(http.MethodPost, "/api/v1/plans", `{"name":"Silver","active":false}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d", rec.Code)
		}
		var created model.Plan
		if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
			t.Fatal(err)
		}
		if created.ID == "" || created.Name != "Silver" || created.Active {
			t.Fatalf("unexpected plan %+v", created)
		}

		if rec := call(http.MethodGet, "/api/v1/plans/"+created.ID, ""); rec.Code != http.StatusOK {
			t.Fatalf("get: expected 200, got %d", rec.Code)
		}

		rec = call(http.MethodPut, "/api/v1/plans/"+created.ID, `{"active":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("update: expected 200, got %d", rec.Code)
		}
		var updated model.Plan
		_ = json.NewDecoder(rec.Body).Decode(&updated)
		if updated.Name != "Silver" || !updated.Active {
			t.Errorf("unexpected updated plan %+v", updated)
		}

		if rec := call(http.MethodDelete, "/api/v1/plans/"+created.ID, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("delete: expected 204, got %d", rec.Code)
		}
		if rec := call(http.MethodGet, "/api/v1/plans/"+created.ID, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("get after delete: expected 404, got %d", rec.Code)
		}
	})

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			name   string
			method string
			target string
			body   string
			want   int
		}{
			{"bad json", http.MethodPost, "/api/v1/plans", `{`, http.StatusBadRequest},
			{"missing name", http.MethodPost, "/api/v1/plans", `{"active":true}`, http.StatusBadRequest},
			{"blank name", http.MethodPost, "/api/v1/plans", `{"name":"  "}`, http.StatusBadRequest},
			{"update missing", http.MethodPut, "/api/v1/plans/missing", `{"active":true}`, http.StatusNotFound},
			{"delete missing", http.MethodDelete, "/api/v1/plans/missing", "", http.StatusNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if rec := call(tc.method, tc.target, tc.body); rec.Code != tc.want {
					t.Errorf("expected %d, got %d", tc.want, rec.Code)
				}
			})
		}
	})
}

func TestPlansPage_Localized(t *testing.T) {
	logger := zerolog.Nop()
	repo := memory.NewPlanRepo(memory.SamplePlans()...)
	uc := usecase.NewPlanUseCase(repo, memory.TxManager{}, usecase.PlanListOptions{}, &logger)
	auth := NewAuthManager(testSecret, testAPIKey, false, "", time.Minute)
	h := NewServer(uc, auth, nil, Options{Translator: i18n.MustLoad("fa")}, &logger).Routes()

	req := httptest.NewRequest(http.MethodGet, "/admin/plans", nil)
	req.AddCookie(sessionCookie(t, auth))
	rec := do(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`lang="fa"`, `dir="rtl"`, "فهرست پلن‌ها", "Gold", "فعال"} {
		if !strings.Contains(body, want) {
			t.Errorf("page body missing %q", want)
		}
	}
}
