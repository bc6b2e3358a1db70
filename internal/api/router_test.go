package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
	"github.com/sweetshop/sweet-shop-api/internal/core/ports"
	"github.com/sweetshop/sweet-shop-api/internal/core/service"
)

// memUsers is an in-memory ports.AuthRepository.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return nil, domain.ErrUserExists
	}
	cp := *user
	cp.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	r.users[cp.Email] = &cp
	out := cp
	return &out, nil
}

// memSweets is an in-memory ports.SweetRepository.
type memSweets struct {
	mu     sync.Mutex
	seq    int
	sweets map[string]*domain.Sweet
}

func (r *memSweets) Create(_ context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	cp := *s
	cp.ID = fmt.Sprintf("sweet-%d", r.seq)
	cp.CreatedAt = cp.CreatedAt.Add(time.Duration(r.seq) * time.Millisecond)
	r.sweets[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memSweets) FindByID(_ context.Context, id string) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSweets) List(_ context.Context, f ports.SweetFilter) ([]*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Sweet, 0, len(r.sweets))
	for _, s := range r.sweets {
		if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Category != "" && !strings.Contains(strings.ToLower(s.Category), strings.ToLower(f.Category)) {
			continue
		}
		if f.MinPrice != nil && s.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && s.Price > *f.MaxPrice {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memSweets) Replace(_ context.Context, id string, s *domain.Sweet) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	cp := *s
	cp.ID, cp.CreatedAt = id, cur.CreatedAt
	r.sweets[id] = &cp
	out := cp
	return &out, nil
}

func (r *memSweets) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sweets[id]; !ok {
		return domain.ErrSweetNotFound
	}
	delete(r.sweets, id)
	return nil
}

func (r *memSweets) Decrement(_ context.Context, id string, qty int) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	if s.Quantity < qty {
		return nil, domain.ErrInsufficientStock
	}
	s.Quantity -= qty
	cp := *s
	return &cp, nil
}

func (r *memSweets) Increment(_ context.Context, id string, qty int) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	if s.Quantity > math.MaxInt-qty {
		return nil, domain.Validationf("quantity %d would overflow the stock count", qty)
	}
	s.Quantity += qty
	cp := *s
	return &cp, nil
}

type nopMovements struct{}

func (nopMovements) Insert(context.Context, *domain.StockMovement) error { return nil }

// nopCache always misses.
type nopCache struct{}

func (nopCache) Get(context.Context) ([]*domain.Sweet, bool, error) { return nil, false, nil }
func (nopCache) Version(context.Context) (int64, error) { return 0, nil }
func (nopCache) Set(context.Context, int64, []*domain.Sweet) error { return nil }
func (nopCache) Invalidate(context.Context) error { return nil }

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := zerolog.Nop()
	auth := service.NewAuthService(&memUsers{users: map[string]*domain.User{}}, "router-test-secret", time.Hour, log)
	sweets := service.NewSweetService(&memSweets{sweets: map[string]*domain.Sweet{}}, nopMovements{}, nopCache{}, log)

	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		AuthService:   auth,
		TokenVerifier: auth,
		SweetService:  sweets,
		Logger:        log,
		Registerer:    reg,
		Gatherer:      reg,
	})
}

func do(t *testing.T, e *echo.Echo, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid json %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func register(t *testing.T, e *echo.Echo, email, role string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"pw-123","name":"Tester","role":%q}`, email, role)
	code, resp := do(t, e, http.MethodPost, "/api/auth/register", "", body)
	if code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d %+v", email, code, resp)
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatalf("register %s: missing token", email)
	}
	return token
}

func sweetField(t *testing.T, resp map[string]any, field string) any {
	t.Helper()
	sweet, ok := resp["sweet"].(map[string]any)
	if !ok {
		t.Fatalf("expected sweet in response, got %+v", resp)
	}
	return sweet[field]
}

func TestRouter_LadooFlow(t *testing.T) {
	e := newTestServer(t)
	admin := register(t, e, "admin@shop.test", "admin")
	user := register(t, e, "user@shop.test", "")

	code, resp := do(t, e, http.MethodPost, "/api/sweets", admin,
		`{"name":"Ladoo","category":"Indian","price":1.5,"quantity":10}`)
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %+v", code, resp)
	}
	id, _ := sweetField(t, resp, "id").(string)

	code, resp = do(t, e, http.MethodPost, "/api/sweets/"+id+"/purchase", user, `{"quantity":3}`)
	if code != http.StatusOK || sweetField(t, resp, "quantity") != float64(7) {
		t.Fatalf("purchase 3: got %d %+v", code, resp)
	}

	code, resp = do(t, e, http.MethodPost, "/api/sweets/"+id+"/purchase", user, `{"quantity":8}`)
	if code != http.StatusBadRequest {
		t.Fatalf("purchase 8: expected 400, got %d %+v", code, resp)
	}

	code, resp = do(t, e, http.MethodPost, "/api/sweets/"+id+"/restock", admin, `{"quantity":5}`)
	if code != http.StatusOK || sweetField(t, resp, "quantity") != float64(12) {
		t.Fatalf("restock 5: got %d %+v", code, resp)
	}

	code, resp = do(t, e, http.MethodGet, "/api/sweets/"+id, user, "")
	if code != http.StatusOK || sweetField(t, resp, "quantity") != float64(12) {
		t.Fatalf("get: got %d %+v", code, resp)
	}
}

func TestRouter_RestockOverflowIsBadRequest(t *testing.T) {
	e := newTestServer(t)
	admin := register(t, e, "admin@shop.test", "admin")

	_, resp := do(t, e, http.MethodPost, "/api/sweets", admin,
		`{"name":"Ladoo","category":"Indian","price":1.5,"quantity":10}`)
	id, _ := sweetField(t, resp, "id").(string)

	code, resp := do(t, e, http.MethodPost, "/api/sweets/"+id+"/restock", admin,
		fmt.Sprintf(`{"quantity":%d}`, math.MaxInt64))
	if code != http.StatusBadRequest {
		t.Fatalf("overflowing restock: expected 400, got %d %+v", code, resp)
	}

	code, resp = do(t, e, http.MethodGet, "/api/sweets/"+id, admin, "")
	if code != http.StatusOK || sweetField(t, resp, "quantity") != float64(10) {
		t.Fatalf("stock changed after rejected restock: %d %+v", code, resp)
	}
}

func TestRouter_AuthGating(t *testing.T) {
	e := newTestServer(t)
	user := register(t, e, "user@shop.test", "user")

	routes := []struct {
		method, path, body string
		adminOnly          bool
	}{
		{http.MethodPost, "/api/sweets", `{}`, true},
		{http.MethodGet, "/api/sweets", "", false},
		{http.MethodGet, "/api/sweets/search?name=x", "", false},
		{http.MethodGet, "/api/sweets/any", "", false},
		{http.MethodPut, "/api/sweets/any", `not-json`, true},
		{http.MethodDelete, "/api/sweets/any", "", true},
		{http.MethodPost, "/api/sweets/any/purchase", `{}`, false},
		{http.MethodPost, "/api/sweets/any/restock", `{"quantity":-1}`, true},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			if code, _ := do(t, e, r.method, r.path, "", r.body); code != http.StatusUnauthorized {
				t.Fatalf("no token: expected 401, got %d", code)
			}
			if code, _ := do(t, e, r.method, r.path, "garbage", r.body); code != http.StatusUnauthorized {
				t.Fatalf("bad token: expected 401, got %d", code)
			}
			if r.adminOnly {
				if code, _ := do(t, e, r.method, r.path, user, r.body); code != http.StatusForbidden {
					t.Fatalf("non-admin: expected 403, got %d", code)
				}
			}
		})
	}
}

func TestRouter_AuthErrors(t *testing.T) {
	e := newTestServer(t)
	register(t, e, "dup@shop.test", "")

	code, _ := do(t, e, http.MethodPost, "/api/auth/register", "",
		`{"email":"dup@shop.test","password":"other","name":"Again"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("duplicate register: expected 400, got %d", code)
	}

	_, wrongPw := do(t, e, http.MethodPost, "/api/auth/login", "", `{"email":"dup@shop.test","password":"nope"}`)
	code, unknown := do(t, e, http.MethodPost, "/api/auth/login", "", `{"email":"ghost@shop.test","password":"pw-123"}`)
	if code != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", code)
	}
	if wrongPw["message"] != unknown["message"] {
		t.Fatalf("login errors differ: %+v vs %+v", wrongPw, unknown)
	}

	code, resp := do(t, e, http.MethodPost, "/api/auth/login", "", `{"email":"DUP@shop.test","password":"pw-123"}`)
	if code != http.StatusOK || resp["token"] == "" {
		t.Fatalf("login: got %d %+v", code, resp)
	}
}

func TestRouter_NotFoundAndSearch(t *testing.T) {
	e := newTestServer(t)
	admin := register(t, e, "admin@shop.test", "admin")

	for _, body := range []string{
		`{"name":"Ladoo","category":"Indian","price":1,"quantity":1}`,
		`{"name":"Chocolate Bar","category":"Chocolate","price":2.5,"quantity":1}`,
		`{"name":"Truffle","category":"Chocolate","price":4,"quantity":1}`,
	} {
		if code, resp := do(t, e, http.MethodPost, "/api/sweets", admin, body); code != http.StatusCreated {
			t.Fatalf("create: got %d %+v", code, resp)
		}
	}

	if code, _ := do(t, e, http.MethodGet, "/api/sweets/missing", admin, ""); code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", code)
	}
	if code, _ := do(t, e, http.MethodDelete, "/api/sweets/missing", admin, ""); code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", code)
	}

	code, resp := do(t, e, http.MethodGet, "/api/sweets/search?category=CHOC&maxPrice=2.5", admin, "")
	if code != http.StatusOK {
		t.Fatalf("search: got %d %+v", code, resp)
	}
	sweets, _ := resp["sweets"].([]any)
	if len(sweets) != 1 {
		t.Fatalf("expected 1 match, got %+v", resp)
	}

	code, resp = do(t, e, http.MethodGet, "/api/sweets", admin, "")
	sweets, _ = resp["sweets"].([]any)
	if code != http.StatusOK || len(sweets) != 3 {
		t.Fatalf("list: got %d %+v", code, resp)
	}
	if first, _ := sweets[0].(map[string]any); first["name"] != "Truffle" {
		t.Fatalf("expected newest first, got %+v", sweets[0])
	}

	if code, _ := do(t, e, http.MethodGet, "/api/sweets/search?minPrice=5&maxPrice=1", admin, ""); code != http.StatusBadRequest {
		t.Fatalf("inverted bounds: expected 400, got %d", code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e := newTestServer(t)

	if code, resp := do(t, e, http.MethodGet, "/health", "", ""); code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health: got %d %+v", code, resp)
	}
	if code, _ := do(t, e, http.MethodGet, "/health/ready", "", ""); code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", code)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
}
