package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"

	app "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const testSecret = "handler-test-secret"

type testServer struct {
	t       *testing.T
	app     *app.Application
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Cart.SweepSchedule = "off"

	application, err := app.New(app.Stores{}, cfg, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	_, err = application.Seeder.Run(context.Background())
	require.NoError(t, err)

	handler, closer, err := NewHandler(application, Options{JWTSecret: testSecret, Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	return &testServer{t: t, app: application, handler: handler}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	token := gjson.Get(rec.Body.String(), "token").String()
	require.NotEmpty(s.t, token)
	return token
}

func (s *testServer) userToken() string  { return s.login("user1@cegep.ca", "password") }
func (s *testServer) adminToken() string { return s.login("admin@cegep.ca", "admin-password") }

func (s *testServer) bookID(title string) string {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/books/search?q="+url.QueryEscape(title), "", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	id := gjson.Get(rec.Body.String(), `#(title==`+strconv.Quote(title)+`).id`).String()
	require.NotEmpty(s.t, id, "book %q not found", title)
	return id
}

func (s *testServer) stock(bookID string) int64 {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/books/"+bookID, "", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	return gjson.Get(rec.Body.String(), "quantity").Int()
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
	assert.Len(t, gjson.Get(body, "services").Array(), 4)
	assert.Contains(t, gjson.Get(body, "lifecycle").String(), "catalog")
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "reader",
		"email":    "Reader@Example.com",
		"password": "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "reader@example.com", gjson.Get(body, "email").String())
	assert.False(t, gjson.Get(body, "is_admin").Bool())
	assert.False(t, gjson.Get(body, "password").Exists())
	assert.False(t, gjson.Get(body, "password_hash").Exists())

	token := s.login("reader@example.com", "secret-pass")
	rec = s.do(http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reader", gjson.Get(rec.Body.String(), "username").String())

	rec = s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "reader2",
		"email":    "reader@example.com",
		"password": "secret-pass",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_KEY", gjson.Get(rec.Body.String(), "error.code").String())
	assert.Equal(t, "email", gjson.Get(rec.Body.String(), "error.details.field").String())

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "reader@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupCannotGrantAdmin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]any{
		"username": "sneaky",
		"email":    "sneaky@example.com",
		"password": "secret-pass",
		"is_admin": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	author := map[string]string{"name": "Ursula K. Le Guin"}

	rec := s.do(http.MethodPost, "/api/authors", "", author)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", gjson.Get(rec.Body.String(), "error.code").String())

	rec = s.do(http.MethodPost, "/api/authors", s.userToken(), author)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", gjson.Get(rec.Body.String(), "error.code").String())

	admin := s.adminToken()
	rec = s.do(http.MethodPost, "/api/authors", admin, author)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Ursula K. Le Guin", gjson.Get(rec.Body.String(), "name").String())

	rec = s.do(http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "@this").Array(), 4)

	rec = s.do(http.MethodGet, "/api/users", "garbage.token.value", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestCartReservesAndReturnsStock(t *testing.T) {
	s := newTestServer(t)
	token := s.userToken()
	id := s.bookID("1984")
	initial := s.stock(id)

	rec := s.do(http.MethodPost, "/api/cart", token, map[string]any{"book_id": id, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "items.0.quantity").Int())
	assert.Equal(t, "1984", gjson.Get(body, "items.0.book.title").String())
	total, err := decimal.NewFromString(gjson.Get(body, "total").String())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(17)), "total %s", total)
	assert.Equal(t, initial-2, s.stock(id))

	rec = s.do(http.MethodPost, "/api/cart", token, map[string]any{"book_id": id, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, initial-1, s.stock(id))

	rec = s.do(http.MethodPost, "/api/cart", token, map[string]any{"book_id": id, "quantity": 10000})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", gjson.Get(rec.Body.String(), "error.code").String())
	assert.Equal(t, initial-1, gjson.Get(rec.Body.String(), "error.details.available").Int())
	assert.Equal(t, initial-1, s.stock(id))

	rec = s.do(http.MethodDelete, "/api/cart/items/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gjson.Get(rec.Body.String(), "items").Array())
	assert.Equal(t, initial, s.stock(id))

	rec = s.do(http.MethodDelete, "/api/cart/items/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearCartCreditsEveryLine(t *testing.T) {
	s := newTestServer(t)
	token := s.userToken()
	a, b := s.bookID("1984"), s.bookID("Dune")
	stockA, stockB := s.stock(a), s.stock(b)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/cart", token, map[string]any{"book_id": a, "quantity": 2}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/cart", token, map[string]any{"book_id": b, "quantity": 3}).Code)

	rec := s.do(http.MethodDelete, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gjson.Get(rec.Body.String(), "items").Array())
	total, err := decimal.NewFromString(gjson.Get(rec.Body.String(), "total").String())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Equal(t, stockA, s.stock(a))
	assert.Equal(t, stockB, s.stock(b))
}

func TestCartRequiresUser(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteBookDetachesCartLines(t *testing.T) {
	s := newTestServer(t)
	user := s.userToken()
	id := s.bookID("1984")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/cart", user, map[string]any{"book_id": id, "quantity": 1}).Code)

	rec := s.do(http.MethodDelete, "/api/books/"+id, s.adminToken(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/cart", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gjson.Get(rec.Body.String(), "items").Array())

	rec = s.do(http.MethodGet, "/api/books/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/books/not-a-uuid", "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "INVALID_ID", gjson.Get(body, "error.code").String())
	assert.Equal(t, rec.Header().Get("X-Trace-ID"), gjson.Get(body, "trace_id").String())

	rec = s.do(http.MethodGet, "/api/books/"+uuid.NewString(), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", gjson.Get(rec.Body.String(), "error.code").String())

	rec = s.do(http.MethodGet, "/no/such/route", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "trace_id").String())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBooksPagination(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/books?page=2&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Len(t, gjson.Get(body, "data").Array(), 5)
	assert.Equal(t, int64(2), gjson.Get(body, "pagination.page").Int())
	assert.Equal(t, int64(12), gjson.Get(body, "pagination.total").Int())
	assert.Equal(t, int64(3), gjson.Get(body, "pagination.totalPages").Int())
	assert.True(t, gjson.Get(body, "data.0.authors.0.name").Exists())
}

func TestCategoryRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/categories/tree", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "@this").Array(), 13)

	admin := s.adminToken()
	rec = s.do(http.MethodPost, "/api/categories", admin, map[string]any{"name": "Poésie"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := gjson.Get(rec.Body.String(), "id").String()

	rec = s.do(http.MethodGet, "/api/categories/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Poésie", gjson.Get(rec.Body.String(), "name").String())

	rec = s.do(http.MethodDelete, "/api/categories/"+id, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuditRecordsWrites(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	rec := s.do(http.MethodPost, "/api/authors", admin, map[string]string{"name": "Octavia E. Butler"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/audit", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := gjson.Get(rec.Body.String(), "@this").Array()
	require.NotEmpty(t, entries)

	last := entries[len(entries)-1]
	assert.Equal(t, "/api/authors", last.Get("path").String())
	assert.Equal(t, http.MethodPost, last.Get("method").String())
	assert.Equal(t, int64(http.StatusCreated), last.Get("status").Int())
	assert.Equal(t, "admin", last.Get("role").String())
	assert.NotEmpty(t, last.Get("user").String())

	rec = s.do(http.MethodGet, "/api/admin/audit?limit=1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "@this").Array(), 1)
}

func TestSeedInvalidatesOldAccounts(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	rec := s.do(http.MethodPost, "/api/admin/seed", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, int64(12), gjson.Get(body, "books").Int())
	assert.Equal(t, int64(4), gjson.Get(body, "users").Int())

	// Reseeding recreates accounts with new ids.
	rec = s.do(http.MethodGet, "/api/admin/stats", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/stats", s.adminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(11), gjson.Get(rec.Body.String(), "authors").Int())
}

func TestDeleteProfileReturnsReservedStock(t *testing.T) {
	s := newTestServer(t)
	token := s.userToken()
	id := s.bookID("1984")
	initial := s.stock(id)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/cart", token, map[string]any{"book_id": id, "quantity": 4}).Code)
	assert.Equal(t, initial-4, s.stock(id))

	rec := s.do(http.MethodDelete, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, initial, s.stock(id))

	rec = s.do(http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
