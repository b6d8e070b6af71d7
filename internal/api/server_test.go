package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
	"github.com/shelfwise/shelfwise-server/internal/service"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/store/sqlite"
	"github.com/shelfwise/shelfwise-server/internal/store/storetest"
)

type testServer struct {
	*Server
	api   humatest.TestAPI
	clock *clockwork.FakeClock
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	log := logger.Discard().Logger
	clock := clockwork.NewFakeClockAt(storetest.Epoch)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), log, store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{3}, auth.KeySize), time.Hour, clock)
	require.NoError(t, err)

	defaults := config.ShelvesConfig{DefaultCount: 2, DefaultCapacity: 10, AdHocCapacity: 100}
	services := &Services{
		Auth:    service.NewAuthService(st, tokens, clock, log),
		Library: service.NewLibraryService(st, defaults, clock, log),
	}
	opts.Store = st

	s := NewServer(services, opts, log)
	return &testServer{Server: s, api: humatest.Wrap(t, s.API()), clock: clock}
}

// register creates a user and returns the Authorization header for them.
func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	resp := ts.api.Post("/api/auth/register", map[string]any{"username": username, "password": "secret"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var body AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return "Authorization: Bearer " + body.Token
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, resp)["error"]
}

func TestAuthFlow(t *testing.T) {
	ts := setupTestServer(t, Options{})

	authHeader := ts.register(t, "reader")

	resp := ts.api.Get("/api/current-user", authHeader)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "reader", decode[CurrentUserResponse](t, resp).Username)

	resp = ts.api.Post("/api/auth/login", map[string]any{"username": "reader", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, decode[AuthResponse](t, resp).Token)

	resp = ts.api.Post("/api/auth/login", map[string]any{"username": "reader", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "invalid username or password", errorMessage(t, resp))

	resp = ts.api.Post("/api/auth/register", map[string]any{"username": "reader", "password": "other"})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestUnauthenticated(t *testing.T) {
	ts := setupTestServer(t, Options{})

	for _, path := range []string{"/api/books", "/api/shelf-settings", "/api/current-user"} {
		resp := ts.api.Get(path)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, path)
		assert.Equal(t, "authentication required", errorMessage(t, resp), path)
	}

	resp := ts.api.Get("/api/books", "Authorization: Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestGetLibrary_InitializesShelves(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authHeader := ts.register(t, "reader")

	resp := ts.api.Get("/api/books", authHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	lib := decode[LibraryResponse](t, resp)
	require.Len(t, lib.Shelves, 2)
	assert.Equal(t, "Shelf 1", lib.Shelves[0].DisplayName)
	assert.Equal(t, 10, lib.Shelves[1].Capacity)
	assert.NotNil(t, lib.Shelves[0].Books)
	assert.Equal(t, SettingsResponse{NumberOfShelves: 2, ShelfCapacity: 10}, lib.ShelfSettings)
}

func TestBookLifecycle(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authHeader := ts.register(t, "reader")

	resp := ts.api.Get("/api/books", authHeader)
	require.Equal(t, http.StatusOK, resp.Code)
	lib := decode[LibraryResponse](t, resp)
	first, second := lib.Shelves[0].ID, lib.Shelves[1].ID

	resp = ts.api.Post("/api/books", authHeader, map[string]any{"title": "Дюна", "pages": 6})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	book := decode[BookEnvelope](t, resp).Book
	require.NotNil(t, book.ShelfID)
	assert.Equal(t, first, *book.ShelfID)

	resp = ts.api.Post("/api/books", authHeader, map[string]any{"title": "Emma", "pages": 5, "shelfId": first})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, errorMessage(t, resp), "does not fit on this shelf")

	resp = ts.api.Put("/api/books/"+book.ID+"/move", authHeader, map[string]any{"shelfId": second})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, second, *decode[BookEnvelope](t, resp).Book.ShelfID)

	resp = ts.api.Delete("/api/books/"+book.ID, authHeader)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[SuccessResponse](t, resp).Success)

	resp = ts.api.Delete("/api/books/"+book.ID, authHeader)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAddBook_Validation(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authHeader := ts.register(t, "reader")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"blank title", map[string]any{"title": "   ", "pages": 10}},
		{"zero pages", map[string]any{"title": "Emma", "pages": 0}},
		{"pages not a number", map[string]any{"title": "Emma", "pages": "many"}},
		{"missing pages", map[string]any{"title": "Emma"}},
		{"too many pages", map[string]any{"title": "Emma", "pages": 1_000_001}},
		{"pages at int limit", map[string]any{"title": "Emma", "pages": math.MaxInt64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/books", authHeader, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			assert.NotEmpty(t, errorMessage(t, resp))
		})
	}
}

func TestMoveBook_Errors(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authHeader := ts.register(t, "reader")

	resp := ts.api.Put("/api/books/book-missing/move", authHeader, map[string]any{"shelfId": ""})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/books", authHeader, map[string]any{"title": "Emma", "pages": 3})
	require.Equal(t, http.StatusCreated, resp.Code)
	book := decode[BookEnvelope](t, resp).Book

	resp = ts.api.Put("/api/books/"+book.ID+"/move", authHeader, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Put("/api/books/"+book.ID+"/move", authHeader, map[string]any{"shelfId": "shelf-missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestShelfLifecycle(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authHeader := ts.register(t, "reader")

	resp := ts.api.Post("/api/shelves", authHeader, map[string]any{"name": "Poetry", "capacity": 20})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	shelf := decode[ShelfEnvelope](t, resp).Shelf
	assert.Equal(t, "Poetry", shelf.Name)

	resp = ts.api.Post("/api/books", authHeader, map[string]any{"title": "Odes", "pages": 15, "shelfId": shelf.ID})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = ts.api.Put("/api/shelves/"+shelf.ID, authHeader, map[string]any{"capacity": 10})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Put("/api/shelves/"+shelf.ID, authHeader, map[string]any{"capacity": math.MaxInt64})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Post("/api/shelves", authHeader, map[string]any{"name": "Huge", "capacity": 1_000_001})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Put("/api/shelves/"+shelf.ID, authHeader, map[string]any{"name": "Verse", "capacity": 15})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Verse", decode[ShelfEnvelope](t, resp).Shelf.Name)

	resp = ts.api.Delete("/api/shelves/"+shelf.ID, authHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/shelves/"+shelf.ID, authHeader)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSettings(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authHeader := ts.register(t, "reader")

	resp := ts.api.Get("/api/shelf-settings", authHeader)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, SettingsResponse{NumberOfShelves: 2, ShelfCapacity: 10}, decode[SettingsResponse](t, resp))

	resp = ts.api.Put("/api/shelf-settings", authHeader, map[string]any{"shelfCapacity": 25})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, SettingsResponse{NumberOfShelves: 2, ShelfCapacity: 25}, decode[SettingsResponse](t, resp))

	resp = ts.api.Put("/api/shelf-settings", authHeader, map[string]any{"numberOfShelves": -1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUsersAreIsolated(t *testing.T) {
	ts := setupTestServer(t, Options{})
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")

	resp := ts.api.Post("/api/books", alice, map[string]any{"title": "Emma", "pages": 3})
	require.Equal(t, http.StatusCreated, resp.Code)
	book := decode[BookEnvelope](t, resp).Book

	resp = ts.api.Put("/api/books/"+book.ID+"/move", bob, map[string]any{"shelfId": *book.ShelfID})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/books/search?q=emma", bob)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[SearchBooksResponse](t, resp).Books)

	resp = ts.api.Get("/api/books/search?q=emma", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	hits := decode[SearchBooksResponse](t, resp).Books
	require.Len(t, hits, 1)
	assert.Equal(t, book.ID, hits[0].ID)
}

func TestAuthRateLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := ratelimit.New(0.01, 2, ratelimit.WithClock(clock))
	t.Cleanup(limiter.Stop)

	ts := setupTestServer(t, Options{AuthRateLimiter: limiter})
	creds := map[string]any{"username": "nobody", "password": "x"}

	for range 2 {
		resp := ts.api.Post("/api/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}
	resp := ts.api.Post("/api/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, errorMessage(t, resp))
}

func TestSessionCookieAuthenticates(t *testing.T) {
	sessions := auth.NewSessions(bytes.Repeat([]byte{9}, 32), time.Hour, false)
	ts := setupTestServer(t, Options{Sessions: sessions})
	ts.register(t, "reader")

	user, err := ts.services.Auth.Authenticate(t.Context(), service.Credentials{Username: "reader", Password: "secret"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Start(rec, httptest.NewRequest(http.MethodGet, "/", nil), user.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/current-user", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	resp := httptest.NewRecorder()
	ts.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "reader", decode[CurrentUserResponse](t, resp).Username)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "degraded", health.Status)

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shelfwise_http_requests_total")
}
