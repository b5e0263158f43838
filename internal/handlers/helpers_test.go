package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/internal/storage"
	"github.com/libris-lms/apiserver/internal/testutil/memstore"
	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type memCovers struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (c *memCovers) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = data
	return nil
}

func (c *memCovers) Get(_ context.Context, key string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *memCovers) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}

type testAPI struct {
	mem    *memstore.Store
	covers *memCovers
	router chi.Router
}

func newTestAPI(t *testing.T, limits config.RateLimitConfig) *testAPI {
	t.Helper()

	mem := memstore.New()
	covers := &memCovers{objects: map[string][]byte{}}

	userService := services.NewUserService(mem.Users())
	borrowService := services.NewBorrowService(mem.Borrows(), mem.Users(), nil, services.DefaultLendingPolicy())
	mw := NewMiddlewares(userService, testSecret,
		RateLimit(limits.Auth, IPKey),
		RateLimit(limits.Burst, UserKey),
		RateLimit(limits.Sustained, UserKey),
	)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz(nil))
	router.Route("/api", func(r chi.Router) {
		AuthRouter(r, userService, testSecret, time.Hour, mw)
		BorrowRouter(r, borrowService, mw)
		r.Route("/authors", func(r chi.Router) {
			AuthorRouter(r, services.NewAuthorService(mem.Authors()), mw)
		})
		r.Route("/categories", func(r chi.Router) {
			CategoryRouter(r, services.NewCategoryService(mem.Categories()), mw)
		})
		r.Route("/books", func(r chi.Router) {
			BookRouter(r, services.NewBookService(mem.Books(), covers), mw)
		})
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, userService, borrowService, mw)
		})
		r.Route("/roles", func(r chi.Router) {
			RoleRouter(r, services.NewRoleService(mem.Roles()), mw)
		})
	})

	return &testAPI{mem: mem, covers: covers, router: router}
}

// member creates an active account and returns it with a bearer token.
func (a *testAPI) member(t *testing.T, username string, admin bool) (types.User, string) {
	t.Helper()
	user, err := a.mem.Users().Create(context.Background(), types.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		Gender:       types.GenderFemale,
		IsActive:     true,
		IsAdmin:      admin,
		PasswordHash: "unused",
	})
	require.NoError(t, err)

	token, err := issueToken(user.ID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return user, token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &value), rec.Body.String())
	return value
}

// seedBook creates an author and a book through the API as admin.
func (a *testAPI) seedBook(t *testing.T, adminToken, title string, copies int) types.Book {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/authors", adminToken, AuthorRequest{Name: "Author of " + title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	author := decode[types.Author](t, rec)

	rec = a.do(t, http.MethodPost, "/api/books", adminToken, BookRequest{Title: title, AuthorID: author.ID, TotalCopies: copies})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.Book](t, rec)
}

func (a *testAPI) admin(t *testing.T) (types.User, string) {
	t.Helper()
	return a.member(t, "librarian", true)
}

func itoa(id int) string {
	return strconv.Itoa(id)
}
