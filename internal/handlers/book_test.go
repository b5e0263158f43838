package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestCatalogWritesRequireAdmin(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, memberToken := api.member(t, "reader", false)

	rec := api.do(t, http.MethodPost, "/api/authors", "", AuthorRequest{Name: "Anon"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/authors", memberToken, AuthorRequest{Name: "Anon"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/categories", memberToken, CategoryRequest{Name: "Fiction"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/roles", memberToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookLifecycle(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	_, memberToken := api.member(t, "reader", false)

	rec := api.do(t, http.MethodPost, "/api/categories", adminToken, CategoryRequest{Name: "Sci-Fi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	category := decode[types.Category](t, rec)

	rec = api.do(t, http.MethodPost, "/api/categories", adminToken, CategoryRequest{Name: "Sci-Fi"})
	require.Equal(t, http.StatusConflict, rec.Code)

	book := api.seedBook(t, adminToken, "Foundation", 2)

	rec = api.do(t, http.MethodPut, "/api/books/"+itoa(book.ID), adminToken, BookRequest{
		Title:       "Foundation",
		AuthorID:    book.AuthorID,
		CategoryID:  &category.ID,
		TotalCopies: 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[types.Book](t, rec)
	require.Equal(t, 3, updated.AvailableCopies)
	require.Equal(t, "Sci-Fi", *updated.CategoryName)

	rec = api.do(t, http.MethodPost, "/api/borrows", memberToken, BorrowRequest{BookID: book.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/books/"+itoa(book.ID), adminToken, BookRequest{
		Title:       "Foundation",
		AuthorID:    book.AuthorID,
		TotalCopies: 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "currently borrowed")

	rec = api.do(t, http.MethodGet, "/api/books?category="+itoa(category.ID)+"&available=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decode[ListResponse[types.Book]](t, rec).Total)

	rec = api.do(t, http.MethodGet, "/api/books?search=found", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decode[ListResponse[types.Book]](t, rec).Total)

	rec = api.do(t, http.MethodDelete, "/api/authors/"+itoa(book.AuthorID), adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/books/"+itoa(book.ID), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookCoverUploadAndDownload(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	book := api.seedBook(t, adminToken, "Neuromancer", 1)

	rec := api.do(t, http.MethodGet, "/api/books/"+itoa(book.ID)+"/cover", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	image := []byte("\x89PNG fake image bytes")
	req := httptest.NewRequest(http.MethodPut, "/api/books/"+itoa(book.ID)+"/cover", bytes.NewReader(image))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, decode[types.Book](t, rec).CoverKey)

	rec = api.do(t, http.MethodGet, "/api/books/"+itoa(book.ID)+"/cover", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, image, rec.Body.Bytes())

	req = httptest.NewRequest(http.MethodPut, "/api/books/"+itoa(book.ID)+"/cover", bytes.NewReader([]byte("plain")))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
