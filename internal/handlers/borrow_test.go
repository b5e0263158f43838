package handlers

import (
	"net/http"
	"testing"

	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestBorrowAndReturnFlow(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	alice, aliceToken := api.member(t, "alice", false)
	_, bobToken := api.member(t, "bob", false)

	book := api.seedBook(t, adminToken, "Dune", 1)
	require.Equal(t, 1, book.AvailableCopies)

	rec := api.do(t, http.MethodPost, "/api/borrows", aliceToken, BorrowRequest{BookID: book.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	borrow := decode[types.BorrowView](t, rec)
	require.Equal(t, alice.ID, borrow.UserID)
	require.Equal(t, 14, borrow.DaysRemaining)
	require.False(t, borrow.IsOverdue)

	rec = api.do(t, http.MethodPost, "/api/borrows", bobToken, BorrowRequest{BookID: book.ID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "not available")

	rec = api.do(t, http.MethodGet, "/api/borrows/"+itoa(borrow.ID), bobToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/return", bobToken, ReturnRequest{BorrowID: borrow.ID})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/return", aliceToken, ReturnRequest{BorrowID: borrow.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[types.ReturnReceipt](t, rec)
	require.Equal(t, "Book 'Dune' returned successfully.", receipt.Message)
	require.Zero(t, receipt.PenaltyPointsAdded)

	rec = api.do(t, http.MethodPost, "/api/return", aliceToken, ReturnRequest{BorrowID: borrow.ID})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/return", aliceToken, ReturnRequest{BorrowID: 9999})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/books/"+itoa(book.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decode[types.Book](t, rec).AvailableCopies)
}

func TestBorrowRequiresAuthAndValidBook(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, token := api.member(t, "carol", false)

	rec := api.do(t, http.MethodPost, "/api/borrows", "", BorrowRequest{BookID: 1})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/borrows", token, BorrowRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/borrows", token, BorrowRequest{BookID: 42})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBorrowLimit(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	_, token := api.member(t, "dave", false)

	for _, title := range []string{"One", "Two", "Three"} {
		book := api.seedBook(t, adminToken, title, 2)
		rec := api.do(t, http.MethodPost, "/api/borrows", token, BorrowRequest{BookID: book.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	book := api.seedBook(t, adminToken, "Four", 2)
	rec := api.do(t, http.MethodPost, "/api/borrows", token, BorrowRequest{BookID: book.ID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "maximum")
}

func TestBorrowListScopedToCaller(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	_, aliceToken := api.member(t, "alice", false)
	_, bobToken := api.member(t, "bob", false)

	book := api.seedBook(t, adminToken, "Emma", 5)
	for _, token := range []string{aliceToken, aliceToken, bobToken} {
		rec := api.do(t, http.MethodPost, "/api/borrows", token, BorrowRequest{BookID: book.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := api.do(t, http.MethodGet, "/api/borrows", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, decode[ListResponse[types.BorrowView]](t, rec).Total)

	rec = api.do(t, http.MethodGet, "/api/borrows?returned=false&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse[types.BorrowView]](t, rec)
	require.Equal(t, 3, list.Total)
	require.Len(t, list.Items, 2)

	rec = api.do(t, http.MethodGet, "/api/borrows?returned=maybe", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPenaltyEndpoints(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	alice, aliceToken := api.member(t, "alice", false)
	bob, _ := api.member(t, "bob", false)

	alice.PenaltyPoints = 4
	api.mem.Users().Save(alice)

	rec := api.do(t, http.MethodGet, "/api/users/me/penalties", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 4, decode[types.PenaltySummary](t, rec).PenaltyPoints)

	rec = api.do(t, http.MethodGet, "/api/users/"+itoa(bob.ID)+"/penalties", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/users/"+itoa(alice.ID)+"/penalties", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/users/"+itoa(alice.ID)+"/penalties/reset", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/users/"+itoa(alice.ID)+"/penalties/reset", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, decode[types.PenaltySummary](t, rec).PenaltyPoints)
}

func TestUserDeleteRestoresCopies(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	_, adminToken := api.admin(t)
	erin, erinToken := api.member(t, "erin", false)

	book := api.seedBook(t, adminToken, "Ulysses", 1)
	rec := api.do(t, http.MethodPost, "/api/borrows", erinToken, BorrowRequest{BookID: book.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/users/"+itoa(erin.ID), erinToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/users/"+itoa(erin.ID), adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	restored, ok := api.mem.Book(book.ID)
	require.True(t, ok)
	require.Equal(t, 1, restored.AvailableCopies)
}
