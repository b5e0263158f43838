package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/libris-lms/apiserver/internal/testutil/memstore"
	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

type recordingReminders struct {
	mu      sync.Mutex
	borrows []types.Borrow
}

func (r *recordingReminders) DueDateReminder(borrow types.Borrow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.borrows = append(r.borrows, borrow)
}

func (r *recordingReminders) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.borrows)
}

type fixture struct {
	mem       *memstore.Store
	borrows   *BorrowService
	books     *BookService
	users     *UserService
	reminders *recordingReminders
	clock     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memstore.New()
	reminders := &recordingReminders{}
	clock := day0

	borrows := NewBorrowService(mem.Borrows(), mem.Users(), reminders, DefaultLendingPolicy())
	f := &fixture{
		mem:       mem,
		borrows:   borrows,
		books:     NewBookService(mem.Books(), nil),
		users:     NewUserService(mem.Users()),
		reminders: reminders,
		clock:     &clock,
	}
	borrows.now = func() time.Time { return *f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) user(t *testing.T, username string) types.User {
	t.Helper()
	user, err := f.mem.Users().Create(context.Background(), types.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		Gender:       types.GenderOthers,
		IsActive:     true,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) admin(t *testing.T, username string) types.User {
	t.Helper()
	user := f.user(t, username)
	user.IsAdmin = true
	f.mem.Users().Save(user)
	return user
}

func (f *fixture) book(t *testing.T, title string, copies int) types.Book {
	t.Helper()
	ctx := context.Background()
	author, err := f.mem.Authors().Create(ctx, types.Author{Name: "Author of " + title}, 0)
	require.NoError(t, err)
	book, err := f.mem.Books().Create(ctx, types.Book{Title: title, AuthorID: author.ID, TotalCopies: copies}, 0)
	require.NoError(t, err)
	return book
}

func (f *fixture) available(t *testing.T, bookID int) int {
	t.Helper()
	book, ok := f.mem.Book(bookID)
	require.True(t, ok)
	return book.AvailableCopies
}
