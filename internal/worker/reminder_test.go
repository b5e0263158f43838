package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/libris-lms/apiserver/internal/mq"
	"github.com/libris-lms/apiserver/internal/testutil/memstore"
	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	mu     sync.Mutex
	emails []Email
	err    error
}

func (s *capturingSender) Send(_ context.Context, email Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.emails = append(s.emails, email)
	return nil
}

func (s *capturingSender) sent() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Email(nil), s.emails...)
}

type seeded struct {
	mem    *memstore.Store
	user   types.User
	borrow types.Borrow
}

var due = time.Date(2026, time.May, 15, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, email string) seeded {
	t.Helper()
	ctx := context.Background()
	mem := memstore.New()

	user, err := mem.Users().Create(ctx, types.User{Username: "reader", Email: email, FirstName: "Reader", Gender: types.GenderOthers, IsActive: true, PasswordHash: "x"})
	require.NoError(t, err)
	author, err := mem.Authors().Create(ctx, types.Author{Name: "Mary Shelley"}, 0)
	require.NoError(t, err)
	book, err := mem.Books().Create(ctx, types.Book{Title: "Frankenstein", AuthorID: author.ID, TotalCopies: 1}, 0)
	require.NoError(t, err)

	borrow := types.Borrow{ID: 100, UserID: user.ID, BookID: book.ID, BorrowDate: due.Add(-14 * 24 * time.Hour), DueDate: due}
	mem.PutBorrow(borrow)
	stored, ok := mem.Borrow(borrow.ID)
	require.True(t, ok)
	return seeded{mem: mem, user: user, borrow: stored}
}

func message(t *testing.T, borrow types.Borrow) mq.Message {
	t.Helper()
	data, err := types.DueDateReminder{BorrowID: borrow.ID, UserID: borrow.UserID, BookID: borrow.BookID, DueDate: borrow.DueDate}.Encode()
	require.NoError(t, err)
	return mq.Message{ID: "m-1", Data: data}
}

func TestHandleSendsReminder(t *testing.T) {
	s := seed(t, "reader@example.com")
	sender := &capturingSender{}
	w := NewReminderWorker(nil, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)

	require.NoError(t, w.Handle(context.Background(), message(t, s.borrow)))

	emails := sender.sent()
	require.Len(t, emails, 1)
	require.Equal(t, "reader@example.com", emails[0].To)
	require.Equal(t, "Library Notification: Book Due - Frankenstein", emails[0].Subject)
	require.Contains(t, emails[0].Body, "Dear reader")
	require.Contains(t, emails[0].Body, "'Frankenstein' you borrowed is due on May 15, 2026.")
	require.NotContains(t, emails[0].Body, "today")
}

func TestHandleSkips(t *testing.T) {
	t.Run("returned borrow", func(t *testing.T) {
		s := seed(t, "reader@example.com")
		returnedAt := due
		s.borrow.Returned = true
		s.borrow.ReturnDate = &returnedAt
		s.mem.PutBorrow(s.borrow)

		sender := &capturingSender{}
		w := NewReminderWorker(nil, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)
		require.NoError(t, w.Handle(context.Background(), message(t, s.borrow)))
		require.Empty(t, sender.sent())
	})

	t.Run("user without email", func(t *testing.T) {
		s := seed(t, "")
		sender := &capturingSender{}
		w := NewReminderWorker(nil, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)
		require.NoError(t, w.Handle(context.Background(), message(t, s.borrow)))
		require.Empty(t, sender.sent())
	})

	t.Run("missing borrow", func(t *testing.T) {
		s := seed(t, "reader@example.com")
		sender := &capturingSender{}
		w := NewReminderWorker(nil, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)
		require.NoError(t, w.Handle(context.Background(), message(t, types.Borrow{ID: 999})))
		require.Empty(t, sender.sent())
	})

	t.Run("malformed payload", func(t *testing.T) {
		s := seed(t, "reader@example.com")
		sender := &capturingSender{}
		w := NewReminderWorker(nil, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)
		require.NoError(t, w.Handle(context.Background(), mq.Message{ID: "bad", Data: []byte("{not json")}))
		require.Empty(t, sender.sent())
	})
}

func TestHandleReturnsSendFailure(t *testing.T) {
	s := seed(t, "reader@example.com")
	sender := &capturingSender{err: errors.New("smtp down")}
	w := NewReminderWorker(nil, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)

	err := w.Handle(context.Background(), message(t, s.borrow))
	require.ErrorContains(t, err, "smtp down")
}

func TestRunConsumesFromBroker(t *testing.T) {
	s := seed(t, "reader@example.com")
	broker := mq.New(mq.NewMemoryBroker())
	defer broker.Close()

	sender := &capturingSender{}
	w := NewReminderWorker(broker, "reminders", s.mem.Borrows(), s.mem.Users(), sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	msg := message(t, s.borrow)
	_, err := broker.Publish(ctx, "reminders", msg.Data, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
