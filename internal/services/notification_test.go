package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	attrs    []map[string]string
	err      error
	block    chan struct{}
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, data)
	p.attrs = append(p.attrs, attrs)
	return "msg-1", nil
}

func TestNotificationDispatcherPublishesReminder(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := NewNotificationDispatcher(publisher, "borrow-due-reminders", nil)

	due := day0.Add(14 * day)
	dispatcher.DueDateReminder(types.Borrow{ID: 7, UserID: 3, BookID: 9, DueDate: due})
	dispatcher.Wait()

	require.Equal(t, []string{"borrow-due-reminders"}, publisher.channels)
	require.Equal(t, "7", publisher.attrs[0]["borrow_id"])

	reminder, err := types.DecodeDueDateReminder(publisher.payloads[0])
	require.NoError(t, err)
	require.Equal(t, 7, reminder.BorrowID)
	require.Equal(t, 3, reminder.UserID)
	require.Equal(t, 9, reminder.BookID)
	require.True(t, due.Equal(reminder.DueDate))
}

func TestNotificationDispatcherDoesNotBlock(t *testing.T) {
	publisher := &fakePublisher{block: make(chan struct{})}
	dispatcher := NewNotificationDispatcher(publisher, "reminders", nil)

	done := make(chan struct{})
	go func() {
		dispatcher.DueDateReminder(types.Borrow{ID: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DueDateReminder blocked on the publisher")
	}

	close(publisher.block)
	dispatcher.Wait()
	require.Len(t, publisher.channels, 1)
}

func TestNotificationDispatcherSwallowsFailures(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	dispatcher := NewNotificationDispatcher(publisher, "reminders", nil)

	dispatcher.DueDateReminder(types.Borrow{ID: 1})
	dispatcher.Wait()
	require.Empty(t, publisher.channels)

	var disabled *NotificationDispatcher
	disabled.DueDateReminder(types.Borrow{ID: 2})
	disabled.Wait()

	NewNotificationDispatcher(nil, "reminders", nil).DueDateReminder(types.Borrow{ID: 3})
}

func TestCreateBorrowSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	dispatcher := NewNotificationDispatcher(publisher, "reminders", nil)
	f.borrows.reminders = dispatcher

	alice := f.user(t, "alice")
	book := f.book(t, "Rebecca", 1)

	view, err := f.borrows.CreateBorrow(context.Background(), alice, book.ID)
	require.NoError(t, err)
	dispatcher.Wait()

	_, ok := f.mem.Borrow(view.ID)
	require.True(t, ok)
	require.Zero(t, f.available(t, book.ID))
}
