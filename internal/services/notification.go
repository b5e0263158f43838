package services

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/libris-lms/apiserver/types"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher sends a payload to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// NotificationDispatcher publishes due-date reminders in the background.
// Publishing never blocks the caller and failures are only logged.
type NotificationDispatcher struct {
	publisher Publisher
	channel   string
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewNotificationDispatcher returns a dispatcher. A nil publisher disables
// reminders.
func NewNotificationDispatcher(publisher Publisher, channel string, logger *slog.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationDispatcher{
		publisher: publisher,
		channel:   channel,
		timeout:   defaultPublishTimeout,
		logger:    logger.With("component", "notification_dispatcher"),
	}
}

// DueDateReminder enqueues a reminder for borrow and returns immediately.
func (d *NotificationDispatcher) DueDateReminder(borrow types.Borrow) {
	if d == nil || d.publisher == nil {
		return
	}

	reminder := types.DueDateReminder{
		BorrowID: borrow.ID,
		UserID:   borrow.UserID,
		BookID:   borrow.BookID,
		DueDate:  borrow.DueDate,
	}
	data, err := reminder.Encode()
	if err != nil {
		d.logger.Error("encode reminder", "borrow_id", borrow.ID, "error", err)
		return
	}
	attrs := map[string]string{
		"type":      "due_date_reminder",
		"borrow_id": strconv.Itoa(borrow.ID),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		id, err := d.publisher.Publish(ctx, d.channel, data, attrs)
		if err != nil {
			d.logger.Warn("publish reminder failed", "borrow_id", borrow.ID, "channel", d.channel, "error", err)
			return
		}
		d.logger.Debug("reminder published", "borrow_id", borrow.ID, "message_id", id)
	}()
}

// Wait blocks until in-flight publishes finish.
func (d *NotificationDispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
