package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/libris-lms/apiserver/internal/mq"
	"github.com/libris-lms/apiserver/internal/store"
	"github.com/libris-lms/apiserver/types"
)

const dueDateLayout = "January 2, 2006"

// Subscriber consumes messages from a named channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

type BorrowLoader interface {
	Get(ctx context.Context, id int) (types.Borrow, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// ReminderWorker turns due-date reminder messages into emails.
type ReminderWorker struct {
	queue   Subscriber
	channel string
	borrows BorrowLoader
	users   UserLoader
	sender  Sender
	logger  *slog.Logger
}

func NewReminderWorker(queue Subscriber, channel string, borrows BorrowLoader, users UserLoader, sender Sender, logger *slog.Logger) *ReminderWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderWorker{
		queue:   queue,
		channel: channel,
		borrows: borrows,
		users:   users,
		sender:  sender,
		logger:  logger,
	}
}

// Run consumes reminders until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.logger.Info("reminder worker started", "channel", w.channel)
	err := w.queue.Subscribe(ctx, w.channel, func(ctx context.Context, msg mq.Message) error {
		if err := w.Handle(ctx, msg); err != nil {
			w.logger.Warn("reminder failed", "message_id", msg.ID,
				"attempt", msg.Attributes[mq.AttributeDeliveryAttempt], "error", err)
			return err
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one reminder message. Malformed payloads and reminders
// for borrows that no longer exist are dropped; lookup and send failures are
// returned so the broker redelivers.
func (w *ReminderWorker) Handle(ctx context.Context, msg mq.Message) error {
	logger := w.logger.With("message_id", msg.ID)

	reminder, err := types.DecodeDueDateReminder(msg.Data)
	if err != nil || reminder.BorrowID < 1 {
		logger.Warn("drop malformed reminder", "error", err)
		return nil
	}
	logger = logger.With("borrow_id", reminder.BorrowID)

	borrow, err := w.borrows.Get(ctx, reminder.BorrowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("skip reminder for deleted borrow")
			return nil
		}
		return fmt.Errorf("load borrow %d: %w", reminder.BorrowID, err)
	}
	if borrow.Returned {
		logger.Info("skip reminder for returned borrow")
		return nil
	}

	user, err := w.users.GetByID(ctx, borrow.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("skip reminder for deleted user")
			return nil
		}
		return fmt.Errorf("load user %d: %w", borrow.UserID, err)
	}
	if strings.TrimSpace(user.Email) == "" {
		logger.Info("skip reminder for user without email", "user_id", user.ID)
		return nil
	}

	if err := w.sender.Send(ctx, RenderDueDateReminder(user, borrow)); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	logger.Info("reminder sent", "user_id", user.ID)
	return nil
}

// RenderDueDateReminder builds the reminder email for a borrow.
func RenderDueDateReminder(user types.User, borrow types.Borrow) Email {
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", user.Username)
	fmt.Fprintf(&body, "This is a reminder that the book '%s' you borrowed is due on %s.\n",
		borrow.BookTitle, borrow.DueDate.UTC().Format(dueDateLayout))
	body.WriteString("Please return it to the library to avoid penalty points.\n\n")
	body.WriteString("Thank you,\nThe Library Team\n")

	return Email{
		To:      user.Email,
		Subject: "Library Notification: Book Due - " + borrow.BookTitle,
		Body:    body.String(),
	}
}
