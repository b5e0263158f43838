package types

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var notificationJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// DueDateReminder is published when a borrow is created and consumed by the
// reminder worker.
type DueDateReminder struct {
	BorrowID int       `json:"borrow_id"`
	UserID   int       `json:"user_id"`
	BookID   int       `json:"book_id"`
	DueDate  time.Time `json:"due_date"`
}

// Encode serializes the reminder for the message queue.
func (r DueDateReminder) Encode() ([]byte, error) {
	return notificationJSON.Marshal(r)
}

// DecodeDueDateReminder parses a reminder payload.
func DecodeDueDateReminder(data []byte) (DueDateReminder, error) {
	var r DueDateReminder
	err := notificationJSON.Unmarshal(data, &r)
	return r, err
}
