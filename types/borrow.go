package types

import "time"

// Borrow records one copy of a book lent to a user.
//
// A borrow is OPEN while Returned is false and CLOSED once the copy is back.
// The transition happens once and never reverses.
type Borrow struct {
	// ID is the unique identifier of the borrow.
	ID int `json:"id" db:"id"`

	// UserID identifies the borrower.
	UserID int `json:"user" db:"user_id"`

	// Username is the joined borrower username, populated on reads.
	Username string `json:"user_username" db:"user_username"`

	// BookID identifies the borrowed book.
	BookID int `json:"book" db:"book_id"`

	// BookTitle is the joined book title, populated on reads.
	BookTitle string `json:"book_title" db:"book_title"`

	// BorrowDate is when the copy left the library.
	BorrowDate time.Time `json:"borrow_date" db:"borrow_date"`

	// DueDate is when the copy must be back to avoid penalty points.
	DueDate time.Time `json:"due_date" db:"due_date"`

	// ReturnDate is when the copy came back. Nil while the borrow is open.
	ReturnDate *time.Time `json:"return_date" db:"return_date"`

	// Returned reports whether the borrow is closed.
	Returned bool `json:"returned" db:"returned"`

	Audit
}

// BorrowFilter narrows a borrow listing. UserID of zero lists all users.
type BorrowFilter struct {
	UserID   int
	BookID   int
	Returned *bool
	Ordering string
	Offset   int
	Limit    int
}

// ReturnReceipt is the outcome of returning a borrowed book.
type ReturnReceipt struct {
	Message            string    `json:"message"`
	BorrowID           int       `json:"borrow_id"`
	ReturnDate         time.Time `json:"return_date"`
	PenaltyPointsAdded int       `json:"penalty_points_added"`
	TotalPenaltyPoints int       `json:"total_penalty_points"`
}

// BorrowView is a borrow decorated with its due-date status at read time.
type BorrowView struct {
	Borrow

	// DaysRemaining is the number of whole days until the due date.
	// It is zero once the borrow is returned or overdue.
	DaysRemaining int `json:"days_remaining"`

	// IsOverdue reports whether an open borrow is past its due date.
	IsOverdue bool `json:"is_overdue"`
}
