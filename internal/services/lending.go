package services

import (
	"time"

	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/types"
)

const day = 24 * time.Hour

// LendingPolicy holds the borrowing rules.
type LendingPolicy struct {
	LoanPeriod       time.Duration
	MaxActiveBorrows int
}

// DefaultLendingPolicy lends for 14 days with at most 3 open borrows per user.
func DefaultLendingPolicy() LendingPolicy {
	return LendingPolicy{LoanPeriod: 14 * day, MaxActiveBorrows: 3}
}

// PolicyFromConfig builds a policy from cfg, keeping defaults for unset values.
func PolicyFromConfig(cfg config.LendingConfig) LendingPolicy {
	policy := DefaultLendingPolicy()
	if cfg.LoanPeriod > 0 {
		policy.LoanPeriod = cfg.LoanPeriod
	}
	if cfg.MaxActiveBorrows > 0 {
		policy.MaxActiveBorrows = cfg.MaxActiveBorrows
	}
	return policy
}

// DueDate returns when a copy borrowed at borrowedAt must be back.
func (p LendingPolicy) DueDate(borrowedAt time.Time) time.Time {
	return borrowedAt.Add(p.LoanPeriod)
}

// CanBorrow reports whether a user holding open borrows may take another.
func (p LendingPolicy) CanBorrow(open int) bool {
	return open < p.MaxActiveBorrows
}

// Penalty returns one point per whole day late. Returns on or before the due
// date cost nothing.
func Penalty(dueDate, returnedAt time.Time) int {
	if !returnedAt.After(dueDate) {
		return 0
	}
	return int(returnedAt.Sub(dueDate) / day)
}

// IsOverdue reports whether the borrow missed its due date as of now.
// Closed borrows are judged by their return date.
func IsOverdue(borrow types.Borrow, now time.Time) bool {
	if borrow.Returned && borrow.ReturnDate != nil {
		return borrow.ReturnDate.After(borrow.DueDate)
	}
	return now.After(borrow.DueDate)
}

// DaysRemaining counts calendar days from now until the due date, never below zero.
func DaysRemaining(borrow types.Borrow, now time.Time) int {
	if borrow.Returned {
		return 0
	}
	days := int(calendarDate(borrow.DueDate).Sub(calendarDate(now)) / day)
	return max(0, days)
}

// View decorates a borrow with its due-date status.
func View(borrow types.Borrow, now time.Time) types.BorrowView {
	return types.BorrowView{
		Borrow:        borrow,
		DaysRemaining: DaysRemaining(borrow, now),
		IsOverdue:     IsOverdue(borrow, now),
	}
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
