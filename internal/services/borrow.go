package services

import (
	"context"
	"fmt"
	"time"

	"github.com/libris-lms/apiserver/internal/store"
	"github.com/libris-lms/apiserver/types"
)

// BorrowRepository defines persistence operations for borrow records.
type BorrowRepository interface {
	Get(ctx context.Context, id int) (types.Borrow, error)
	List(ctx context.Context, filter types.BorrowFilter) ([]types.Borrow, int, error)
	WithinTx(ctx context.Context, fn func(tx store.LendingTx) error) error
}

// ReminderDispatcher schedules due-date reminders for new borrows.
type ReminderDispatcher interface {
	DueDateReminder(borrow types.Borrow)
}

// BorrowService runs the borrow and return workflow.
type BorrowService struct {
	borrows   BorrowRepository
	users     UserRepository
	reminders ReminderDispatcher
	policy    LendingPolicy
	now       func() time.Time
}

func NewBorrowService(borrows BorrowRepository, users UserRepository, reminders ReminderDispatcher, policy LendingPolicy) *BorrowService {
	return &BorrowService{
		borrows:   borrows,
		users:     users,
		reminders: reminders,
		policy:    policy,
		now:       time.Now,
	}
}

// CreateBorrow lends one copy of a book to actor.
//
// The checks run in order inside one transaction: the book must exist, the
// actor must hold fewer open borrows than the policy allows, and a copy must
// be on the shelf. The reminder is scheduled after commit.
func (s *BorrowService) CreateBorrow(ctx context.Context, actor types.User, bookID int) (types.BorrowView, error) {
	if bookID < 1 {
		return types.BorrowView{}, validationError("book id is required")
	}

	var created types.Borrow
	err := s.borrows.WithinTx(ctx, func(tx store.LendingTx) error {
		if _, err := tx.LockUser(ctx, actor.ID); err != nil {
			return translate(err, "user")
		}

		book, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return translate(err, "book")
		}

		open, err := tx.CountOpenBorrows(ctx, actor.ID)
		if err != nil {
			return fmt.Errorf("count open borrows: %w", err)
		}
		if !s.policy.CanBorrow(open) {
			return ErrBorrowLimitExceeded
		}
		if !book.IsAvailable() {
			return ErrBookUnavailable
		}

		if err := tx.DecrementAvailable(ctx, book.ID, actor.ID); err != nil {
			return translate(err, "book")
		}

		borrowedAt := s.now()
		created, err = tx.InsertBorrow(ctx, types.Borrow{
			UserID:     actor.ID,
			BookID:     book.ID,
			BorrowDate: borrowedAt,
			DueDate:    s.policy.DueDate(borrowedAt),
		}, actor.ID)
		if err != nil {
			return fmt.Errorf("insert borrow: %w", translate(err, "borrow"))
		}
		return nil
	})
	if err != nil {
		return types.BorrowView{}, err
	}

	if s.reminders != nil {
		s.reminders.DueDateReminder(created)
	}
	return View(created, s.now()), nil
}

// ReturnBook closes an open borrow and charges penalty points for a late return.
// Only the borrower or an admin may return a borrow.
func (s *BorrowService) ReturnBook(ctx context.Context, actor types.User, borrowID int) (types.ReturnReceipt, error) {
	if borrowID < 1 {
		return types.ReturnReceipt{}, validationError("borrow id is required")
	}

	var receipt types.ReturnReceipt
	err := s.borrows.WithinTx(ctx, func(tx store.LendingTx) error {
		borrow, err := tx.LockBorrow(ctx, borrowID)
		if err != nil {
			return translate(err, "borrow record")
		}
		if borrow.UserID != actor.ID && !actor.IsAdmin {
			return fmt.Errorf("return borrow %d: %w", borrowID, ErrForbidden)
		}
		if borrow.Returned {
			return ErrAlreadyReturned
		}

		borrower, err := tx.LockUser(ctx, borrow.UserID)
		if err != nil {
			return translate(err, "user")
		}
		book, err := tx.LockBook(ctx, borrow.BookID)
		if err != nil {
			return translate(err, "book")
		}

		if err := tx.IncrementAvailable(ctx, book.ID, actor.ID); err != nil {
			return translate(err, "book")
		}

		returnedAt := s.now()
		if err := tx.CloseBorrow(ctx, borrow.ID, returnedAt, actor.ID); err != nil {
			return translate(err, "borrow record")
		}

		penalty := Penalty(borrow.DueDate, returnedAt)
		total := borrower.PenaltyPoints
		if penalty > 0 {
			total, err = tx.AddPenaltyPoints(ctx, borrower.ID, penalty, actor.ID)
			if err != nil {
				return fmt.Errorf("add penalty points: %w", err)
			}
		}

		receipt = types.ReturnReceipt{
			Message:            fmt.Sprintf("Book '%s' returned successfully.", book.Title),
			BorrowID:           borrow.ID,
			ReturnDate:         returnedAt,
			PenaltyPointsAdded: penalty,
			TotalPenaltyPoints: total,
		}
		return nil
	})
	if err != nil {
		return types.ReturnReceipt{}, err
	}
	return receipt, nil
}

// List returns borrows visible to actor. Admins see every borrow, everyone
// else only their own.
func (s *BorrowService) List(ctx context.Context, actor types.User, filter types.BorrowFilter) ([]types.BorrowView, int, error) {
	if !actor.IsAdmin {
		filter.UserID = actor.ID
	}

	borrows, total, err := s.borrows.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	views := make([]types.BorrowView, 0, len(borrows))
	for _, borrow := range borrows {
		views = append(views, View(borrow, now))
	}
	return views, total, nil
}

func (s *BorrowService) Get(ctx context.Context, actor types.User, id int) (types.BorrowView, error) {
	borrow, err := s.borrows.Get(ctx, id)
	if err != nil {
		return types.BorrowView{}, translate(err, "borrow record")
	}
	if borrow.UserID != actor.ID && !actor.IsAdmin {
		return types.BorrowView{}, fmt.Errorf("view borrow %d: %w", id, ErrForbidden)
	}
	return View(borrow, s.now()), nil
}

// Penalties returns the penalty summary of userID, or of actor when userID is
// zero or the actor's own id. Other users' penalties require admin.
func (s *BorrowService) Penalties(ctx context.Context, actor types.User, userID int) (types.PenaltySummary, error) {
	if userID == 0 {
		userID = actor.ID
	}
	if userID != actor.ID {
		if err := requireAdmin(actor); err != nil {
			return types.PenaltySummary{}, err
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.PenaltySummary{}, translate(err, "user")
	}
	return penaltySummary(user), nil
}

// ResetPenalties clears a user's penalty points. Admin only.
func (s *BorrowService) ResetPenalties(ctx context.Context, actor types.User, userID int) (types.PenaltySummary, error) {
	if err := requireAdmin(actor); err != nil {
		return types.PenaltySummary{}, err
	}

	user, err := s.users.ResetPenaltyPoints(ctx, userID, actor.ID)
	if err != nil {
		return types.PenaltySummary{}, translate(err, "user")
	}
	return penaltySummary(user), nil
}

func penaltySummary(user types.User) types.PenaltySummary {
	return types.PenaltySummary{
		ID:            user.ID,
		Username:      user.Username,
		PenaltyPoints: user.PenaltyPoints,
	}
}
