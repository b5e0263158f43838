package services

import (
	"testing"
	"time"

	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestPenalty(t *testing.T) {
	due := day0.Add(14 * day)

	tests := []struct {
		name     string
		returned time.Time
		want     int
	}{
		{name: "early", returned: due.Add(-3 * day), want: 0},
		{name: "exactly on due date", returned: due, want: 0},
		{name: "hours late", returned: due.Add(5 * time.Hour), want: 0},
		{name: "one day late", returned: due.Add(day), want: 1},
		{name: "two and a half days late", returned: due.Add(2*day + 12*time.Hour), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Penalty(due, tt.returned))
		})
	}
}

func TestLendingPolicy(t *testing.T) {
	policy := DefaultLendingPolicy()
	require.Equal(t, day0.Add(14*day), policy.DueDate(day0))
	require.True(t, policy.CanBorrow(2))
	require.False(t, policy.CanBorrow(3))

	custom := PolicyFromConfig(config.LendingConfig{LoanPeriod: 7 * day, MaxActiveBorrows: 5})
	require.Equal(t, 7*day, custom.LoanPeriod)
	require.True(t, custom.CanBorrow(4))

	require.Equal(t, policy, PolicyFromConfig(config.LendingConfig{}))
}

func TestBorrowView(t *testing.T) {
	borrow := types.Borrow{BorrowDate: day0, DueDate: day0.Add(14 * day)}

	view := View(borrow, day0.Add(4*day))
	require.Equal(t, 10, view.DaysRemaining)
	require.False(t, view.IsOverdue)

	view = View(borrow, day0.Add(20*day))
	require.Zero(t, view.DaysRemaining)
	require.True(t, view.IsOverdue)

	returnedAt := day0.Add(15 * day)
	borrow.Returned = true
	borrow.ReturnDate = &returnedAt
	view = View(borrow, day0.Add(2*day))
	require.Zero(t, view.DaysRemaining)
	require.True(t, view.IsOverdue)
}
