// Package settlement holds the persistence-free part of the settlement
// allocator: choosing which reminders a multi-month payment covers and how
// much of the payment each one receives.
package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a reminder eligible for settlement, in scheduled order.
type Candidate struct {
	ReminderID   int64
	ScheduledFor time.Time
	Settled      bool // Already carries a verified payment or is paid
}

// Allocation assigns one month of a payment to a reminder.
type Allocation struct {
	ReminderID int64
	MonthIndex int // 1-based across all passes for the same source payment
	Amount     decimal.Decimal
}

// Plan is the outcome of folding candidates against a month budget.
type Plan struct {
	Allocations []Allocation
	Skipped     []int64 // Candidates passed over because they were already settled
	Remaining   int     // Months left unallocated after the candidates ran out
}

type accumulator struct {
	plan      Plan
	nextIndex int
}

// Allocate walks candidates in order, skipping settled ones, and consumes
// one month per unsettled reminder until months-alreadySettled units are used.
// No allocation is produced when the budget is not positive.
func Allocate(candidates []Candidate, months, alreadySettled int, total decimal.Decimal) Plan {
	acc := accumulator{
		plan:      Plan{Remaining: months - alreadySettled},
		nextIndex: alreadySettled + 1,
	}
	if acc.plan.Remaining <= 0 {
		acc.plan.Remaining = 0
		return acc.plan
	}
	for _, c := range candidates {
		acc = step(acc, c, months, total)
		if acc.plan.Remaining == 0 {
			break
		}
	}
	return acc.plan
}

func step(acc accumulator, c Candidate, months int, total decimal.Decimal) accumulator {
	if c.Settled {
		acc.plan.Skipped = append(acc.plan.Skipped, c.ReminderID)
		return acc
	}
	acc.plan.Allocations = append(acc.plan.Allocations, Allocation{
		ReminderID: c.ReminderID,
		MonthIndex: acc.nextIndex,
		Amount:     Share(total, months, acc.nextIndex),
	})
	acc.nextIndex++
	acc.plan.Remaining--
	return acc
}

// Share returns the part of total owed to month index (1-based) of months.
// Each share is total/months rounded to 2 decimals; the last month absorbs
// the rounding remainder. A non-positive month count yields total.
func Share(total decimal.Decimal, months, index int) decimal.Decimal {
	if months <= 0 {
		return total
	}
	n := decimal.NewFromInt(int64(months))
	base := total.Div(n).Round(2)
	if index == months {
		return total.Sub(base.Mul(decimal.NewFromInt(int64(months - 1))))
	}
	return base
}
