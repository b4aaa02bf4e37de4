package billing

import (
	"clinicore/models"
	"clinicore/utils"

	"github.com/shopspring/decimal"
)

// allocationOutcome reports what a distribution pass did to a session list.
type allocationOutcome struct {
	// Applied is the portion of the incoming amount that landed on sessions.
	Applied float64
	// Leftover is the excess beyond total outstanding coverage. It is
	// surfaced to the caller as an overpayment, never dropped.
	Leftover float64
	// Touched holds the indexes of sessions whose coverage changed.
	Touched []int
}

// allocate walks the sessions in the order given (callers pass them sorted
// by date ascending) and applies the amount earliest-due-first. Sessions are
// mutated in place: partial amount, payment status and paid flag. Visual
// flags are resolved separately once the package aggregates are known.
func allocate(sessions []models.TherapySession, amount float64) allocationOutcome {
	remaining := decimal.NewFromFloat(amount)
	var out allocationOutcome

	for i := range sessions {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		s := &sessions[i]
		if !s.Payable() {
			continue
		}

		due := decimal.NewFromFloat(s.SessionValue).Sub(decimal.NewFromFloat(s.PartialAmount))
		payNow := decimal.Min(remaining, due)
		if payNow.LessThanOrEqual(decimal.Zero) {
			continue
		}

		s.PartialAmount = utils.AddMoney(s.PartialAmount, toCents(payNow))
		s.PaymentStatus, s.IsPaid = ResolveSessionPaymentStatus(s.PartialAmount, s.SessionValue)
		remaining = remaining.Sub(payNow)
		out.Touched = append(out.Touched, i)
	}

	out.Leftover = toCents(remaining)
	out.Applied = utils.SubMoney(amount, out.Leftover)
	return out
}

func toCents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
