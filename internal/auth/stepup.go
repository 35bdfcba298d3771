package auth

import "github.com/QTMarketing/cps-sub000/internal/audit"

// DefaultStepUpAmountLimitCents is the amount at or above which an otherwise
// ordinary action needs a fresh password confirmation ($10,000).
const DefaultStepUpAmountLimitCents int64 = 1_000_000

// stepUpActions always require re-authentication regardless of amount.
var stepUpActions = map[string]struct{}{
	audit.ActionVoidCheck:  {},
	audit.ActionUpdateBank: {},
	audit.ActionDeleteUser: {},
}

// StepUpPolicy decides which actions require the re-auth gate. The decision
// is a pure function of the action name and amount, so clients can call the
// same predicate to know when to prompt before submitting.
type StepUpPolicy struct {
	AmountLimitCents int64
}

func NewStepUpPolicy(limitCents int64) StepUpPolicy {
	if limitCents <= 0 {
		limitCents = DefaultStepUpAmountLimitCents
	}
	return StepUpPolicy{AmountLimitCents: limitCents}
}

// Requires reports whether action (or the amount it moves) demands a
// step-up credential.
func (p StepUpPolicy) Requires(action string, amountCents int64) bool {
	if _, ok := stepUpActions[action]; ok {
		return true
	}
	return amountCents >= p.AmountLimitCents
}
