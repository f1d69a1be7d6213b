package core

import "fmt"

// ModelLimiter bounds the number of model calls a single turn may make, so a
// model that keeps requesting tools cannot loop forever. A fresh limiter is
// created per turn and used from that turn's goroutine only.
type ModelLimiter struct {
	budget int
	used   int
}

// NewModelLimiter returns a limiter allowing up to max calls. A max of zero
// disables the limit.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{budget: max}
}

// Increment consumes one call from the budget. It returns an error once the
// budget is exhausted.
func (ml *ModelLimiter) Increment() error {
	ml.used++
	if ml.budget > 0 && ml.used > ml.budget {
		return fmt.Errorf("exceeded max model calls: %d", ml.budget)
	}

	return nil
}
