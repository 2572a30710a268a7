package effect

// commitBudget limits how many callbacks one commit may run. A runaway
// commit is aborted rather than deferred: commits never yield.
type commitBudget struct {
	max  int
	runs int
}

func newCommitBudget(max int) *commitBudget {
	return &commitBudget{max: max}
}

// checkRun reserves one callback run. Returns ErrBudgetExceeded once max
// runs have been reserved; a zero max means unlimited.
func (b *commitBudget) checkRun() error {
	if b == nil || b.max == 0 {
		return nil
	}
	if b.runs >= b.max {
		return ErrBudgetExceeded
	}
	b.runs++
	return nil
}
