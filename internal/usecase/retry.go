package usecase

// maxCorrectiveRetries bounds re-generation after a validation failure.
const maxCorrectiveRetries = 1

// retryBudget counts corrective retries; once spent it never refills.
type retryBudget struct {
	used uint8
}

func (b *retryBudget) take() bool {
	if b.used >= maxCorrectiveRetries {
		return false
	}
	b.used++
	return true
}

func (b *retryBudget) spent() int { return int(b.used) }
