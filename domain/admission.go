package domain

import (
	"math/big"

	"github.com/torus-agents/pin_service/entity"
)

// Decide authorizes iff observed >= threshold. A nil amount reads as zero,
// so a zero threshold admits everyone.
func Decide(observed, threshold *big.Int) entity.AdmissionDecision {
	if observed == nil {
		observed = new(big.Int)
	}
	if threshold == nil {
		threshold = new(big.Int)
	}
	return entity.AdmissionDecision{
		Authorized:      observed.Cmp(threshold) >= 0,
		ObservedBalance: new(big.Int).Set(observed),
		Threshold:       new(big.Int).Set(threshold),
	}
}
