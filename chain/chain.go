package chain

import (
	"context"
	"math/big"

	"github.com/torus-agents/pin_service/entity"
)

// BalanceOracle answers balance queries against the ledger. Implementations
// must be safe for concurrent use.
type BalanceOracle interface {
	Query(ctx context.Context, q entity.BalanceQuery) (*big.Int, error)
}
