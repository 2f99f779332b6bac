package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/torus-agents/pin_service/config"
	"github.com/torus-agents/pin_service/entity"
	wrapErrors "github.com/torus-agents/pin_service/errors"
	"github.com/torus-agents/pin_service/utils"
)

const (
	defaultPageSize = 1000

	methodGetStorage  = "state_getStorage"
	methodGetKeysPage = "state_getKeysPaged"
)

// TorusChain reads balances from a Torus node over substrate JSON-RPC. The
// underlying rpc.Client multiplexes concurrent calls over one connection.
type TorusChain struct {
	client   *rpc.Client
	timeout  time.Duration
	pageSize int
}

var _ BalanceOracle = (*TorusChain)(nil)

// Dial connects to the node at cfg.URL (ws, wss, http or https).
func Dial(ctx context.Context, cfg config.LedgerConfig) (*TorusChain, error) {
	client, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "ledger dial", err)
	}
	return NewTorusChain(client, cfg), nil
}

func NewTorusChain(client *rpc.Client, cfg config.LedgerConfig) *TorusChain {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &TorusChain{
		client:   client,
		timeout:  cfg.Timeout,
		pageSize: pageSize,
	}
}

func (t *TorusChain) Close() {
	t.client.Close()
}

// Query dispatches on the query mode. Transport and decode failures are
// LEDGER_UNAVAILABLE; nothing is retried.
func (t *TorusChain) Query(ctx context.Context, q entity.BalanceQuery) (*big.Int, error) {
	accountID, _, err := utils.DecodeSS58(q.Address)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidRequest, "decode address", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	switch q.Mode {
	case entity.BalanceFree:
		return t.FreeBalance(ctx, accountID)
	case entity.BalanceStaked:
		return t.StakedBalance(ctx, accountID)
	default:
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "balance query", fmt.Errorf("unsupported mode %s", q.Mode))
	}
}

// FreeBalance returns System.Account.data.free; an unknown account has 0.
func (t *TorusChain) FreeBalance(ctx context.Context, accountID []byte) (*big.Int, error) {
	key := mapKey("System", "Account", blake2128Concat, accountID)

	var raw *hexutil.Bytes
	if err := t.client.CallContext(ctx, &raw, methodGetStorage, hexutil.Bytes(key)); err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "get free balance", err)
	}
	if raw == nil {
		return new(big.Int), nil
	}
	free, err := decodeAccountFree(*raw)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "decode account info", err)
	}
	return free, nil
}

// StakedBalance sums every Torus0.StakingTo entry of the staker. Keys are
// walked page by page and each page's values fetched in one batch.
func (t *TorusChain) StakedBalance(ctx context.Context, accountID []byte) (*big.Int, error) {
	prefix := mapKey("Torus0", "StakingTo", identity, accountID)
	total := new(big.Int)

	var start *hexutil.Bytes
	for {
		var keys []hexutil.Bytes
		if err := t.client.CallContext(ctx, &keys, methodGetKeysPage, hexutil.Bytes(prefix), t.pageSize, start); err != nil {
			return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "list stakes", err)
		}
		if len(keys) == 0 {
			break
		}

		values := make([]*hexutil.Bytes, len(keys))
		batch := make([]rpc.BatchElem, len(keys))
		for i, k := range keys {
			batch[i] = rpc.BatchElem{
				Method: methodGetStorage,
				Args:   []interface{}{k},
				Result: &values[i],
			}
		}
		if err := t.client.BatchCallContext(ctx, batch); err != nil {
			return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "get stakes", err)
		}
		for i, elem := range batch {
			if elem.Error != nil {
				return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "get stake", elem.Error)
			}
			// removed between the two calls
			if values[i] == nil {
				continue
			}
			amount, err := decodeU128(*values[i])
			if err != nil {
				return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "decode stake", err)
			}
			total.Add(total, amount)
		}

		if len(keys) < t.pageSize {
			break
		}
		last := keys[len(keys)-1]
		start = &last
	}
	return total, nil
}
