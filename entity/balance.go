package entity

import (
	"fmt"
	"math/big"
)

// BalanceMode selects which ledger figure backs an admission check.
type BalanceMode int

const (
	// BalanceFree is the account's liquid balance.
	BalanceFree BalanceMode = iota
	// BalanceStaked is the sum of everything the account delegated.
	BalanceStaked
)

func (m BalanceMode) String() string {
	switch m {
	case BalanceFree:
		return "free"
	case BalanceStaked:
		return "staked"
	default:
		return fmt.Sprintf("BalanceMode(%d)", int(m))
	}
}

// ModeFromStakeFlag maps the request's stake flag onto a mode.
func ModeFromStakeFlag(stake bool) BalanceMode {
	if stake {
		return BalanceStaked
	}
	return BalanceFree
}

type BalanceQuery struct {
	Address string
	Mode    BalanceMode
}

// AdmissionDecision is derived per request and never stored.
type AdmissionDecision struct {
	Authorized      bool
	ObservedBalance *big.Int
	Threshold       *big.Int
}
