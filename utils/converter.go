package utils

import (
	"math/big"
)

var planckPerTorus = new(big.Int).Exp(big.NewInt(10), big.NewInt(TorusDecimals), nil)

// PlanckToTorus renders a planck amount as a decimal TORUS string, e.g.
// 1500000000000000000 -> "1.5".
func PlanckToTorus(planck *big.Int) string {
	if planck == nil {
		return "0"
	}
	abs := new(big.Int).Abs(planck)
	whole, frac := new(big.Int).QuoRem(abs, planckPerTorus, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		fs := frac.Text(10)
		for len(fs) < TorusDecimals {
			fs = "0" + fs
		}
		for len(fs) > 0 && fs[len(fs)-1] == '0' {
			fs = fs[:len(fs)-1]
		}
		out += "." + fs
	}
	if planck.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// ParsePlanck parses a non-negative decimal integer amount.
func ParsePlanck(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
