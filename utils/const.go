package utils

/*
Torus is a substrate chain. Accounts are sr25519 public keys (32 bytes),
shown to users as SS58 strings. Balances are u128 amounts in planck, the
smallest unit; one TORUS is 10^18 planck.

SS58:  base58( prefix | account_id | blake2b_512("SS58PRE" | prefix | account_id)[:2] )
*/
const (
	AccountIDLength = 32

	// DefaultSS58Prefix is the generic substrate prefix, used by Torus.
	DefaultSS58Prefix uint16 = 42

	TorusDecimals = 18
)
