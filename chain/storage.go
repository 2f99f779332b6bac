package chain

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

/*
Substrate storage layout:

	key   = twox128(pallet) | twox128(item) | hasher(map key)...
	value = SCALE encoded

System.Account is keyed with blake2_128_concat(account_id) and holds
AccountInfo { nonce u32, consumers u32, providers u32, sufficients u32,
data { free u128, reserved u128, frozen u128, flags u128 } }.

Torus0.StakingTo is a double map staker -> staked -> u128, both keys stored
with the identity hasher.
*/

const (
	u128Length       = 16
	accountFreeStart = 16
)

type hasher func([]byte) []byte

func twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:], d.Sum64())
	}
	return out
}

func blake2128Concat(data []byte) []byte {
	// blake2b.New only fails for sizes > 64 or oversized keys.
	h, _ := blake2b.New(16, nil)
	_, _ = h.Write(data)
	return append(h.Sum(nil), data...)
}

func identity(data []byte) []byte {
	return append([]byte(nil), data...)
}

func storagePrefix(pallet, item string) []byte {
	return append(twox128([]byte(pallet)), twox128([]byte(item))...)
}

func mapKey(pallet, item string, h hasher, key []byte) []byte {
	return append(storagePrefix(pallet, item), h(key)...)
}

// decodeU128 reads a little endian SCALE u128.
func decodeU128(b []byte) (*big.Int, error) {
	if len(b) != u128Length {
		return nil, fmt.Errorf("u128 must be %d bytes, got %d", u128Length, len(b))
	}
	be := make([]byte, u128Length)
	for i := range b {
		be[u128Length-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be), nil
}

func decodeAccountFree(b []byte) (*big.Int, error) {
	if len(b) < accountFreeStart+u128Length {
		return nil, fmt.Errorf("account info too short: %d bytes", len(b))
	}
	return decodeU128(b[accountFreeStart : accountFreeStart+u128Length])
}
