package utils

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	ss58ChecksumLength = 2
	MaxSS58Prefix      = 16383
)

var ss58Pre = []byte("SS58PRE")

// EncodeSS58 encodes a 32 byte account id with the given network prefix.
func EncodeSS58(accountID []byte, prefix uint16) (string, error) {
	if len(accountID) != AccountIDLength {
		return "", fmt.Errorf("account id must be %d bytes, got %d", AccountIDLength, len(accountID))
	}
	if prefix > MaxSS58Prefix {
		return "", fmt.Errorf("ss58 prefix %d out of range", prefix)
	}

	payload := append(encodePrefix(prefix), accountID...)
	sum := ss58Checksum(payload)
	payload = append(payload, sum[:ss58ChecksumLength]...)
	return base58.Encode(payload), nil
}

// DecodeSS58 returns the account id and network prefix of an SS58 address.
func DecodeSS58(address string) ([]byte, uint16, error) {
	raw := base58.Decode(address)
	if len(raw) == 0 {
		return nil, 0, errors.New("invalid base58 address")
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix, prefixLen = uint16(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return nil, 0, errors.New("address too short")
		}
		lower := uint16((raw[0]&0x3f)<<2) | uint16(raw[1]>>6)
		upper := uint16(raw[1] & 0x3f)
		prefix, prefixLen = lower|upper<<8, 2
	default:
		return nil, 0, fmt.Errorf("invalid ss58 prefix byte %#x", raw[0])
	}

	if len(raw) != prefixLen+AccountIDLength+ss58ChecksumLength {
		return nil, 0, fmt.Errorf("invalid address length %d", len(raw))
	}
	body := raw[:len(raw)-ss58ChecksumLength]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:ss58ChecksumLength], raw[len(body):]) {
		return nil, 0, errors.New("invalid address checksum")
	}

	accountID := make([]byte, AccountIDLength)
	copy(accountID, body[prefixLen:])
	return accountID, prefix, nil
}

func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte((prefix&0x0003)<<6)
	return []byte{first, second}
}

func ss58Checksum(payload []byte) [64]byte {
	buf := make([]byte, 0, len(ss58Pre)+len(payload))
	buf = append(buf, ss58Pre...)
	buf = append(buf, payload...)
	return blake2b.Sum512(buf)
}
