package domain

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	wrapErrors "github.com/torus-agents/pin_service/errors"
	"github.com/torus-agents/pin_service/utils"
)

// NOTE:
// - Keys follow substrate-bip39: the mini secret is derived from the BIP39
//   entropy, not from the mnemonic string as plain BIP39 seeds are.
// - Only the bare phrase is supported. Derivation junctions ("//Alice") and
//   the optional BIP39 password are not.

const (
	seedSalt       = "mnemonic"
	seedIterations = 2048
	seedLength     = 64
)

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

type Keypair struct {
	PublicKey [schnorrkel.PublicKeySize]byte
	Address   string
}

// KeypairVerifier derives sr25519 keypairs from recovery phrases and checks
// them against claimed addresses. It holds no state besides the network
// prefix and is safe for concurrent use.
type KeypairVerifier struct {
	SS58Prefix uint16
}

func NewKeypairVerifier(ss58Prefix uint16) *KeypairVerifier {
	return &KeypairVerifier{SS58Prefix: ss58Prefix}
}

// Derive returns the keypair for a recovery phrase. Any failure is an
// INVALID_CREDENTIAL error; the phrase itself never appears in it.
func (v *KeypairVerifier) Derive(phrase string) (*Keypair, error) {
	normalized := strings.Join(strings.Fields(phrase), " ")
	if normalized == "" {
		return nil, wrapErrors.New(wrapErrors.CodeInvalidCredential, "derive keypair", "invalid mnemonic: empty phrase")
	}

	entropy, err := bip39.EntropyFromMnemonic(normalized)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidCredential, "derive keypair", fmt.Errorf("invalid mnemonic: %w", err))
	}
	defer clearBytes(entropy)

	seed := pbkdf2.Key(entropy, []byte(seedSalt), seedIterations, seedLength, sha512.New)
	defer clearBytes(seed)

	var mini [schnorrkel.MiniSecretKeySize]byte
	copy(mini[:], seed[:schnorrkel.MiniSecretKeySize])
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(mini)
	clearBytes(mini[:])
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidCredential, "derive keypair", fmt.Errorf("invalid mnemonic: %w", err))
	}

	pub := msk.Public().Encode()
	addr, err := utils.EncodeSS58(pub[:], v.SS58Prefix)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidCredential, "encode address", err)
	}
	return &Keypair{PublicKey: pub, Address: addr}, nil
}

// Verify derives the keypair for phrase and requires its address to equal
// claimedAddress exactly.
func (v *KeypairVerifier) Verify(phrase, claimedAddress string) (*Keypair, error) {
	kp, err := v.Derive(phrase)
	if err != nil {
		return nil, err
	}
	if kp.Address != claimedAddress {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeIdentityMismatch, "verify keypair",
			errors.New("mnemonic does not match the provided address"))
	}
	return kp, nil
}
