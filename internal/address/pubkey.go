package address

import (
	"bytes"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of an account address or signer identity.
const PubkeyLength = 32

// ErrInvalidPubkey is returned when text does not decode to 32 bytes.
var ErrInvalidPubkey = errors.New("invalid pubkey")

// Pubkey is a 32-byte account address or signer identity.
// Its text form is base58, as in Solana wallets and explorers.
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w: %q: %v", ErrInvalidPubkey, s, err)
	}
	return PubkeyFromBytes(raw)
}

// MustParsePubkey is like ParsePubkey but panics on error.
// Use only for constants and tests.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies raw into a Pubkey. raw must be exactly 32 bytes.
func PubkeyFromBytes(raw []byte) (Pubkey, error) {
	var pk Pubkey
	if len(raw) != PubkeyLength {
		return pk, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPubkey, len(raw), PubkeyLength)
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the raw 32 bytes, suitable as a derivation seed.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeyLength)
	copy(out, p[:])
	return out
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Compare orders keys by raw bytes. Used to acquire locks in a fixed order.
func (p Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(p[:], other[:])
}

// IsOnCurve reports whether p decodes as an ed25519 point.
// Derived addresses must be off the curve so no private key can sign for them.
func (p Pubkey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// MarshalText implements encoding.TextMarshaler (base58).
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (base58).
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
