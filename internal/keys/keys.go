// Package keys manages ed25519 signing keys and transaction signing.
//
// Keypair files hold the 64-byte private key (seed || public key) as a JSON
// array of numbers, the layout common ledger tooling reads and writes.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

// ErrInvalidKeypair is returned for malformed keypair files.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an ed25519 signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

// Generate creates a random keypair.
func Generate() (Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{priv: priv}, nil
}

// FromSeed builds the keypair for a 32-byte seed.
func FromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKeypair, len(seed), ed25519.SeedSize)
	}
	return Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// FromSeedPhrase derives a deterministic keypair from a name, using
// sha256(name) as the seed. For tests and scenarios only: anyone who knows
// the name can sign.
func FromSeedPhrase(name string) Keypair {
	seed := sha256.Sum256([]byte(name))
	return Keypair{priv: ed25519.NewKeyFromSeed(seed[:])}
}

// Pubkey returns the public half as a ledger address.
func (k Keypair) Pubkey() address.Pubkey {
	var p address.Pubkey
	copy(p[:], k.priv.Public().(ed25519.PublicKey))
	return p
}

// Sign signs msg.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// Load reads a keypair file.
func Load(path string) (Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Keypair{}, fmt.Errorf("load keypair: %w", err)
	}

	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		return Keypair{}, fmt.Errorf("load keypair %s: %w: %v", path, ErrInvalidKeypair, err)
	}
	if len(nums) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("load keypair %s: %w: %d bytes, want %d",
			path, ErrInvalidKeypair, len(nums), ed25519.PrivateKeySize)
	}

	buf := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return Keypair{}, fmt.Errorf("load keypair %s: %w: byte %d out of range", path, ErrInvalidKeypair, i)
		}
		buf[i] = byte(n)
	}

	// The trailing 32 bytes must be the public key of the leading seed.
	k := Keypair{priv: ed25519.NewKeyFromSeed(buf[:ed25519.SeedSize])}
	if string(k.priv) != string(buf) {
		return Keypair{}, fmt.Errorf("load keypair %s: %w: public key does not match seed", path, ErrInvalidKeypair)
	}
	return k, nil
}

// Save writes k to path with owner-only permissions.
func Save(path string, k Keypair) error {
	nums := make([]int, len(k.priv))
	for i, b := range k.priv {
		nums[i] = int(b)
	}
	data, err := json.Marshal(nums)
	if err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	return nil
}

// SignTransaction signs the canonical bytes of m with every keypair given,
// in order.
func SignTransaction(m ir.Message, signers ...Keypair) (ir.Transaction, error) {
	msg, err := m.Bytes()
	if err != nil {
		return ir.Transaction{}, fmt.Errorf("sign transaction: %w", err)
	}

	tx := ir.Transaction{Message: m, Signatures: make([]ir.Signature, len(signers))}
	for i, k := range signers {
		tx.Signatures[i] = ir.Signature{Signer: k.Pubkey(), Bytes: k.Sign(msg)}
	}
	return tx, nil
}
