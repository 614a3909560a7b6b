package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainTransaction = "socialledger/transaction/v1"
	DomainState       = "socialledger/state/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null byte keeps domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TransactionID is the content-addressed id of a message.
// Signatures are excluded: the id names what was asked, not who proved it,
// so the same message cannot be executed twice under fresh signatures.
func TransactionID(m Message) (string, error) {
	data, err := m.Bytes()
	if err != nil {
		return "", fmt.Errorf("TransactionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTransaction, data), nil
}

// MustTransactionID is like TransactionID but panics on error.
// Use only in tests or when the message is known to be valid.
func MustTransactionID(m Message) string {
	id, err := TransactionID(m)
	if err != nil {
		panic(err)
	}
	return id
}

// AccountEntry is one account as seen by StateHash.
type AccountEntry struct {
	Address address.Pubkey
	Data    []byte
}

// StateHash digests a full set of accounts. Entries must already be sorted
// by address; the store returns them that way.
func StateHash(entries []AccountEntry) string {
	h := sha256.New()
	h.Write([]byte(DomainState))
	h.Write([]byte{0x00})
	var n [8]byte
	for _, e := range entries {
		h.Write(e.Address[:])
		binary.LittleEndian.PutUint64(n[:], uint64(len(e.Data)))
		h.Write(n[:])
		h.Write(e.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
