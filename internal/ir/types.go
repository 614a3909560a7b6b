package ir

import (
	"github.com/roach88/socialledger/internal/address"
)

// AccountMeta declares one address an instruction touches.
// The runtime resolves, locks and checks these before any program code runs.
type AccountMeta struct {
	Address  address.Pubkey `json:"address"`
	Signer   bool           `json:"signer"`
	Writable bool           `json:"writable"`

	// Init marks an address the instruction creates. The runtime refuses
	// the instruction if the address already holds data.
	Init bool `json:"init"`
}

// Instruction is a single program call.
type Instruction struct {
	ProgramID address.Pubkey `json:"program_id"`
	Accounts  []AccountMeta  `json:"accounts"`
	Data      []byte         `json:"data"` // discriminator || borsh args
}

// Message is the signed part of a transaction.
type Message struct {
	// Nonce makes otherwise identical messages distinct, so a user may
	// legitimately repeat an action while an exact replay is still rejected.
	Nonce        string        `json:"nonce"`
	Instructions []Instruction `json:"instructions"`
}

// Signature is an ed25519 signature by Signer over the canonical message.
type Signature struct {
	Signer address.Pubkey `json:"signer"`
	Bytes  []byte         `json:"bytes"`
}

// Transaction is a message plus the signatures of its signers.
type Transaction struct {
	Message    Message     `json:"message"`
	Signatures []Signature `json:"signatures"`
}

// Status is the terminal outcome of a transaction.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Receipt is the logged outcome of one executed transaction.
type Receipt struct {
	TransactionID string `json:"transaction_id"`
	Seq           int64  `json:"seq"` // Logical clock, never wall time
	Status        Status `json:"status"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Signers returns the distinct addresses marked as signers, in first-seen order.
func (m Message) Signers() []address.Pubkey {
	seen := make(map[address.Pubkey]bool)
	var out []address.Pubkey
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if meta.Signer && !seen[meta.Address] {
				seen[meta.Address] = true
				out = append(out, meta.Address)
			}
		}
	}
	return out
}

// Bytes returns the canonical encoding that signers sign.
func (m Message) Bytes() ([]byte, error) {
	return MarshalCanonical(m.canonical())
}

func (m Message) canonical() map[string]any {
	ixs := make([]any, len(m.Instructions))
	for i, ix := range m.Instructions {
		metas := make([]any, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			metas[j] = map[string]any{
				"address":  meta.Address,
				"signer":   meta.Signer,
				"writable": meta.Writable,
				"init":     meta.Init,
			}
		}
		data := ix.Data
		if data == nil {
			data = []byte{}
		}
		ixs[i] = map[string]any{
			"program_id": ix.ProgramID,
			"accounts":   metas,
			"data":       data,
		}
	}
	return map[string]any{
		"nonce":        m.Nonce,
		"instructions": ixs,
	}
}
