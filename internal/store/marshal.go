package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

// marshalMessage converts a message to canonical JSON TEXT for storage.
// The stored text is exactly what signers signed, so the transaction id can
// be recomputed from it.
func marshalMessage(m ir.Message) (string, error) {
	data, err := m.Bytes()
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return string(data), nil
}

// marshalSignatures converts signatures to canonical JSON TEXT, in the order
// given.
func marshalSignatures(sigs []ir.Signature) (string, error) {
	arr := make([]any, len(sigs))
	for i, sig := range sigs {
		arr[i] = map[string]any{
			"signer": sig.Signer,
			"bytes":  sig.Bytes,
		}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal signatures: %w", err)
	}
	return string(data), nil
}

func unmarshalMessage(data string) (ir.Message, error) {
	var m ir.Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return ir.Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return m, nil
}

func unmarshalSignatures(data string) ([]ir.Signature, error) {
	sigs := []ir.Signature{}
	if data == "" || data == "[]" {
		return sigs, nil
	}
	if err := json.Unmarshal([]byte(data), &sigs); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	return sigs, nil
}

// unmarshalPubkey converts a BLOB column back into a Pubkey.
func unmarshalPubkey(column string, raw []byte) (address.Pubkey, error) {
	pk, err := address.PubkeyFromBytes(raw)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("column %s: %w", column, err)
	}
	return pk, nil
}
