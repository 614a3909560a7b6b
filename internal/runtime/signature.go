package runtime

import (
	"crypto/ed25519"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

// verifySignatures checks that every signer meta of the message carries a
// valid ed25519 signature over msg, the canonical message bytes. The first
// signature listed for a signer is the one checked; signatures from keys
// that are not signer metas are ignored.
func verifySignatures(tx ir.Transaction, msg []byte) error {
	sigs := make(map[address.Pubkey][]byte, len(tx.Signatures))
	for _, s := range tx.Signatures {
		if _, dup := sigs[s.Signer]; !dup {
			sigs[s.Signer] = s.Bytes
		}
	}

	for _, signer := range tx.Message.Signers() {
		sig, ok := sigs[signer]
		if !ok {
			return newSignatureError(ErrCodeMissingRequiredSignature, signer)
		}
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(signer.Bytes()), msg, sig) {
			return newSignatureError(ErrCodeInvalidSignature, signer)
		}
	}
	return nil
}
