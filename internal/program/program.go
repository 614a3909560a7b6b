// Package program implements the social ledger instructions: profile
// registration, post sequencing and like registration.
//
// Handlers never choose storage locations. Every record address is derived
// from its seeds (see package address) and checked against the address the
// caller declared; the runtime guarantees signer identity, first-write
// uniqueness and exclusion between transactions sharing an address.
package program

import (
	"encoding"
	"errors"
	"math/bits"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/runtime"
)

var errWrongOwner = errors.New("account owned by another program")

// Program dispatches instructions to their handlers.
type Program struct {
	deriver address.Deriver
}

// New returns the program living at programID. programID is the namespace
// salt for every derived address.
func New(programID address.Pubkey) *Program {
	return &Program{deriver: address.NewDeriver(programID)}
}

// ID returns the program id.
func (p *Program) ID() address.Pubkey {
	return p.deriver.ProgramID()
}

// Deriver returns the address deriver bound to the program id.
func (p *Program) Deriver() address.Deriver {
	return p.deriver
}

// Process implements runtime.Processor.
func (p *Program) Process(ictx *runtime.InstructionContext) error {
	switch InstructionName(ictx.Data) {
	case CreateProfileIx:
		return p.createProfile(ictx)
	case CreatePostIx:
		return p.createPost(ictx)
	case LikePostIx:
		return p.likePost(ictx)
	}
	return runtime.NewUnknownInstruction(ictx.ProgramID, "unrecognised instruction discriminator")
}

// checkedAdd returns a+b, or ok=false on u64 overflow.
func checkedAdd(a, b uint64) (sum uint64, ok bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// accounts fetches the first n declared accounts.
func accounts(ictx *runtime.InstructionContext, n int) ([]*runtime.AccountInfo, error) {
	out := make([]*runtime.AccountInfo, n)
	for i := range out {
		acc, err := ictx.Account(i)
		if err != nil {
			return nil, err
		}
		out[i] = acc
	}
	return out, nil
}

func requireSigner(acc *runtime.AccountInfo) error {
	if !acc.IsSigner {
		return newUnauthorized("user must sign", acc.Address)
	}
	return nil
}

// load decodes an existing record owned by this program into v.
func (p *Program) load(ictx *runtime.InstructionContext, acc *runtime.AccountInfo, v encoding.BinaryUnmarshaler) error {
	data, err := ictx.Load(acc)
	if err != nil {
		return err
	}
	if acc.Owner() != p.ID() {
		return runtime.NewInvalidAccountData(acc.Address, errWrongOwner)
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return runtime.NewInvalidAccountData(acc.Address, err)
	}
	return nil
}
