package program

import (
	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/runtime"
)

// createProfile registers the signer's profile.
//
// Accounts: [0] user (signer, writable), [1] profile (writable, init).
// A second profile for the same owner derives the same address, so Create
// fails with InitializationConflict.
func (p *Program) createProfile(ictx *runtime.InstructionContext) error {
	accs, err := accounts(ictx, 2)
	if err != nil {
		return err
	}
	user, profileAcc := accs[0], accs[1]

	if err := requireSigner(user); err != nil {
		return err
	}

	username, err := decodeStringArg(ictx.Data)
	if err != nil {
		return newInvalidInstructionData(err)
	}
	username = account.NormalizeText(username)
	if err := account.ValidateUsername(username); err != nil {
		return newTextTooLong(ErrCodeUsernameTooLong, err)
	}

	derived, err := p.deriver.Profile(user.Address)
	if err != nil {
		return err
	}
	if derived.Address != profileAcc.Address {
		return NewAddressMismatch("profile", profileAcc.Address, derived.Address)
	}

	profile := account.Profile{
		Owner:      user.Address,
		Username:   username,
		LastPostID: 0,
		Bump:       derived.Bump,
	}
	data, err := profile.MarshalBinary()
	if err != nil {
		return err
	}
	return ictx.Create(profileAcc, data)
}
