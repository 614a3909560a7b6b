package program

import (
	"strconv"

	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/runtime"
)

// createPost publishes the next post of the signer's profile.
//
// Accounts: [0] user (signer, writable), [1] profile (writable),
// [2] post (writable, init).
//
// Step order:
//  1. next = profile.last_post_id + 1, checked; Overflow writes nothing
//  2. the post address must derive from (author, next); a caller that read a
//     stale counter gets AddressMismatch and the counter is untouched
//  3. initialise the post
//  4. only then advance profile.last_post_id
//
// A failure in step 3 therefore never leaves the counter pointing past a
// post that does not exist.
func (p *Program) createPost(ictx *runtime.InstructionContext) error {
	accs, err := accounts(ictx, 3)
	if err != nil {
		return err
	}
	user, profileAcc, postAcc := accs[0], accs[1], accs[2]

	if err := requireSigner(user); err != nil {
		return err
	}

	content, err := decodeStringArg(ictx.Data)
	if err != nil {
		return newInvalidInstructionData(err)
	}
	content = account.NormalizeText(content)
	if err := account.ValidateContent(content); err != nil {
		return newTextTooLong(ErrCodeContentTooLong, err)
	}

	var profile account.Profile
	if err := p.load(ictx, profileAcc, &profile); err != nil {
		return err
	}
	if !address.VerifyProgramAddress(address.ProfileSeeds(user.Address), profile.Bump, p.ID(), profileAcc.Address) {
		want, err := p.deriver.Profile(user.Address)
		if err != nil {
			return err
		}
		return NewAddressMismatch("profile", profileAcc.Address, want.Address)
	}
	if profile.Owner != user.Address {
		return newUnauthorized("profile owned by another user", profileAcc.Address)
	}

	next, ok := checkedAdd(profile.LastPostID, 1)
	if !ok {
		return NewOverflowError("last_post_id", profileAcc.Address)
	}

	derived, err := p.deriver.Post(user.Address, next)
	if err != nil {
		return err
	}
	if derived.Address != postAcc.Address {
		mismatch := NewAddressMismatch("post", postAcc.Address, derived.Address)
		mismatch.Details["next_post_id"] = strconv.FormatUint(next, 10)
		return mismatch
	}

	post := account.Post{
		Author:    user.Address,
		PostID:    next,
		Content:   content,
		LikeCount: 0,
		Bump:      derived.Bump,
	}
	postData, err := post.MarshalBinary()
	if err != nil {
		return err
	}
	if err := ictx.Create(postAcc, postData); err != nil {
		return err
	}

	profile.LastPostID = next
	profileData, err := profile.MarshalBinary()
	if err != nil {
		return err
	}
	return ictx.Write(profileAcc, profileData)
}
