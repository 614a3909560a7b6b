package program

import (
	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/runtime"
)

// likePost records the signer's like of a post and bumps its counter.
//
// Accounts: [0] user (signer, writable), [1] post (writable),
// [2] like (writable, init).
//
// There is no explicit duplicate check: the like address is unique per
// (post, user), so a second like fails Create with InitializationConflict.
// Overflow of like_count writes nothing, not even the like.
func (p *Program) likePost(ictx *runtime.InstructionContext) error {
	accs, err := accounts(ictx, 3)
	if err != nil {
		return err
	}
	user, postAcc, likeAcc := accs[0], accs[1], accs[2]

	if err := requireSigner(user); err != nil {
		return err
	}

	var post account.Post
	if err := p.load(ictx, postAcc, &post); err != nil {
		return err
	}
	if !address.VerifyProgramAddress(address.PostSeeds(post.Author, post.PostID), post.Bump, p.ID(), postAcc.Address) {
		want, err := p.deriver.Post(post.Author, post.PostID)
		if err != nil {
			return err
		}
		return NewAddressMismatch("post", postAcc.Address, want.Address)
	}

	derived, err := p.deriver.Like(postAcc.Address, user.Address)
	if err != nil {
		return err
	}
	if derived.Address != likeAcc.Address {
		return NewAddressMismatch("like", likeAcc.Address, derived.Address)
	}

	count, ok := checkedAdd(post.LikeCount, 1)
	if !ok {
		return NewOverflowError("like_count", postAcc.Address)
	}

	like := account.Like{
		Post: postAcc.Address,
		User: user.Address,
		Bump: derived.Bump,
	}
	likeData, err := like.MarshalBinary()
	if err != nil {
		return err
	}
	if err := ictx.Create(likeAcc, likeData); err != nil {
		return err
	}

	post.LikeCount = count
	postData, err := post.MarshalBinary()
	if err != nil {
		return err
	}
	return ictx.Write(postAcc, postData)
}
