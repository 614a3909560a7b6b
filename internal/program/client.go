package program

import (
	"context"
	"fmt"

	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/runtime"
	"github.com/roach88/socialledger/internal/store"
)

// Client builds unsigned messages for the program. Addresses are derived
// client-side with the same seeds the handlers verify.
type Client struct {
	deriver address.Deriver
	nonces  runtime.NonceGenerator
}

// NewClient returns a client for programID drawing nonces from nonces.
func NewClient(programID address.Pubkey, nonces runtime.NonceGenerator) *Client {
	return &Client{deriver: address.NewDeriver(programID), nonces: nonces}
}

// Deriver returns the client's address deriver.
func (c *Client) Deriver() address.Deriver {
	return c.deriver
}

func (c *Client) message(ix ir.Instruction) ir.Message {
	return ir.Message{
		Nonce:        c.nonces.Generate(),
		Instructions: []ir.Instruction{ix},
	}
}

// CreateProfile builds create_profile for user.
func (c *Client) CreateProfile(user address.Pubkey, username string) (ir.Message, error) {
	profile, err := c.deriver.Profile(user)
	if err != nil {
		return ir.Message{}, fmt.Errorf("create profile: %w", err)
	}
	return c.message(ir.Instruction{
		ProgramID: c.deriver.ProgramID(),
		Accounts: []ir.AccountMeta{
			{Address: user, Signer: true, Writable: true},
			{Address: profile.Address, Writable: true, Init: true},
		},
		Data: encodeStringArg(createProfileDisc, username),
	}), nil
}

// CreatePost builds create_post for user's post number postID. postID must
// be the profile's last_post_id + 1 at execution time (see NextPostID);
// anything else fails with AddressMismatch.
func (c *Client) CreatePost(user address.Pubkey, postID uint64, content string) (ir.Message, error) {
	profile, err := c.deriver.Profile(user)
	if err != nil {
		return ir.Message{}, fmt.Errorf("create post: %w", err)
	}
	post, err := c.deriver.Post(user, postID)
	if err != nil {
		return ir.Message{}, fmt.Errorf("create post: %w", err)
	}
	return c.message(ir.Instruction{
		ProgramID: c.deriver.ProgramID(),
		Accounts: []ir.AccountMeta{
			{Address: user, Signer: true, Writable: true},
			{Address: profile.Address, Writable: true},
			{Address: post.Address, Writable: true, Init: true},
		},
		Data: encodeStringArg(createPostDisc, content),
	}), nil
}

// LikePost builds like_post of the post at post by user.
func (c *Client) LikePost(user, post address.Pubkey) (ir.Message, error) {
	like, err := c.deriver.Like(post, user)
	if err != nil {
		return ir.Message{}, fmt.Errorf("like post: %w", err)
	}
	disc := likePostDisc
	return c.message(ir.Instruction{
		ProgramID: c.deriver.ProgramID(),
		Accounts: []ir.AccountMeta{
			{Address: user, Signer: true, Writable: true},
			{Address: post, Writable: true},
			{Address: like.Address, Writable: true, Init: true},
		},
		Data: disc[:],
	}), nil
}

// NextPostID reads user's profile and returns last_post_id + 1 with the
// address that post will live at. The answer goes stale as soon as another
// post by user commits.
func (c *Client) NextPostID(ctx context.Context, s *store.Store, user address.Pubkey) (uint64, address.Derivation, error) {
	derived, err := c.deriver.Profile(user)
	if err != nil {
		return 0, address.Derivation{}, fmt.Errorf("next post id: %w", err)
	}
	profile, err := FetchProfile(ctx, s, derived.Address)
	if err != nil {
		return 0, address.Derivation{}, fmt.Errorf("next post id: %w", err)
	}
	next, ok := checkedAdd(profile.LastPostID, 1)
	if !ok {
		return 0, address.Derivation{}, NewOverflowError("last_post_id", derived.Address)
	}
	post, err := c.deriver.Post(user, next)
	if err != nil {
		return 0, address.Derivation{}, fmt.Errorf("next post id: %w", err)
	}
	return next, post, nil
}

// NextPostAddress is NextPostID without the id.
func (c *Client) NextPostAddress(ctx context.Context, s *store.Store, user address.Pubkey) (address.Pubkey, error) {
	_, post, err := c.NextPostID(ctx, s, user)
	return post.Address, err
}

// FetchProfile reads and decodes the profile at addr.
func FetchProfile(ctx context.Context, s *store.Store, addr address.Pubkey) (account.Profile, error) {
	var p account.Profile
	if err := fetch(ctx, s, addr, &p); err != nil {
		return account.Profile{}, err
	}
	return p, nil
}

// FetchPost reads and decodes the post at addr.
func FetchPost(ctx context.Context, s *store.Store, addr address.Pubkey) (account.Post, error) {
	var p account.Post
	if err := fetch(ctx, s, addr, &p); err != nil {
		return account.Post{}, err
	}
	return p, nil
}

// FetchLike reads and decodes the like at addr.
func FetchLike(ctx context.Context, s *store.Store, addr address.Pubkey) (account.Like, error) {
	var l account.Like
	if err := fetch(ctx, s, addr, &l); err != nil {
		return account.Like{}, err
	}
	return l, nil
}

type binaryRecord interface {
	UnmarshalBinary(data []byte) error
}

func fetch(ctx context.Context, s *store.Store, addr address.Pubkey, v binaryRecord) error {
	acc, err := s.ReadAccount(ctx, addr)
	if err != nil {
		return err
	}
	if err := v.UnmarshalBinary(acc.Data); err != nil {
		return fmt.Errorf("decode %s: %w", addr, err)
	}
	return nil
}
