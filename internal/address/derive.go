package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Derivation limits. These match Solana's so addresses computed here agree
// with any Solana SDK.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// pdaMarker is appended after the program id in every derivation hash.
const pdaMarker = "ProgramDerivedAddress"

// Seed namespace tags.
const (
	ProfileTag = "profile"
	PostTag    = "post"
	LikeTag    = "like"
)

// ProgramID is the namespace salt for every address this program owns.
// It is configuration, not state: set once at start-up and never mutated.
var ProgramID = MustParsePubkey("H3PZAD7wwkgGQhYLJBABfW376oAaZVrwmYoErRYuf9yj")

var (
	// ErrMaxSeedLengthExceeded is returned for too many seeds or an oversized seed.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrInvalidSeeds is returned when the seeds hash to an on-curve point.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")

	// ErrNoViableBump is returned when no bump in 255..1 yields an off-curve
	// address. Unreachable in practice; treat as a configuration fault.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress hashes seeds under programID without searching.
// The caller supplies the bump (if any) as the last seed.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Pubkey{}, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLengthExceeded, i, len(seed))
		}
	}

	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))
	if addr.IsOnCurve() {
		return Pubkey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress returns the first off-curve address for seeds,
// scanning the bump from 255 down to 1, together with that bump.
// Identical inputs always return identical results.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := uint8(255); bump > 0; bump-- {
		withBump[len(seeds)] = []byte{bump}
		addr, err := CreateProgramAddress(withBump, programID)
		switch {
		case err == nil:
			return addr, bump, nil
		case errors.Is(err, ErrInvalidSeeds):
			continue
		default:
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

// VerifyProgramAddress checks that want is the address for seeds with the
// stored bump. This is the fast path used once a record has recorded its
// bump: one hash, no search.
func VerifyProgramAddress(seeds [][]byte, bump uint8, programID Pubkey, want Pubkey) bool {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	withBump[len(seeds)] = []byte{bump}

	got, err := CreateProgramAddress(withBump, programID)
	return err == nil && got == want
}

// ProfileSeeds returns the seeds of owner's profile record.
func ProfileSeeds(owner Pubkey) [][]byte {
	return [][]byte{[]byte(ProfileTag), owner.Bytes()}
}

// PostSeeds returns the seeds of author's post with the given id.
// postID is encoded as 8 little-endian bytes.
func PostSeeds(author Pubkey, postID uint64) [][]byte {
	id := make([]byte, 8)
	binary.LittleEndian.PutUint64(id, postID)
	return [][]byte{[]byte(PostTag), author.Bytes(), id}
}

// LikeSeeds returns the seeds of user's like on post.
func LikeSeeds(post, user Pubkey) [][]byte {
	return [][]byte{[]byte(LikeTag), post.Bytes(), user.Bytes()}
}

// Derivation pairs an address with the bump that produced it.
type Derivation struct {
	Address Pubkey
	Bump    uint8
}

// Deriver computes record addresses under one program id.
type Deriver struct {
	programID Pubkey
}

// NewDeriver returns a Deriver salted with programID.
func NewDeriver(programID Pubkey) Deriver {
	return Deriver{programID: programID}
}

// ProgramID returns the namespace salt.
func (d Deriver) ProgramID() Pubkey {
	return d.programID
}

// Profile derives owner's profile address.
func (d Deriver) Profile(owner Pubkey) (Derivation, error) {
	return d.find(ProfileSeeds(owner))
}

// Post derives the address of author's post number postID.
func (d Deriver) Post(author Pubkey, postID uint64) (Derivation, error) {
	return d.find(PostSeeds(author, postID))
}

// Like derives the address of user's like on post.
func (d Deriver) Like(post, user Pubkey) (Derivation, error) {
	return d.find(LikeSeeds(post, user))
}

func (d Deriver) find(seeds [][]byte) (Derivation, error) {
	addr, bump, err := FindProgramAddress(seeds, d.programID)
	if err != nil {
		return Derivation{}, err
	}
	return Derivation{Address: addr, Bump: bump}, nil
}
