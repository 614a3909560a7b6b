// Package account defines the three record kinds the program stores and
// their fixed-size binary layouts.
//
// Every record is laid out as an 8-byte discriminator followed by a
// borsh-style body: little-endian integers, 32-byte identities, and strings
// as u32 length + UTF-8 bytes. Space sizes are binding contracts with the
// storage allocator; encoders refuse text that would not fit.
package account

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/socialledger/internal/address"
)

// Text budgets in bytes of UTF-8.
const (
	MaxUsernameLen = 32
	MaxContentLen  = 280
)

// DiscriminatorLen is the size of the type tag that prefixes every record.
const DiscriminatorLen = 8

// Body sizes, excluding the discriminator.
const (
	ProfileBodySize = 32 + (4 + MaxUsernameLen) + 8 + 1
	PostBodySize    = 32 + 8 + (4 + MaxContentLen) + 8 + 1
	LikeBodySize    = 32 + 32 + 1
)

// Allocated space per record, including the discriminator.
const (
	ProfileSpace = DiscriminatorLen + ProfileBodySize
	PostSpace    = DiscriminatorLen + PostBodySize
	LikeSpace    = DiscriminatorLen + LikeBodySize
)

var (
	// ErrUsernameTooLong is returned when a username exceeds MaxUsernameLen bytes.
	ErrUsernameTooLong = errors.New("username too long")

	// ErrContentTooLong is returned when post content exceeds MaxContentLen bytes.
	ErrContentTooLong = errors.New("content too long")

	// ErrDiscriminatorMismatch is returned when data holds a different record kind.
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

	// ErrShortData is returned when data ends before the layout does.
	ErrShortData = errors.New("account data too short")
)

// Kind names a record type.
type Kind string

// Record kinds.
const (
	KindProfile Kind = "Profile"
	KindPost    Kind = "Post"
	KindLike    Kind = "Like"
)

// Discriminator returns sha256("account:<kind>")[:8].
func (k Kind) Discriminator() [DiscriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:" + string(k)))
	var d [DiscriminatorLen]byte
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

// Space returns the allocated size for the kind.
func (k Kind) Space() int {
	switch k {
	case KindProfile:
		return ProfileSpace
	case KindPost:
		return PostSpace
	case KindLike:
		return LikeSpace
	default:
		return 0
	}
}

// KindOf identifies data by its discriminator.
func KindOf(data []byte) (Kind, error) {
	if len(data) < DiscriminatorLen {
		return "", ErrShortData
	}
	for _, k := range []Kind{KindProfile, KindPost, KindLike} {
		d := k.Discriminator()
		if string(data[:DiscriminatorLen]) == string(d[:]) {
			return k, nil
		}
	}
	return "", ErrDiscriminatorMismatch
}

// NormalizeText returns the NFC form of s. All stored text passes through it
// so that visually identical input occupies identical bytes.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}

// Profile is one owner's identity record.
type Profile struct {
	Owner      address.Pubkey `json:"owner"`
	Username   string         `json:"username"`
	LastPostID uint64         `json:"last_post_id"`
	Bump       uint8          `json:"bump"`
}

// Post is a single published post.
type Post struct {
	Author    address.Pubkey `json:"author"`
	PostID    uint64         `json:"post_id"`
	Content   string         `json:"content"`
	LikeCount uint64         `json:"like_count"`
	Bump      uint8          `json:"bump"`
}

// Like records that User liked the post at Post. Write-once.
type Like struct {
	Post address.Pubkey `json:"post"`
	User address.Pubkey `json:"user"`
	Bump uint8          `json:"bump"`
}

// ValidateUsername checks the username against its layout budget.
func ValidateUsername(username string) error {
	if n := len(username); n > MaxUsernameLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrUsernameTooLong, n, MaxUsernameLen)
	}
	return nil
}

// ValidateContent checks post content against its layout budget.
func ValidateContent(content string) error {
	if n := len(content); n > MaxContentLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrContentTooLong, n, MaxContentLen)
	}
	return nil
}
