package program

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Instruction names.
const (
	CreateProfileIx = "create_profile"
	CreatePostIx    = "create_post"
	LikePostIx      = "like_post"
)

// DiscriminatorLen is the size of the tag that prefixes instruction data.
const DiscriminatorLen = 8

var errTruncatedArgs = errors.New("instruction arguments truncated")

// InstructionDiscriminator returns sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) [DiscriminatorLen]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [DiscriminatorLen]byte
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

var (
	createProfileDisc = InstructionDiscriminator(CreateProfileIx)
	createPostDisc    = InstructionDiscriminator(CreatePostIx)
	likePostDisc      = InstructionDiscriminator(LikePostIx)
)

// InstructionName returns the instruction a data payload calls, or "" if
// the discriminator is unknown.
func InstructionName(data []byte) string {
	if len(data) < DiscriminatorLen {
		return ""
	}
	var d [DiscriminatorLen]byte
	copy(d[:], data)
	switch d {
	case createProfileDisc:
		return CreateProfileIx
	case createPostDisc:
		return CreatePostIx
	case likePostDisc:
		return LikePostIx
	}
	return ""
}

// encodeStringArg builds discriminator || u32 LE length || bytes.
func encodeStringArg(disc [DiscriminatorLen]byte, s string) []byte {
	out := make([]byte, 0, DiscriminatorLen+4+len(s))
	out = append(out, disc[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
	return append(out, s...)
}

// decodeStringArg reads the single string argument after the discriminator.
// Trailing bytes are ignored.
func decodeStringArg(data []byte) (string, error) {
	args := data[DiscriminatorLen:]
	if len(args) < 4 {
		return "", errTruncatedArgs
	}
	n := binary.LittleEndian.Uint32(args)
	if uint64(n) > uint64(len(args)-4) {
		return "", fmt.Errorf("%w: string of %d bytes, %d available", errTruncatedArgs, n, len(args)-4)
	}
	raw := args[4 : 4+n]
	if !utf8.Valid(raw) {
		return "", errors.New("string argument is not valid UTF-8")
	}
	return string(raw), nil
}
