package account

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
)

// encoder appends borsh-style fields into a buffer pre-sized to the record's space.
type encoder struct {
	buf []byte
}

func newEncoder(kind Kind) *encoder {
	d := kind.Discriminator()
	buf := make([]byte, 0, kind.Space())
	buf = append(buf, d[:]...)
	return &encoder{buf: buf}
}

func (e *encoder) pubkey(p address.Pubkey) { e.buf = append(e.buf, p[:]...) }
func (e *encoder) u8(v uint8)              { e.buf = append(e.buf, v) }
func (e *encoder) u64(v uint64)            { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *encoder) str(s string) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// bytes returns the record zero-padded to its full space.
func (e *encoder) bytes(kind Kind) []byte {
	out := make([]byte, kind.Space())
	copy(out, e.buf)
	return out
}

// decoder reads fields back; the first short read sticks in err.
type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(kind Kind, data []byte) (*decoder, error) {
	if len(data) < DiscriminatorLen {
		return nil, ErrShortData
	}
	want := kind.Discriminator()
	if string(data[:DiscriminatorLen]) != string(want[:]) {
		return nil, fmt.Errorf("%w: want %s", ErrDiscriminatorMismatch, kind)
	}
	return &decoder{data: data, off: DiscriminatorLen}, nil
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortData, n, d.off, len(d.data))
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) pubkey() address.Pubkey {
	var p address.Pubkey
	copy(p[:], d.take(address.PubkeyLength))
	return p
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) str(max int) string {
	lb := d.take(4)
	if lb == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(lb)
	if int64(n) > int64(max) {
		d.err = fmt.Errorf("%w: string length %d exceeds %d", ErrShortData, n, max)
		return ""
	}
	return string(d.take(int(n)))
}

// MarshalBinary encodes the profile into its full allocated space.
func (p *Profile) MarshalBinary() ([]byte, error) {
	if err := ValidateUsername(p.Username); err != nil {
		return nil, err
	}
	e := newEncoder(KindProfile)
	e.pubkey(p.Owner)
	e.str(p.Username)
	e.u64(p.LastPostID)
	e.u8(p.Bump)
	return e.bytes(KindProfile), nil
}

// UnmarshalBinary decodes a profile record.
func (p *Profile) UnmarshalBinary(data []byte) error {
	d, err := newDecoder(KindProfile, data)
	if err != nil {
		return err
	}
	out := Profile{
		Owner:      d.pubkey(),
		Username:   d.str(MaxUsernameLen),
		LastPostID: d.u64(),
		Bump:       d.u8(),
	}
	if d.err != nil {
		return fmt.Errorf("decode profile: %w", d.err)
	}
	*p = out
	return nil
}

// MarshalBinary encodes the post into its full allocated space.
func (p *Post) MarshalBinary() ([]byte, error) {
	if err := ValidateContent(p.Content); err != nil {
		return nil, err
	}
	e := newEncoder(KindPost)
	e.pubkey(p.Author)
	e.u64(p.PostID)
	e.str(p.Content)
	e.u64(p.LikeCount)
	e.u8(p.Bump)
	return e.bytes(KindPost), nil
}

// UnmarshalBinary decodes a post record.
func (p *Post) UnmarshalBinary(data []byte) error {
	d, err := newDecoder(KindPost, data)
	if err != nil {
		return err
	}
	out := Post{
		Author:    d.pubkey(),
		PostID:    d.u64(),
		Content:   d.str(MaxContentLen),
		LikeCount: d.u64(),
		Bump:      d.u8(),
	}
	if d.err != nil {
		return fmt.Errorf("decode post: %w", d.err)
	}
	*p = out
	return nil
}

// MarshalBinary encodes the like record.
func (l *Like) MarshalBinary() ([]byte, error) {
	e := newEncoder(KindLike)
	e.pubkey(l.Post)
	e.pubkey(l.User)
	e.u8(l.Bump)
	return e.bytes(KindLike), nil
}

// UnmarshalBinary decodes a like record.
func (l *Like) UnmarshalBinary(data []byte) error {
	d, err := newDecoder(KindLike, data)
	if err != nil {
		return err
	}
	out := Like{
		Post: d.pubkey(),
		User: d.pubkey(),
		Bump: d.u8(),
	}
	if d.err != nil {
		return fmt.Errorf("decode like: %w", d.err)
	}
	*l = out
	return nil
}

// Decode returns the typed record held in data.
func Decode(data []byte) (any, error) {
	kind, err := KindOf(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindProfile:
		var p Profile
		return &p, p.UnmarshalBinary(data)
	case KindPost:
		var p Post
		return &p, p.UnmarshalBinary(data)
	default:
		var l Like
		return &l, l.UnmarshalBinary(data)
	}
}
