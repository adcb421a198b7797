// Package tlv provides BER-TLV (Basic Encoding Rules Tag-Length-Value)
// utilities for the token: low-level primitives with an explicit error
// taxonomy for walking adversarial input, and struct mapping of decoded
// structures via github.com/moov-io/bertlv.
package tlv

import (
	"errors"
)

// Walking a TLV buffer has two distinct, expected failure modes that
// callers map to different status words: the wanted tag is simply
// absent, or the structure itself is broken (a declared length runs
// past the end of the buffer). Both are ordinary outcomes on
// adversarial input, so they are sentinel errors, not panics.
var (
	// ErrTagNotFound reports that the buffer is well-formed but does not
	// contain the requested tag.
	ErrTagNotFound = errors.New("tlv: tag not found")

	// ErrMalformed reports a structurally broken TLV encoding.
	ErrMalformed = errors.New("tlv: malformed structure")
)

// DecodeLength decodes the length field starting at off and returns the
// encoded value. Short form (one byte, up to 127) and the long forms
// 0x81 (one length byte) and 0x82 (two length bytes) are supported;
// anything longer cannot occur in a token command.
func DecodeLength(buf []byte, off int) (int, error) {
	if off < 0 || off >= len(buf) {
		return 0, ErrMalformed
	}

	switch b := buf[off]; {
	case b < 0x80:
		return int(b), nil
	case b == 0x81:
		if off+1 >= len(buf) {
			return 0, ErrMalformed
		}
		return int(buf[off+1]), nil
	case b == 0x82:
		if off+2 >= len(buf) {
			return 0, ErrMalformed
		}
		return int(buf[off+1])<<8 | int(buf[off+2]), nil
	default:
		return 0, ErrMalformed
	}
}

// LengthFieldWidth returns the number of bytes the length field for a
// value of v bytes occupies on the wire.
func LengthFieldWidth(v int) int {
	switch {
	case v < 0x80:
		return 1
	case v <= 0xFF:
		return 2
	default:
		return 3
	}
}

// tagWidth returns the number of bytes the tag starting at buf[off]
// occupies. Only one- and two-byte tags occur in the token's encodings.
func tagWidth(buf []byte, off int) (int, error) {
	if buf[off]&0x1F != 0x1F {
		return 1, nil
	}
	if off+1 >= len(buf) {
		return 0, ErrMalformed
	}
	// A second byte with bit 8 set would announce a third tag byte.
	if buf[off+1]&0x80 != 0 {
		return 0, ErrMalformed
	}
	return 2, nil
}

// FindTag scans the top-level entries of buf[off:off+length] for a
// one-byte tag and returns the position of the tag byte. It fails with
// ErrTagNotFound if the tag is absent and ErrMalformed if the structure
// breaks before the tag is reached.
func FindTag(buf []byte, off, length int, tag byte) (int, error) {
	if off < 0 || length < 0 || off+length > len(buf) {
		return 0, ErrMalformed
	}

	end := off + length
	pos := off
	for pos < end {
		tw, err := tagWidth(buf, pos)
		if err != nil {
			return 0, err
		}
		if tw == 1 && buf[pos] == tag {
			return pos, nil
		}

		vlen, err := DecodeLength(buf, pos+tw)
		if err != nil {
			return 0, err
		}
		next := pos + tw + LengthFieldWidth(vlen) + vlen
		if next > end {
			return 0, ErrMalformed
		}
		pos = next
	}
	return 0, ErrTagNotFound
}

// IsConsistent walks buf[off:off+length] and reports whether every
// declared length stays within the remaining span.
func IsConsistent(buf []byte, off, length int) bool {
	if off < 0 || length < 0 || off+length > len(buf) {
		return false
	}

	end := off + length
	pos := off
	for pos < end {
		tw, err := tagWidth(buf, pos)
		if err != nil {
			return false
		}
		vlen, err := DecodeLength(buf, pos+tw)
		if err != nil {
			return false
		}
		next := pos + tw + LengthFieldWidth(vlen) + vlen
		if next > end {
			return false
		}
		pos = next
	}
	return pos == end
}

// AppendTagAndLength appends a tag (one or two bytes, e.g. 0x81 or
// 0x7F49) and a length header to dst and returns the extended slice.
// It is the building block for the 7F49 public key response structures.
func AppendTagAndLength(dst []byte, tag uint16, length int) []byte {
	if tag > 0xFF {
		dst = append(dst, byte(tag>>8), byte(tag))
	} else {
		dst = append(dst, byte(tag))
	}

	switch {
	case length < 0x80:
		dst = append(dst, byte(length))
	case length <= 0xFF:
		dst = append(dst, 0x81, byte(length))
	default:
		dst = append(dst, 0x82, byte(length>>8), byte(length))
	}
	return dst
}
