// Package bits provides helpers for working with individual bits of a
// byte, numbered 1 (least significant) to 8 (most significant) as in the
// ISO/IEC 7816 specifications.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet reports whether the n-th bit of b is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with the n-th bit set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with the n-th bit cleared.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}

// Extract returns the value held by the bit range [low, high].
// Example: Extract(0b00001100, 4, 3) returns 3 (0b11).
func Extract(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}
	width := high - low + 1
	mask := byte((1 << width) - 1)
	return (b >> (low - 1)) & mask
}
