// Package cipher implements a small balanced Feistel network over 30-bit
// integers. It obfuscates sequential or time-derived values into
// well-spread ones and is trivially reversible. It is not encryption: the
// round keys are configuration, not secrets.
package cipher

import "fmt"

const (
	// HalfBits is the width of each Feistel half.
	HalfBits = 15
	// HalfMask selects one half.
	HalfMask = 1<<HalfBits - 1
	// Domain is the number of values the permutation covers (2^30).
	Domain = 1 << (2 * HalfBits)
)

// Keys is the round schedule. Each round key and the constant are 15-bit
// values.
type Keys struct {
	Rounds   []uint32
	Constant uint32
}

// DefaultKeys returns the built-in four-round schedule.
func DefaultKeys() Keys {
	return Keys{
		Rounds:   []uint32{0x1D3A, 0x2B7F, 0x0C91, 0x3E45},
		Constant: 0x5BD1,
	}
}

// Validate rejects schedules that would not stay inside a 15-bit half.
func (k Keys) Validate() error {
	if len(k.Rounds) == 0 {
		return fmt.Errorf("cipher: at least one round key required")
	}
	for i, rk := range k.Rounds {
		if rk > HalfMask {
			return fmt.Errorf("cipher: round key %d (%#x) exceeds 15 bits", i, rk)
		}
	}
	if k.Constant > HalfMask {
		return fmt.Errorf("cipher: constant %#x exceeds 15 bits", k.Constant)
	}
	return nil
}

func (k Keys) mix(half, key uint32) uint32 {
	return ((half ^ key) + k.Constant) & HalfMask
}

// Permute maps a 30-bit value onto another 30-bit value. Bits above the
// domain are ignored.
func (k Keys) Permute(value uint32) uint32 {
	left := (value >> HalfBits) & HalfMask
	right := value & HalfMask

	for _, key := range k.Rounds {
		left, right = right, left^k.mix(right, key)
	}

	return left<<HalfBits | right
}

// Unpermute inverts Permute by running the rounds in reverse order.
func (k Keys) Unpermute(value uint32) uint32 {
	left := (value >> HalfBits) & HalfMask
	right := value & HalfMask

	for i := len(k.Rounds) - 1; i >= 0; i-- {
		left, right = right^k.mix(left, k.Rounds[i]), left
	}

	return left<<HalfBits | right
}
