// Package rank encodes list positions as lexicographically ordered strings.
//
// A rank is a big-endian base-36 digit string over [0-9a-z]. Comparing two
// ranks as strings yields the same order as comparing their digit values
// right-padded with the minimum digit, so stores can sort on the raw column.
// All arithmetic is exact digit arithmetic; no floating point.
package rank

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Alphabet is the rank digit set, ordered by ASCII value.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// Base is the number of distinct digits.
	Base = len(Alphabet)

	// MaxLength caps rank growth. Between gives up and asks for a rebalance
	// instead of producing ranks longer than this.
	MaxLength = 24

	// minLength is the shortest length rebalanced ranks are generated at.
	minLength = 2

	// maxScalarLength bounds lengths whose capacity (Base^n) fits in int64.
	maxScalarLength = 12
)

var (
	// ErrOverflow reports that Next has no successor at any length; the
	// caller must rebalance the partition.
	ErrOverflow = errors.New("rank overflow: no successor available")

	// ErrRebalanceRequired reports that Between found no representable value
	// strictly inside the requested bounds.
	ErrRebalanceRequired = errors.New("rank exhausted: rebalance required")

	// ErrInvalidRank reports input outside the rank alphabet.
	ErrInvalidRank = errors.New("invalid rank string")
)

// Middle is the canonical first rank for an empty partition: the single
// digit at the center of the alphabet.
func Middle() string {
	return string(Alphabet[Base/2])
}

// Next returns the smallest useful rank strictly greater than prev: the
// rightmost non-maximum digit is incremented and everything after it is
// dropped, keeping appended ranks short. Returns ErrOverflow when every
// digit of prev is already the maximum.
func Next(prev string) (string, error) {
	d, err := digitsOf(prev)
	if err != nil {
		return "", err
	}
	if len(d) == 0 {
		return "", fmt.Errorf("%w: empty rank", ErrInvalidRank)
	}
	for i := len(d) - 1; i >= 0; i-- {
		if d[i] < Base-1 {
			d[i]++
			return Format(d[:i+1]), nil
		}
	}
	return "", ErrOverflow
}

// Between returns a rank strictly between lower and upper. An empty string
// stands for an absent bound (minus/plus infinity). hint is the number of
// items expected to share the neighborhood; it sets the starting precision so
// a burst of sibling inserts does not immediately force longer ranks.
//
// Returns ErrRebalanceRequired when the bounds admit no value at any length
// up to MaxLength, including bounds that are numerically equal (such as "n"
// and "n0") or inverted.
func Between(lower, upper string, hint int) (string, error) {
	lo, err := digitsOf(lower)
	if err != nil {
		return "", err
	}
	up, err := digitsOf(upper)
	if err != nil {
		return "", err
	}
	if lower != "" && upper != "" && comparePadded(lo, up) >= 0 {
		// Equal or inverted bounds mean the partition needs renumbering;
		// there is nothing representable in between.
		return "", ErrRebalanceRequired
	}

	start := Length(hint)
	if len(lo) > start {
		start = len(lo)
	}
	if len(up) > start {
		start = len(up)
	}
	for length := start; length <= MaxLength; length++ {
		// Work on length+1 digits; index 0 absorbs the +infinity bound.
		loPad := padRight(lo, length)
		var upPad []int
		if upper == "" {
			upPad = make([]int, length+1)
			upPad[0] = 1 // Base^length, exclusive
		} else {
			upPad = padRight(up, length)
		}
		mid := midpoint(loPad, upPad)
		if compareDigits(mid, loPad) > 0 {
			return trimTrailingMin(Format(mid[1:])), nil
		}
	}
	return "", ErrRebalanceRequired
}

// Length returns the rank length used when laying out n evenly spaced ranks:
// the smallest length whose capacity leaves at least a full digit of slack
// between neighbors.
func Length(n int) int {
	if n < 0 {
		n = 0
	}
	length := minLength
	capacity := int64(Base) // Base^(length-1)
	for capacity < int64(n)+1 && length < maxScalarLength {
		length++
		capacity *= int64(Base)
	}
	return length
}

// Step returns the digit-value gap between adjacent ranks when laying out n
// evenly spaced ranks at Length(n).
func Step(n int) int64 {
	if n < 0 {
		n = 0
	}
	capacity := int64(1)
	for i := 0; i < Length(n); i++ {
		capacity *= int64(Base)
	}
	return capacity / (int64(n) + 1)
}

// Spread returns n evenly spaced, strictly increasing ranks with headroom
// below the first and above the last. Used by partition rebalances.
func Spread(n int) []string {
	if n <= 0 {
		return nil
	}
	length := Length(n)
	step := Step(n)
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Format(ValueDigits(step*int64(i), length)))
	}
	return out
}

// Format renders big-endian digit values as a rank string. Digits must be in
// [0, Base).
func Format(digits []int) string {
	var b strings.Builder
	b.Grow(len(digits))
	for _, d := range digits {
		b.WriteByte(Alphabet[d])
	}
	return b.String()
}

// ValueDigits expands a non-negative value into big-endian digits of the
// given length.
func ValueDigits(v int64, length int) []int {
	out := make([]int, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = int(v % int64(Base))
		v /= int64(Base)
	}
	return out
}

func digitsOf(r string) ([]int, error) {
	if r == "" {
		return nil, nil
	}
	out := make([]int, len(r))
	for i := 0; i < len(r); i++ {
		d := strings.IndexByte(Alphabet, r[i])
		if d < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRank, r)
		}
		out[i] = d
	}
	return out, nil
}

// padRight returns digits right-padded with the minimum digit to the given
// length, with one extra leading slot for bound arithmetic.
func padRight(digits []int, length int) []int {
	out := make([]int, length+1)
	copy(out[1:], digits)
	return out
}

// midpoint computes floor((a+b)/2) for equal-length digit slices.
func midpoint(a, b []int) []int {
	n := len(a)
	sum := make([]int, n)
	carry := 0
	for i := n - 1; i >= 0; i-- {
		s := a[i] + b[i] + carry
		sum[i] = s % Base
		carry = s / Base
	}
	// carry stays zero: index 0 only ever holds 0 or 1.
	out := make([]int, n)
	rem := 0
	for i := 0; i < n; i++ {
		cur := rem*Base + sum[i]
		out[i] = cur / 2
		rem = cur % 2
	}
	return out
}

func compareDigits(a, b []int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// comparePadded compares digit slices as if both were right-padded with the
// minimum digit to a common length.
func comparePadded(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func trimTrailingMin(r string) string {
	trimmed := strings.TrimRight(r, string(Alphabet[0]))
	if trimmed == "" {
		return r[:1]
	}
	return trimmed
}
