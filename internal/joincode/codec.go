package joincode

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/stemsi/exstem-grading/internal/cipher"
)

// DefaultAlphabet has 33 symbols: [0-9A-Z] without 0, O and I. It keeps 1 and
// L even though they are listed as ambiguous, because dropping them as well
// leaves 31 symbols and join codes use a 33-symbol alphabet. Pass a custom
// alphabet to exclude them.
const DefaultAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// DefaultLength is the number of symbols in a join code.
const DefaultLength = 6

var ErrInvalidCode = errors.New("invalid join code")

// Codec maps cipher-domain integers to fixed-length codes and back.
type Codec struct {
	alphabet string
	length   int
	keys     cipher.Keys
	index    map[byte]uint64
}

// NewCodec validates the alphabet, length and cipher keys. The code space
// alphabet^length must cover the whole 30-bit cipher domain, otherwise some
// permuted values could not be written in length symbols, and must fit in 64
// bits so Decode cannot overflow.
func NewCodec(alphabet string, length int, keys cipher.Keys) (*Codec, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("joincode: alphabet needs at least 2 symbols")
	}
	if length < 1 {
		return nil, fmt.Errorf("joincode: length must be positive")
	}

	index := make(map[byte]uint64, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if c > 0x7F || c <= ' ' {
			return nil, fmt.Errorf("joincode: alphabet symbol %q is not printable ASCII", c)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("joincode: alphabet symbol %q repeated", c)
		}
		index[c] = uint64(i)
	}

	space := uint64(1)
	for i := 0; i < length; i++ {
		hi, lo := bits.Mul64(space, uint64(len(alphabet)))
		if hi != 0 {
			return nil, fmt.Errorf("joincode: %d^%d codes overflow 64 bits", len(alphabet), length)
		}
		space = lo
	}
	if space < cipher.Domain {
		return nil, fmt.Errorf("joincode: %d^%d codes cannot cover the %d-value cipher domain",
			len(alphabet), length, cipher.Domain)
	}

	return &Codec{
		alphabet: alphabet,
		length:   length,
		keys:     keys,
		index:    index,
	}, nil
}

// Length returns the number of symbols in every code.
func (c *Codec) Length() int { return c.length }

// Alphabet returns the symbol set.
func (c *Codec) Alphabet() string { return c.alphabet }

// Encode reduces seed into the cipher domain, permutes it and writes the
// result most-significant symbol first.
func (c *Codec) Encode(seed uint64) string {
	v := uint64(c.keys.Permute(uint32(seed % cipher.Domain)))
	base := uint64(len(c.alphabet))

	buf := make([]byte, c.length)
	for i := c.length - 1; i >= 0; i-- {
		buf[i] = c.alphabet[v%base]
		v /= base
	}
	return string(buf)
}

// Decode recovers the reduced seed a code was generated from. Input is
// trimmed and, for an upper-case alphabet, upper-cased first.
func (c *Codec) Decode(code string) (uint32, error) {
	code = c.Normalize(code)
	if len(code) != c.length {
		return 0, fmt.Errorf("%w: want %d symbols, got %d", ErrInvalidCode, c.length, len(code))
	}

	base := uint64(len(c.alphabet))
	var v uint64
	for i := 0; i < len(code); i++ {
		d, ok := c.index[code[i]]
		if !ok {
			return 0, fmt.Errorf("%w: symbol %q not in alphabet", ErrInvalidCode, code[i])
		}
		v = v*base + d
	}
	if v >= cipher.Domain {
		return 0, fmt.Errorf("%w: value outside code space", ErrInvalidCode)
	}

	return c.keys.Unpermute(uint32(v)), nil
}

// Normalize trims surrounding space and folds case when the alphabet is
// upper-case only.
func (c *Codec) Normalize(code string) string {
	code = strings.TrimSpace(code)
	if c.alphabet == strings.ToUpper(c.alphabet) {
		code = strings.ToUpper(code)
	}
	return code
}
