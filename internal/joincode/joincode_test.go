package joincode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/cipher"
)

type fakeChecker struct {
	taken map[string]bool
	all   bool
	err   error
	calls int
}

func (f *fakeChecker) JoinCodeExists(_ context.Context, code string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.all || f.taken[code], nil
}

func counterSeed(start uint64) func() uint64 {
	n := start
	return func() uint64 {
		n++
		return n
	}
}

func TestGenerateShape(t *testing.T) {
	g, err := NewGenerator(DefaultConfig(), &fakeChecker{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	if len(DefaultAlphabet) != 33 {
		t.Fatalf("default alphabet has %d symbols, want 33", len(DefaultAlphabet))
	}
	for _, ambiguous := range "0OI" {
		if strings.ContainsRune(DefaultAlphabet, ambiguous) {
			t.Fatalf("default alphabet contains ambiguous %q", ambiguous)
		}
	}

	for i := 0; i < 500; i++ {
		code, err := g.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(code) != DefaultLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), DefaultLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(DefaultAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestGenerateExhaustsAfterConfiguredAttempts(t *testing.T) {
	for _, attempts := range []int{1, 3, DefaultMaxAttempts} {
		cfg := DefaultConfig()
		cfg.MaxAttempts = attempts
		checker := &fakeChecker{all: true}

		g, err := NewGenerator(cfg, checker, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewGenerator() error = %v", err)
		}

		_, err = g.Generate(context.Background())
		if !errors.Is(err, ErrExhaustedRetries) {
			t.Fatalf("Generate() error = %v, want ErrExhaustedRetries", err)
		}
		if checker.calls != attempts {
			t.Errorf("store checked %d times, want %d", checker.calls, attempts)
		}
	}
}

func TestGenerateRetriesPastCollisions(t *testing.T) {
	codec, err := NewCodec(DefaultAlphabet, DefaultLength, cipher.DefaultKeys())
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	checker := &fakeChecker{taken: map[string]bool{
		codec.Encode(1): true,
		codec.Encode(2): true,
	}}
	g, err := NewGenerator(DefaultConfig(), checker, zerolog.Nop(), WithSeedSource(counterSeed(0)))
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	code, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if want := codec.Encode(3); code != want {
		t.Errorf("Generate() = %q, want %q", code, want)
	}
	if checker.calls != 3 {
		t.Errorf("store checked %d times, want 3", checker.calls)
	}
}

func TestGenerateStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	g, err := NewGenerator(DefaultConfig(), &fakeChecker{err: boom}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	if _, err := g.Generate(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Generate() error = %v, want wrapped store error", err)
	}
}

func TestCodecDecodeInvertsEncode(t *testing.T) {
	codec, err := NewCodec(DefaultAlphabet, DefaultLength, cipher.DefaultKeys())
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	seeds := []uint64{0, 1, 42, cipher.Domain - 1, cipher.Domain, cipher.Domain + 7, 1_700_000_000_000}
	for _, seed := range seeds {
		code := codec.Encode(seed)
		got, err := codec.Decode(strings.ToLower(" " + code + " "))
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", code, err)
		}
		if want := uint32(seed % cipher.Domain); got != want {
			t.Errorf("Decode(Encode(%d)) = %d, want %d", seed, got, want)
		}
	}
}

func TestCodecSeedReductionUsesModulo(t *testing.T) {
	codec, err := NewCodec(DefaultAlphabet, DefaultLength, cipher.DefaultKeys())
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	if codec.Encode(5) != codec.Encode(5+cipher.Domain) {
		t.Error("seeds congruent modulo the domain must encode identically")
	}
	if codec.Encode(5) == codec.Encode(6) {
		t.Error("distinct seeds inside the domain encoded identically")
	}
}

func TestCodecRejects(t *testing.T) {
	codec, err := NewCodec(DefaultAlphabet, DefaultLength, cipher.DefaultKeys())
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	for _, code := range []string{"", "ABC", "ABCDEFG", "ABCDE0", "ZZZZZZ"} {
		if _, err := codec.Decode(code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidCode", code, err)
		}
	}

	bad := []struct {
		name     string
		alphabet string
		length   int
	}{
		{name: "too short alphabet", alphabet: "A", length: 40},
		{name: "repeated symbol", alphabet: "AAB" + DefaultAlphabet, length: 6},
		{name: "space too small", alphabet: DefaultAlphabet, length: 5},
		{name: "space wider than 64 bits", alphabet: asciiRun('!', 90), length: 12},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCodec(tc.alphabet, tc.length, cipher.DefaultKeys()); err == nil {
				t.Error("NewCodec() accepted an invalid configuration")
			}
		})
	}
}

// asciiRun returns n consecutive ASCII symbols starting at first.
func asciiRun(first byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = first + byte(i)
	}
	return string(b)
}

func TestCodecLargestSpaceRoundTrips(t *testing.T) {
	// 33^12 is the widest default-alphabet space config allows.
	codec, err := NewCodec(DefaultAlphabet, 12, cipher.DefaultKeys())
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	code := codec.Encode(987654321)
	seed, err := codec.Decode(code)
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", code, err)
	}
	if seed != 987654321 {
		t.Errorf("Decode(%q) = %d, want 987654321", code, seed)
	}
	if _, err := codec.Decode(strings.Repeat("Z", 12)); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Decode(ZZZZZZZZZZZZ) error = %v, want ErrInvalidCode", err)
	}
}

func TestDefaultAlphabet(t *testing.T) {
	if len(DefaultAlphabet) != 33 {
		t.Errorf("DefaultAlphabet has %d symbols, want 33", len(DefaultAlphabet))
	}
	if strings.ContainsAny(DefaultAlphabet, "0OI") {
		t.Errorf("DefaultAlphabet %q contains 0, O or I", DefaultAlphabet)
	}
	for _, kept := range "1L" {
		if !strings.ContainsRune(DefaultAlphabet, kept) {
			t.Errorf("DefaultAlphabet %q is missing %q", DefaultAlphabet, kept)
		}
	}
}
