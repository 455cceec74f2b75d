package joincode

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/cipher"
)

// DefaultMaxAttempts bounds the uniqueness retry loop.
const DefaultMaxAttempts = 10

var ErrExhaustedRetries = errors.New("join code generation exhausted retries")

// Checker reports whether a live test already uses code.
type Checker interface {
	JoinCodeExists(ctx context.Context, code string) (bool, error)
}

// Config carries the join code design constants.
type Config struct {
	Alphabet    string
	Length      int
	MaxAttempts int
	Keys        cipher.Keys
}

// DefaultConfig returns 6-symbol codes over the 33-symbol alphabet.
func DefaultConfig() Config {
	return Config{
		Alphabet:    DefaultAlphabet,
		Length:      DefaultLength,
		MaxAttempts: DefaultMaxAttempts,
		Keys:        cipher.DefaultKeys(),
	}
}

// Generator draws seeds, encodes them and checks the result against the
// store. It only reads: persisting the winning code is the caller's job.
type Generator struct {
	codec       *Codec
	checker     Checker
	maxAttempts int
	seed        func() uint64
	log         zerolog.Logger
}

// Option customises a Generator.
type Option func(*Generator)

// WithSeedSource replaces the time-plus-random seed draw.
func WithSeedSource(fn func() uint64) Option {
	return func(g *Generator) { g.seed = fn }
}

// NewGenerator creates a new Generator.
func NewGenerator(cfg Config, checker Checker, log zerolog.Logger, opts ...Option) (*Generator, error) {
	codec, err := NewCodec(cfg.Alphabet, cfg.Length, cfg.Keys)
	if err != nil {
		return nil, err
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	g := &Generator{
		codec:       codec,
		checker:     checker,
		maxAttempts: cfg.MaxAttempts,
		seed:        timeSeed,
		log:         log.With().Str("component", "joincode_generator").Logger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Codec exposes the encoder used by the generator.
func (g *Generator) Codec() *Codec { return g.codec }

// MaxAttempts is the retry budget shared by Generate and its callers.
func (g *Generator) MaxAttempts() int { return g.maxAttempts }

// Generate returns a code no live test currently uses. Two concurrent
// generators can still pick the same code; the store's unique constraint
// decides and the loser should call Generate again.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := g.codec.Encode(g.seed())

		exists, err := g.checker.JoinCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if !exists {
			return code, nil
		}

		g.log.Debug().
			Int("attempt", attempt).
			Str("code", code).
			Msg("Join code collision, redrawing")
	}

	return "", fmt.Errorf("%w after %d attempts", ErrExhaustedRetries, g.maxAttempts)
}

// timeSeed mixes the wall clock with a random draw so that codes generated
// in the same millisecond still differ.
func timeSeed() uint64 {
	return uint64(time.Now().UnixMilli()) + rand.Uint64N(cipher.Domain)
}
